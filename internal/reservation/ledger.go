package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// seatEntry is the ledger's record for one seat of the show.
type seatEntry struct {
	seat      model.Seat
	state     model.SeatState
	sessionID string    // holder while HELD, buyer session once SOLD
	expiresAt time.Time // holder's lease deadline while HELD
}

// binding is a session admitted to the show.  Only bound sessions may
// hold seats.  While confirming is set the session's seats are being
// written to storage and can be neither released nor swept.
type binding struct {
	deadline         time.Time
	confirming       bool
	releaseRequested bool // ReleaseAll arrived during the write
}

// Ledger is the single source of truth for seat occupancy of one
// show.  All mutations are serialized by mu; SnapshotFor and the other
// read-only accessors take the read lock and may run concurrently.
//
// Subscribers are notified under the write lock, so the notifications
// for any one seat reach every subscriber in the order the transitions
// happened.
type Ledger struct {
	layout   model.RoomLayout
	recorder SaleRecorder
	now      func() time.Time
	log      *logrus.Entry

	mu       sync.RWMutex
	seats    map[uint64]*seatEntry
	sessions map[string]*binding
	subs     []SeatSelectionSubscriber
	seq      uint64
}

// NewLedger builds a ledger for the show described by layout.  Seats in
// sold start out SOLD; holds are restored as HELD by their original
// sessions (which are not bound, so they can only be released or swept).
// Holds for seats that are also sold or not in the room are ignored.
func NewLedger(layout model.RoomLayout, sold map[uint64]struct{}, holds []model.SeatHold, recorder SaleRecorder, opts ...Option) *Ledger {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	l := &Ledger{
		layout:   layout,
		recorder: recorder,
		now:      o.now,
		log:      o.log.WithField("show_id", layout.Show.ID),
		seats:    make(map[uint64]*seatEntry, len(layout.Seats)),
		sessions: make(map[string]*binding),
	}
	for _, s := range layout.Seats {
		e := &seatEntry{seat: s, state: model.SeatFree}
		if _, ok := sold[s.ID]; ok {
			e.state = model.SeatSold
		}
		l.seats[s.ID] = e
	}
	for _, h := range holds {
		e, ok := l.seats[h.SeatID]
		if !ok || e.state != model.SeatFree {
			continue
		}
		e.state = model.SeatHeld
		e.sessionID = h.SessionID
		e.expiresAt = h.ExpiresAt
	}
	return l
}

// ShowID returns the id of the show this ledger is authoritative for.
func (l *Ledger) ShowID() uint64 { return l.layout.Show.ID }

// Layout returns the room layout the ledger was built from.
func (l *Ledger) Layout() model.RoomLayout { return l.layout }

// Subscribe registers s for every subsequent transition.
func (l *Ledger) Subscribe(s SeatSelectionSubscriber) {
	l.mu.Lock()
	l.subs = append(l.subs, s)
	l.mu.Unlock()
}

// Bind admits a session to the show until deadline.  Binding a session
// that is already bound changes nothing; use Rebind to move a deadline.
func (l *Ledger) Bind(sessionID string, deadline time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[sessionID]; ok {
		return
	}
	l.sessions[sessionID] = &binding{deadline: deadline}
}

// Rebind moves the deadline of a bound session, and the expiry of its
// holds, to deadline; each moved hold is re-announced as HELD.  A
// session that was never bound or has been released gets
// ErrSessionNotBound and stays unbound.
func (l *Ledger) Rebind(sessionID string, deadline time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: session %s, show %d", ErrSessionNotBound, sessionID, l.ShowID())
	}
	b.deadline = deadline
	for _, e := range l.seats {
		if e.state == model.SeatHeld && e.sessionID == sessionID {
			e.expiresAt = deadline
			l.notify(e, sessionID)
		}
	}
	return nil
}

// Hold tries to hold seatID for sessionID.  Holding a seat the session
// already holds is a no-op that returns HoldOK.  A seat held by another
// session or sold yields HoldConflict with a nil error.
func (l *Ledger) Hold(seatID uint64, sessionID string) (HoldResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.seats[seatID]
	if !ok {
		return HoldConflict, fmt.Errorf("%w: seat %d, show %d", ErrUnknownSeat, seatID, l.ShowID())
	}
	b, ok := l.sessions[sessionID]
	if !ok {
		return HoldConflict, fmt.Errorf("%w: session %s, show %d", ErrSessionNotBound, sessionID, l.ShowID())
	}
	if b.confirming {
		return HoldConflict, fmt.Errorf("%w: session %s", ErrConfirmInProgress, sessionID)
	}
	if !l.now().Before(b.deadline) {
		return HoldConflict, fmt.Errorf("%w: session %s", ErrLeaseExpired, sessionID)
	}

	switch e.state {
	case model.SeatFree:
		e.state = model.SeatHeld
		e.sessionID = sessionID
		e.expiresAt = b.deadline
		l.notify(e, sessionID)
		return HoldOK, nil
	case model.SeatHeld:
		if e.sessionID == sessionID {
			return HoldOK, nil
		}
	}
	return HoldConflict, nil
}

// Release frees seatID if and only if sessionID holds it.
func (l *Ledger) Release(seatID uint64, sessionID string) (ReleaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.seats[seatID]
	if !ok {
		return ReleaseNotHeld, fmt.Errorf("%w: seat %d, show %d", ErrUnknownSeat, seatID, l.ShowID())
	}
	if e.state != model.SeatHeld || e.sessionID != sessionID {
		return ReleaseNotHeld, nil
	}
	if b, ok := l.sessions[sessionID]; ok && b.confirming {
		return ReleaseNotHeld, fmt.Errorf("%w: session %s", ErrConfirmInProgress, sessionID)
	}
	l.free(e)
	return ReleaseOK, nil
}

// ReleaseAll frees every seat held by sessionID and unbinds the
// session.  It returns the freed seat ids in ascending order; an empty
// result is normal.  If the session is mid-confirm nothing is freed
// now: the release is applied when the write fails, and discarded when
// it succeeds.
func (l *Ledger) ReleaseAll(sessionID string) []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.sessions[sessionID]; ok && b.confirming {
		b.releaseRequested = true
		return nil
	}
	delete(l.sessions, sessionID)
	return l.freeSession(sessionID)
}

// Confirm sells every seat held by sessionID.  The durable write runs
// without the ledger lock; meanwhile the session's seats stay HELD and
// are protected from release and sweeping.  On success the seats
// become SOLD and the session is unbound.  On failure the holds are
// left in place so the caller can retry, unless the session was
// released during the write, in which case they are freed now.
func (l *Ledger) Confirm(ctx context.Context, sessionID, buyerRef string) ([]model.Seat, model.SaleReceipt, error) {
	l.mu.Lock()
	b, ok := l.sessions[sessionID]
	seats := l.heldBy(sessionID)
	switch {
	case len(seats) == 0:
		l.mu.Unlock()
		return nil, model.SaleReceipt{}, fmt.Errorf("%w: session %s", ErrNothingHeld, sessionID)
	case !ok:
		l.mu.Unlock()
		return nil, model.SaleReceipt{}, fmt.Errorf("%w: session %s, show %d", ErrSessionNotBound, sessionID, l.ShowID())
	case b.confirming:
		l.mu.Unlock()
		return nil, model.SaleReceipt{}, fmt.Errorf("%w: session %s", ErrConfirmInProgress, sessionID)
	}
	b.confirming = true
	l.mu.Unlock()

	receipt, err := l.recorder.RecordSale(ctx, model.Sale{
		ShowID:    l.ShowID(),
		SessionID: sessionID,
		BuyerRef:  buyerRef,
		Seats:     seats,
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	b.confirming = false
	if err != nil {
		if b.releaseRequested {
			delete(l.sessions, sessionID)
			freed := l.freeSession(sessionID)
			l.log.WithFields(logrus.Fields{"session_id": sessionID, "seats": freed}).
				Warn("sale failed after session was closed; holds released")
		}
		return nil, model.SaleReceipt{}, fmt.Errorf("%w: %w", ErrSaleNotRecorded, err)
	}
	for _, s := range seats {
		e := l.seats[s.ID]
		e.state = model.SeatSold
		e.expiresAt = time.Time{}
		l.notify(e, sessionID)
	}
	delete(l.sessions, sessionID)
	return seats, receipt, nil
}

// SnapshotFor returns the state of every seat as seen by sessionID.
func (l *Ledger) SnapshotFor(sessionID string) map[uint64]model.SeatView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[uint64]model.SeatView, len(l.seats))
	for id, e := range l.seats {
		out[id] = viewOf(e, sessionID)
	}
	return out
}

// Version returns the sequence number of the last transition.  A
// snapshot taken at version v reflects every SeatChange with Seq <= v.
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// SeatState returns the current state and holder of one seat.
func (l *Ledger) SeatState(seatID uint64) (model.SeatState, string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.seats[seatID]
	if !ok {
		return "", "", fmt.Errorf("%w: seat %d, show %d", ErrUnknownSeat, seatID, l.ShowID())
	}
	return e.state, e.sessionID, nil
}

// HeldBy returns the ids of the seats sessionID holds, ascending.
func (l *Ledger) HeldBy(sessionID string) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seats := l.heldBy(sessionID)
	ids := make([]uint64, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return ids
}

// Idle reports whether no session is bound and no seat is held.
func (l *Ledger) Idle() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.sessions) > 0 {
		return false
	}
	for _, e := range l.seats {
		if e.state == model.SeatHeld {
			return false
		}
	}
	return true
}

// Sweep frees holds whose expiry passed more than grace ago and drops
// bindings whose deadline passed more than grace ago.  Sessions that
// are mid-confirm are left alone.  It returns the freed seat ids.
func (l *Ledger) Sweep(now time.Time, grace time.Duration) []uint64 {
	cutoff := now.Add(-grace)

	l.mu.Lock()
	defer l.mu.Unlock()

	var freed []uint64
	for id, e := range l.seats {
		if e.state != model.SeatHeld || !e.expiresAt.Before(cutoff) {
			continue
		}
		if b, ok := l.sessions[e.sessionID]; ok && b.confirming {
			continue
		}
		l.free(e)
		freed = append(freed, id)
	}
	for sid, b := range l.sessions {
		if !b.confirming && b.deadline.Before(cutoff) {
			delete(l.sessions, sid)
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })
	if len(freed) > 0 {
		l.log.WithField("seats", freed).Info("swept expired holds")
	}
	return freed
}

// heldBy lists the seats held by sessionID ordered by id.  Callers
// must hold mu.
func (l *Ledger) heldBy(sessionID string) []model.Seat {
	var out []model.Seat
	for _, e := range l.seats {
		if e.state == model.SeatHeld && e.sessionID == sessionID {
			out = append(out, e.seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// freeSession frees every seat held by sessionID.  Callers must hold mu.
func (l *Ledger) freeSession(sessionID string) []uint64 {
	seats := l.heldBy(sessionID)
	ids := make([]uint64, 0, len(seats))
	for _, s := range seats {
		l.free(l.seats[s.ID])
		ids = append(ids, s.ID)
	}
	return ids
}

// free moves e to FREE and notifies.  Callers must hold mu.
func (l *Ledger) free(e *seatEntry) {
	prev := e.sessionID
	e.state = model.SeatFree
	e.sessionID = ""
	e.expiresAt = time.Time{}
	l.notify(e, prev)
}

// notify publishes the current state of e.  Callers must hold mu.
func (l *Ledger) notify(e *seatEntry, sessionID string) {
	l.seq++
	change := SeatChange{
		ShowID:    l.ShowID(),
		Seat:      e.seat,
		State:     e.state,
		SessionID: sessionID,
		ExpiresAt: e.expiresAt,
		Seq:       l.seq,
		At:        l.now(),
	}
	for _, s := range l.subs {
		s.OnSeatStateChanged(change)
	}
}

func viewOf(e *seatEntry, sessionID string) model.SeatView {
	return viewFor(e.state, e.sessionID, sessionID)
}

func viewFor(state model.SeatState, holder, sessionID string) model.SeatView {
	switch state {
	case model.SeatSold:
		return model.ViewSold
	case model.SeatHeld:
		if holder == sessionID {
			return model.ViewHeldBySelf
		}
		return model.ViewHeldByOther
	}
	return model.ViewFree
}
