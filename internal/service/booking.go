// Package service wires the reservation ledger, the session supervisor
// and ticket issuance into the seat selection flow the HTTP layer
// exposes: open a selection, hold and release seats, check out or
// cancel.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/queue"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/session"
)

var (
	// ErrUnknownSelection is returned for a selection id this process
	// never opened or has already forgotten.
	ErrUnknownSelection = errors.New("unknown selection")
	// ErrSalesClosed is returned when a selection is opened for a show
	// that has already ended.
	ErrSalesClosed = errors.New("sales closed for show")
)

// TicketHandoff delivers confirmed sales to ticket issuance.
type TicketHandoff interface {
	HandoffTickets(ctx context.Context, correlationID string, event queue.SeatsConfirmedEvent) error
}

// SessionEvents receives the countdown of every selection.  Calls are
// made while the session's state lock is held and must not block.
type SessionEvents interface {
	SessionTicked(sessionID string, remaining time.Duration)
	SessionExpired(sessionID string)
	SessionClosed(sessionID string, status model.SessionStatus)
}

// HoldPurger deletes hold rows that expired before a given instant.
type HoldPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Selection is one sales session bound to one show.
type Selection struct {
	SessionID string    `json:"session_id"`
	ShowID    uint64    `json:"show_id"`
	BuyerRef  string    `json:"buyer_ref"`
	OpenedAt  time.Time `json:"opened_at"`

	ledger *reservation.Ledger
}

// SeatStatus is one seat of the seat map as seen by a selection.
type SeatStatus struct {
	SeatID uint64         `json:"seat_id"`
	Label  string         `json:"label"`
	Row    string         `json:"row"`
	Number uint32         `json:"number"`
	Type   string         `json:"type"`
	View   model.SeatView `json:"view"`
}

// SelectionView is the seat map of a selection plus its window.  Live
// seat events with a seq at or below Version are already reflected.
type SelectionView struct {
	SessionID        string              `json:"session_id"`
	ShowID           uint64              `json:"show_id"`
	Status           model.SessionStatus `json:"status"`
	Deadline         time.Time           `json:"deadline"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	Version          uint64              `json:"version"`
	Held             []uint64            `json:"held"`
	Seats            []SeatStatus        `json:"seats"`
}

// Checkout is the outcome of a successful confirm.
type Checkout struct {
	Seats   []model.Seat      `json:"seats"`
	Receipt model.SaleReceipt `json:"receipt"`
}

// Config holds the janitor settings of a Booking.
type Config struct {
	// Retention is how long a finished selection stays readable.
	Retention time.Duration
	// HandoffTimeout bounds the ticket publish after a sale.
	HandoffTimeout time.Duration
}

// Booking is the seat selection facade.
type Booking struct {
	registry   *reservation.Registry
	supervisor *session.Supervisor
	handoff    TicketHandoff
	events     SessionEvents
	purger     HoldPurger
	cfg        Config
	now        func() time.Time
	log        *logrus.Entry

	mu         sync.RWMutex
	selections map[string]*Selection
}

// NewBooking wires the facade.  purger may be nil when holds are not
// journaled.
func NewBooking(registry *reservation.Registry, supervisor *session.Supervisor, handoff TicketHandoff, events SessionEvents, purger HoldPurger, cfg Config, log *logrus.Entry) *Booking {
	if registry == nil || supervisor == nil || handoff == nil || events == nil {
		panic("nil dependency passed to NewBooking")
	}
	if cfg.HandoffTimeout <= 0 {
		cfg.HandoffTimeout = 5 * time.Second
	}
	return &Booking{
		registry:   registry,
		supervisor: supervisor,
		handoff:    handoff,
		events:     events,
		purger:     purger,
		cfg:        cfg,
		now:        time.Now,
		log:        log,
		selections: make(map[string]*Selection),
	}
}

// Open starts a selection for showID.  The purchase window starts now
// and the session is bound to the show's ledger until its deadline.
func (b *Booking) Open(ctx context.Context, showID uint64, buyerRef string) (Selection, session.Lease, error) {
	l, err := b.registry.Open(ctx, showID)
	if err != nil {
		if !errors.Is(err, reservation.ErrShowNotFound) {
			b.log.WithError(err).WithField("show_id", showID).Error("opening show ledger failed")
		}
		return Selection{}, session.Lease{}, err
	}
	if l.Layout().Show.Ended(b.now()) {
		return Selection{}, session.Lease{}, fmt.Errorf("%w: %d", ErrSalesClosed, showID)
	}

	sid := uuid.NewString()
	lease, err := b.supervisor.Start(sid, l, session.Callbacks{
		OnTick:   func(remaining time.Duration) { b.events.SessionTicked(sid, remaining) },
		OnExpire: func() { b.events.SessionExpired(sid) },
	})
	if err != nil {
		return Selection{}, session.Lease{}, fmt.Errorf("starting purchase window: %w", err)
	}
	l.Bind(sid, lease.Deadline)

	sel := &Selection{
		SessionID: sid,
		ShowID:    showID,
		BuyerRef:  buyerRef,
		OpenedAt:  b.now().UTC(),
		ledger:    l,
	}
	b.mu.Lock()
	b.selections[sid] = sel
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"show_id":    showID,
		"session_id": sid,
		"deadline":   lease.Deadline,
	}).Info("selection opened")
	return *sel, lease, nil
}

func (b *Booking) selection(sessionID string) (*Selection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sel, ok := b.selections[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelection, sessionID)
	}
	return sel, nil
}

// Hold holds seatID for the selection.  A seat taken by someone else
// is HoldConflict with a nil error.
func (b *Booking) Hold(sessionID string, seatID uint64) (reservation.HoldResult, error) {
	sel, err := b.selection(sessionID)
	if err != nil {
		return reservation.HoldConflict, err
	}
	res, err := sel.ledger.Hold(seatID, sessionID)
	if err != nil {
		err = b.closedOr(sessionID, err)
		b.logDefect(err, sel, seatID, "hold rejected")
	}
	return res, err
}

// Release gives seatID back.  Releasing a seat the selection does not
// hold is ReleaseNotHeld with a nil error.
func (b *Booking) Release(sessionID string, seatID uint64) (reservation.ReleaseResult, error) {
	sel, err := b.selection(sessionID)
	if err != nil {
		return reservation.ReleaseNotHeld, err
	}
	res, err := sel.ledger.Release(seatID, sessionID)
	if err != nil {
		b.logDefect(err, sel, seatID, "release rejected")
	}
	return res, err
}

// closedOr reports an unbound session whose window has ended as
// session.ErrSessionClosed; the ledger forgets a session once it ends
// or has bought its seats.
func (b *Booking) closedOr(sessionID string, err error) error {
	if !errors.Is(err, reservation.ErrSessionNotBound) && !errors.Is(err, reservation.ErrNothingHeld) {
		return err
	}
	lease, _ := b.supervisor.Status(sessionID)
	if lease.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", session.ErrSessionClosed, sessionID, lease.Status)
	}
	return err
}

// Outcomes of a client racing its own window are not defects.
func (b *Booking) logDefect(err error, sel *Selection, seatID uint64, msg string) {
	entry := b.log.WithError(err).WithFields(logrus.Fields{
		"show_id":    sel.ShowID,
		"session_id": sel.SessionID,
		"seat_id":    seatID,
	})
	if errors.Is(err, reservation.ErrLeaseExpired) || errors.Is(err, reservation.ErrConfirmInProgress) || errors.Is(err, session.ErrSessionClosed) {
		entry.Debug(msg)
		return
	}
	entry.Error(msg)
}

// Snapshot returns the seat map as the selection sees it.
func (b *Booking) Snapshot(sessionID string) (SelectionView, error) {
	sel, err := b.selection(sessionID)
	if err != nil {
		return SelectionView{}, err
	}
	lease, _ := b.supervisor.Status(sessionID)

	// Version first: the map may include later changes, never miss one.
	version := sel.ledger.Version()
	views := sel.ledger.SnapshotFor(sessionID)

	layout := sel.ledger.Layout()
	view := SelectionView{
		SessionID:        sessionID,
		ShowID:           sel.ShowID,
		Status:           lease.Status,
		Deadline:         lease.Deadline,
		RemainingSeconds: int64(lease.Remaining / time.Second),
		Version:          version,
		Held:             []uint64{},
		Seats:            make([]SeatStatus, 0, len(layout.Seats)),
	}
	for _, s := range layout.Seats {
		v := views[s.ID]
		if v == model.ViewHeldBySelf {
			view.Held = append(view.Held, s.ID)
		}
		view.Seats = append(view.Seats, SeatStatus{
			SeatID: s.ID,
			Label:  s.Label(),
			Row:    s.RowLabel,
			Number: s.SeatNumber,
			Type:   s.SeatType,
			View:   v,
		})
	}
	return view, nil
}

// Extend moves the selection's deadline by d and carries the new
// deadline to its holds.
func (b *Booking) Extend(sessionID string, d time.Duration) (session.Lease, error) {
	sel, err := b.selection(sessionID)
	if err != nil {
		return session.Lease{}, err
	}
	lease, err := b.supervisor.Extend(sessionID, d)
	if err != nil {
		return lease, err
	}
	// The window may have closed since; a released session stays unbound.
	if err := sel.ledger.Rebind(sessionID, lease.Deadline); err != nil {
		lease, _ = b.supervisor.Status(sessionID)
		return lease, b.closedOr(sessionID, err)
	}
	return lease, nil
}

// Cancel closes the selection and releases its holds.  Cancelling a
// selection that already ended returns its final lease together with
// session.ErrSessionClosed.  During a checkout the cancellation is
// deferred and session.ErrCheckoutInProgress is returned; it takes
// effect only if the checkout fails.
func (b *Booking) Cancel(sessionID string) (session.Lease, error) {
	if _, err := b.selection(sessionID); err != nil {
		return session.Lease{}, err
	}
	lease, err := b.supervisor.Cancel(sessionID)
	if err != nil {
		return lease, err
	}
	b.events.SessionClosed(sessionID, model.SessionCancelled)
	return lease, nil
}

// Checkout sells every seat the selection holds and hands the sale to
// ticket issuance.  A storage failure leaves the holds in place so the
// checkout can be retried within the window.  If the window expired or
// was cancelled during the write, a successful sale still completes the
// selection and a failed one closes it.  A failed handoff is logged
// only; the sale is durable by then.
func (b *Booking) Checkout(ctx context.Context, sessionID, correlationID string) (Checkout, error) {
	sel, err := b.selection(sessionID)
	if err != nil {
		return Checkout{}, err
	}
	log := b.log.WithFields(logrus.Fields{
		"show_id":        sel.ShowID,
		"session_id":     sessionID,
		"correlation_id": correlationID,
	})

	// Expiry and Cancel wait for the outcome from here on.
	if _, err := b.supervisor.BeginCheckout(sessionID); err != nil {
		return Checkout{}, err
	}
	seats, receipt, err := sel.ledger.Confirm(ctx, sessionID, sel.BuyerRef)
	if err != nil {
		return Checkout{}, b.abortCheckout(sel, err, log)
	}
	if _, err := b.supervisor.Complete(sessionID); err != nil {
		log.WithError(err).Warn("completing purchase window")
	}
	b.events.SessionClosed(sessionID, model.SessionCompleted)
	log.WithFields(logrus.Fields{
		"reservation_id": receipt.ReservationID,
		"seats":          len(seats),
		"replayed":       receipt.Replayed,
	}).Info("seats sold")

	layout := sel.ledger.Layout()
	event := queue.SeatsConfirmedEvent{
		ReservationID:    receipt.ReservationID,
		SessionID:        sessionID,
		BuyerRef:         sel.BuyerRef,
		ShowID:           sel.ShowID,
		HallID:           layout.Hall.ID,
		HallName:         layout.Hall.Name,
		MovieTitle:       layout.Show.Title,
		StartsAt:         layout.Show.StartsAt,
		TicketRefs:       receipt.TicketRefs,
		TotalAmountCents: receipt.TotalAmountCents,
		ConfirmedAt:      receipt.ConfirmedAt,
	}
	for _, s := range seats {
		event.SeatLabels = append(event.SeatLabels, s.Label())
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.HandoffTimeout)
	defer cancel()
	if err := b.handoff.HandoffTickets(hctx, correlationID, event); err != nil {
		log.WithError(err).Error("ticket handoff failed; sale is recorded")
	}
	return Checkout{Seats: seats, Receipt: receipt}, nil
}

// abortCheckout settles the session after Confirm failed.  An expiry
// or cancellation that arrived during the write is applied now.  A
// seat sold elsewhere cannot be retried, so the selection is cancelled.
func (b *Booking) abortCheckout(sel *Selection, err error, log *logrus.Entry) error {
	lease, endErr := b.supervisor.EndCheckout(sel.SessionID)
	if endErr != nil {
		log.WithError(endErr).Warn("ending checkout")
	}
	if lease.Status.Terminal() {
		if lease.Status == model.SessionCancelled {
			b.events.SessionClosed(sel.SessionID, model.SessionCancelled)
		}
		log.WithError(err).WithField("status", lease.Status).Info("checkout failed after the window closed; holds released")
		return fmt.Errorf("%w: %s is %s: %w", session.ErrSessionClosed, sel.SessionID, lease.Status, err)
	}

	switch {
	case errors.Is(err, reservation.ErrSeatAlreadySold):
		log.WithError(err).Error("seat already sold in storage; selection cancelled")
		if _, cerr := b.supervisor.Cancel(sel.SessionID); cerr == nil {
			b.events.SessionClosed(sel.SessionID, model.SessionCancelled)
		}
		return err
	case errors.Is(err, reservation.ErrSaleNotRecorded):
		log.WithError(err).Error("sale not recorded")
	}
	return b.closedOr(sel.SessionID, err)
}

// Sweep runs one janitor pass: stale holds are freed, ended shows are
// evicted, finished selections past retention are forgotten and
// expired hold rows are purged.
func (b *Booking) Sweep(ctx context.Context) {
	now := b.now()
	if n := b.registry.Sweep(now); n > 0 {
		b.log.WithField("freed", n).Warn("janitor freed holds the supervisor missed")
	}
	pruned := b.supervisor.Prune(b.cfg.Retention)
	if len(pruned) > 0 {
		b.mu.Lock()
		for _, id := range pruned {
			delete(b.selections, id)
		}
		b.mu.Unlock()
		b.log.WithField("selections", len(pruned)).Debug("finished selections forgotten")
	}
	if b.purger != nil {
		if n, err := b.purger.PurgeExpired(ctx, now); err != nil {
			b.log.WithError(err).Warn("purging expired hold rows")
		} else if n > 0 {
			b.log.WithField("rows", n).Debug("expired hold rows purged")
		}
	}
}

// RunJanitor calls Sweep every interval until ctx is cancelled.
func (b *Booking) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.log.WithField("interval", interval).Info("janitor started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("janitor stopped")
			return nil
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}
