package reservation

import (
	"time"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// SeatChange describes one accepted state transition of one seat.
// Seq increases by one for every transition of the show's ledger, so
// consumers that receive changes out of order can drop stale ones.
type SeatChange struct {
	ShowID    uint64          `json:"show_id"`
	Seat      model.Seat      `json:"seat"`
	State     model.SeatState `json:"state"`
	SessionID string          `json:"session_id,omitempty"` // holder for HELD, buyer session for SOLD, previous holder for FREE
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Seq       uint64          `json:"seq"`
	At        time.Time       `json:"at"`
}

// ViewFor returns the seat's new state as sessionID sees it.
func (c SeatChange) ViewFor(sessionID string) model.SeatView {
	return viewFor(c.State, c.SessionID, sessionID)
}

// SeatSelectionSubscriber is notified of every accepted transition.
// Notifications are delivered while the ledger's write lock is held,
// in transition order, so implementations must return quickly and must
// not call back into the ledger.
type SeatSelectionSubscriber interface {
	OnSeatStateChanged(change SeatChange)
}

// SubscriberFunc adapts a plain function to SeatSelectionSubscriber.
type SubscriberFunc func(change SeatChange)

func (f SubscriberFunc) OnSeatStateChanged(change SeatChange) { f(change) }
