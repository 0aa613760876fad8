package reservation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

//go:generate mockery --name HoldStore --output mocks --outpkg mocks

// HoldStore persists copies of in-memory holds so that a restarted
// process can rebuild them.
type HoldStore interface {
	SaveHold(ctx context.Context, hold model.SeatHold) error
	DeleteHold(ctx context.Context, showID, seatID uint64) error
}

// Journal mirrors ledger holds into a HoldStore.  It subscribes to
// ledgers like any other subscriber but never blocks them: changes are
// queued and written by Run.  When the queue is full the change is
// dropped and counted; the janitor and the expires_at filter on
// recovery bound the damage of a missed write.
type Journal struct {
	store   HoldStore
	queue   chan SeatChange
	timeout time.Duration
	log     *logrus.Entry
	dropped atomic.Uint64
}

// NewJournal returns a journal with room for size queued changes.
func NewJournal(store HoldStore, size int, log *logrus.Entry) *Journal {
	if size <= 0 {
		size = 1024
	}
	return &Journal{
		store:   store,
		queue:   make(chan SeatChange, size),
		timeout: 3 * time.Second,
		log:     log,
	}
}

// OnSeatStateChanged queues the change for Run.
func (j *Journal) OnSeatStateChanged(change SeatChange) {
	select {
	case j.queue <- change:
	default:
		j.dropped.Add(1)
		j.log.WithFields(logrus.Fields{
			"show_id": change.ShowID,
			"seat_id": change.Seat.ID,
			"state":   change.State,
		}).Warn("hold journal queue full; change dropped")
	}
}

// Dropped returns how many changes were discarded because the queue
// was full.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Run writes queued changes until ctx is cancelled.  Changes still
// queued at that point are written with a fresh context before Run
// returns.
func (j *Journal) Run(ctx context.Context) error {
	j.log.Info("hold journal started")
	for {
		select {
		case <-ctx.Done():
			j.drain()
			j.log.Info("hold journal stopped")
			return nil
		case c := <-j.queue:
			j.apply(ctx, c)
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case c := <-j.queue:
			j.apply(context.Background(), c)
		default:
			return
		}
	}
}

func (j *Journal) apply(ctx context.Context, c SeatChange) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var err error
	switch c.State {
	case model.SeatHeld:
		err = j.store.SaveHold(ctx, model.SeatHold{
			ShowID:    c.ShowID,
			SeatID:    c.Seat.ID,
			SessionID: c.SessionID,
			ExpiresAt: c.ExpiresAt,
		})
	default:
		// FREE and SOLD both end the hold.
		err = j.store.DeleteHold(ctx, c.ShowID, c.Seat.ID)
	}
	if err != nil {
		j.log.WithError(err).WithFields(logrus.Fields{
			"show_id": c.ShowID,
			"seat_id": c.Seat.ID,
			"state":   c.State,
		}).Error("hold journal write failed")
	}
}
