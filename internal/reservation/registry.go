package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Registry owns one Ledger per show.  Opening a show that is already
// open returns the existing ledger; concurrent first opens of the same
// show share a single storage load.
type Registry struct {
	catalog   CatalogReader
	occupancy OccupancyReader
	recorder  SaleRecorder
	subs      []SeatSelectionSubscriber
	opts      []Option
	o         options

	group   singleflight.Group
	mu      sync.RWMutex
	ledgers map[uint64]*Ledger
}

// NewRegistry wires a registry to its storage ports.  Every ledger it
// opens is subscribed to subs before it becomes visible.
func NewRegistry(catalog CatalogReader, occupancy OccupancyReader, recorder SaleRecorder, subs []SeatSelectionSubscriber, opts ...Option) *Registry {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Registry{
		catalog:   catalog,
		occupancy: occupancy,
		recorder:  recorder,
		subs:      subs,
		opts:      opts,
		o:         o,
		ledgers:   make(map[uint64]*Ledger),
	}
}

// Open returns the ledger of showID, loading it from storage on first
// use.  Any storage failure is reported as ErrStorageUnavailable and no
// ledger is created, so selection never starts from unknown state.
func (r *Registry) Open(ctx context.Context, showID uint64) (*Ledger, error) {
	if l, ok := r.Lookup(showID); ok {
		return l, nil
	}
	v, err, _ := r.group.Do(strconv.FormatUint(showID, 10), func() (interface{}, error) {
		if l, ok := r.Lookup(showID); ok {
			return l, nil
		}
		l, err := r.load(ctx, showID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.ledgers[showID] = l
		r.mu.Unlock()
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Ledger), nil
}

func (r *Registry) load(ctx context.Context, showID uint64) (*Ledger, error) {
	layout, err := r.catalog.GetRoomLayout(ctx, showID)
	if err != nil {
		if errors.Is(err, ErrShowNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading layout of show %d: %v", ErrStorageUnavailable, showID, err)
	}
	sold, err := r.occupancy.LoadSold(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading sold seats of show %d: %v", ErrStorageUnavailable, showID, err)
	}
	holds, err := r.occupancy.LoadHeldByOthers(ctx, showID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: loading holds of show %d: %v", ErrStorageUnavailable, showID, err)
	}

	l := NewLedger(layout, sold, holds, r.recorder, r.opts...)
	for _, s := range r.subs {
		l.Subscribe(s)
	}
	r.o.log.WithFields(logrus.Fields{
		"show_id":  showID,
		"seats":    len(layout.Seats),
		"sold":     len(sold),
		"restored": len(holds),
	}).Info("ledger opened")
	return l, nil
}

// Lookup returns the ledger of showID if it is open.
func (r *Registry) Lookup(showID uint64) (*Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[showID]
	return l, ok
}

// Evict drops the ledger of showID if it is idle.  It reports whether
// the ledger was removed.
func (r *Registry) Evict(showID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[showID]
	if !ok || !l.Idle() {
		return false
	}
	delete(r.ledgers, showID)
	return true
}

// Sweep runs Ledger.Sweep on every open ledger and evicts idle ledgers
// of shows that have ended.  It returns the number of holds freed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	ledgers := make([]*Ledger, 0, len(r.ledgers))
	for _, l := range r.ledgers {
		ledgers = append(ledgers, l)
	}
	r.mu.RUnlock()

	freed := 0
	for _, l := range ledgers {
		freed += len(l.Sweep(now, r.o.grace))
		if l.Layout().Show.Ended(now) && r.Evict(l.ShowID()) {
			r.o.log.WithField("show_id", l.ShowID()).Info("ledger evicted")
		}
	}
	return freed
}
