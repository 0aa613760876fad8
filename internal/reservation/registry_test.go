package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation/reservationtest"
)

func TestRegistry_OneLedgerPerShow(t *testing.T) {
	catalog := reservationtest.NewCatalog(reservationtest.Layout(101, 2, 5), reservationtest.Layout(102, 2, 5))
	catalog.Delay = 20 * time.Millisecond
	reg := reservation.NewRegistry(catalog, reservationtest.NewOccupancy(), reservationtest.NewRecorder(), nil)

	var wg sync.WaitGroup
	got := make([]*reservation.Ledger, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := reg.Open(context.Background(), 101)
			assert.NoError(t, err)
			got[i] = l
		}(i)
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
	assert.Equal(t, 1, catalog.LoadCount(101))

	other, err := reg.Open(context.Background(), 102)
	require.NoError(t, err)
	assert.NotSame(t, got[0], other)
}

func TestRegistry_HoldsVisibleAcrossSessions(t *testing.T) {
	reg := reservation.NewRegistry(reservationtest.NewCatalog(reservationtest.Layout(101, 6, 10)),
		reservationtest.NewOccupancy(), reservationtest.NewRecorder(), nil)

	a, err := reg.Open(context.Background(), 101)
	require.NoError(t, err)
	a.Bind("A", time.Now().Add(time.Minute))
	res, err := a.Hold(1, "A")
	require.NoError(t, err)
	require.Equal(t, reservation.HoldOK, res)

	b, err := reg.Open(context.Background(), 101)
	require.NoError(t, err)
	b.Bind("B", time.Now().Add(time.Minute))
	res, err = b.Hold(1, "B")
	require.NoError(t, err)
	assert.Equal(t, reservation.HoldConflict, res)
}

func TestRegistry_FailsClosed(t *testing.T) {
	occupancy := reservationtest.NewOccupancy()
	occupancy.Err = errors.New("dial tcp: connection refused")
	reg := reservation.NewRegistry(reservationtest.NewCatalog(reservationtest.Layout(101, 1, 5)),
		occupancy, reservationtest.NewRecorder(), nil)

	_, err := reg.Open(context.Background(), 101)
	require.ErrorIs(t, err, reservation.ErrStorageUnavailable)
	_, ok := reg.Lookup(101)
	assert.False(t, ok)

	occupancy.Err = nil
	_, err = reg.Open(context.Background(), 101)
	assert.NoError(t, err)
}

func TestRegistry_UnknownShow(t *testing.T) {
	reg := reservation.NewRegistry(reservationtest.NewCatalog(), reservationtest.NewOccupancy(), reservationtest.NewRecorder(), nil)
	_, err := reg.Open(context.Background(), 5)
	assert.ErrorIs(t, err, reservation.ErrShowNotFound)
	assert.NotErrorIs(t, err, reservation.ErrStorageUnavailable)
}

func TestRegistry_RestoresSoldAndHeld(t *testing.T) {
	occupancy := reservationtest.NewOccupancy()
	occupancy.MarkSold(101, 1, 2)
	occupancy.Holds = []model.SeatHold{
		{ShowID: 101, SeatID: 3, SessionID: "before-restart", ExpiresAt: time.Now().Add(time.Minute)},
		{ShowID: 101, SeatID: 4, SessionID: "long-gone", ExpiresAt: time.Now().Add(-time.Minute)},
	}
	changes := &reservationtest.Changes{}
	reg := reservation.NewRegistry(reservationtest.NewCatalog(reservationtest.Layout(101, 1, 5)),
		occupancy, reservationtest.NewRecorder(), []reservation.SeatSelectionSubscriber{changes})

	l, err := reg.Open(context.Background(), 101)
	require.NoError(t, err)
	snap := l.SnapshotFor("me")
	assert.Equal(t, model.ViewSold, snap[1])
	assert.Equal(t, model.ViewSold, snap[2])
	assert.Equal(t, model.ViewHeldByOther, snap[3])
	assert.Equal(t, model.ViewFree, snap[4])

	// Subscribers registered with the registry see the new ledger.
	l.ReleaseAll("before-restart")
	assert.Equal(t, []model.SeatState{model.SeatFree}, changes.ForSeat(3))
}

func TestRegistry_SweepAndEvict(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	layout := reservationtest.Layout(101, 1, 5)
	layout.Show.EndsAt = now.Add(30 * time.Second)
	reg := reservation.NewRegistry(reservationtest.NewCatalog(layout), reservationtest.NewOccupancy(),
		reservationtest.NewRecorder(), nil, reservation.WithClock(clock), reservation.WithSweepGrace(time.Second))

	l, err := reg.Open(context.Background(), 101)
	require.NoError(t, err)
	l.Bind("A", now.Add(10*time.Second))
	_, err = l.Hold(1, "A")
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Sweep(now.Add(5*time.Second)))
	assert.False(t, reg.Evict(101), "ledger with holds is not idle")

	assert.Equal(t, 1, reg.Sweep(now.Add(12*time.Second)))
	_, ok := reg.Lookup(101)
	assert.True(t, ok, "show has not ended yet")

	assert.Equal(t, 0, reg.Sweep(now.Add(time.Minute)))
	_, ok = reg.Lookup(101)
	assert.False(t, ok)
}
