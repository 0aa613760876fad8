package reservation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation/mocks"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation/reservationtest"
)

func TestJournal_MirrorsHolds(t *testing.T) {
	store := mocks.NewHoldStore(t)
	journal := reservation.NewJournal(store, 16, logrus.NewEntry(logrus.New()))

	deadline := time.Now().Add(time.Minute).Truncate(time.Second)
	l := reservation.NewLedger(reservationtest.Layout(101, 1, 5), nil, nil, reservationtest.NewRecorder())
	l.Subscribe(journal)
	l.Bind("A", deadline)

	saved := make(chan model.SeatHold, 1)
	store.On("SaveHold", mock.Anything, mock.AnythingOfType("model.SeatHold")).
		Run(func(args mock.Arguments) { saved <- args.Get(1).(model.SeatHold) }).
		Return(nil).Once()
	deleted := make(chan struct{}, 1)
	store.On("DeleteHold", mock.Anything, uint64(101), uint64(2)).
		Run(func(mock.Arguments) { deleted <- struct{}{} }).
		Return(errors.New("lock wait timeout")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- journal.Run(ctx) }()

	_, err := l.Hold(2, "A")
	require.NoError(t, err)
	select {
	case h := <-saved:
		assert.Equal(t, uint64(101), h.ShowID)
		assert.Equal(t, uint64(2), h.SeatID)
		assert.Equal(t, "A", h.SessionID)
		assert.True(t, h.ExpiresAt.Equal(deadline))
	case <-time.After(time.Second):
		t.Fatal("hold was not journaled")
	}

	// A failed delete is logged, not retried, and does not stop the worker.
	l.ReleaseAll("A")
	select {
	case <-deleted:
	case <-time.After(time.Second):
		t.Fatal("release was not journaled")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestJournal_DropsWhenFull(t *testing.T) {
	store := mocks.NewHoldStore(t)
	journal := reservation.NewJournal(store, 1, logrus.NewEntry(logrus.New()))

	journal.OnSeatStateChanged(reservation.SeatChange{ShowID: 1, State: model.SeatFree})
	journal.OnSeatStateChanged(reservation.SeatChange{ShowID: 1, State: model.SeatFree})
	assert.Equal(t, uint64(1), journal.Dropped())

	// The queued change is flushed on shutdown.
	store.On("DeleteHold", mock.Anything, uint64(1), uint64(0)).Return(nil).Once()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, journal.Run(ctx))
}
