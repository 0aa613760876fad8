package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
)

func TestHub_SeatChangesReachShowSubscribers(t *testing.T) {
	hub := NewHub(logrus.NewEntry(logrus.New()))
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := hub.Subscribe(ctx, ShowTopic(101))
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, ShowTopic(102))
	require.NoError(t, err)

	hub.OnSeatStateChanged(reservation.SeatChange{
		ShowID: 101,
		Seat:   model.Seat{ID: 54, RowLabel: "F", SeatNumber: 4},
		State:  model.SeatHeld,
		Seq:    3,
	})

	select {
	case msg := <-msgs:
		assert.Equal(t, EventSeat, msg.Metadata.Get("event"))
		var change reservation.SeatChange
		require.NoError(t, json.Unmarshal(msg.Payload, &change))
		assert.Equal(t, uint64(54), change.Seat.ID)
		assert.Equal(t, model.SeatHeld, change.State)
		assert.Equal(t, uint64(3), change.Seq)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no seat event")
	}

	select {
	case msg := <-other:
		t.Fatalf("unexpected event on other show: %s", msg.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_SessionEvents(t *testing.T) {
	hub := NewHub(logrus.NewEntry(logrus.New()))
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := hub.Subscribe(ctx, SessionTopic("sess-1"))
	require.NoError(t, err)

	hub.SessionTicked("sess-1", 1500*time.Millisecond)

	msg := <-msgs
	assert.Equal(t, EventTick, msg.Metadata.Get("event"))
	var ev SessionEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.Equal(t, int64(2), ev.RemainingSeconds)
	assert.Equal(t, model.SessionRunning, ev.Status)
	msg.Ack()

	hub.SessionExpired("sess-1")
	msg = <-msgs
	assert.Equal(t, EventExpired, msg.Metadata.Get("event"))
	msg.Ack()
}
