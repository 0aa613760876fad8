// Package stream fans seat and countdown events out to live subscribers
// (server-sent event connections) over an in-process watermill
// gochannel.  Publishing never blocks the ledger: every message gets
// its own delivery goroutine, so consumers must not rely on arrival
// order (seat changes carry Seq, session events carry At).  A show with
// no open streams simply drops its events.
package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
)

// Event types carried in the "event" metadata key.
const (
	EventSeat    = "seat"
	EventTick    = "tick"
	EventExpired = "expired"
	EventClosed  = "closed"
)

// SessionEvent is the payload of tick, expired and closed events.
type SessionEvent struct {
	SessionID        string              `json:"session_id"`
	Status           model.SessionStatus `json:"status"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	At               time.Time           `json:"at"`
}

// ShowTopic is the topic seat changes of a show are published on.
func ShowTopic(showID uint64) string { return "show." + strconv.FormatUint(showID, 10) }

// SessionTopic is the topic countdown events of a session are published on.
func SessionTopic(sessionID string) string { return "session." + sessionID }

// Hub publishes ledger and supervisor events.  It implements
// reservation.SeatSelectionSubscriber.
type Hub struct {
	pubSub *gochannel.GoChannel
	log    *logrus.Entry
}

// NewHub returns a hub backed by a non-persistent gochannel.
func NewHub(log *logrus.Entry) *Hub {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewLogrusAdapter(log))
	return &Hub{pubSub: pubSub, log: log}
}

func (h *Hub) publish(topic, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("topic", topic).Error("marshalling stream event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("event", event)
	if err := h.pubSub.Publish(topic, msg); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("publishing stream event")
	}
}

// OnSeatStateChanged publishes the change on the show's topic.
func (h *Hub) OnSeatStateChanged(change reservation.SeatChange) {
	h.publish(ShowTopic(change.ShowID), EventSeat, change)
}

// SessionTicked publishes the remaining purchase time of a session.
func (h *Hub) SessionTicked(sessionID string, remaining time.Duration) {
	h.publish(SessionTopic(sessionID), EventTick, SessionEvent{
		SessionID:        sessionID,
		Status:           model.SessionRunning,
		RemainingSeconds: int64((remaining + time.Second - 1) / time.Second),
		At:               time.Now().UTC(),
	})
}

// SessionExpired tells the session's stream that its holds are gone.
func (h *Hub) SessionExpired(sessionID string) {
	h.publish(SessionTopic(sessionID), EventExpired, SessionEvent{
		SessionID: sessionID,
		Status:    model.SessionExpired,
		At:        time.Now().UTC(),
	})
}

// SessionClosed tells the session's stream it was completed or cancelled.
func (h *Hub) SessionClosed(sessionID string, status model.SessionStatus) {
	h.publish(SessionTopic(sessionID), EventClosed, SessionEvent{
		SessionID: sessionID,
		Status:    status,
		At:        time.Now().UTC(),
	})
}

// Subscribe returns the messages published on topic until ctx is done.
// Every message must be acked.
func (h *Hub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return h.pubSub.Subscribe(ctx, topic)
}

// Close stops every subscription.
func (h *Hub) Close() error {
	return h.pubSub.Close()
}
