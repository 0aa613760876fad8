package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/service"
	"github.com/iliyamo/cinema-seat-ledger/internal/stream"
)

// EventsHandler streams live seat and countdown events as server-sent
// events.
type EventsHandler struct {
	Hub       *stream.Hub
	Booking   *service.Booking
	KeepAlive time.Duration
}

func NewEventsHandler(hub *stream.Hub, b *service.Booking) *EventsHandler {
	return &EventsHandler{Hub: hub, Booking: b, KeepAlive: 15 * time.Second}
}

// seatEvent is what a seat map client receives.  The holder's session
// id is never sent; the view is computed for the requesting session.
type seatEvent struct {
	SeatID    uint64         `json:"seat_id"`
	Label     string         `json:"label"`
	View      model.SeatView `json:"view"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Seq       uint64         `json:"seq"`
}

// ShowEvents handles GET /v1/shows/:id/events?session=<sid>.  Events
// carry a seq; a client that fetched a snapshot at version v ignores
// events with seq <= v.  The hub may deliver changes out of order, so a
// change older than one already sent for the same seat is dropped.
func (h *EventsHandler) ShowEvents(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	viewer := c.QueryParam("session")
	sent := make(map[uint64]uint64) // seat id -> last seq written
	return h.serve(c, stream.ShowTopic(showID), func(w io.Writer, msg *message.Message) (bool, error) {
		var change reservation.SeatChange
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			return true, nil
		}
		if change.Seq <= sent[change.Seat.ID] {
			return true, nil
		}
		sent[change.Seat.ID] = change.Seq
		ev := seatEvent{
			SeatID: change.Seat.ID,
			Label:  change.Seat.Label(),
			View:   change.ViewFor(viewer),
			Seq:    change.Seq,
		}
		if change.State == model.SeatHeld && !change.ExpiresAt.IsZero() {
			ev.ExpiresAt = &change.ExpiresAt
		}
		return true, writeEvent(w, change.Seq, stream.EventSeat, ev)
	})
}

// SessionEvents handles GET /v1/selections/:sid/events.  The stream
// ends after the expired or closed event.
func (h *EventsHandler) SessionEvents(c echo.Context) error {
	sid := c.Param("sid")
	if _, err := h.Booking.Snapshot(sid); err != nil {
		return writeError(c, err)
	}
	var n uint64
	var last time.Time
	return h.serve(c, stream.SessionTopic(sid), func(w io.Writer, msg *message.Message) (bool, error) {
		event := msg.Metadata.Get("event")
		var ev stream.SessionEvent
		if err := json.Unmarshal(msg.Payload, &ev); err == nil {
			// A tick overtaken by a later event is stale.
			if event == stream.EventTick && ev.At.Before(last) {
				return true, nil
			}
			last = ev.At
		}
		n++
		if err := writeEvent(w, n, event, json.RawMessage(msg.Payload)); err != nil {
			return false, err
		}
		return event == stream.EventTick, nil
	})
}

// serve subscribes to topic and writes every message with write until
// the client leaves, write reports the stream is over, or the hub
// closes.
func (h *EventsHandler) serve(c echo.Context, topic string, write func(io.Writer, *message.Message) (bool, error)) error {
	ctx := c.Request().Context()
	msgs, err := h.Hub.Subscribe(ctx, topic)
	if err != nil {
		middleware.Logger(c).WithError(err).Error("subscribing to live events")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live events unavailable"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			more, err := write(w, msg)
			msg.Ack()
			if err != nil {
				return nil
			}
			w.Flush()
			if !more {
				return nil
			}
		}
	}
}

func writeEvent(w io.Writer, id uint64, event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, body)
	return err
}
