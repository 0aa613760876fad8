package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// TicketConsumer listens to the tickets queue and appends one line per
// sale to <Dir>/tickets.log.  It stands in for the ticket generator:
// anything that can print or e-mail tickets would replace handleMessage.
type TicketConsumer struct {
	URL string
	Dir string
	Log *logrus.Entry
}

// NewTicketConsumer returns a consumer for the broker at url writing
// into dir.
func NewTicketConsumer(url, dir string, log *logrus.Entry) *TicketConsumer {
	return &TicketConsumer{URL: url, Dir: dir, Log: log}
}

// Run connects to RabbitMQ, declares the tickets queue (durable), and
// consumes messages until ctx is cancelled.  Broker failures are
// retried with exponential backoff; a message that cannot be handled
// is rejected without requeue so the consumer keeps going.
func (c *TicketConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).WithField("retry_in", backoff).Warn("failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.Log.Info("ticket consumer stopped")
			return nil
		}
		c.Log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *TicketConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("set QoS failed")
	}

	if _, err := ch.QueueDeclare(TicketsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(TicketsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.Log.WithField("queue", TicketsQueue).Info("ticket consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			log := c.Log.WithField("correlation_id", d.CorrelationId)
			if err := handleMessage(c.Dir, d.Body); err != nil {
				log.WithError(err).Error("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
			log.Debug("tickets issued")
		}
	}
}

func handleMessage(dir string, body []byte) error {
	var ev SeatsConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if len(ev.SeatLabels) == 0 || len(ev.SeatLabels) != len(ev.TicketRefs) {
		return fmt.Errorf("reservation %d: %d seats but %d tickets", ev.ReservationID, len(ev.SeatLabels), len(ev.TicketRefs))
	}
	// Ensure the ticket directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	fpath := filepath.Join(dir, "tickets.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ticket file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(ticketLine(ev)); err != nil {
		return fmt.Errorf("write ticket file: %w", err)
	}
	return nil
}

func ticketLine(ev SeatsConfirmedEvent) string {
	tickets := make([]string, len(ev.SeatLabels))
	for i, label := range ev.SeatLabels {
		tickets[i] = label + ":" + ev.TicketRefs[i]
	}
	return fmt.Sprintf("[%s] Tickets issued | reservation_id=%d | session_id=%s | buyer=%s | show_id=%d | hall=%q | movie=%q | starts_at=%s | total=%d cents | tickets=[%s]\n",
		ev.ConfirmedAt.UTC().Format(time.RFC3339), ev.ReservationID, ev.SessionID, ev.BuyerRef, ev.ShowID,
		ev.HallName, ev.MovieTitle, ev.StartsAt.UTC().Format(time.RFC3339), ev.TotalAmountCents, strings.Join(tickets, ","))
}
