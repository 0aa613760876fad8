package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/queue"
)

// TicketPublisher hands confirmed sales to the ticket generator over
// RabbitMQ.  It dials per publish: sales are infrequent compared to
// seat clicks and a fresh connection survives broker restarts without
// reconnect bookkeeping.
type TicketPublisher struct {
	url string
	log *logrus.Entry
}

// NewTicketPublisher returns a publisher for the broker at url.
func NewTicketPublisher(url string, log *logrus.Entry) *TicketPublisher {
	return &TicketPublisher{url: url, log: log}
}

// HandoffTickets publishes a SeatsConfirmedEvent to the durable tickets
// queue.  Any error is logged and returned so the caller can choose to
// ignore it; the sale is already durable at this point.  Messages are
// marked as persistent.
func (p *TicketPublisher) HandoffTickets(ctx context.Context, correlationID string, event queue.SeatsConfirmedEvent) error {
	log := p.log.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"reservation_id": event.ReservationID,
	})
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Error("rabbitmq: dial failed")
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Error("rabbitmq: channel open failed")
		return fmt.Errorf("opening channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.TicketsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	); err != nil {
		log.WithError(err).Error("rabbitmq: queue declare failed")
		return fmt.Errorf("declaring queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // store on disk
		CorrelationId: correlationID,
		MessageId:     event.SessionID,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                 // default exchange
		queue.TicketsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		pub,
	); err != nil {
		log.WithError(err).Error("rabbitmq: publish failed")
		return fmt.Errorf("publishing event: %w", err)
	}
	log.Info("tickets handed off")
	return nil
}
