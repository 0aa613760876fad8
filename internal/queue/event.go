// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns confirmed sales into tickets.
package queue

import "time"

// TicketsQueue is the durable queue confirmed sales are handed to.
const TicketsQueue = "booking.confirmed"

// SeatsConfirmedEvent is published once a session's seats have been
// sold and the sale is durable.  It carries everything the ticket
// generator prints, so the consumer never queries the primary database.
// SeatLabels and TicketRefs are parallel: TicketRefs[i] is the ticket
// for SeatLabels[i].
type SeatsConfirmedEvent struct {
	ReservationID    uint64    `json:"reservation_id"`
	SessionID        string    `json:"session_id"`
	BuyerRef         string    `json:"buyer_ref"`
	ShowID           uint64    `json:"show_id"`
	HallID           uint64    `json:"hall_id"`
	HallName         string    `json:"hall_name"`
	MovieTitle       string    `json:"movie_title"`
	StartsAt         time.Time `json:"starts_at"`
	SeatLabels       []string  `json:"seats"`
	TicketRefs       []string  `json:"ticket_refs"`
	TotalAmountCents uint32    `json:"total_amount_cents"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}
