package model

import "time"

// Sale is the durable write handed to storage when a session confirms
// its held seats.  SessionID doubles as the idempotency key: recording
// the same session twice yields the first receipt.
type Sale struct {
	ShowID    uint64
	SessionID string
	BuyerRef  string
	Seats     []Seat
}

// SaleReceipt is what storage returns once a sale is durable.  It
// lists one ticket reference per seat, in the same order as the sale.
//
// Fields:
//  ReservationID    – reservations.id of the recorded sale.
//  TicketRefs       – reservation_seats.ticket_ref per seat.
//  TotalAmountCents – sum of the seat prices.
//  Replayed         – true when the session had already been recorded.
type SaleReceipt struct {
	ReservationID    uint64    `json:"reservation_id"`
	TicketRefs       []string  `json:"ticket_refs"`
	TotalAmountCents uint32    `json:"total_amount_cents"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
	Replayed         bool      `json:"-"`
}
