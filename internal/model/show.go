package model

import "time"

// Show represents a scheduled screening of a movie in a particular
// hall.  Seat occupancy is always scoped to a (seat, show) pair: the
// same physical seat is independently sellable across shows.
//
// Fields:
//  ID             – primary key identifier.
//  HallID         – hall where the show is taking place.
//  Title          – movie title or an external reference.
//  StartsAt       – when the show begins (UTC).
//  EndsAt         – when the show ends (UTC).
//  BasePriceCents – default price in cents for seats without a
//                   specific override.
//  Status         – SCHEDULED, CANCELLED or FINISHED.
type Show struct {
	ID             uint64    `json:"id"`               // shows.id
	HallID         uint64    `json:"hall_id"`          // shows.hall_id
	Title          string    `json:"title"`            // shows.title
	StartsAt       time.Time `json:"starts_at"`        // shows.starts_at
	EndsAt         time.Time `json:"ends_at"`          // shows.ends_at
	BasePriceCents uint32    `json:"base_price_cents"` // shows.base_price_cents
	Status         string    `json:"status"`           // shows.status
}

// Ended reports whether the show is over at the given instant.
func (s Show) Ended(now time.Time) bool {
	return !s.EndsAt.IsZero() && !now.Before(s.EndsAt)
}
