package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// ReservationRepo provides the durable side of a sale.  Reservations
// group together one or more seats for a particular show and sales
// session.  Seats reserved under a reservation are stored in the
// reservation_seats table, whose unique (show_id, seat_id) key is the
// last line of defence against selling a seat twice.  All timestamp
// fields are assumed to be stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so a sale can span repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// ReservationRecord mirrors the schema of the reservations table.  It is
// used internally by the repository when constructing or scanning rows.
type ReservationRecord struct {
	ID               uint64
	SessionID        string
	ShowID           uint64
	BuyerRef         string
	Status           string
	TotalAmountCents uint32
	CreatedAt        time.Time
}

// ReservationSeatRecord mirrors the reservation_seats table.  It maps a
// reservation to a specific seat, price and ticket reference.
type ReservationSeatRecord struct {
	ReservationID uint64
	ShowID        uint64
	SeatID        uint64
	PriceCents    uint32
	TicketRef     string
}

// FindBySessionTx returns the reservation recorded for a session, or
// sql.ErrNoRows when the session has not been sold yet.
func (r *ReservationRepo) FindBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*ReservationRecord, error) {
	const q = `SELECT id, session_id, show_id, buyer_ref, status, total_amount_cents, created_at
	           FROM reservations WHERE session_id = ?`
	var rec ReservationRecord
	err := tx.QueryRowContext(ctx, q, sessionID).Scan(
		&rec.ID, &rec.SessionID, &rec.ShowID, &rec.BuyerRef, &rec.Status, &rec.TotalAmountCents, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// TicketRefsTx returns the ticket reference of every seat of a
// reservation keyed by seat id.
func (r *ReservationRepo) TicketRefsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (map[uint64]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seat_id, ticket_ref FROM reservation_seats WHERE reservation_id = ?`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[uint64]string)
	for rows.Next() {
		var id uint64
		var ref string
		if err := rows.Scan(&id, &ref); err != nil {
			return nil, err
		}
		refs[id] = ref
	}
	return refs, rows.Err()
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction.  It populates the generated ID on the provided record.
// The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *ReservationRecord) error {
	const q = `INSERT INTO reservations (session_id, show_id, buyer_ref, status, total_amount_cents) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.SessionID, res.ShowID, res.BuyerRef, res.Status, res.TotalAmountCents)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// CreateSeatsBulkTx inserts multiple reservation_seats rows in a single
// statement.  Passing an empty slice has no effect and returns nil.  A
// seat that already has a row for the show yields ErrSeatAlreadySold.
func (r *ReservationRepo) CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, seats []ReservationSeatRecord) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, show_id, seat_id, price_cents, ticket_ref) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, s.ReservationID, s.ShowID, s.SeatID, s.PriceCents, s.TicketRef)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return ErrSeatAlreadySold
		}
		return err
	}
	return nil
}

// SaleRecorder writes confirmed sales.  It satisfies
// reservation.SaleRecorder.
type SaleRecorder struct {
	Shows        *ShowRepo
	ShowSeats    *ShowSeatRepo
	Holds        *SeatHoldRepo
	Reservations *ReservationRepo
	now          func() time.Time
}

// NewSaleRecorder wires a SaleRecorder from its repositories.
func NewSaleRecorder(shows *ShowRepo, showSeats *ShowSeatRepo, holds *SeatHoldRepo, reservations *ReservationRepo) *SaleRecorder {
	return &SaleRecorder{
		Shows:        shows,
		ShowSeats:    showSeats,
		Holds:        holds,
		Reservations: reservations,
		now:          time.Now,
	}
}

// newTicketRef builds a human-readable, unique ticket reference such as
// "101-F4-9C1D2E3A".
func newTicketRef(showID uint64, seat model.Seat) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%d-%s-%s", showID, seat.Label(), suffix)
}

// RecordSale records a sale in one transaction: the reservation, one
// reservation_seats row per seat, RESERVED show_seats and removal of
// the session's journaled holds.  A session that has already been
// recorded gets its original receipt back with Replayed set, so a
// retried confirm never creates a second sale.
func (s *SaleRecorder) RecordSale(ctx context.Context, sale model.Sale) (model.SaleReceipt, error) {
	tx, err := s.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.SaleReceipt{}, fmt.Errorf("starting transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.Reservations.FindBySessionTx(ctx, tx, sale.SessionID)
	switch {
	case err == nil:
		refs, err := s.Reservations.TicketRefsTx(ctx, tx, existing.ID)
		if err != nil {
			return model.SaleReceipt{}, fmt.Errorf("loading tickets of reservation %d: %w", existing.ID, err)
		}
		receipt := model.SaleReceipt{
			ReservationID:    existing.ID,
			TotalAmountCents: existing.TotalAmountCents,
			ConfirmedAt:      existing.CreatedAt.UTC(),
			Replayed:         true,
		}
		for _, seat := range sale.Seats {
			receipt.TicketRefs = append(receipt.TicketRefs, refs[seat.ID])
		}
		return receipt, nil
	case !errors.Is(err, sql.ErrNoRows):
		return model.SaleReceipt{}, fmt.Errorf("checking session %s: %w", sale.SessionID, err)
	}

	seatIDs := make([]uint64, 0, len(sale.Seats))
	for _, seat := range sale.Seats {
		seatIDs = append(seatIDs, seat.ID)
	}
	base, err := s.Shows.BasePriceTx(ctx, tx, sale.ShowID)
	if err != nil {
		return model.SaleReceipt{}, fmt.Errorf("loading base price of show %d: %w", sale.ShowID, err)
	}
	prices, err := s.ShowSeats.GetPricesBySeatIDsTx(ctx, tx, sale.ShowID, seatIDs)
	if err != nil {
		return model.SaleReceipt{}, fmt.Errorf("loading seat prices: %w", err)
	}

	rows := make([]ReservationSeatRecord, 0, len(sale.Seats))
	total := uint32(0)
	for _, seat := range sale.Seats {
		price, ok := prices[seat.ID]
		if !ok || price == 0 {
			price = base
		}
		total += price
		rows = append(rows, ReservationSeatRecord{
			ShowID:     sale.ShowID,
			SeatID:     seat.ID,
			PriceCents: price,
			TicketRef:  newTicketRef(sale.ShowID, seat),
		})
	}

	rec := &ReservationRecord{
		SessionID:        sale.SessionID,
		ShowID:           sale.ShowID,
		BuyerRef:         sale.BuyerRef,
		Status:           "CONFIRMED",
		TotalAmountCents: total,
	}
	if err := s.Reservations.CreateTx(ctx, tx, rec); err != nil {
		return model.SaleReceipt{}, fmt.Errorf("creating reservation: %w", err)
	}
	for i := range rows {
		rows[i].ReservationID = rec.ID
	}
	if err := s.Reservations.CreateSeatsBulkTx(ctx, tx, rows); err != nil {
		return model.SaleReceipt{}, fmt.Errorf("creating reservation seats: %w", err)
	}
	if err := s.ShowSeats.BulkUpdateStatusTx(ctx, tx, sale.ShowID, seatIDs, "RESERVED"); err != nil {
		return model.SaleReceipt{}, fmt.Errorf("updating seat status: %w", err)
	}
	if err := s.Holds.DeleteBySessionTx(ctx, tx, sale.ShowID, sale.SessionID); err != nil {
		return model.SaleReceipt{}, fmt.Errorf("deleting holds: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.SaleReceipt{}, fmt.Errorf("committing sale: %w", err)
	}
	committed = true

	receipt := model.SaleReceipt{
		ReservationID:    rec.ID,
		TotalAmountCents: total,
		ConfirmedAt:      s.now().UTC(),
	}
	for _, row := range rows {
		receipt.TicketRefs = append(receipt.TicketRefs, row.TicketRef)
	}
	return receipt, nil
}
