package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

func newSaleRecorder(t *testing.T) (*SaleRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rec := NewSaleRecorder(NewShowRepo(db), NewShowSeatRepo(db), NewSeatHoldRepo(db), NewReservationRepo(db))
	rec.now = func() time.Time { return time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC) }
	return rec, mock
}

func testSale() model.Sale {
	return model.Sale{
		ShowID:    101,
		SessionID: "sess-1",
		BuyerRef:  "cashier-7",
		Seats: []model.Seat{
			{ID: 54, RowLabel: "F", SeatNumber: 4},
			{ID: 56, RowLabel: "F", SeatNumber: 6},
		},
	}
}

func TestRecordSale(t *testing.T) {
	rec, mock := newSaleRecorder(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE session_id").WithArgs("sess-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT base_price_cents FROM shows").WithArgs(101).
		WillReturnRows(sqlmock.NewRows([]string{"base_price_cents"}).AddRow(1200))
	mock.ExpectQuery("FROM show_seats WHERE show_id").WithArgs(101, 54, 56).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "price_cents"}).AddRow(56, 1500))
	mock.ExpectExec("INSERT INTO reservations").WithArgs("sess-1", 101, "cashier-7", "CONFIRMED", 2700).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WithArgs(9, 101, 54, 1200, sqlmock.AnyArg(), 9, 101, 56, 1500, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO show_seats").WithArgs(101, 54, "RESERVED", 101, 56, "RESERVED").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM seat_holds WHERE show_id = \\? AND session_id").WithArgs(101, "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	receipt, err := rec.RecordSale(context.Background(), testSale())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), receipt.ReservationID)
	assert.Equal(t, uint32(2700), receipt.TotalAmountCents)
	require.Len(t, receipt.TicketRefs, 2)
	assert.Regexp(t, `^101-F4-[0-9A-F]{8}$`, receipt.TicketRefs[0])
	assert.Regexp(t, `^101-F6-[0-9A-F]{8}$`, receipt.TicketRefs[1])
	assert.False(t, receipt.Replayed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_ReplaysRecordedSession(t *testing.T) {
	rec, mock := newSaleRecorder(t)
	created := time.Date(2026, 3, 1, 17, 59, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE session_id").WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "show_id", "buyer_ref", "status", "total_amount_cents", "created_at"}).
			AddRow(9, "sess-1", 101, "cashier-7", "CONFIRMED", 2700, created))
	mock.ExpectQuery("SELECT seat_id, ticket_ref FROM reservation_seats").WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "ticket_ref"}).
			AddRow(56, "101-F6-BBBBBBBB").
			AddRow(54, "101-F4-AAAAAAAA"))
	mock.ExpectRollback()

	receipt, err := rec.RecordSale(context.Background(), testSale())
	require.NoError(t, err)
	assert.True(t, receipt.Replayed)
	assert.Equal(t, []string{"101-F4-AAAAAAAA", "101-F6-BBBBBBBB"}, receipt.TicketRefs)
	assert.Equal(t, created, receipt.ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_DuplicateSeatRollsBack(t *testing.T) {
	rec, mock := newSaleRecorder(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE session_id").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT base_price_cents FROM shows").
		WillReturnRows(sqlmock.NewRows([]string{"base_price_cents"}).AddRow(1200))
	mock.ExpectQuery("FROM show_seats WHERE show_id").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "price_cents"}))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '101-54' for key 'uq_show_seat'"})
	mock.ExpectRollback()

	_, err := rec.RecordSale(context.Background(), testSale())
	assert.ErrorIs(t, err, ErrSeatAlreadySold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_BeginFails(t *testing.T) {
	rec, mock := newSaleRecorder(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	_, err := rec.RecordSale(context.Background(), testSale())
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
