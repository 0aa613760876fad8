// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the reservation registry to distinguish between
// different failure scenarios. For example, ErrShowNotFound tells the
// registry that a show is missing rather than that the store is down,
// while ErrSeatAlreadySold signals that the durable unique key on
// (show_id, seat_id) rejected a second sale of the same seat.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
)

// ErrShowNotFound indicates that a show was not located in the DB.  It
// is the reservation package's sentinel so that errors.Is works across
// the port boundary.
var ErrShowNotFound = reservation.ErrShowNotFound

// ErrSeatAlreadySold is returned by RecordSale when one of the seats
// already has a reservation_seats row for the show.  It should never
// happen while the ledger is the only writer; seeing it means two
// processes sold from different ledgers.
var ErrSeatAlreadySold = reservation.ErrSeatAlreadySold

// ErrUserNotFound is returned when a login email has no account.
var ErrUserNotFound = errors.New("user not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL unique key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
