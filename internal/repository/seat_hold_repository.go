package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  Rows are
// a durable copy of the ledger's holds: they are written by the hold
// journal and read back only when a show's ledger is rebuilt.  All
// methods behave with respect to UTC timestamps – callers must ensure
// that expiration comparisons are performed in UTC.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// randomToken generates a random hexadecimal string of length n*2 bytes.
// It is used to populate the hold_token column.  The underlying call to
// crypto/rand ensures cryptographically secure random bytes.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SaveHold inserts or refreshes the row for (show, seat).  A seat has at
// most one hold per show, so a newer hold replaces whatever row is
// there.  A hold token is generated when the hold has none.
func (r *SeatHoldRepo) SaveHold(ctx context.Context, h model.SeatHold) error {
	if h.HoldToken == "" {
		token, err := randomToken(16)
		if err != nil {
			return err
		}
		h.HoldToken = token
	}
	const q = `INSERT INTO seat_holds (show_id, seat_id, session_id, hold_token, expires_at)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE session_id = VALUES(session_id),
	                                   hold_token = VALUES(hold_token),
	                                   expires_at = VALUES(expires_at)`
	_, err := r.db.ExecContext(ctx, q, h.ShowID, h.SeatID, h.SessionID, h.HoldToken, h.ExpiresAt.UTC())
	return err
}

// DeleteHold removes the row for (show, seat) if there is one.
func (r *SeatHoldRepo) DeleteHold(ctx context.Context, showID, seatID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE show_id = ? AND seat_id = ?`, showID, seatID)
	return err
}

// ListActiveByShow returns the unexpired holds of a show, excluding the
// given session ("" excludes nothing).
func (r *SeatHoldRepo) ListActiveByShow(ctx context.Context, showID uint64, excludingSessionID string) ([]model.SeatHold, error) {
	const q = `SELECT show_id, seat_id, session_id, hold_token, expires_at
	           FROM seat_holds
	           WHERE show_id = ? AND session_id <> ? AND expires_at > UTC_TIMESTAMP()
	           ORDER BY seat_id`
	rows, err := r.db.QueryContext(ctx, q, showID, excludingSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.SeatHold
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.ShowID, &h.SeatID, &h.SessionID, &h.HoldToken, &h.ExpiresAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

// DeleteBySessionTx removes every hold of a session for a show within
// the provided transaction.  The caller must commit or roll back.
func (r *SeatHoldRepo) DeleteBySessionTx(ctx context.Context, tx *sql.Tx, showID uint64, sessionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE show_id = ? AND session_id = ?`, showID, sessionID)
	return err
}

// PurgeExpired deletes holds that expired before the given instant and
// returns how many rows went.  Rows normally disappear when the journal
// records the release; this catches rows orphaned by a crash.
func (r *SeatHoldRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE expires_at <= ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
