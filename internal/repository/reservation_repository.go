package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
)

// ReservationRepo is the MySQL implementation of Store.  Reservations
// live in the reservations table; the area_locks table holds one row per
// area that Create locks with SELECT ... FOR UPDATE so that concurrent
// check-and-insert sequences for the same area run one after another.
// The lock row also records the longest reservation ever stored for the
// area, which bounds the overlap scan.
// All timestamps are stored in UTC as DATETIME(6).
type ReservationRepo struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sql.DB, retry RetryPolicy) *ReservationRepo {
	return &ReservationRepo{db: db, retry: retry}
}

// DB exposes the underlying handle for health checks.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, area_id, user_id, start_at, end_at, guest_count, status, total_price, notes, created_at, status_changed_at`

// Create runs lock, overlap check and insert inside one transaction.
// The transaction is rolled back on every failure path, so a losing
// racer never leaves a row behind.  A retry after an ambiguous commit
// finds its own row under the same id and reports success.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) error {
	const op = "repository.mysql.Create"
	return r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		longest, err := r.lockAreaTx(ctx, tx, res.AreaID)
		if err != nil {
			return err
		}
		free, err := r.isAvailable(ctx, tx, res.AreaID, res.Range, res.ID, longest)
		if err != nil {
			return err
		}
		if !free {
			return model.ErrSlotUnavailable
		}
		const ins = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, ins,
			res.ID, res.AreaID, res.UserID, res.Range.Start, res.Range.End, res.GuestCount,
			string(res.Status), res.TotalPrice.StringFixed(2), res.Notes, res.CreatedAt, res.StatusChangedAt,
		); err != nil {
			if isDuplicateEntryMySQL(err) {
				return nil
			}
			return err
		}
		if d := durationSeconds(res.Range); d > longest {
			const raise = `UPDATE area_locks SET max_duration_seconds = ? WHERE area_id = ?`
			if _, err := tx.ExecContext(ctx, raise, d, res.AreaID); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	})
}

// lockAreaTx makes sure the area's lock row exists, takes an exclusive
// row lock on it for the rest of the transaction and returns the longest
// reservation recorded for the area in seconds.  A lock row without a
// recorded length is filled from the reservations table.
func (r *ReservationRepo) lockAreaTx(ctx context.Context, tx *sql.Tx, areaID uint64) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO area_locks (area_id) VALUES (?)`, areaID); err != nil {
		return 0, err
	}
	var longest sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT max_duration_seconds FROM area_locks WHERE area_id = ? FOR UPDATE`, areaID).Scan(&longest)
	if err != nil {
		return 0, err
	}
	if longest.Valid {
		return longest.Int64, nil
	}
	// one second of slack covers the fractional part TIMESTAMPDIFF drops
	const scan = `SELECT COALESCE(MAX(TIMESTAMPDIFF(SECOND, start_at, end_at)) + 1, 0) FROM reservations WHERE area_id = ?`
	if err := tx.QueryRowContext(ctx, scan, areaID).Scan(&longest.Int64); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE area_locks SET max_duration_seconds = ? WHERE area_id = ?`, longest.Int64, areaID); err != nil {
		return 0, err
	}
	return longest.Int64, nil
}

// durationSeconds is the length of tr in whole seconds, rounded up.
func durationSeconds(tr model.TimeRange) int64 {
	d := tr.End.Sub(tr.Start)
	return int64((d + time.Second - 1) / time.Second)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// isAvailable looks for an active reservation overlapping tr.  longest
// is the recorded maximum length in seconds; a positive value bounds the
// scan to start_at > tr.Start - longest so the (area_id, status,
// start_at) index is used.
func (r *ReservationRepo) isAvailable(ctx context.Context, q queryer, areaID uint64, tr model.TimeRange, excludeID string, longest int64) (bool, error) {
	query := `SELECT id FROM reservations
			  WHERE area_id = ? AND status IN ('pending', 'paid')
				AND start_at < ? AND end_at > ? AND id <> ?`
	args := []any{areaID, tr.End, tr.Start, excludeID}
	if longest > 0 {
		query += ` AND start_at > ?`
		args = append(args, tr.Start.Add(-time.Duration(longest)*time.Second))
	}
	query += ` LIMIT 1`
	var id string
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// IsAvailable is the advisory check.  It reads the recorded bound without
// locking; an area that was never booked is scanned unbounded.
func (r *ReservationRepo) IsAvailable(ctx context.Context, areaID uint64, tr model.TimeRange, excludeID string) (bool, error) {
	const op = "repository.mysql.IsAvailable"
	var free bool
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		var longest sql.NullInt64
		err := r.db.QueryRowContext(ctx, `SELECT max_duration_seconds FROM area_locks WHERE area_id = ?`, areaID).Scan(&longest)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		free, err = r.isAvailable(ctx, r.db, areaID, tr, excludeID, longest.Int64)
		return err
	})
	return free, err
}

func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
	const op = "repository.mysql.Get"
	var res model.Reservation
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		var err error
		res, err = r.get(ctx, r.db, id)
		return err
	})
	return res, err
}

func (r *ReservationRepo) get(ctx context.Context, q queryer, id string) (model.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, model.ErrNotFound
	}
	return res, err
}

// Transition applies t with a conditional UPDATE on the current status.
// When no row changes the record is re-read to tell a missing
// reservation apart from one that already moved on.  A row that already
// carries t.To stamped at t.At is an earlier attempt of this same
// transition and counts as applied.
func (r *ReservationRepo) Transition(ctx context.Context, id string, t lifecycle.Transition) (model.Reservation, error) {
	const op = "repository.mysql.Transition"
	// DATETIME(6) keeps microseconds
	at := t.At.UTC().Truncate(time.Microsecond)
	var res model.Reservation
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		const upd = `UPDATE reservations SET status = ?, status_changed_at = ? WHERE id = ? AND status = ?`
		result, err := r.db.ExecContext(ctx, upd, string(t.To), at, id, string(t.From))
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		res, err = r.get(ctx, r.db, id)
		if err != nil {
			return err
		}
		if n == 0 && !appliedAt(res, t.To, at) {
			return fmt.Errorf("status is %s, expected %s: %w", res.Status, t.From, model.ErrInvalidStatusTransition)
		}
		return nil
	})
	return res, err
}

// appliedAt reports whether res already records a move to status at at.
func appliedAt(res model.Reservation, status model.Status, at time.Time) bool {
	return res.Status == status && res.StatusChangedAt.Equal(at)
}

func (r *ReservationRepo) UpdateNotes(ctx context.Context, id, notes string) (model.Reservation, error) {
	const op = "repository.mysql.UpdateNotes"
	var res model.Reservation
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `UPDATE reservations SET notes = ? WHERE id = ? AND status = 'pending'`, notes, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		res, err = r.get(ctx, r.db, id)
		if err != nil {
			return err
		}
		// MySQL reports 0 affected rows when the value is unchanged
		if n == 0 && (res.Status != model.StatusPending) {
			return fmt.Errorf("notes are read-only once %s: %w", res.Status, model.ErrInvalidStatusTransition)
		}
		return nil
	})
	return res, err
}

func (r *ReservationRepo) ListByUser(ctx context.Context, userID string, q ListQuery) ([]model.Reservation, error) {
	return r.list(ctx, "repository.mysql.ListByUser", "user_id = ?", userID, q)
}

func (r *ReservationRepo) ListByArea(ctx context.Context, areaID uint64, q ListQuery) ([]model.Reservation, error) {
	return r.list(ctx, "repository.mysql.ListByArea", "area_id = ?", areaID, q)
}

func (r *ReservationRepo) ListDuePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	const op = "repository.mysql.ListDuePending"
	var out []model.Reservation
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		query := `SELECT ` + reservationColumns + ` FROM reservations
				  WHERE status = 'pending' AND start_at <= ?
				  ORDER BY start_at, id LIMIT ?`
		var err error
		out, err = r.query(ctx, query, cutoff, limit)
		return err
	})
	return out, err
}

func (r *ReservationRepo) list(ctx context.Context, op, owner string, ownerArg any, q ListQuery) ([]model.Reservation, error) {
	where, args := buildListFilter(q, func(int) string { return "?" }, 1)
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + owner + where + ` ORDER BY start_at, id`
	args = append([]any{ownerArg}, args...)
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	var out []model.Reservation
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		var err error
		out, err = r.query(ctx, query, args...)
		return err
	})
	return out, err
}

func (r *ReservationRepo) query(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReservation reads one row selected with reservationColumns.
func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		res    model.Reservation
		status string
		price  string
	)
	if err := row.Scan(
		&res.ID, &res.AreaID, &res.UserID, &res.Range.Start, &res.Range.End, &res.GuestCount,
		&status, &price, &res.Notes, &res.CreatedAt, &res.StatusChangedAt,
	); err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.Status(status)
	p, err := decimal.NewFromString(price)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("total_price %q: %w", price, err)
	}
	res.TotalPrice = p
	res.Range.Start = res.Range.Start.UTC()
	res.Range.End = res.Range.End.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.StatusChangedAt = res.StatusChangedAt.UTC()
	return res, nil
}

// buildListFilter renders the shared ListQuery filters as " AND ..."
// clauses.  ph renders the n-th placeholder so the same builder serves
// MySQL (?) and PostgreSQL ($n); next is the first placeholder number.
func buildListFilter(q ListQuery, ph func(n int) string, next int) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		p := ph(next)
		next++
		return p
	}
	if len(q.Statuses) > 0 {
		marks := make([]string, 0, len(q.Statuses))
		for _, s := range statusStrings(q.Statuses) {
			marks = append(marks, arg(s))
		}
		sb.WriteString(" AND status IN (" + strings.Join(marks, ", ") + ")")
	}
	if !q.StartAfter.IsZero() {
		sb.WriteString(" AND start_at > " + arg(q.StartAfter))
	}
	if !q.From.IsZero() {
		sb.WriteString(" AND end_at > " + arg(q.From))
	}
	if !q.To.IsZero() {
		sb.WriteString(" AND start_at < " + arg(q.To))
	}
	if q.After != nil {
		a := arg(q.After.Start)
		b := arg(q.After.Start)
		c := arg(q.After.ID)
		sb.WriteString(" AND (start_at > " + a + " OR (start_at = " + b + " AND id > " + c + "))")
	}
	return sb.String(), args
}
