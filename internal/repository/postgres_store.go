package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
)

// PgxConn is the subset of *pgxpool.Pool the store uses.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps reservations in PostgreSQL.  Overlap prevention is
// delegated to the reservations_no_overlap exclusion constraint, so Create
// is a plain INSERT.  Writes are only retried when pgx knows the statement
// was not applied.
type PostgresStore struct {
	pool  PgxConn
	retry RetryPolicy
}

func NewPostgresStore(pool PgxConn, retry RetryPolicy) *PostgresStore {
	return &PostgresStore{pool: pool, retry: retry}
}

const pgReservationColumns = `id, area_id, user_id, start_at, end_at, guest_count, status, total_price::text, notes, created_at, status_changed_at`

func (s *PostgresStore) Create(ctx context.Context, res model.Reservation) error {
	const op = "repository.postgres.Create"

	query := `INSERT INTO reservations (id, area_id, user_id, start_at, end_at, guest_count, status, total_price, notes, created_at, status_changed_at)
	          VALUES (@id, @areaId, @userId, @start, @end, @guests, @status, @price::numeric, @notes, @createdAt, @changedAt)`
	args := pgx.NamedArgs{
		"id":        res.ID,
		"areaId":    int64(res.AreaID),
		"userId":    res.UserID,
		"start":     res.Range.Start,
		"end":       res.Range.End,
		"guests":    res.GuestCount,
		"status":    string(res.Status),
		"price":     res.TotalPrice.StringFixed(2),
		"notes":     res.Notes,
		"createdAt": res.CreatedAt,
		"changedAt": res.StatusChangedAt,
	}
	retried := false
	return s.retry.run(ctx, op, isTransientPostgresWrite, func(ctx context.Context) error {
		again := retried
		retried = true
		_, err := s.pool.Exec(ctx, query, args)
		switch {
		case err == nil:
			return nil
		case again && (isUniqueViolation(err) || isExclusionViolation(err)):
			// an earlier attempt may have committed this very row
			return s.createdEarlier(ctx, res.ID, err)
		case isExclusionViolation(err):
			return model.ErrSlotUnavailable
		}
		return err
	})
}

// createdEarlier resolves a conflict seen on a retried insert: if the row
// with id exists the earlier attempt succeeded.
func (s *PostgresStore) createdEarlier(ctx context.Context, id string, conflict error) error {
	_, err := s.get(ctx, id)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, model.ErrNotFound):
		return err
	case isExclusionViolation(conflict):
		return model.ErrSlotUnavailable
	}
	return conflict
}

func (s *PostgresStore) IsAvailable(ctx context.Context, areaID uint64, tr model.TimeRange, excludeID string) (bool, error) {
	const op = "repository.postgres.IsAvailable"

	query := `SELECT EXISTS (
	            SELECT 1 FROM reservations
	            WHERE area_id = $1 AND status IN ('pending', 'paid')
	              AND tstzrange(start_at, end_at, '[)') && tstzrange($2, $3, '[)')
	              AND id <> $4)`
	var taken bool
	err := s.retry.run(ctx, op, isTransientPostgres, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, query, int64(areaID), tr.Start, tr.End, excludeID).Scan(&taken)
	})
	return !taken, err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Reservation, error) {
	const op = "repository.postgres.Get"

	var res model.Reservation
	err := s.retry.run(ctx, op, isTransientPostgres, func(ctx context.Context) error {
		var err error
		res, err = s.get(ctx, id)
		return err
	})
	return res, err
}

func (s *PostgresStore) get(ctx context.Context, id string) (model.Reservation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgReservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanPgReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, model.ErrNotFound
	}
	return res, err
}

// Transition is a single conditional UPDATE ... RETURNING.  An empty
// result means the row is missing, no longer in t.From, or already moved
// to t.To at t.At by this same transition.
func (s *PostgresStore) Transition(ctx context.Context, id string, t lifecycle.Transition) (model.Reservation, error) {
	const op = "repository.postgres.Transition"

	query := `UPDATE reservations SET status = $1, status_changed_at = $2
	          WHERE id = $3 AND status = $4
	          RETURNING ` + pgReservationColumns
	// timestamptz keeps microseconds
	at := t.At.UTC().Truncate(time.Microsecond)
	var res model.Reservation
	err := s.retry.run(ctx, op, isTransientPostgresWrite, func(ctx context.Context) error {
		var err error
		res, err = scanPgReservation(s.pool.QueryRow(ctx, query, string(t.To), at, id, string(t.From)))
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		cur, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		res = cur
		if appliedAt(cur, t.To, at) {
			return nil
		}
		return fmt.Errorf("status is %s, expected %s: %w", cur.Status, t.From, model.ErrInvalidStatusTransition)
	})
	return res, err
}

func (s *PostgresStore) UpdateNotes(ctx context.Context, id, notes string) (model.Reservation, error) {
	const op = "repository.postgres.UpdateNotes"

	query := `UPDATE reservations SET notes = $1 WHERE id = $2 AND status = 'pending' RETURNING ` + pgReservationColumns
	var res model.Reservation
	err := s.retry.run(ctx, op, isTransientPostgresWrite, func(ctx context.Context) error {
		var err error
		res, err = scanPgReservation(s.pool.QueryRow(ctx, query, notes, id))
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		cur, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		res = cur
		return fmt.Errorf("notes are read-only once %s: %w", cur.Status, model.ErrInvalidStatusTransition)
	})
	return res, err
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, q ListQuery) ([]model.Reservation, error) {
	return s.list(ctx, "repository.postgres.ListByUser", "user_id = $1", userID, q)
}

func (s *PostgresStore) ListByArea(ctx context.Context, areaID uint64, q ListQuery) ([]model.Reservation, error) {
	return s.list(ctx, "repository.postgres.ListByArea", "area_id = $1", int64(areaID), q)
}

func (s *PostgresStore) ListDuePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	const op = "repository.postgres.ListDuePending"

	query := `SELECT ` + pgReservationColumns + ` FROM reservations
	          WHERE status = 'pending' AND start_at <= $1
	          ORDER BY start_at, id LIMIT $2`
	var out []model.Reservation
	err := s.retry.run(ctx, op, isTransientPostgres, func(ctx context.Context) error {
		var err error
		out, err = s.query(ctx, query, cutoff, limit)
		return err
	})
	return out, err
}

func (s *PostgresStore) list(ctx context.Context, op, owner string, ownerArg any, q ListQuery) ([]model.Reservation, error) {
	dollar := func(n int) string { return "$" + strconv.Itoa(n) }
	where, args := buildListFilter(q, dollar, 2)
	query := `SELECT ` + pgReservationColumns + ` FROM reservations WHERE ` + owner + where + ` ORDER BY start_at, id`
	args = append([]any{ownerArg}, args...)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += ` LIMIT ` + dollar(len(args))
	}
	var out []model.Reservation
	err := s.retry.run(ctx, op, isTransientPostgres, func(ctx context.Context) error {
		var err error
		out, err = s.query(ctx, query, args...)
		return err
	})
	return out, err
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanPgReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanPgReservation(row pgx.Row) (model.Reservation, error) {
	var areaID int64
	res, err := scanReservation(rowFunc(func(dest ...any) error {
		dest[1] = &areaID
		return row.Scan(dest...)
	}))
	if err != nil {
		return model.Reservation{}, err
	}
	res.AreaID = uint64(areaID)
	return res, nil
}

// rowFunc adapts a scan function to rowScanner.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }
