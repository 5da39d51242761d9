package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
)

func TestBuildListFilter_MySQLPlaceholders(t *testing.T) {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	q := ListQuery{
		Statuses: []model.Status{model.StatusPending, model.StatusPaid},
		From:     from,
		After:    &Cursor{Start: from, ID: "r1"},
	}
	where, args := buildListFilter(q, func(int) string { return "?" }, 1)

	assert.Equal(t, " AND status IN (?, ?) AND end_at > ? AND (start_at > ? OR (start_at = ? AND id > ?))", where)
	assert.Equal(t, []any{"pending", "paid", from, from, from, "r1"}, args)
}

func TestBuildListFilter_PostgresNumbering(t *testing.T) {
	to := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	q := ListQuery{Statuses: []model.Status{model.StatusPending}, To: to}
	where, args := buildListFilter(q, func(n int) string { return fmt.Sprintf("$%d", n) }, 2)

	assert.Equal(t, " AND status IN ($2) AND start_at < $3", where)
	assert.Len(t, args, 2)
}

func TestBuildListFilter_Empty(t *testing.T) {
	where, args := buildListFilter(ListQuery{}, func(int) string { return "?" }, 1)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

// netTimeout is a read timeout on a connection whose write already went
// through.
type netTimeout struct{}

func (netTimeout) Error() string { return "i/o timeout" }
func (netTimeout) Timeout() bool { return true }
func (netTimeout) Temporary() bool { return true }

var reservationRow = []string{
	"id", "area_id", "user_id", "start_at", "end_at", "guest_count",
	"status", "total_price", "notes", "created_at", "status_changed_at",
}

func storedRow(res model.Reservation, status model.Status, changed time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reservationRow).AddRow(
		res.ID, int64(res.AreaID), res.UserID, res.Range.Start, res.Range.End, int64(res.GuestCount),
		string(status), "5.00", res.Notes, res.CreatedAt, changed,
	)
}

func newMySQLRepo(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReservationRepo(db, RetryPolicy{Attempts: 3}), mock
}

var (
	lockInsert   = regexp.QuoteMeta("INSERT IGNORE INTO area_locks")
	lockSelect   = regexp.QuoteMeta("SELECT max_duration_seconds FROM area_locks WHERE area_id = ? FOR UPDATE")
	lockBackfill = regexp.QuoteMeta("SELECT COALESCE(MAX(TIMESTAMPDIFF(SECOND, start_at, end_at)) + 1, 0) FROM reservations")
	lockRaise    = regexp.QuoteMeta("UPDATE area_locks SET max_duration_seconds = ? WHERE area_id = ?")
	overlapScan  = regexp.QuoteMeta("SELECT id FROM reservations")
	resInsert    = regexp.QuoteMeta("INSERT INTO reservations")
	statusCAS    = regexp.QuoteMeta("UPDATE reservations SET status = ?, status_changed_at = ? WHERE id = ? AND status = ?")
	resSelect    = regexp.QuoteMeta("FROM reservations WHERE id = ?")
)

func lockRow(secs any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"max_duration_seconds"}).AddRow(secs)
}

func TestReservationRepo_CreateLocksChecksAndInserts(t *testing.T) {
	repo, mock := newMySQLRepo(t)
	res := pending("r1", 1, 10, 11)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WithArgs(1).WillReturnRows(lockRow(int64(7200)))
	mock.ExpectQuery(overlapScan).
		WithArgs(1, at(11), at(10), "r1", at(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(resInsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateRollsBackWhenSlotTaken(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(int64(3600)))
	mock.ExpectQuery(overlapScan).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("other"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pending("r1", 1, 10, 11))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The scan bound comes from the longest stored reservation, so a long
// booking made under an older configuration still blocks its slot.
func TestReservationRepo_CreateScanBoundFollowsStoredLength(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(int64(8 * 3600)))
	// 10:00-18:00 is on record; 15:00 - 8h reaches back to 07:00
	mock.ExpectQuery(overlapScan).
		WithArgs(1, at(16), at(15), "r2", at(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("long"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pending("r2", 1, 15, 16))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateRaisesRecordedLength(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(int64(3600)))
	mock.ExpectQuery(overlapScan).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(resInsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(lockRaise).WithArgs(int64(3*3600), 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), pending("r1", 1, 10, 13)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateBackfillsMissingLength(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(nil))
	mock.ExpectQuery(lockBackfill).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(12*3600 + 1)))
	mock.ExpectExec(lockRaise).WithArgs(int64(12*3600+1), 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(overlapScan).
		WithArgs(1, at(13), at(12), "r1", at(12).Add(-(12*time.Hour + time.Second))).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("old"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pending("r1", 1, 12, 13))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateRetryAfterAmbiguousCommit(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(int64(3600)))
	mock.ExpectQuery(overlapScan).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(resInsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(netTimeout{})
	// the first commit went through; the retry skips its own row and
	// collides on the primary key
	mock.ExpectBegin()
	mock.ExpectExec(lockInsert).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSelect).WillReturnRows(lockRow(int64(3600)))
	mock.ExpectQuery(overlapScan).
		WithArgs(1, at(11), at(10), "r1", at(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(resInsert).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'r1' for key 'PRIMARY'"})
	mock.ExpectRollback()

	require.NoError(t, repo.Create(context.Background(), pending("r1", 1, 10, 11)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_TransitionRetryAfterAppliedUpdate(t *testing.T) {
	repo, mock := newMySQLRepo(t)
	res := pending("r1", 1, 10, 11)
	tr := lifecycle.Transition{Action: lifecycle.ActionPay, From: model.StatusPending, To: model.StatusPaid, At: at(8)}

	mock.ExpectExec(statusCAS).WithArgs("paid", at(8), "r1", "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(resSelect).WillReturnError(netTimeout{})
	mock.ExpectExec(statusCAS).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(resSelect).WillReturnRows(storedRow(res, model.StatusPaid, at(8)))

	got, err := repo.Transition(context.Background(), "r1", tr)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	assert.True(t, got.StatusChangedAt.Equal(at(8)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_TransitionLostRace(t *testing.T) {
	repo, mock := newMySQLRepo(t)
	res := pending("r1", 1, 10, 11)
	tr := lifecycle.Transition{Action: lifecycle.ActionPay, From: model.StatusPending, To: model.StatusPaid, At: at(8)}

	mock.ExpectExec(statusCAS).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(resSelect).WillReturnRows(storedRow(res, model.StatusCancelled, at(7)))

	got, err := repo.Transition(context.Background(), "r1", tr)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_TransitionMissing(t *testing.T) {
	repo, mock := newMySQLRepo(t)
	tr := lifecycle.Transition{Action: lifecycle.ActionCancel, From: model.StatusPending, To: model.StatusCancelled, At: at(8)}

	mock.ExpectExec(statusCAS).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(resSelect).WillReturnRows(sqlmock.NewRows(reservationRow))

	_, err := repo.Transition(context.Background(), "nope", tr)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_UpdateNotes(t *testing.T) {
	notesUpdate := regexp.QuoteMeta("UPDATE reservations SET notes = ? WHERE id = ? AND status = 'pending'")
	res := pending("r1", 1, 10, 11)

	t.Run("pending", func(t *testing.T) {
		repo, mock := newMySQLRepo(t)
		res := res
		res.Notes = "window seat"
		mock.ExpectExec(notesUpdate).WithArgs("window seat", "r1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(resSelect).WillReturnRows(storedRow(res, model.StatusPending, at(0)))

		got, err := repo.UpdateNotes(context.Background(), "r1", "window seat")
		require.NoError(t, err)
		assert.Equal(t, "window seat", got.Notes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("paid", func(t *testing.T) {
		repo, mock := newMySQLRepo(t)
		mock.ExpectExec(notesUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(resSelect).WillReturnRows(storedRow(res, model.StatusPaid, at(1)))

		_, err := repo.UpdateNotes(context.Background(), "r1", "late")
		assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReservationRepo_IsAvailableWithoutLockRowIsUnbounded(t *testing.T) {
	repo, mock := newMySQLRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT max_duration_seconds FROM area_locks WHERE area_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"max_duration_seconds"}))
	mock.ExpectQuery(overlapScan).
		WithArgs(1, at(11), at(10), "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	free, err := repo.IsAvailable(context.Background(), 1, model.TimeRange{Start: at(10), End: at(11)}, "")
	require.NoError(t, err)
	assert.True(t, free)
	assert.NoError(t, mock.ExpectationsWereMet())
}
