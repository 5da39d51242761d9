// Package repository persists reservations and reads the area catalog.
// Domain failures are reported with the sentinels of package model so
// that handlers can map them without knowing which store is in use.
// Driver errors are classified here: transient ones (dropped
// connections, deadlocks, serialization failures) are retried by
// RetryPolicy, everything else is returned as is.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes used by the PostgreSQL store.
const (
	pgExclusionViolation   = "23P01"
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MySQL server error numbers.
const (
	myDuplicateEntry  = 1062
	myLockWaitTimeout = 1205
	myDeadlock        = 1213
)

// isTransientMySQL reports whether err is worth retrying: dropped
// connections, network timeouts, lock wait timeouts and deadlocks.
// Every MySQL write is idempotent on the reservation id, so reads and
// writes share this classifier.
func isTransientMySQL(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myLockWaitTimeout, myDeadlock:
			return true
		}
	}
	return false
}

// isDuplicateEntryMySQL reports a primary or unique key collision.
func isDuplicateEntryMySQL(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == myDuplicateEntry
}

// isTransientPostgres is the pgx counterpart of isTransientMySQL for
// reads.
func isTransientPostgres(err error) bool {
	if err == nil {
		return false
	}
	if isTransientPostgresWrite(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isTransientPostgresWrite only accepts failures after which the
// statement is known not to have been applied: the request never left
// the client, or the server rolled it back.
func isTransientPostgresWrite(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return pgconn.SafeToRetry(err)
}

// isExclusionViolation reports whether err comes from the
// reservations_no_overlap constraint.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

// isUniqueViolation reports a primary or unique key collision.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
