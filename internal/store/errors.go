// Package store implements the Postgres-backed deal, signal, match and
// notification-outbox stores on pgx.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by the stores.
var (
	// ErrNotFound is returned when a referenced signal or deal is absent.
	ErrNotFound = errors.New("not found")

	// ErrDanglingReference is returned when recording a match races a
	// concurrent deletion of its signal or deal.
	ErrDanglingReference = errors.New("match references a missing signal or deal")

	// ErrInvariantViolation is returned when a dedupe-key conflict resolves
	// to a row with different immutable fields. Fatal; never retried.
	ErrInvariantViolation = errors.New("dedupe key collision with conflicting immutable fields")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// SQLSTATE codes classified as transient. Connection failures (class 08),
// serialization failures, deadlocks and admin shutdown all clear on retry.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeAdminShutdown        = "57P01"
	codeForeignKeyViolation  = "23503"
)

// IsTransient reports whether err is a store error worth retrying with
// backoff: connection-level failures and transaction aborts, never
// constraint or invariant violations.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDanglingReference) || errors.Is(err, ErrInvariantViolation) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeAdminShutdown:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	// pgx surfaces pool-level connect failures as wrapped connect errors.
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}

// isForeignKeyViolation reports whether err is a Postgres FK violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// wrap annotates a store error with the operation that produced it.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
