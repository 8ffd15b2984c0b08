package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/pkg/apperr"
)

// ErrVersionConflict is returned by repositories when an optimistic
// version guard matched no row. RunInTx retries the whole unit of work.
var ErrVersionConflict = errors.New("row version changed concurrently")

// MaxTxAttempts bounds how many times RunInTx replays a unit of work.
const MaxTxAttempts = 3

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// TxFunc is a unit of work executed inside one transaction.
type TxFunc func(tx *sqlx.Tx) error

// BeginTx opens a READ COMMITTED transaction. Row locks are taken explicitly
// with SELECT ... FOR UPDATE by the repositories.
func BeginTx(ctx context.Context, db *sqlx.DB) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// RunInTx executes fn in a transaction and commits it. Serialization
// failures, deadlocks and version conflicts roll back and replay fn; after
// MaxTxAttempts it gives up with apperr.ErrConcurrencyConflict. Any other
// error rolls back and is returned unchanged.
func RunInTx(ctx context.Context, db *sqlx.DB, fn TxFunc) error {
	var (
		attempts  int
		permanent bool
		lastErr   error
	)
	operation := func() error {
		attempts++
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		log.Debug().Err(err).Int("attempt", attempts).Msg("transaction conflict, retrying")
	}

	err := backoff.RetryNotify(operation, txBackOff(ctx), notify)
	switch {
	case err == nil, permanent:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}

	log.Warn().Err(lastErr).Int("attempts", attempts).Msg("transaction retry budget exhausted")
	return fmt.Errorf("%w: %v", apperr.ErrConcurrencyConflict, lastErr)
}

// txBackOff spaces replays a few jittered milliseconds apart.
func txBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(50*time.Millisecond),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, MaxTxAttempts-1), ctx)
}

func runOnce(ctx context.Context, db *sqlx.DB, fn TxFunc) error {
	tx, err := BeginTx(ctx, db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsRetryable reports whether err is a transient concurrency failure.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	code := pqCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// IsUniqueViolation reports a 23505 error, optionally restricted to a constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsCheckViolation reports a 23514 error, e.g. the balance >= 0 guard.
func IsCheckViolation(err error) bool {
	return pqCode(err) == codeCheckViolation
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
