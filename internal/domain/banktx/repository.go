package banktx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cargolink/escrow-api/internal/pkg/database"
)

const gatewayRefConstraint = "bank_transactions_gateway_ref_key"

const bankColumns = `id, wallet_id, gateway_ref, direction, amount, currency, status, transaction_id,
	destination, failure_reason, attempts, created_at, updated_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert reports a gateway_ref that lost a concurrent race as a version
// conflict so the unit of work is replayed and finds the winner.
func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, b *BankTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bank_transactions (id, wallet_id, gateway_ref, direction, amount, currency, status,
			transaction_id, destination, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.WalletID, b.GatewayRef, b.Direction, b.Amount, b.Currency, b.Status,
		b.TransactionID, b.Destination, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, gatewayRefConstraint) {
			return fmt.Errorf("gateway_ref %q raced: %w", b.GatewayRef, database.ErrVersionConflict)
		}
		return fmt.Errorf("insert bank transaction: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*BankTransaction, error) {
	return r.get(ctx, q, `SELECT `+bankColumns+` FROM bank_transactions WHERE id = $1`, id)
}

func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*BankTransaction, error) {
	return r.get(ctx, tx, `SELECT `+bankColumns+` FROM bank_transactions WHERE id = $1 FOR UPDATE`, id)
}

// GetByGatewayRef returns nil when the reference was never seen.
func (r *Repository) GetByGatewayRef(ctx context.Context, q sqlx.QueryerContext, ref string) (*BankTransaction, error) {
	b, err := r.get(ctx, q, `SELECT `+bankColumns+` FROM bank_transactions WHERE gateway_ref = $1`, ref)
	if errors.Is(err, ErrBankTransactionNotFound) {
		return nil, nil
	}
	return b, err
}

func (r *Repository) get(ctx context.Context, q sqlx.QueryerContext, query string, arg interface{}) (*BankTransaction, error) {
	var b BankTransaction
	if err := sqlx.GetContext(ctx, q, &b, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBankTransactionNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Resolve moves a pending row to completed or failed.
func (r *Repository) Resolve(ctx context.Context, tx *sqlx.Tx, b *BankTransaction, to Status, reason string) error {
	failure := sql.NullString{String: reason, Valid: reason != ""}
	err := tx.QueryRowxContext(ctx, `
		UPDATE bank_transactions
		SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3 AND status = 'pending'
		RETURNING updated_at
	`, to, failure, b.ID).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("bank transaction %s already resolved: %w", b.ID, database.ErrVersionConflict)
		}
		return fmt.Errorf("resolve bank transaction: %w", err)
	}
	b.Status = to
	b.FailureReason = failure
	return nil
}

// RecordAttempt counts a gateway submission and pushes the row to the back
// of the reconciliation queue.
func (r *Repository) RecordAttempt(ctx context.Context, q sqlx.ExecerContext, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE bank_transactions SET attempts = attempts + 1, updated_at = now() WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("record gateway attempt: %w", err)
	}
	return nil
}

// ListStalePending returns outgoing rows still pending after olderThan,
// oldest first.
func (r *Repository) ListStalePending(ctx context.Context, q sqlx.QueryerContext, olderThan time.Duration, limit int) ([]*BankTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	items := []*BankTransaction{}
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT `+bankColumns+` FROM bank_transactions
		WHERE status = 'pending' AND direction = 'outgoing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale bank transactions: %w", err)
	}
	return items, nil
}
