package hold

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cargolink/escrow-api/internal/pkg/database"
)

const onePendingPerClaim = "payment_holds_one_pending_per_claim"

const holdColumns = `id, wallet_id, claim_id, amount, currency, status, ledger_entry_id,
	created_at, updated_at, settled_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, h *Hold) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_holds (id, wallet_id, claim_id, amount, currency, status, ledger_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.WalletID, h.ClaimID, h.Amount, h.Currency, h.Status, h.LedgerEntryID, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, onePendingPerClaim) {
			return ErrPendingHoldExists
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Hold, error) {
	return r.get(ctx, q, `SELECT `+holdColumns+` FROM payment_holds WHERE id = $1`, id)
}

// Lock takes the hold row lock; callers lock holds before wallets.
func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Hold, error) {
	return r.get(ctx, tx, `SELECT `+holdColumns+` FROM payment_holds WHERE id = $1 FOR UPDATE`, id)
}

// GetPendingByClaim returns nil when the claim has no pending hold.
func (r *Repository) GetPendingByClaim(ctx context.Context, q sqlx.QueryerContext, claimID uuid.UUID) (*Hold, error) {
	h, err := r.get(ctx, q, `SELECT `+holdColumns+` FROM payment_holds WHERE claim_id = $1 AND status = 'pending'`, claimID)
	if errors.Is(err, ErrHoldNotFound) {
		return nil, nil
	}
	return h, err
}

func (r *Repository) get(ctx context.Context, q sqlx.QueryerContext, query string, arg uuid.UUID) (*Hold, error) {
	var h Hold
	if err := sqlx.GetContext(ctx, q, &h, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *Repository) ListByWallet(ctx context.Context, q sqlx.QueryerContext, walletID uuid.UUID, status Status) ([]*Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM payment_holds WHERE wallet_id = $1`
	args := []interface{}{walletID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	holds := []*Hold{}
	if err := sqlx.SelectContext(ctx, q, &holds, query, args...); err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return holds, nil
}

// Settle moves a pending hold to a terminal status. Zero affected rows means
// another transaction settled it first.
func (r *Repository) Settle(ctx context.Context, tx *sqlx.Tx, h *Hold, to Status) error {
	if !to.Terminal() {
		return ErrInvalidStatus
	}
	err := tx.QueryRowxContext(ctx, `
		UPDATE payment_holds
		SET status = $1, updated_at = now(), settled_at = now()
		WHERE id = $2 AND status = 'pending'
		RETURNING updated_at, settled_at
	`, to, h.ID).Scan(&h.UpdatedAt, &h.SettledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidHoldState
		}
		return fmt.Errorf("settle hold: %w", err)
	}
	h.Status = to
	return nil
}
