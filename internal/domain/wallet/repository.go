package wallet

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

const referenceConstraint = "transactions_reference_key"

const walletColumns = `id, owner_id, currency, balance, version, created_at, updated_at`

const transactionColumns = `id, wallet_id, type, amount, currency, status, reference,
	related_id, counterpart_wallet_id, metadata, created_at, updated_at`

// reservedSQL sums what is promised but not yet debited: pending holds and
// pending debit entries (outgoing bank transfers in flight).
const reservedSQL = `
	COALESCE((SELECT SUM(h.amount) FROM payment_holds h
		WHERE h.wallet_id = $1 AND h.status = 'pending'), 0)
	+ COALESCE((SELECT SUM(t.amount) FROM transactions t
		WHERE t.wallet_id = $1 AND t.status = 'pending'
		AND t.type IN ('withdrawal', 'transfer_out', 'hold_capture')), 0)`

// Repository reads and writes wallets and ledger entries. Every method takes
// the executor explicitly so callers can compose it into their own tx.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// EnsureWallet creates the owner's wallet if missing and returns it.
func (r *Repository) EnsureWallet(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID, currency money.Currency) (*Wallet, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_id, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO NOTHING
	`, uuid.New(), ownerID, currency); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return r.GetByOwner(ctx, q, ownerID)
}

func (r *Repository) GetByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Wallet, error) {
	return r.getWallet(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

func (r *Repository) GetByOwner(ctx context.Context, q sqlx.QueryerContext, ownerID uuid.UUID) (*Wallet, error) {
	return r.getWallet(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
}

// Lock takes the wallet row lock for the rest of the transaction.
func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Wallet, error) {
	return r.getWallet(ctx, tx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

// LockMany locks wallets in ascending id order so that two transactions
// touching the same pair can never deadlock.
func (r *Repository) LockMany(ctx context.Context, tx *sqlx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*Wallet, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	out := make(map[uuid.UUID]*Wallet, len(sorted))
	for _, id := range sorted {
		if _, done := out[id]; done {
			continue
		}
		w, err := r.Lock(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

func (r *Repository) getWallet(ctx context.Context, q sqlx.QueryerContext, query string, arg interface{}) (*Wallet, error) {
	var w Wallet
	if err := sqlx.GetContext(ctx, q, &w, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Reserved returns the amount of the wallet's balance promised elsewhere.
func (r *Repository) Reserved(ctx context.Context, q sqlx.QueryerContext, walletID uuid.UUID) (decimal.Decimal, error) {
	var reserved decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &reserved, `SELECT `+reservedSQL, walletID); err != nil {
		return decimal.Zero, fmt.Errorf("reserved amount: %w", err)
	}
	return reserved, nil
}

// Balance reads stored and reserved amounts in one statement so both come
// from the same snapshot.
func (r *Repository) Balance(ctx context.Context, q sqlx.QueryerContext, walletID uuid.UUID) (*Balance, error) {
	var b Balance
	err := sqlx.GetContext(ctx, q, &b, `
		SELECT w.id AS wallet_id, w.currency, w.balance AS stored, (`+reservedSQL+`) AS reserved
		FROM wallets w
		WHERE w.id = $1
	`, walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	b.Available = b.Stored.Sub(b.Reserved)
	return &b, nil
}

// ApplyDelta moves the stored balance. The version guard catches writers
// that bypassed the row lock; the CHECK constraint is the last line against
// a negative balance.
func (r *Repository) ApplyDelta(ctx context.Context, tx *sqlx.Tx, w *Wallet, delta decimal.Decimal) error {
	var updated Wallet
	err := tx.GetContext(ctx, &updated, `
		UPDATE wallets
		SET balance = balance + $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING `+walletColumns, delta, w.ID, w.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("wallet %s: %w", w.ID, database.ErrVersionConflict)
		}
		if database.IsCheckViolation(err) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("apply delta: %w", err)
	}
	*w = updated
	return nil
}

// FindByReference returns nil when the reference is unused.
func (r *Repository) FindByReference(ctx context.Context, q sqlx.QueryerContext, reference string) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert writes a new entry. A reference that won a concurrent race is
// reported as a version conflict so the whole unit of work is retried and
// the replay check sees the committed row.
func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (id, wallet_id, type, amount, currency, status, reference,
			related_id, counterpart_wallet_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, t.ID, t.WalletID, t.Type, t.Amount, t.Currency, t.Status, t.Reference,
		t.RelatedID, t.CounterpartWalletID, t.Metadata,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, referenceConstraint) {
			return fmt.Errorf("reference %q raced: %w", t.Reference, database.ErrVersionConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Transaction, error) {
	return r.getTransaction(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *Repository) LockTransaction(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transaction, error) {
	return r.getTransaction(ctx, tx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) getTransaction(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	if err := sqlx.GetContext(ctx, q, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateStatus moves an entry along the status machine. The WHERE clause on
// the current status makes a lost race visible as ErrInvalidTransition.
func (r *Repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, t *Transaction, to Status) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, t.ID, t.Status)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	t.Status = to
	return nil
}

// List returns a page of the wallet's history, newest first.
func (r *Repository) List(ctx context.Context, q sqlx.QueryerContext, walletID uuid.UUID, f ListFilter) ([]*Transaction, error) {
	f.normalize()

	where := []string{"wallet_id = $1"}
	args := []interface{}{walletID}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	items := []*Transaction{}
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}
