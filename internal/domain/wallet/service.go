package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

// reversalReference keys the compensating entry by the original's id, so
// it fits the reference column whatever the original reference length.
func reversalReference(originalID uuid.UUID) string {
	return "reversal:" + originalID.String()
}

// Service owns every balance mutation. Methods ending in Tx run inside the
// caller's transaction; the others open their own through database.RunInTx.
type Service struct {
	db              *sqlx.DB
	repo            *Repository
	defaultCurrency money.Currency
}

func NewService(db *sqlx.DB, repo *Repository, defaultCurrency money.Currency) *Service {
	return &Service{db: db, repo: repo, defaultCurrency: defaultCurrency}
}

// EnsureWallet returns the owner's wallet, creating it on first use.
func (s *Service) EnsureWallet(ctx context.Context, ownerID uuid.UUID, currency money.Currency) (*Wallet, error) {
	return s.EnsureWalletTx(ctx, s.db, ownerID, currency)
}

func (s *Service) EnsureWalletTx(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID, currency money.Currency) (*Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, ErrWalletNotFound
	}
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !currency.Valid() {
		return nil, ErrCurrencyMismatch
	}
	w, err := s.repo.EnsureWallet(ctx, q, ownerID, currency)
	if err != nil {
		return nil, err
	}
	if w.Currency != currency {
		return nil, ErrCurrencyMismatch
	}
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, walletID uuid.UUID) (*Wallet, error) {
	return s.repo.GetByID(ctx, s.db, walletID)
}

// GetBalance derives stored, reserved and available amounts.
func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (*Balance, error) {
	return s.repo.Balance(ctx, s.db, walletID)
}

// BalanceFor is GetBalance restricted to the wallet owner and admins.
func (s *Service) BalanceFor(ctx context.Context, caller identity.Caller, walletID uuid.UUID) (*Balance, error) {
	if err := s.authorizeRead(ctx, caller, walletID); err != nil {
		return nil, err
	}
	return s.GetBalance(ctx, walletID)
}

// ListTransactions returns the wallet's history for its owner or an admin.
func (s *Service) ListTransactions(ctx context.Context, caller identity.Caller, walletID uuid.UUID, f ListFilter) ([]*Transaction, error) {
	if err := s.authorizeRead(ctx, caller, walletID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, walletID, f)
}

func (s *Service) authorizeRead(ctx context.Context, caller identity.Caller, walletID uuid.UUID) error {
	w, err := s.repo.GetByID(ctx, s.db, walletID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && !caller.Is(w.OwnerID) {
		return apperr.ErrForbidden
	}
	return nil
}

// LockWalletsTx locks the given wallets in ascending id order.
func (s *Service) LockWalletsTx(ctx context.Context, tx *sqlx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*Wallet, error) {
	return s.repo.LockMany(ctx, tx, ids...)
}

// RecordTransaction records one ledger entry in its own transaction.
func (s *Service) RecordTransaction(ctx context.Context, p EntryParams) (*Transaction, error) {
	var out *Transaction
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := s.RecordTransactionTx(ctx, tx, p)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordTransactionTx locks the wallet, applies reference idempotency, checks
// available funds for entries that consume them, inserts the entry and moves
// the stored balance when the entry is completed.
func (s *Service) RecordTransactionTx(ctx context.Context, tx *sqlx.Tx, p EntryParams) (*Transaction, error) {
	entry, err := NewEntry(p)
	if err != nil {
		return nil, err
	}

	w, err := s.repo.Lock(ctx, tx, p.WalletID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByReference(ctx, tx, entry.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.sameRequest(entry) {
			return nil, ErrDuplicateReference
		}
		existing.Replayed = true
		return existing, nil
	}

	if err := s.recordLocked(ctx, tx, w, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) recordLocked(ctx context.Context, tx *sqlx.Tx, w *Wallet, entry *Transaction) error {
	if entry.Currency == "" {
		entry.Currency = w.Currency
	} else if entry.Currency != w.Currency {
		return ErrCurrencyMismatch
	}

	if entry.Type.ConsumesAvailable() {
		reserved, err := s.repo.Reserved(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		if w.Balance.Sub(reserved).LessThan(entry.Amount) {
			return ErrInsufficientFunds
		}
	}

	if err := s.repo.Insert(ctx, tx, entry); err != nil {
		return err
	}

	if entry.Status == StatusCompleted {
		if delta := entry.Delta(); !delta.IsZero() {
			if err := s.repo.ApplyDelta(ctx, tx, w, delta); err != nil {
				return err
			}
		}
	}

	log.Info().
		Str("wallet_id", w.ID.String()).
		Str("transaction_id", entry.ID.String()).
		Str("type", string(entry.Type)).
		Str("status", string(entry.Status)).
		Str("amount", money.Format(entry.Amount)).
		Str("reference", entry.Reference).
		Msg("ledger entry recorded")
	return nil
}

// SettlePendingTx completes a pending debit and moves the balance.
func (s *Service) SettlePendingTx(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID) (*Transaction, error) {
	t, w, err := s.lockEntry(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, tx, t, StatusCompleted); err != nil {
		return nil, err
	}
	if err := s.repo.ApplyDelta(ctx, tx, w, t.Delta()); err != nil {
		return nil, err
	}
	log.Info().Str("transaction_id", t.ID.String()).Str("amount", money.Format(t.Amount)).Msg("pending entry settled")
	return t, nil
}

// FailPendingTx marks a pending entry failed; the balance never moved.
func (s *Service) FailPendingTx(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID) (*Transaction, error) {
	t, _, err := s.lockEntry(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, tx, t, StatusFailed); err != nil {
		return nil, err
	}
	log.Info().Str("transaction_id", t.ID.String()).Msg("pending entry failed")
	return t, nil
}

// lockEntry locks wallet then entry, matching the order used by writers.
func (s *Service) lockEntry(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID) (*Transaction, *Wallet, error) {
	t, err := s.repo.GetTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	w, err := s.repo.Lock(ctx, tx, t.WalletID)
	if err != nil {
		return nil, nil, err
	}
	t, err = s.repo.LockTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	return t, w, nil
}

// Reverse writes a compensating entry for a completed balance-moving entry
// and marks the original reversed. Only admins may reverse. The reversal
// reference is derived from the original, so a retried call returns the
// first reversal and a second, distinct reversal cannot exist.
func (s *Service) Reverse(ctx context.Context, caller identity.Caller, transactionID uuid.UUID, reason string) (*Transaction, error) {
	if !caller.IsAdmin() {
		return nil, apperr.ErrForbidden
	}

	var out *Transaction
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		orig, w, err := s.lockEntry(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		compType, ok := orig.Type.Compensating()
		if !ok {
			return ErrNotReversible
		}

		reference := reversalReference(orig.ID)
		existing, err := s.repo.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Replayed = true
			out = existing
			return nil
		}
		if orig.Status != StatusCompleted {
			return ErrInvalidTransition
		}

		meta := Metadata{"reversed_by": caller.UserID.String()}
		if reason != "" {
			meta["reason"] = reason
		}
		entry, err := NewEntry(EntryParams{
			WalletID:            orig.WalletID,
			Type:                compType,
			Amount:              orig.Amount,
			Currency:            orig.Currency,
			Reference:           reference,
			RelatedID:           &orig.ID,
			CounterpartWalletID: orig.CounterpartWalletID,
			Metadata:            meta,
		})
		if err != nil {
			return err
		}
		if err := s.recordLocked(ctx, tx, w, entry); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, orig, StatusReversed); err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reverse %s: %w", transactionID, err)
	}

	if !out.Replayed {
		log.Info().
			Str("transaction_id", transactionID.String()).
			Str("reversal_id", out.ID.String()).
			Str("admin_id", caller.UserID.String()).
			Msg("ledger entry reversed")
	}
	return out, nil
}
