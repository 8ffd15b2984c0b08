package hold

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

// Ledger is the part of the wallet service the hold manager writes through.
type Ledger interface {
	GetWallet(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error)
	LockWalletsTx(ctx context.Context, tx *sqlx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*wallet.Wallet, error)
	RecordTransactionTx(ctx context.Context, tx *sqlx.Tx, p wallet.EntryParams) (*wallet.Transaction, error)
}

// Service is the payment hold manager. A hold moves from pending to exactly
// one of released, captured or canceled, and every move writes a ledger
// entry in the same transaction.
type Service struct {
	db     *sqlx.DB
	repo   *Repository
	ledger Ledger
}

func NewService(db *sqlx.DB, repo *Repository, ledger Ledger) *Service {
	return &Service{db: db, repo: repo, ledger: ledger}
}

// CreateHold reserves amount on the wallet for the claim.
func (s *Service) CreateHold(ctx context.Context, walletID, claimID uuid.UUID, amount decimal.Decimal) (*Hold, error) {
	var out *Hold
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		h, err := s.CreateHoldTx(ctx, tx, walletID, claimID, amount)
		out = h
		return err
	})
	return out, err
}

// CreateHoldTx checks available funds under the wallet lock, records the
// hold ledger entry and inserts the pending hold.
func (s *Service) CreateHoldTx(ctx context.Context, tx *sqlx.Tx, walletID, claimID uuid.UUID, amount decimal.Decimal) (*Hold, error) {
	if err := money.ValidateAmount(amount); err != nil {
		return nil, wallet.ErrInvalidAmount
	}
	if claimID == uuid.Nil {
		return nil, ErrMissingClaim
	}

	if _, err := s.ledger.LockWalletsTx(ctx, tx, walletID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetPendingByClaim(ctx, tx, claimID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPendingHoldExists
	}

	id := uuid.New()
	entry, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
		WalletID:  walletID,
		Type:      wallet.TypeHold,
		Amount:    amount,
		Reference: reference(id),
		Metadata:  wallet.Metadata{"claim_id": claimID.String()},
	})
	if err != nil {
		return nil, err
	}

	h := newHold(id, walletID, claimID, amount, entry.Currency, entry.ID)
	if err := s.repo.Insert(ctx, tx, h); err != nil {
		return nil, err
	}

	log.Info().
		Str("hold_id", h.ID.String()).
		Str("wallet_id", walletID.String()).
		Str("claim_id", claimID.String()).
		Str("amount", money.Format(amount)).
		Msg("payment hold created")
	return h, nil
}

// Release returns the reserved funds to the holder.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID) (*Hold, error) {
	return s.inTx(ctx, func(tx *sqlx.Tx) (*Hold, error) { return s.ReleaseTx(ctx, tx, holdID) })
}

func (s *Service) ReleaseTx(ctx context.Context, tx *sqlx.Tx, holdID uuid.UUID) (*Hold, error) {
	return s.lift(ctx, tx, holdID, StatusReleased, wallet.TypeHoldRelease, releaseReference(holdID))
}

// Cancel lifts the reservation because the claim was canceled.
func (s *Service) Cancel(ctx context.Context, holdID uuid.UUID) (*Hold, error) {
	return s.inTx(ctx, func(tx *sqlx.Tx) (*Hold, error) { return s.CancelTx(ctx, tx, holdID) })
}

func (s *Service) CancelTx(ctx context.Context, tx *sqlx.Tx, holdID uuid.UUID) (*Hold, error) {
	return s.lift(ctx, tx, holdID, StatusCanceled, wallet.TypeHoldCancel, cancelReference(holdID))
}

// lift settles a hold without moving money: once the hold leaves pending
// it no longer counts against the available balance.
func (s *Service) lift(ctx context.Context, tx *sqlx.Tx, holdID uuid.UUID, to Status, entryType wallet.TransactionType, ref string) (*Hold, error) {
	h, err := s.lockPending(ctx, tx, holdID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.LockWalletsTx(ctx, tx, h.WalletID); err != nil {
		return nil, err
	}
	if err := s.repo.Settle(ctx, tx, h, to); err != nil {
		return nil, err
	}
	if _, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
		WalletID:  h.WalletID,
		Type:      entryType,
		Amount:    h.Amount,
		Currency:  h.Currency,
		Reference: ref,
		RelatedID: &h.LedgerEntryID,
	}); err != nil {
		return nil, err
	}

	log.Info().Str("hold_id", h.ID.String()).Str("status", string(to)).Msg("payment hold settled")
	return h, nil
}

// Capture moves the held amount from the holder to the recipient wallet.
func (s *Service) Capture(ctx context.Context, holdID, recipientWalletID uuid.UUID) (*Hold, error) {
	return s.inTx(ctx, func(tx *sqlx.Tx) (*Hold, error) { return s.CaptureTx(ctx, tx, holdID, recipientWalletID) })
}

// CaptureTx marks the hold captured, then writes the hold_capture debit on
// the holder and the transfer_in credit on the recipient. Both legs point
// at the hold's own ledger entry. The hold leaves pending before the debit
// so the amount it reserved is the amount the debit consumes.
func (s *Service) CaptureTx(ctx context.Context, tx *sqlx.Tx, holdID, recipientWalletID uuid.UUID) (*Hold, error) {
	h, err := s.lockPending(ctx, tx, holdID)
	if err != nil {
		return nil, err
	}
	if recipientWalletID == h.WalletID {
		return nil, ErrSameWallet
	}
	if _, err := s.ledger.LockWalletsTx(ctx, tx, h.WalletID, recipientWalletID); err != nil {
		return nil, err
	}
	if err := s.repo.Settle(ctx, tx, h, StatusCaptured); err != nil {
		return nil, err
	}

	holder := h.WalletID
	if _, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
		WalletID:            holder,
		Type:                wallet.TypeHoldCapture,
		Amount:              h.Amount,
		Currency:            h.Currency,
		Reference:           captureReference(h.ID),
		RelatedID:           &h.LedgerEntryID,
		CounterpartWalletID: &recipientWalletID,
	}); err != nil {
		return nil, err
	}
	if _, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
		WalletID:            recipientWalletID,
		Type:                wallet.TypeTransferIn,
		Amount:              h.Amount,
		Currency:            h.Currency,
		Reference:           creditReference(h.ID),
		RelatedID:           &h.LedgerEntryID,
		CounterpartWalletID: &holder,
	}); err != nil {
		return nil, err
	}

	log.Info().
		Str("hold_id", h.ID.String()).
		Str("from_wallet", holder.String()).
		Str("to_wallet", recipientWalletID.String()).
		Str("amount", money.Format(h.Amount)).
		Msg("payment hold captured")
	return h, nil
}

func (s *Service) lockPending(ctx context.Context, tx *sqlx.Tx, holdID uuid.UUID) (*Hold, error) {
	h, err := s.repo.Lock(ctx, tx, holdID)
	if err != nil {
		return nil, err
	}
	if h.Status != StatusPending {
		return nil, ErrInvalidHoldState
	}
	return h, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) (*Hold, error)) (*Hold, error) {
	var out *Hold
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		h, err := fn(tx)
		out = h
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, holdID uuid.UUID) (*Hold, error) {
	return s.repo.Get(ctx, s.db, holdID)
}

// GetPendingByClaim returns nil when the claim has no pending hold.
func (s *Service) GetPendingByClaim(ctx context.Context, claimID uuid.UUID) (*Hold, error) {
	return s.repo.GetPendingByClaim(ctx, s.db, claimID)
}

// GetFor returns the hold to the holder wallet's owner or an admin.
func (s *Service) GetFor(ctx context.Context, caller identity.Caller, holdID uuid.UUID) (*Hold, error) {
	h, err := s.repo.Get(ctx, s.db, holdID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, h.WalletID); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) ListByWallet(ctx context.Context, caller identity.Caller, walletID uuid.UUID, status Status) ([]*Hold, error) {
	if err := s.authorize(ctx, caller, walletID); err != nil {
		return nil, err
	}
	return s.repo.ListByWallet(ctx, s.db, walletID, status)
}

func (s *Service) authorize(ctx context.Context, caller identity.Caller, walletID uuid.UUID) error {
	if caller.IsAdmin() {
		return nil
	}
	w, err := s.ledger.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if !caller.Is(w.OwnerID) {
		return apperr.ErrForbidden
	}
	return nil
}
