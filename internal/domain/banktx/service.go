package banktx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/domain/notification"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/gateway"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/money"
	"github.com/cargolink/escrow-api/internal/pkg/retry"
)

// Ledger is what the adapter needs from the wallet service.
type Ledger interface {
	GetWallet(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error)
	RecordTransactionTx(ctx context.Context, tx *sqlx.Tx, p wallet.EntryParams) (*wallet.Transaction, error)
	SettlePendingTx(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID) (*wallet.Transaction, error)
	FailPendingTx(ctx context.Context, tx *sqlx.Tx, transactionID uuid.UUID) (*wallet.Transaction, error)
}

// Gateway submits and re-queries payouts.
type Gateway interface {
	Payout(ctx context.Context, req gateway.PayoutRequest) (*gateway.PayoutResult, error)
	GetPayout(ctx context.Context, reference string) (*gateway.PayoutResult, error)
}

// Service records bank movements. Gateway calls never run inside a
// database transaction: a withdrawal reserves funds in one transaction,
// talks to the gateway with no locks held, and applies the answer in a
// second transaction.
type Service struct {
	db       *sqlx.DB
	repo     *Repository
	ledger   Ledger
	gateway  Gateway
	retrier  *retry.Retrier
	notifier notification.Dispatcher
}

func NewService(db *sqlx.DB, repo *Repository, ledger Ledger, gw Gateway, retrier *retry.Retrier, notifier notification.Dispatcher) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{db: db, repo: repo, ledger: ledger, gateway: gw, retrier: retrier, notifier: notifier}
}

// RecordIncoming credits a deposit once per gateway reference. Replays with
// the same parameters return the stored row.
func (s *Service) RecordIncoming(ctx context.Context, p IncomingParams) (*BankTransaction, error) {
	if err := validateRef(p.GatewayRef); err != nil {
		return nil, err
	}
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}

	var out *BankTransaction
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		existing, err := s.repo.GetByGatewayRef(ctx, tx, p.GatewayRef)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.matches(DirectionIncoming, p.WalletID, p.Amount) {
				return ErrDuplicateReference
			}
			existing.Replayed = true
			out = existing
			return nil
		}

		entry, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
			WalletID:  p.WalletID,
			Type:      wallet.TypeTopUp,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Reference: ledgerReference(p.GatewayRef),
			Metadata:  wallet.Metadata{"gateway_ref": p.GatewayRef},
		})
		if err != nil {
			return err
		}

		b := newIncoming(p, entry.Currency, entry.ID)
		if err := s.repo.Insert(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.Replayed {
		log.Info().
			Str("bank_transaction_id", out.ID.String()).
			Str("gateway_ref", out.GatewayRef).
			Str("amount", money.Format(out.Amount)).
			Msg("incoming bank transfer credited")
		s.notifyOwner(ctx, out, notification.TypeTopUpReceived)
	}
	return out, nil
}

// Withdraw is RecordOutgoing restricted to the wallet owner.
func (s *Service) Withdraw(ctx context.Context, caller identity.Caller, p OutgoingParams) (*BankTransaction, error) {
	w, err := s.ledger.GetWallet(ctx, p.WalletID)
	if err != nil {
		return nil, err
	}
	if !caller.Is(w.OwnerID) {
		return nil, apperr.ErrForbidden
	}
	return s.RecordOutgoing(ctx, p)
}

// RecordOutgoing reserves the amount with a pending withdrawal, submits the
// payout and applies the gateway's answer. An unresolved answer leaves the
// row pending for Reconcile. Replaying a reference returns the stored row,
// resubmitting the payout if it is still pending.
func (s *Service) RecordOutgoing(ctx context.Context, p OutgoingParams) (*BankTransaction, error) {
	if err := validateRef(p.GatewayRef); err != nil {
		return nil, err
	}
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Destination) == "" {
		return nil, ErrMissingDestination
	}

	b, err := s.reserve(ctx, p)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return b, nil
	}

	res, err := s.submit(ctx, b)
	if err != nil {
		log.Warn().Err(err).
			Str("bank_transaction_id", b.ID.String()).
			Str("gateway_ref", b.GatewayRef).
			Msg("payout unresolved, left pending for reconciliation")
		return b, nil
	}

	replayed := b.Replayed
	b, err = s.ApplyPayoutResult(ctx, b.ID, res)
	if err != nil {
		return nil, err
	}
	b.Replayed = replayed
	return b, nil
}

func (s *Service) reserve(ctx context.Context, p OutgoingParams) (*BankTransaction, error) {
	var out *BankTransaction
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		existing, err := s.repo.GetByGatewayRef(ctx, tx, p.GatewayRef)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.matches(DirectionOutgoing, p.WalletID, p.Amount) {
				return ErrDuplicateReference
			}
			existing.Replayed = true
			out = existing
			return nil
		}

		entry, err := s.ledger.RecordTransactionTx(ctx, tx, wallet.EntryParams{
			WalletID:  p.WalletID,
			Type:      wallet.TypeWithdrawal,
			Amount:    p.Amount,
			Reference: ledgerReference(p.GatewayRef),
			Pending:   true,
			Metadata:  wallet.Metadata{"gateway_ref": p.GatewayRef},
		})
		if err != nil {
			return err
		}

		b := newOutgoing(p, entry.Currency, entry.ID)
		if err := s.repo.Insert(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Replayed {
		log.Info().
			Str("bank_transaction_id", out.ID.String()).
			Str("gateway_ref", out.GatewayRef).
			Str("amount", money.Format(out.Amount)).
			Msg("withdrawal reserved")
	}
	return out, nil
}

// submit sends the payout with backoff. The gateway deduplicates on the
// reference, so resubmitting is safe.
func (s *Service) submit(ctx context.Context, b *BankTransaction) (*gateway.PayoutResult, error) {
	var res *gateway.PayoutResult
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.RecordAttempt(ctx, s.db, b.ID); err != nil {
			log.Warn().Err(err).Str("bank_transaction_id", b.ID.String()).Msg("failed to count gateway attempt")
		}
		r, err := s.gateway.Payout(ctx, gateway.PayoutRequest{
			Reference:   b.GatewayRef,
			Amount:      b.Amount,
			Currency:    b.Currency,
			Destination: b.Destination.String,
		})
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// ApplyPayoutResult settles or fails the withdrawal. A pending result and
// an already resolved row are no-ops.
func (s *Service) ApplyPayoutResult(ctx context.Context, id uuid.UUID, res *gateway.PayoutResult) (*BankTransaction, error) {
	var out *BankTransaction
	changed := false
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.repo.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		out = b
		if b.Direction != DirectionOutgoing {
			return ErrNotOutgoing
		}
		if b.Status != StatusPending || res == nil || res.Status == gateway.StatusPending {
			return nil
		}
		if b.TransactionID == nil {
			return errors.New("withdrawal has no ledger entry")
		}

		switch res.Status {
		case gateway.StatusConfirmed:
			if _, err := s.ledger.SettlePendingTx(ctx, tx, *b.TransactionID); err != nil {
				return err
			}
			if err := s.repo.Resolve(ctx, tx, b, StatusCompleted, ""); err != nil {
				return err
			}
		case gateway.StatusRejected:
			if _, err := s.ledger.FailPendingTx(ctx, tx, *b.TransactionID); err != nil {
				return err
			}
			reason := res.Reason
			if reason == "" {
				reason = "rejected by gateway"
			}
			if err := s.repo.Resolve(ctx, tx, b, StatusFailed, reason); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Info().
			Str("bank_transaction_id", out.ID.String()).
			Str("gateway_ref", out.GatewayRef).
			Str("status", string(out.Status)).
			Msg("withdrawal resolved")
		t := notification.TypeWithdrawalCompleted
		if out.Status == StatusFailed {
			t = notification.TypeWithdrawalFailed
		}
		s.notifyOwner(ctx, out, t)
	}
	return out, nil
}

// ApplyPayoutByRef is ApplyPayoutResult keyed by gateway reference, for
// status callbacks.
func (s *Service) ApplyPayoutByRef(ctx context.Context, res *gateway.PayoutResult) (*BankTransaction, error) {
	b, err := s.repo.GetByGatewayRef(ctx, s.db, res.Reference)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBankTransactionNotFound
	}
	return s.ApplyPayoutResult(ctx, b.ID, res)
}

// Outcome of reconciling one withdrawal.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
	OutcomeError     Outcome = "error"
)

type ReportItem struct {
	BankTransactionID uuid.UUID `json:"bank_transaction_id"`
	GatewayRef        string    `json:"gateway_ref"`
	Outcome           Outcome   `json:"outcome"`
	Error             string    `json:"error,omitempty"`
}

// Report summarizes one reconciliation run.
type Report struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Checked    int          `json:"checked"`
	Completed  int          `json:"completed"`
	Failed     int          `json:"failed"`
	Pending    int          `json:"pending"`
	Errors     int          `json:"errors"`
	Items      []ReportItem `json:"items"`
}

// Reconcile re-queries the gateway for withdrawals pending longer than
// olderThan. A payout the gateway has never seen is resubmitted.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC(), Items: []ReportItem{}}

	stale, err := s.repo.ListStalePending(ctx, s.db, olderThan, limit)
	if err != nil {
		return nil, err
	}

	for _, b := range stale {
		if ctx.Err() != nil {
			break
		}
		item := ReportItem{BankTransactionID: b.ID, GatewayRef: b.GatewayRef}
		status, err := s.reconcileOne(ctx, b)
		switch {
		case err != nil:
			item.Outcome = OutcomeError
			item.Error = err.Error()
			report.Errors++
		case status == StatusCompleted:
			item.Outcome = OutcomeCompleted
			report.Completed++
		case status == StatusFailed:
			item.Outcome = OutcomeFailed
			report.Failed++
		default:
			item.Outcome = OutcomePending
			report.Pending++
		}
		report.Checked++
		report.Items = append(report.Items, item)
	}

	report.FinishedAt = time.Now().UTC()
	log.Info().
		Int("checked", report.Checked).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("pending", report.Pending).
		Int("errors", report.Errors).
		Msg("reconciliation run finished")
	return report, nil
}

func (s *Service) reconcileOne(ctx context.Context, b *BankTransaction) (Status, error) {
	var res *gateway.PayoutResult
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := s.gateway.GetPayout(ctx, b.GatewayRef)
		if err != nil {
			return err
		}
		res = r
		return nil
	})

	var se *gateway.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		res, err = s.submit(ctx, b)
	}
	if err != nil {
		if aerr := s.repo.RecordAttempt(ctx, s.db, b.ID); aerr != nil {
			log.Warn().Err(aerr).Msg("failed to requeue bank transaction")
		}
		return StatusPending, err
	}

	updated, err := s.ApplyPayoutResult(ctx, b.ID, res)
	if err != nil {
		return StatusPending, err
	}
	if updated.Status == StatusPending {
		if aerr := s.repo.RecordAttempt(ctx, s.db, b.ID); aerr != nil {
			log.Warn().Err(aerr).Msg("failed to requeue bank transaction")
		}
	}
	return updated.Status, nil
}

// GetFor returns a bank transaction to the wallet owner or an admin.
func (s *Service) GetFor(ctx context.Context, caller identity.Caller, id uuid.UUID) (*BankTransaction, error) {
	b, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return b, nil
	}
	w, err := s.ledger.GetWallet(ctx, b.WalletID)
	if err != nil {
		return nil, err
	}
	if !caller.Is(w.OwnerID) {
		return nil, apperr.ErrForbidden
	}
	return b, nil
}

func (s *Service) notifyOwner(ctx context.Context, b *BankTransaction, t notification.Type) {
	w, err := s.ledger.GetWallet(ctx, b.WalletID)
	if err != nil {
		log.Warn().Err(err).Str("wallet_id", b.WalletID.String()).Msg("cannot resolve wallet owner for notification")
		return
	}
	e := notification.NewEvent(w.OwnerID, t, map[string]string{
		"bank_transaction_id": b.ID.String(),
		"gateway_ref":         b.GatewayRef,
		"amount":              money.Format(b.Amount),
	})
	if err := s.notifier.Dispatch(ctx, e); err != nil {
		log.Warn().Err(err).Str("bank_transaction_id", b.ID.String()).Msg("bank notification failed")
	}
}
