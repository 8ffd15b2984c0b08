package claim

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/domain/hold"
	"github.com/cargolink/escrow-api/internal/domain/notification"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/money"
	"github.com/cargolink/escrow-api/internal/pkg/password"
)

// HoldManager is the slice of the hold service a claim drives.
type HoldManager interface {
	CreateHoldTx(ctx context.Context, tx *sqlx.Tx, walletID, claimID uuid.UUID, amount decimal.Decimal) (*hold.Hold, error)
	CaptureTx(ctx context.Context, tx *sqlx.Tx, holdID, recipientWalletID uuid.UUID) (*hold.Hold, error)
	CancelTx(ctx context.Context, tx *sqlx.Tx, holdID uuid.UUID) (*hold.Hold, error)
}

// WalletDirectory resolves (and lazily opens) a user's wallet.
type WalletDirectory interface {
	EnsureWalletTx(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID, currency money.Currency) (*wallet.Wallet, error)
}

// PaidResult carries the plaintext codes; they are never readable again.
type PaidResult struct {
	Claim *Claim `json:"claim"`
	Codes Codes  `json:"codes"`
}

// Service is the claim state machine. Every transition locks the claim row,
// then the hold, then wallets, and commits claim, hold and ledger changes
// together. Notifications go out after commit.
type Service struct {
	db              *sqlx.DB
	repo            *Repository
	projects        ProjectDirectory
	holds           HoldManager
	wallets         WalletDirectory
	hasher          *password.Hasher
	limiter         *AttemptLimiter
	notifier        notification.Dispatcher
	defaultCurrency money.Currency
}

func NewService(
	db *sqlx.DB,
	repo *Repository,
	projects ProjectDirectory,
	holds HoldManager,
	wallets WalletDirectory,
	hasher *password.Hasher,
	limiter *AttemptLimiter,
	notifier notification.Dispatcher,
	defaultCurrency money.Currency,
) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{
		db:              db,
		repo:            repo,
		projects:        projects,
		holds:           holds,
		wallets:         wallets,
		hasher:          hasher,
		limiter:         limiter,
		notifier:        notifier,
		defaultCurrency: defaultCurrency,
	}
}

// CreateRequest is what a claimant submits. The sponsor is the one the
// project owner assigned; a SponsorID naming anyone else is rejected.
type CreateRequest struct {
	ProjectID uuid.UUID
	SponsorID uuid.UUID
	Amount    decimal.Decimal
	Currency  money.Currency
	Weight    decimal.Decimal
}

// Create opens a pending claim with the caller as claimant.
func (s *Service) Create(ctx context.Context, caller identity.Caller, req CreateRequest) (*Claim, error) {
	if caller.UserID == uuid.Nil {
		return nil, apperr.ErrForbidden
	}
	p, err := s.projects.Project(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	sponsor := p.Sponsor()
	if req.SponsorID != uuid.Nil && req.SponsorID != sponsor {
		return nil, ErrSponsorNotAssigned
	}
	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	c, err := NewClaim(NewClaimParams{
		ProjectID:  req.ProjectID,
		ClaimantID: caller.UserID,
		SponsorID:  sponsor,
		Amount:     req.Amount,
		Currency:   currency,
		Weight:     req.Weight,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, s.db, c); err != nil {
		return nil, err
	}

	log.Info().
		Str("claim_id", c.ID.String()).
		Str("project_id", c.ProjectID.String()).
		Str("amount", money.Format(c.Amount)).
		Msg("claim created")
	return c, nil
}

// Approve: pending -> approved. Project owner, the project's assigned
// sponsor or admin.
func (s *Service) Approve(ctx context.Context, caller identity.Caller, claimID uuid.UUID) (*Claim, error) {
	c, err := s.transition(ctx, claimID, ActionApprove, s.ownerOrSponsor(ctx, caller), nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, c.ClaimantID, notification.TypeClaimApproved, c)
	return c, nil
}

// MarkPaid: approved -> paid. Holds the claim amount on the sponsor's
// wallet and issues the one-time codes. A failed hold leaves the claim
// approved.
func (s *Service) MarkPaid(ctx context.Context, caller identity.Caller, claimID uuid.UUID) (*PaidResult, error) {
	codes, err := issueCodes(s.hasher)
	if err != nil {
		return nil, err
	}

	c, err := s.transition(ctx, claimID, ActionMarkPaid, sponsorOnly(caller), func(tx *sqlx.Tx, c *Claim) error {
		w, err := s.wallets.EnsureWalletTx(ctx, tx, c.SponsorID, c.Currency)
		if err != nil {
			return err
		}
		h, err := s.holds.CreateHoldTx(ctx, tx, w.ID, c.ID, c.Amount)
		if err != nil {
			return err
		}
		c.HoldID = &h.ID
		c.ConfirmationCodeHash = sql.NullString{String: codes.confirmation, Valid: true}
		c.DeliveryCodeHash = sql.NullString{String: codes.delivery, Valid: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, c.ClaimantID, notification.TypeClaimPaid, c)
	return &PaidResult{Claim: c, Codes: codes.plain}, nil
}

// MarkInProgress: paid -> in_progress, on the confirmation code.
func (s *Service) MarkInProgress(ctx context.Context, caller identity.Caller, claimID uuid.UUID, code string) (*Claim, error) {
	c, err := s.withCode(ctx, claimID, ActionStart, func() (*Claim, error) {
		return s.transition(ctx, claimID, ActionStart, claimantOnly(caller), func(_ *sqlx.Tx, c *Claim) error {
			if !password.Verify(code, c.ConfirmationCodeHash.String) {
				return ErrInvalidConfirmationCode
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, c.SponsorID, notification.TypeClaimInProgress, c)
	return c, nil
}

// MarkDelivered: in_progress -> delivered, on the delivery code. Captures
// the hold into the claimant's wallet.
func (s *Service) MarkDelivered(ctx context.Context, caller identity.Caller, claimID uuid.UUID, code string) (*Claim, error) {
	c, err := s.withCode(ctx, claimID, ActionDeliver, func() (*Claim, error) {
		return s.transition(ctx, claimID, ActionDeliver, claimantOnly(caller), func(tx *sqlx.Tx, c *Claim) error {
			if !password.Verify(code, c.DeliveryCodeHash.String) {
				return ErrInvalidConfirmationCode
			}
			if c.HoldID == nil {
				return ErrMissingHold
			}
			w, err := s.wallets.EnsureWalletTx(ctx, tx, c.ClaimantID, c.Currency)
			if err != nil {
				return err
			}
			_, err = s.holds.CaptureTx(ctx, tx, *c.HoldID, w.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, c.ClaimantID, notification.TypeClaimDelivered, c)
	s.notify(ctx, c.SponsorID, notification.TypeClaimDelivered, c)
	return c, nil
}

// Cancel: pending, approved or paid -> canceled. A pending hold is canceled
// in the same transaction.
func (s *Service) Cancel(ctx context.Context, caller identity.Caller, claimID uuid.UUID, reason string) (*Claim, error) {
	authorize := func(c *Claim) error {
		if caller.IsAdmin() || c.IsParticipant(caller.UserID) {
			return nil
		}
		return s.ownerOrSponsor(ctx, caller)(c)
	}

	c, err := s.transition(ctx, claimID, ActionCancel, authorize, func(tx *sqlx.Tx, c *Claim) error {
		if reason != "" {
			c.CanceledReason = sql.NullString{String: reason, Valid: true}
		}
		if c.HoldID == nil {
			return nil
		}
		_, err := s.holds.CancelTx(ctx, tx, *c.HoldID)
		return err
	})
	if err != nil {
		return nil, err
	}

	recipient := c.ClaimantID
	if caller.Is(c.ClaimantID) {
		recipient = c.SponsorID
	}
	s.notify(ctx, recipient, notification.TypeClaimCanceled, c)
	return c, nil
}

// transition runs one lifecycle step: lock, authorize, check the table,
// apply side effects, persist.
func (s *Service) transition(
	ctx context.Context,
	claimID uuid.UUID,
	action Action,
	authorize func(c *Claim) error,
	effect func(tx *sqlx.Tx, c *Claim) error,
) (*Claim, error) {
	var out *Claim
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		c, err := s.repo.Lock(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if err := authorize(c); err != nil {
			return err
		}
		from := c.Status
		to, err := Next(from, action)
		if err != nil {
			return err
		}
		if effect != nil {
			if err := effect(tx, c); err != nil {
				return err
			}
		}
		c.Status = to
		if err := s.repo.Transition(ctx, tx, c, from); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("claim_id", out.ID.String()).
		Str("action", string(action)).
		Str("status", string(out.Status)).
		Msg("claim transitioned")
	return out, nil
}

// withCode wraps a code-checked transition with the attempt limiter.
func (s *Service) withCode(ctx context.Context, claimID uuid.UUID, action Action, fn func() (*Claim, error)) (*Claim, error) {
	if err := s.limiter.Allow(ctx, claimID, action); err != nil {
		return nil, err
	}
	c, err := fn()
	switch {
	case errors.Is(err, ErrInvalidConfirmationCode):
		if ferr := s.limiter.Fail(ctx, claimID, action); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to record claim code attempt")
		}
		return nil, err
	case err != nil:
		return nil, err
	}
	if rerr := s.limiter.Reset(ctx, claimID, action); rerr != nil {
		log.Warn().Err(rerr).Msg("failed to reset claim code attempts")
	}
	return c, nil
}

// ownerOrSponsor re-reads the project so a sponsor unassigned after the
// claim was created loses approval rights.
func (s *Service) ownerOrSponsor(ctx context.Context, caller identity.Caller) func(c *Claim) error {
	return func(c *Claim) error {
		if caller.IsAdmin() {
			return nil
		}
		p, err := s.projects.Project(ctx, c.ProjectID)
		if err != nil {
			return err
		}
		if caller.Is(p.OwnerID) || (caller.Is(c.SponsorID) && caller.Is(p.Sponsor())) {
			return nil
		}
		return apperr.ErrForbidden
	}
}

func sponsorOnly(caller identity.Caller) func(c *Claim) error {
	return func(c *Claim) error {
		if caller.IsAdmin() || caller.Is(c.SponsorID) {
			return nil
		}
		return apperr.ErrForbidden
	}
}

func claimantOnly(caller identity.Caller) func(c *Claim) error {
	return func(c *Claim) error {
		if caller.Is(c.ClaimantID) {
			return nil
		}
		return apperr.ErrForbidden
	}
}

// Get returns the claim to its participants, the project owner and admins.
func (s *Service) Get(ctx context.Context, caller identity.Caller, claimID uuid.UUID) (*Claim, error) {
	c, err := s.repo.Get(ctx, s.db, claimID)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() || c.IsParticipant(caller.UserID) {
		return c, nil
	}
	if err := s.ownerOrSponsor(ctx, caller)(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListByProject shows the owner and admins every claim and everyone else
// only the claims they take part in.
func (s *Service) ListByProject(ctx context.Context, caller identity.Caller, projectID uuid.UUID, f ListFilter) ([]*Claim, error) {
	p, err := s.projects.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Is(p.OwnerID) {
		uid := caller.UserID
		f.Participant = &uid
	}
	return s.repo.ListByProject(ctx, s.db, projectID, f)
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, t notification.Type, c *Claim) {
	e := notification.NewEvent(userID, t, map[string]string{
		"claim_id":   c.ID.String(),
		"project_id": c.ProjectID.String(),
		"status":     string(c.Status),
		"amount":     money.Format(c.Amount),
	})
	if err := s.notifier.Dispatch(ctx, e); err != nil {
		log.Warn().Err(err).Str("claim_id", c.ID.String()).Msg("claim notification failed")
	}
}
