package claim

import (
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

var (
	ErrClaimNotFound           = apperr.New(apperr.KindNotFound, "claim not found")
	ErrProjectNotFound         = apperr.New(apperr.KindNotFound, "project not found")
	ErrInvalidTransition       = apperr.New(apperr.KindInvalidTransition, "claim cannot make this transition from its current status")
	ErrInvalidConfirmationCode = apperr.New(apperr.KindInvalidConfirmationCode, "confirmation code does not match")
	ErrTooManyAttempts         = apperr.New(apperr.KindTooManyAttempts, "too many wrong codes, try again later")
	ErrInvalidStatus           = apperr.New(apperr.KindInvalidInput, "invalid claim status")
	ErrInvalidAmount           = apperr.Wrap(apperr.KindInvalidInput, "invalid claim amount", money.ErrInvalidAmount)
	ErrInvalidCurrency         = apperr.Wrap(apperr.KindInvalidInput, "invalid claim currency", money.ErrInvalidCurrency)
	ErrInvalidWeight           = apperr.New(apperr.KindInvalidInput, "weight must be non-negative with at most 3 decimals")
	ErrMissingParty            = apperr.New(apperr.KindInvalidInput, "project, claimant and sponsor are required")
	ErrSelfSponsored           = apperr.New(apperr.KindInvalidInput, "claimant cannot sponsor their own claim")
	ErrSponsorNotAssigned      = apperr.New(apperr.KindForbidden, "sponsor is not assigned to this project")
	ErrMissingHold             = apperr.New(apperr.KindInvalidHoldState, "paid claim has no payment hold")
)
