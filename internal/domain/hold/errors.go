package hold

import "github.com/cargolink/escrow-api/internal/pkg/apperr"

var (
	ErrHoldNotFound      = apperr.New(apperr.KindNotFound, "payment hold not found")
	ErrInvalidHoldState  = apperr.New(apperr.KindInvalidHoldState, "payment hold is no longer pending")
	ErrPendingHoldExists = apperr.New(apperr.KindInvalidHoldState, "claim already has a pending hold")
	ErrInvalidStatus     = apperr.New(apperr.KindInvalidInput, "invalid hold status")
	ErrSameWallet        = apperr.New(apperr.KindInvalidInput, "cannot capture a hold into its own wallet")
	ErrMissingClaim      = apperr.New(apperr.KindInvalidInput, "claim id is required")
)
