package wallet

import (
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

var (
	ErrWalletNotFound      = apperr.New(apperr.KindNotFound, "wallet not found")
	ErrTransactionNotFound = apperr.New(apperr.KindNotFound, "transaction not found")
	ErrInsufficientFunds   = apperr.New(apperr.KindInsufficientFunds, "insufficient available balance")
	ErrDuplicateReference  = apperr.New(apperr.KindDuplicateReference, "reference already used with different parameters")
	ErrInvalidAmount       = apperr.Wrap(apperr.KindInvalidInput, "amount must be positive with at most 2 fractional digits", money.ErrInvalidAmount)
	ErrInvalidType         = apperr.New(apperr.KindInvalidInput, "invalid transaction type")
	ErrInvalidStatus       = apperr.New(apperr.KindInvalidInput, "invalid transaction status")
	ErrInvalidReference    = apperr.New(apperr.KindInvalidInput, "reference is required (max 255 chars)")
	ErrCurrencyMismatch    = apperr.New(apperr.KindInvalidInput, "currency does not match wallet")
	ErrInvalidTransition   = apperr.New(apperr.KindInvalidTransition, "transaction status transition not allowed")
	ErrNotReversible       = apperr.New(apperr.KindNotReversible, "transaction type cannot be reversed")
)
