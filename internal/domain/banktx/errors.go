package banktx

import (
	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

var (
	ErrBankTransactionNotFound = apperr.New(apperr.KindNotFound, "bank transaction not found")
	ErrDuplicateReference      = apperr.New(apperr.KindDuplicateReference, "gateway reference already used with different parameters")
	ErrInvalidGatewayRef       = apperr.New(apperr.KindInvalidInput, "gateway reference is required")
	ErrInvalidAmount           = apperr.Wrap(apperr.KindInvalidInput, "invalid bank amount", money.ErrInvalidAmount)
	ErrInvalidCurrency         = apperr.Wrap(apperr.KindInvalidInput, "invalid bank currency", money.ErrInvalidCurrency)
	ErrMissingDestination      = apperr.New(apperr.KindInvalidInput, "withdrawal destination is required")
	ErrNotOutgoing             = apperr.New(apperr.KindInvalidInput, "bank transaction is not a withdrawal")
)
