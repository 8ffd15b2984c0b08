// Package errorhandler turns domain errors into HTTP responses.
package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/logger"
	"github.com/cargolink/escrow-api/internal/pkg/response"
)

type mapping struct {
	status int
	code   string
}

var kinds = map[apperr.Kind]mapping{
	apperr.KindInsufficientFunds:       {http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	apperr.KindInvalidTransition:       {http.StatusConflict, "INVALID_TRANSITION"},
	apperr.KindInvalidHoldState:        {http.StatusConflict, "INVALID_HOLD_STATE"},
	apperr.KindDuplicateReference:      {http.StatusConflict, "DUPLICATE_REFERENCE"},
	apperr.KindInvalidConfirmationCode: {http.StatusUnprocessableEntity, "INVALID_CONFIRMATION_CODE"},
	apperr.KindNotFound:                {http.StatusNotFound, "NOT_FOUND"},
	apperr.KindConcurrencyConflict:     {http.StatusConflict, "CONCURRENCY_CONFLICT"},
	apperr.KindForbidden:               {http.StatusForbidden, "FORBIDDEN"},
	apperr.KindInvalidInput:            {http.StatusBadRequest, "INVALID_INPUT"},
	apperr.KindTooManyAttempts:         {http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
	apperr.KindNotReversible:           {http.StatusConflict, "NOT_REVERSIBLE"},
}

// Status returns the HTTP status for err.
func Status(err error) int {
	if m, ok := kinds[apperr.KindOf(err)]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// HandleError logs err and writes the matching error envelope. Domain errors
// expose their message; anything else becomes a generic 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	l := logger.FromContext(ctx)

	if errors.Is(err, context.DeadlineExceeded) {
		l.Warn().Err(err).Msg("Request deadline exceeded")
		response.Error(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
		return
	}

	m, ok := kinds[apperr.KindOf(err)]
	if !ok {
		l.Error().Err(err).Msg("Request error")
		response.InternalError(w)
		return
	}

	l.Warn().Err(err).Str("error_code", m.code).Int("status_code", m.status).Msg("Request rejected")
	response.Error(w, m.status, m.code, message(err))
}

func message(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
