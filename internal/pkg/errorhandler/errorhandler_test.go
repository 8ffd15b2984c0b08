package errorhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargolink/escrow-api/internal/pkg/apperr"
	"github.com/cargolink/escrow-api/internal/pkg/response"
)

func TestStatusMapping(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindInsufficientFunds:       http.StatusUnprocessableEntity,
		apperr.KindInvalidTransition:       http.StatusConflict,
		apperr.KindInvalidHoldState:        http.StatusConflict,
		apperr.KindDuplicateReference:      http.StatusConflict,
		apperr.KindInvalidConfirmationCode: http.StatusUnprocessableEntity,
		apperr.KindNotFound:                http.StatusNotFound,
		apperr.KindConcurrencyConflict:     http.StatusConflict,
		apperr.KindForbidden:               http.StatusForbidden,
		apperr.KindInvalidInput:            http.StatusBadRequest,
		apperr.KindTooManyAttempts:         http.StatusTooManyRequests,
	}
	for kind, want := range cases {
		err := fmt.Errorf("wrapped: %w", apperr.New(kind, "x"))
		assert.Equal(t, want, Status(err), "kind %s", kind)
	}
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("db down")))
}

func TestHandleErrorWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(context.Background(), w, fmt.Errorf("create hold: %w", apperr.New(apperr.KindInsufficientFunds, "insufficient available balance")))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body response.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body.Error.Code)
	assert.Equal(t, "insufficient available balance", body.Error.Message)
}

func TestHandleErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(context.Background(), w, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
