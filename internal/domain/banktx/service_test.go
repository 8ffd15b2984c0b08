package banktx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargolink/escrow-api/internal/pkg/gateway"
	"github.com/cargolink/escrow-api/internal/pkg/retry"
)

var bankCols = []string{"id", "wallet_id", "gateway_ref", "direction", "amount", "currency", "status", "transaction_id",
	"destination", "failure_reason", "attempts", "created_at", "updated_at"}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	svc := NewService(sqlx.NewDb(raw, "postgres"), NewRepository(), nil, nil, retry.New("test", retry.Config{}), nil)
	return svc, mock
}

func bankRow(id uuid.UUID, direction Direction, status Status) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bankCols).AddRow(id.String(), uuid.New().String(), "ref-1", string(direction), "100.00", "KZT",
		string(status), uuid.New().String(), "KZ000", nil, 1, now, now)
}

func TestRecordOutgoingValidatesBeforeTouchingStore(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	_, err := svc.RecordOutgoing(ctx, OutgoingParams{GatewayRef: " ", WalletID: uuid.New(), Amount: decimal.NewFromInt(1), Destination: "x"})
	assert.ErrorIs(t, err, ErrInvalidGatewayRef)

	_, err = svc.RecordOutgoing(ctx, OutgoingParams{GatewayRef: "r", WalletID: uuid.New(), Amount: decimal.RequireFromString("0.001"), Destination: "x"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordOutgoing(ctx, OutgoingParams{GatewayRef: "r", WalletID: uuid.New(), Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrMissingDestination)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPendingResultChangesNothing(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_transactions WHERE id = $1 FOR UPDATE")).
		WillReturnRows(bankRow(id, DirectionOutgoing, StatusPending))
	mock.ExpectCommit()

	b, err := svc.ApplyPayoutResult(context.Background(), id, &gateway.PayoutResult{Status: gateway.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyToIncomingRejected(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(bankRow(id, DirectionIncoming, StatusCompleted))
	mock.ExpectRollback()

	_, err := svc.ApplyPayoutResult(context.Background(), id, &gateway.PayoutResult{Status: gateway.StatusConfirmed})
	assert.ErrorIs(t, err, ErrNotOutgoing)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewWebhookHandler(nil, "whsec")
	body := `{"gateway_ref":"dep-1","wallet_id":"` + uuid.NewString() + `","amount":"10.00"}`

	cases := map[string]string{
		"missing": "",
		"garbage": "not-hex",
		"wrong":   gateway.Sign([]byte(body), "other-secret"),
	}
	for name, sig := range cases {
		req := httptest.NewRequest(http.MethodPost, "/incoming", strings.NewReader(body))
		if sig != "" {
			req.Header.Set(gateway.SignatureHeader, sig)
		}
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestWebhookWithoutSecretRejectsEverything(t *testing.T) {
	h := NewWebhookHandler(nil, "")
	body := `{"reference":"wd-1","status":"confirmed"}`
	req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(body))
	req.Header.Set(gateway.SignatureHeader, gateway.Sign([]byte(body), "anything"))
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookValidatesSignedBody(t *testing.T) {
	h := NewWebhookHandler(nil, "whsec")
	body := `{"gateway_ref":"dep-1","wallet_id":"not-a-uuid","amount":"-3"}`
	req := httptest.NewRequest(http.MethodPost, "/incoming", strings.NewReader(body))
	req.Header.Set(gateway.SignatureHeader, gateway.Sign([]byte(body), "whsec"))
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestWebhookRejectsMalformedFieldsWithoutPanicking(t *testing.T) {
	h := NewWebhookHandler(nil, "whsec")
	cases := map[string]string{
		"currency":  `{"gateway_ref":"dep-1","wallet_id":"` + uuid.NewString() + `","amount":"10.00","currency":"GBP"}`,
		"wallet_id": `{"gateway_ref":"dep-1","wallet_id":"{` + uuid.NewString() + `}","amount":"10.00"}`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/incoming", strings.NewReader(body))
		req.Header.Set(gateway.SignatureHeader, gateway.Sign([]byte(body), "whsec"))
		rec := httptest.NewRecorder()

		assert.NotPanics(t, func() { h.Routes().ServeHTTP(rec, req) }, name)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}
