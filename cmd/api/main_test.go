package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargolink/escrow-api/internal/config"
	"github.com/cargolink/escrow-api/internal/domain/banktx"
	"github.com/cargolink/escrow-api/internal/domain/claim"
	"github.com/cargolink/escrow-api/internal/domain/hold"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/middleware"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/jwt"
)

func testRouter(t *testing.T) (http.Handler, *jwt.Service) {
	t.Helper()
	jwtService := jwt.NewService("test-secret", time.Minute)
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}, RequestTimeout: time.Second}
	r := newRouter(cfg, middleware.Auth(jwtService), handlers{
		wallets:  wallet.NewHandler(nil),
		holds:    hold.NewHandler(nil),
		claims:   claim.NewHandler(nil),
		bank:     banktx.NewHandler(nil),
		webhooks: banktx.NewWebhookHandler(nil, "whsec"),
	})
	return r, jwtService
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMoneyRoutesRequireToken(t *testing.T) {
	r, _ := testRouter(t)
	id := uuid.NewString()

	for _, path := range []string{
		"/api/v1/wallets/me",
		"/api/v1/holds/" + id,
		"/api/v1/claims/" + id,
		"/api/v1/bank/transactions/" + id,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestReverseIsAdminOnly(t *testing.T) {
	r, jwtService := testRouter(t)
	token, err := jwtService.GenerateAccessToken(uuid.New(), identity.RoleShipper)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+uuid.NewString()+"/reverse", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBankWebhooksSkipJWT(t *testing.T) {
	r, _ := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank/incoming", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid signature")
}
