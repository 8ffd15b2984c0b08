package banktx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/pkg/errorhandler"
	"github.com/cargolink/escrow-api/internal/pkg/gateway"
	"github.com/cargolink/escrow-api/internal/pkg/money"
	"github.com/cargolink/escrow-api/internal/pkg/response"
	"github.com/cargolink/escrow-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway callbacks. Requests are authenticated by
// an HMAC-SHA256 signature over the raw body, not by JWT. Unknown JSON
// fields are ignored.
type WebhookHandler struct {
	svc    *Service
	secret string
}

func NewWebhookHandler(svc *Service, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret}
}

// readSigned returns the raw body when the signature matches.
func (h *WebhookHandler) readSigned(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "failed to read body")
		return nil, false
	}
	if h.secret == "" || !gateway.VerifySignature(body, r.Header.Get(gateway.SignatureHeader), h.secret) {
		log.Warn().Str("path", r.URL.Path).Msg("bank webhook signature rejected")
		response.Unauthorized(w, "invalid signature")
		return nil, false
	}
	return body, true
}

// Incoming handles POST /webhooks/bank/incoming
func (h *WebhookHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}

	var req IncomingWebhook
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, ErrInvalidAmount)
		return
	}
	var currency money.Currency
	if req.Currency != "" {
		if currency, err = money.ParseCurrency(req.Currency); err != nil {
			errorhandler.HandleError(r.Context(), w, ErrInvalidCurrency)
			return
		}
	}
	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.BadRequest(w, "invalid wallet_id")
		return
	}

	b, err := h.svc.RecordIncoming(r.Context(), IncomingParams{
		GatewayRef: req.GatewayRef,
		WalletID:   walletID,
		Amount:     amount,
		Currency:   currency,
	})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.CreatedOrReplayed(w, b.Replayed, b)
}

// Payout handles POST /webhooks/bank/payouts
func (h *WebhookHandler) Payout(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}

	var req PayoutWebhook
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, err := h.svc.ApplyPayoutByRef(r.Context(), &gateway.PayoutResult{
		Reference: req.Reference,
		Status:    gateway.MapStatus(req.Status),
		Reason:    req.Reason,
	})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, b)
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/incoming", h.Incoming)
	r.Post("/payouts", h.Payout)
	return r
}
