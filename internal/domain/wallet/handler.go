package wallet

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cargolink/escrow-api/internal/pkg/errorhandler"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/response"
	"github.com/cargolink/escrow-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Me handles GET /wallets/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wal, err := h.svc.EnsureWallet(r.Context(), caller.UserID, "")
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), wal.ID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.OK(w, balance)
}

// Balance handles GET /wallets/{id}/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	caller, walletID, ok := callerAndID(w, r)
	if !ok {
		return
	}

	balance, err := h.svc.BalanceFor(r.Context(), caller, walletID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.OK(w, balance)
}

// Transactions handles GET /wallets/{id}/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	caller, walletID, ok := callerAndID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := ListFilter{}
	if raw := q.Get("type"); raw != "" {
		t, err := ParseTransactionType(raw)
		if err != nil {
			response.BadRequest(w, "invalid type")
			return
		}
		filter.Type = t
	}
	if raw := q.Get("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			response.BadRequest(w, "invalid status")
			return
		}
		filter.Status = st
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	filter.normalize()

	items, err := h.svc.ListTransactions(r.Context(), caller, walletID, filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.WithMeta(w, items, response.Meta{
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Count:   len(items),
		HasNext: len(items) == filter.Limit,
	})
}

// Reverse handles POST /transactions/{id}/reverse (admin)
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	caller, transactionID, ok := callerAndID(w, r)
	if !ok {
		return
	}

	var req reverseRequest
	if r.ContentLength != 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	reversal, err := h.svc.Reverse(r.Context(), caller, transactionID, req.Reason)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.CreatedOrReplayed(w, reversal.Replayed, reversal)
}

func callerAndID(w http.ResponseWriter, r *http.Request) (identity.Caller, uuid.UUID, bool) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return identity.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid id")
		return identity.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

// Routes mounts the wallet read endpoints under /wallets.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/me", h.Me)
	r.Get("/{id}/balance", h.Balance)
	r.Get("/{id}/transactions", h.Transactions)
	return r
}
