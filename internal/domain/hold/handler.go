package hold

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cargolink/escrow-api/internal/pkg/errorhandler"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /holds/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid hold id")
		return
	}

	hold, err := h.svc.GetFor(r.Context(), caller, id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, hold)
}

// List handles GET /holds?wallet_id=...&status=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	walletID, err := uuid.Parse(r.URL.Query().Get("wallet_id"))
	if err != nil {
		response.BadRequest(w, "wallet_id is required")
		return
	}
	var status Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = ParseStatus(raw); err != nil {
			response.BadRequest(w, "invalid status")
			return
		}
	}

	holds, err := h.svc.ListByWallet(r.Context(), caller, walletID, status)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, holds)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}
