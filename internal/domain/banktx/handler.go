package banktx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cargolink/escrow-api/internal/pkg/errorhandler"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/money"
	"github.com/cargolink/escrow-api/internal/pkg/response"
	"github.com/cargolink/escrow-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Withdraw handles POST /bank/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req WithdrawRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
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

	b, err := h.svc.Withdraw(r.Context(), caller, OutgoingParams{
		GatewayRef:  req.Reference,
		WalletID:    uuid.MustParse(req.WalletID),
		Amount:      amount,
		Destination: req.Destination,
	})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	switch {
	case b.Replayed:
		response.Replayed(w, b)
	case b.Status == StatusPending:
		response.JSON(w, http.StatusAccepted, b)
	default:
		response.Created(w, b)
	}
}

// Get handles GET /bank/transactions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid bank transaction id")
		return
	}

	b, err := h.svc.GetFor(r.Context(), caller, id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, b)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/withdrawals", h.Withdraw)
	r.Get("/transactions/{id}", h.Get)
	return r
}
