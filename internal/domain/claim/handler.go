package claim

import (
	"context"
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

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /claims
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreateClaimRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	in, err := req.toRequest()
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	c, err := h.svc.Create(r.Context(), caller, in)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.Created(w, c)
}

// Get handles GET /claims/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, c)
}

// List handles GET /claims?project_id=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	q := r.URL.Query()
	projectID, err := uuid.Parse(q.Get("project_id"))
	if err != nil {
		response.BadRequest(w, "project_id is required")
		return
	}

	filter := ListFilter{}
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = ParseStatus(raw); err != nil {
			response.BadRequest(w, "invalid status")
			return
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	filter.normalize()

	claims, err := h.svc.ListByProject(r.Context(), caller, projectID, filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.WithMeta(w, claims, response.Meta{
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Count:   len(claims),
		HasNext: len(claims) == filter.Limit,
	})
}

// Approve handles POST /claims/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Approve(r.Context(), caller, id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, c)
}

// Pay handles POST /claims/{id}/pay. The codes in the response are shown once.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.MarkPaid(r.Context(), caller, id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	response.OK(w, res)
}

// Start handles POST /claims/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, h.svc.MarkInProgress)
}

// Deliver handles POST /claims/{id}/deliver
func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, h.svc.MarkDelivered)
}

type codeTransition func(ctx context.Context, caller identity.Caller, id uuid.UUID, code string) (*Claim, error)

func (h *Handler) withCode(w http.ResponseWriter, r *http.Request, fn codeTransition) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	var req CodeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	c, err := fn(r.Context(), caller, id, req.Code)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, c)
}

// Cancel handles POST /claims/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
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

	c, err := h.svc.Cancel(r.Context(), caller, id, req.Reason)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, c)
}

func callerAndID(w http.ResponseWriter, r *http.Request) (identity.Caller, uuid.UUID, bool) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return identity.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid claim id")
		return identity.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/pay", h.Pay)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/deliver", h.Deliver)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}
