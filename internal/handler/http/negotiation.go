package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/MarketplaceGo/pkg/pagination"
	"github.com/utafrali/MarketplaceGo/pkg/validator"

	"github.com/utafrali/MarketplaceGo/internal/service"
)

// NegotiationHandler handles HTTP requests for negotiation endpoints.
type NegotiationHandler struct {
	service *service.NegotiationService
}

// NewNegotiationHandler creates a new negotiation HTTP handler.
func NewNegotiationHandler(svc *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{service: svc}
}

// --- Request DTOs ---

// CreateNegotiationRequest is the JSON request body for opening an offer.
type CreateNegotiationRequest struct {
	ServiceID  string  `json:"service_id" validate:"required,uuid"`
	OfferPrice float64 `json:"offer_price" validate:"required,gt=0"`
	Message    string  `json:"message" validate:"omitempty,max=1000"`
}

// ResolveNegotiationRequest is the JSON request body for resolving an offer.
type ResolveNegotiationRequest struct {
	Status string `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
}

// --- Handlers ---

// Create handles POST /api/v1/negotiations
func (h *NegotiationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req CreateNegotiationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.service.CreateNegotiation(r.Context(), actor, service.CreateNegotiationInput{
		ServiceID:  req.ServiceID,
		OfferPrice: req.OfferPrice,
		Message:    req.Message,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: created})
}

// Get handles GET /api/v1/negotiations/{id}
func (h *NegotiationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	negotiation, err := h.service.GetNegotiation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: negotiation})
}

// List handles GET /api/v1/negotiations
func (h *NegotiationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	input := service.ListNegotiationsInput{
		Pagination: pagination.FromRequest(r),
	}
	if v := r.URL.Query().Get("service_id"); v != "" {
		input.ServiceID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		input.Status = &v
	}

	result, err := h.service.ListNegotiations(r.Context(), actor, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// Resolve handles PUT /api/v1/negotiations/{id}/resolve
func (h *NegotiationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req ResolveNegotiationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	resolved, err := h.service.ResolveNegotiation(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: resolved})
}

// Cancel handles DELETE /api/v1/negotiations/{id}
func (h *NegotiationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.CancelNegotiation(r.Context(), actor, id); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": id, "status": "canceled"}})
}
