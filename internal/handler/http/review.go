package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/MarketplaceGo/pkg/pagination"
	"github.com/utafrali/MarketplaceGo/pkg/validator"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/service"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: svc}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for submitting a review.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=500"`
}

// UpdateReviewRequest is the JSON request body for editing a review.
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

// CreatedReviewResponse carries the created review together with the
// recomputed rating aggregate of its service.
type CreatedReviewResponse struct {
	Review  *domain.Review        `json:"review"`
	Summary *domain.ReviewSummary `json:"summary"`
}

// --- Handlers ---

// Create handles POST /api/v1/services/{id}/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req CreateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	review, summary, err := h.service.CreateReview(r.Context(), actor, service.CreateReviewInput{
		ServiceID: chi.URLParam(r, "id"),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: CreatedReviewResponse{Review: review, Summary: summary}})
}

// ListByService handles GET /api/v1/services/{id}/reviews
func (h *ReviewHandler) ListByService(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListReviews(r.Context(), chi.URLParam(r, "id"), pagination.FromRequest(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// Summary handles GET /api/v1/services/{id}/reviews/summary
func (h *ReviewHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetServiceSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: summary})
}

// Get handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: review})
}

// Update handles PUT /api/v1/reviews/{id}
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req UpdateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	review, err := h.service.UpdateReview(r.Context(), actor, chi.URLParam(r, "id"), service.UpdateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: review})
}

// Delete handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteReview(r.Context(), actor, id); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": id, "status": "deleted"}})
}
