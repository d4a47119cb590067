package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/MarketplaceGo/pkg/pagination"
	"github.com/utafrali/MarketplaceGo/pkg/validator"

	"github.com/utafrali/MarketplaceGo/internal/service"
)

// CatalogHandler handles HTTP requests for service listing endpoints.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// --- Request DTOs ---

// CreateServiceRequest is the JSON request body for creating a listing.
type CreateServiceRequest struct {
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description string  `json:"description" validate:"omitempty,max=5000"`
	Price       float64 `json:"price" validate:"required,gt=0"`
}

// UpdateServiceRequest is the JSON request body for updating a listing.
type UpdateServiceRequest struct {
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	IsActive    *bool    `json:"is_active"`
}

// --- Handlers ---

// Create handles POST /api/v1/services
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req CreateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.service.CreateService(r.Context(), actor, service.CreateServiceInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: created})
}

// Get handles GET /api/v1/services/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: svc})
}

// List handles GET /api/v1/services
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListServicesInput{
		Pagination: pagination.FromRequest(r),
	}

	q := r.URL.Query()
	if v := q.Get("vendor_id"); v != "" {
		input.VendorID = &v
	}
	if v := q.Get("category_id"); v != "" {
		input.CategoryID = &v
	}
	if v := q.Get("search"); v != "" {
		input.Search = &v
	}
	if v := q.Get("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			input.MinPrice = &f
		}
	}
	if v := q.Get("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			input.MaxPrice = &f
		}
	}
	if v := q.Get("min_rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			input.MinRating = &f
		}
	}

	result, err := h.service.ListServices(r.Context(), input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// Update handles PUT /api/v1/services/{id}
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req UpdateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.service.UpdateService(r.Context(), actor, chi.URLParam(r, "id"), service.UpdateServiceInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: updated})
}

// Delete handles DELETE /api/v1/services/{id}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteService(r.Context(), actor, id); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": id, "status": "deleted"}})
}
