package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"
	"github.com/utafrali/MarketplaceGo/pkg/middleware"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	rediscache "github.com/utafrali/MarketplaceGo/internal/repository/redis"
	"github.com/utafrali/MarketplaceGo/internal/service"
)

// ============================================================================
// Mock Review Repository
// ============================================================================

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, rv *domain.Review) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, rv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByServiceID(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, serviceID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) Update(ctx context.Context, rv *domain.Review, ratingChanged bool) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, rv, ratingChanged)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

func (m *mockReviewRepo) Delete(ctx context.Context, id, serviceID string) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, id, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

func (m *mockReviewRepo) GetSummary(ctx context.Context, serviceID string) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

// ============================================================================
// Test Helpers
// ============================================================================

const testReviewID = "550e8400-e29b-41d4-a716-446655440005"

func reviewTestHandler(
	reviewRepo *mockReviewRepo,
	serviceRepo *mockServiceRepo,
	negotiationRepo *mockNegotiationRepo,
) *ReviewHandler {
	svc := service.NewReviewService(
		reviewRepo,
		serviceRepo,
		negotiationRepo,
		rediscache.NoopServiceCache{},
		handlerTestEventProducer(),
		handlerTestLogger(),
	)
	return NewReviewHandler(svc)
}

func setupReviewRouter(handler *ReviewHandler, userID, role string) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/services/{id}/reviews", func(r chi.Router) {
		r.Get("/", handler.ListByService)
		r.Get("/summary", handler.Summary)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(fakeTokenValidator(userID, role)))
			r.Post("/", handler.Create)
		})
	})
	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(middleware.Auth(fakeTokenValidator(userID, role)))
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
	})
	return r
}

func sampleReview() *domain.Review {
	now := time.Now().UTC()
	return &domain.Review{
		ID:         testReviewID,
		ServiceID:  testServiceID,
		CustomerID: testCustomerID,
		Rating:     4,
		Comment:    "Good work",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ============================================================================
// Create Tests
// ============================================================================

func TestCreateReviewEndpoint_Success(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	serviceRepo := new(mockServiceRepo)
	negotiationRepo := new(mockNegotiationRepo)
	handler := reviewTestHandler(reviewRepo, serviceRepo, negotiationRepo)
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	serviceRepo.On("GetByID", mock.Anything, testServiceID).Return(sampleListing(), nil)
	negotiationRepo.On("HasAccepted", mock.Anything, testCustomerID, testServiceID).Return(true, nil)
	reviewRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).
		Return(&domain.ReviewSummary{AvgRating: 4.0, TotalReviews: 1}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/services/"+testServiceID+"/reviews", map[string]any{
		"rating":  4,
		"comment": "Good work",
	})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	reviewRepo.AssertExpectations(t)
}

func TestCreateReviewEndpoint_Ineligible(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	serviceRepo := new(mockServiceRepo)
	negotiationRepo := new(mockNegotiationRepo)
	handler := reviewTestHandler(reviewRepo, serviceRepo, negotiationRepo)
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	serviceRepo.On("GetByID", mock.Anything, testServiceID).Return(sampleListing(), nil)
	negotiationRepo.On("HasAccepted", mock.Anything, testCustomerID, testServiceID).Return(false, nil)

	req := authedRequest(http.MethodPost, "/api/v1/services/"+testServiceID+"/reviews", map[string]any{
		"rating": 5,
	})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INELIGIBLE", resp.Error.Code)
}

func TestCreateReviewEndpoint_RatingValidation(t *testing.T) {
	handler := reviewTestHandler(new(mockReviewRepo), new(mockServiceRepo), new(mockNegotiationRepo))
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	req := authedRequest(http.MethodPost, "/api/v1/services/"+testServiceID+"/reviews", map[string]any{
		"rating": 6,
	})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateReviewEndpoint_Duplicate(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	serviceRepo := new(mockServiceRepo)
	negotiationRepo := new(mockNegotiationRepo)
	handler := reviewTestHandler(reviewRepo, serviceRepo, negotiationRepo)
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	serviceRepo.On("GetByID", mock.Anything, testServiceID).Return(sampleListing(), nil)
	negotiationRepo.On("HasAccepted", mock.Anything, testCustomerID, testServiceID).Return(true, nil)
	reviewRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).
		Return(nil, apperrors.Duplicate("DUPLICATE_REVIEW", "you have already reviewed this service"))

	req := authedRequest(http.MethodPost, "/api/v1/services/"+testServiceID+"/reviews", map[string]any{
		"rating": 4,
	})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "DUPLICATE_REVIEW", resp.Error.Code)
}

// ============================================================================
// Update / Delete Tests
// ============================================================================

func TestUpdateReviewEndpoint_NotTheAuthor(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	handler := reviewTestHandler(reviewRepo, new(mockServiceRepo), new(mockNegotiationRepo))
	router := setupReviewRouter(handler, "550e8400-e29b-41d4-a716-446655440099", domain.RoleCustomer)

	reviewRepo.On("GetByID", mock.Anything, testReviewID).Return(sampleReview(), nil)

	req := authedRequest(http.MethodPut, "/api/v1/reviews/"+testReviewID, map[string]any{
		"rating": 1,
	})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteReviewEndpoint_Success(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	handler := reviewTestHandler(reviewRepo, new(mockServiceRepo), new(mockNegotiationRepo))
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	reviewRepo.On("GetByID", mock.Anything, testReviewID).Return(sampleReview(), nil)
	reviewRepo.On("Delete", mock.Anything, testReviewID, testServiceID).
		Return(&domain.ReviewSummary{AvgRating: 0, TotalReviews: 0}, nil)

	req := authedRequest(http.MethodDelete, "/api/v1/reviews/"+testReviewID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	reviewRepo.AssertExpectations(t)
}

// ============================================================================
// Summary Tests
// ============================================================================

func TestReviewSummaryEndpoint_NoReviews(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	serviceRepo := new(mockServiceRepo)
	handler := reviewTestHandler(reviewRepo, serviceRepo, new(mockNegotiationRepo))
	router := setupReviewRouter(handler, testCustomerID, domain.RoleCustomer)

	serviceRepo.On("GetByID", mock.Anything, testServiceID).Return(sampleListing(), nil)
	reviewRepo.On("GetSummary", mock.Anything, testServiceID).
		Return(&domain.ReviewSummary{AvgRating: 0, TotalReviews: 0}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services/"+testServiceID+"/reviews/summary", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
}
