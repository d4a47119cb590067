package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	rediscache "github.com/utafrali/MarketplaceGo/internal/repository/redis"
)

// --- Mock Service Repository ---

type mockServiceRepository struct {
	mock.Mock
}

func (m *mockServiceRepository) Create(ctx context.Context, s *domain.Service) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *mockServiceRepository) List(ctx context.Context, filter repository.ServiceFilter) ([]domain.Service, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Service), args.Int(1), args.Error(2)
}

func (m *mockServiceRepository) Update(ctx context.Context, s *domain.Service) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockServiceRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Category Repository ---

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestCatalogService(serviceRepo *mockServiceRepository, categoryRepo *mockCategoryRepository) *CatalogService {
	return NewCatalogService(serviceRepo, categoryRepo, rediscache.NoopServiceCache{}, newTestEventProducer(), newTestLogger())
}

// --- Create Service Tests ---

func TestCreateService_Success(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	serviceRepo.On("Create", ctx, mock.AnythingOfType("*domain.Service")).Return(nil)

	created, err := svc.CreateService(ctx, vendorActor("vendor-1"), CreateServiceInput{
		Title:       "Deep house cleaning",
		Description: "Full apartment cleaning",
		Price:       180,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "vendor-1", created.VendorID)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.AvgRating)
	assert.Zero(t, created.RatingCount)
	serviceRepo.AssertExpectations(t)
}

func TestCreateService_CustomerForbidden(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)

	created, err := svc.CreateService(context.Background(), customerActor("user-1"), CreateServiceInput{
		Title: "Deep house cleaning",
		Price: 180,
	})

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	serviceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateService_InvalidPrice(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)

	_, err := svc.CreateService(context.Background(), vendorActor("vendor-1"), CreateServiceInput{
		Title: "Deep house cleaning",
		Price: -10,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateService_UnknownCategory(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	categoryRepo.On("GetByID", ctx, "cat-404").Return(nil, apperrors.ErrNotFound)

	_, err := svc.CreateService(ctx, vendorActor("vendor-1"), CreateServiceInput{
		CategoryID: strPtr("cat-404"),
		Title:      "Deep house cleaning",
		Price:      180,
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Get / List Service Tests ---

func TestGetService_NotFound(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	serviceRepo.On("GetByID", ctx, "svc-404").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetService(ctx, "svc-404")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListServices_AppliesFilter(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	services := []domain.Service{{ID: "svc-1"}, {ID: "svc-2"}}
	serviceRepo.On("List", ctx, mock.MatchedBy(func(f repository.ServiceFilter) bool {
		return f.MinRating != nil && *f.MinRating == 4.0
	})).Return(services, 2, nil)

	result, err := svc.ListServices(ctx, ListServicesInput{
		MinRating:  f64Ptr(4.0),
		Pagination: defaultTestPagination(),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, result.Data, 2)
}

// --- Update / Delete Service Tests ---

func TestUpdateService_OwnerOnly(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	stored := &domain.Service{ID: "svc-1", VendorID: "vendor-1", Title: "Old title", Price: 100}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(stored, nil)

	updated, err := svc.UpdateService(ctx, vendorActor("vendor-2"), "svc-1", UpdateServiceInput{
		Title: strPtr("New title"),
	})

	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	serviceRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateService_Success(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	stored := &domain.Service{ID: "svc-1", VendorID: "vendor-1", Title: "Old title", Price: 100, IsActive: true}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(stored, nil)
	serviceRepo.On("Update", ctx, mock.AnythingOfType("*domain.Service")).Return(nil)

	updated, err := svc.UpdateService(ctx, vendorActor("vendor-1"), "svc-1", UpdateServiceInput{
		Title:    strPtr("New title"),
		Price:    f64Ptr(150),
		IsActive: boolPtr(false),
	})

	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, 150.0, updated.Price)
	assert.False(t, updated.IsActive)
}

func TestUpdateService_AdminBypassesOwnership(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	stored := &domain.Service{ID: "svc-1", VendorID: "vendor-1", Title: "Old title", Price: 100}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(stored, nil)
	serviceRepo.On("Update", ctx, mock.AnythingOfType("*domain.Service")).Return(nil)

	updated, err := svc.UpdateService(ctx, adminActor("admin-1"), "svc-1", UpdateServiceInput{
		IsActive: boolPtr(false),
	})

	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}

func TestDeleteService_OwnerOnly(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	stored := &domain.Service{ID: "svc-1", VendorID: "vendor-1"}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(stored, nil)

	err := svc.DeleteService(ctx, customerActor("user-1"), "svc-1")

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	serviceRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteService_Success(t *testing.T) {
	serviceRepo := new(mockServiceRepository)
	categoryRepo := new(mockCategoryRepository)
	svc := newTestCatalogService(serviceRepo, categoryRepo)
	ctx := context.Background()

	stored := &domain.Service{ID: "svc-1", VendorID: "vendor-1"}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(stored, nil)
	serviceRepo.On("Delete", ctx, "svc-1").Return(nil)

	err := svc.DeleteService(ctx, vendorActor("vendor-1"), "svc-1")

	require.NoError(t, err)
	serviceRepo.AssertExpectations(t)
}
