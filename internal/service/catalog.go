package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/event"
	"github.com/utafrali/MarketplaceGo/internal/policy"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	rediscache "github.com/utafrali/MarketplaceGo/internal/repository/redis"
	"github.com/utafrali/MarketplaceGo/pkg/pagination"
)

// CatalogService implements the business logic for service listings.
type CatalogService struct {
	serviceRepo  repository.ServiceRepository
	categoryRepo repository.CategoryRepository
	cache        rediscache.ServiceCache
	producer     *event.Producer
	logger       *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	serviceRepo repository.ServiceRepository,
	categoryRepo repository.CategoryRepository,
	cache rediscache.ServiceCache,
	producer *event.Producer,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		serviceRepo:  serviceRepo,
		categoryRepo: categoryRepo,
		cache:        cache,
		producer:     producer,
		logger:       logger,
	}
}

// CreateServiceInput holds the parameters for creating a service listing.
type CreateServiceInput struct {
	CategoryID  *string
	Title       string
	Description string
	Price       float64
}

// UpdateServiceInput holds the parameters for updating a service listing.
type UpdateServiceInput struct {
	CategoryID  *string
	Title       *string
	Description *string
	Price       *float64
	IsActive    *bool
}

// ListServicesInput holds the filter parameters for listing services.
type ListServicesInput struct {
	VendorID   *string
	CategoryID *string
	Search     *string
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	Pagination pagination.Params
}

// CreateService creates a new listing owned by the acting vendor.
func (s *CatalogService) CreateService(ctx context.Context, actor policy.Actor, input CreateServiceInput) (*domain.Service, error) {
	if err := policy.RequireRole(actor, domain.RoleVendor); err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.Price <= 0 {
		return nil, apperrors.InvalidInput("price must be a positive number")
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("category", *input.CategoryID)
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
	}

	now := time.Now().UTC()
	svc := &domain.Service{
		ID:          uuid.New().String(),
		VendorID:    actor.ID,
		CategoryID:  input.CategoryID,
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		AvgRating:   0,
		RatingCount: 0,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.serviceRepo.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	// Publish creation event (non-blocking on failure).
	if err := s.producer.PublishServiceCreated(ctx, svc); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish service.created event",
			slog.String("service_id", svc.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "service created",
		slog.String("service_id", svc.ID),
		slog.String("vendor_id", actor.ID),
	)

	return svc, nil
}

// GetService retrieves a listing by ID, consulting the cache first.
func (s *CatalogService) GetService(ctx context.Context, id string) (*domain.Service, error) {
	if cached, err := s.cache.Get(ctx, id); err == nil {
		return cached, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		// Cache trouble must not take down reads.
		s.logger.WarnContext(ctx, "service cache read failed",
			slog.String("service_id", id),
			slog.String("error", err.Error()),
		)
	}

	svc, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("service", id)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	if err := s.cache.Set(ctx, svc); err != nil {
		s.logger.WarnContext(ctx, "service cache write failed",
			slog.String("service_id", id),
			slog.String("error", err.Error()),
		)
	}

	return svc, nil
}

// ListServices returns a paginated listing page matching the filter.
func (s *CatalogService) ListServices(ctx context.Context, input ListServicesInput) (*pagination.Result[domain.Service], error) {
	filter := repository.ServiceFilter{
		VendorID:   input.VendorID,
		CategoryID: input.CategoryID,
		Search:     input.Search,
		MinPrice:   input.MinPrice,
		MaxPrice:   input.MaxPrice,
		MinRating:  input.MinRating,
		Page:       input.Pagination.Page,
		PerPage:    input.Pagination.PerPage,
	}

	services, total, err := s.serviceRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	result := pagination.NewResult(services, total, input.Pagination)
	return &result, nil
}

// UpdateService modifies a listing owned by the actor (or any listing for admins).
func (s *CatalogService) UpdateService(ctx context.Context, actor policy.Actor, id string, input UpdateServiceInput) (*domain.Service, error) {
	svc, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("service", id)
		}
		return nil, fmt.Errorf("get service for update: %w", err)
	}

	if err := policy.RequireOwner(actor, svc.VendorID, "service"); err != nil {
		return nil, err
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("category", *input.CategoryID)
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
		svc.CategoryID = input.CategoryID
	}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		svc.Title = *input.Title
	}
	if input.Description != nil {
		svc.Description = *input.Description
	}
	if input.Price != nil {
		if *input.Price <= 0 {
			return nil, apperrors.InvalidInput("price must be a positive number")
		}
		svc.Price = *input.Price
	}
	if input.IsActive != nil {
		svc.IsActive = *input.IsActive
	}

	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "service cache invalidation failed",
			slog.String("service_id", id),
			slog.String("error", err.Error()),
		)
	}

	// Publish update event (non-blocking on failure).
	if err := s.producer.PublishServiceUpdated(ctx, svc); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish service.updated event",
			slog.String("service_id", svc.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "service updated",
		slog.String("service_id", id),
	)

	return svc, nil
}

// DeleteService removes a listing owned by the actor (or any listing for
// admins). In-flight PENDING negotiations and the review set go with it.
func (s *CatalogService) DeleteService(ctx context.Context, actor policy.Actor, id string) error {
	svc, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("service", id)
		}
		return fmt.Errorf("get service for delete: %w", err)
	}

	if err := policy.RequireOwner(actor, svc.VendorID, "service"); err != nil {
		return err
	}

	if err := s.serviceRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "service cache invalidation failed",
			slog.String("service_id", id),
			slog.String("error", err.Error()),
		)
	}

	// Publish deletion event (non-blocking on failure).
	if err := s.producer.PublishServiceDeleted(ctx, svc); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish service.deleted event",
			slog.String("service_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "service deleted",
		slog.String("service_id", id),
		slog.String("vendor_id", svc.VendorID),
	)

	return nil
}
