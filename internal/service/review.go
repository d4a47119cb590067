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

const maxReviewCommentLength = 500

// ReviewService implements review submission and the service rating
// aggregate. Every mutation returns the freshly recomputed summary from the
// repository transaction, so the cached listing copy is always invalidated
// alongside.
type ReviewService struct {
	reviewRepo      repository.ReviewRepository
	serviceRepo     repository.ServiceRepository
	negotiationRepo repository.NegotiationRepository
	cache           rediscache.ServiceCache
	producer        *event.Producer
	logger          *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	serviceRepo repository.ServiceRepository,
	negotiationRepo repository.NegotiationRepository,
	cache rediscache.ServiceCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo:      reviewRepo,
		serviceRepo:     serviceRepo,
		negotiationRepo: negotiationRepo,
		cache:           cache,
		producer:        producer,
		logger:          logger,
	}
}

// CreateReviewInput holds the parameters for submitting a review.
type CreateReviewInput struct {
	ServiceID string
	Rating    int
	Comment   string
}

// UpdateReviewInput holds the parameters for editing a review.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// CreateReview submits a review from the acting customer and returns the
// created review together with the freshly recomputed rating aggregate. The
// customer must have an ACCEPTED negotiation on the service and must not have
// reviewed it before; admins bypass the eligibility check.
func (s *ReviewService) CreateReview(ctx context.Context, actor policy.Actor, input CreateReviewInput) (*domain.Review, *domain.ReviewSummary, error) {
	if err := policy.RequireRole(actor, domain.RoleCustomer); err != nil {
		return nil, nil, err
	}

	if input.Rating < 1 || input.Rating > 5 {
		return nil, nil, apperrors.InvalidInput("rating must be an integer between 1 and 5")
	}
	if len(input.Comment) > maxReviewCommentLength {
		return nil, nil, apperrors.InvalidInput("comment must not exceed 500 characters")
	}

	svc, err := s.serviceRepo.GetByID(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NotFound("service", input.ServiceID)
		}
		return nil, nil, fmt.Errorf("get service for review: %w", err)
	}

	if svc.VendorID == actor.ID {
		return nil, nil, apperrors.SelfAction("SELF_REVIEW", "you cannot review your own service")
	}

	if !actor.IsAdmin() {
		accepted, err := s.negotiationRepo.HasAccepted(ctx, actor.ID, svc.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check review eligibility: %w", err)
		}
		if !accepted {
			return nil, nil, apperrors.Ineligible("you must have an accepted negotiation on this service to review it")
		}
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:         uuid.New().String(),
		ServiceID:  svc.ID,
		CustomerID: actor.ID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	summary, err := s.reviewRepo.Create(ctx, review)
	if err != nil {
		return nil, nil, err
	}

	s.invalidateServiceCache(ctx, svc.ID)

	// Publish creation event (non-blocking on failure).
	if err := s.producer.PublishReviewCreated(ctx, review, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("service_id", svc.ID),
		slog.Float64("avg_rating", summary.AvgRating),
		slog.Int("total_reviews", summary.TotalReviews),
	)

	return review, summary, nil
}

// GetReview retrieves a review by ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return review, nil
}

// ListReviews returns the reviews of a service, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, serviceID string, params pagination.Params) (*pagination.Result[domain.Review], error) {
	if _, err := s.serviceRepo.GetByID(ctx, serviceID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("service", serviceID)
		}
		return nil, fmt.Errorf("get service for reviews: %w", err)
	}

	reviews, total, err := s.reviewRepo.ListByServiceID(ctx, serviceID, params.Page, params.PerPage)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	result := pagination.NewResult(reviews, total, params)
	return &result, nil
}

// GetServiceSummary returns the current rating aggregate of a service.
func (s *ReviewService) GetServiceSummary(ctx context.Context, serviceID string) (*domain.ReviewSummary, error) {
	if _, err := s.serviceRepo.GetByID(ctx, serviceID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("service", serviceID)
		}
		return nil, fmt.Errorf("get service for summary: %w", err)
	}

	summary, err := s.reviewRepo.GetSummary(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	return summary, nil
}

// UpdateReview edits a review owned by the actor (or any review for admins).
// The authorship never changes, whoever edits.
func (s *ReviewService) UpdateReview(ctx context.Context, actor policy.Actor, id string, input UpdateReviewInput) (*domain.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review for update: %w", err)
	}

	if err := policy.RequireOwner(actor, review.CustomerID, "review"); err != nil {
		return nil, err
	}

	ratingChanged := false
	if input.Rating != nil {
		if *input.Rating < 1 || *input.Rating > 5 {
			return nil, apperrors.InvalidInput("rating must be an integer between 1 and 5")
		}
		ratingChanged = *input.Rating != review.Rating
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		if len(*input.Comment) > maxReviewCommentLength {
			return nil, apperrors.InvalidInput("comment must not exceed 500 characters")
		}
		review.Comment = *input.Comment
	}

	summary, err := s.reviewRepo.Update(ctx, review, ratingChanged)
	if err != nil {
		return nil, err
	}

	// Comment-only edits leave the aggregate and the cached listing untouched.
	if ratingChanged {
		s.invalidateServiceCache(ctx, review.ServiceID)
	}

	// Publish update event (non-blocking on failure).
	if err := s.producer.PublishReviewUpdated(ctx, review, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.updated event",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", id),
		slog.Float64("avg_rating", summary.AvgRating),
	)

	return review, nil
}

// DeleteReview removes a review owned by the actor (or any review for admins)
// and recomputes the service aggregate from the remaining set.
func (s *ReviewService) DeleteReview(ctx context.Context, actor policy.Actor, id string) error {
	review, err := s.reviewRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("review", id)
		}
		return fmt.Errorf("get review for delete: %w", err)
	}

	if err := policy.RequireOwner(actor, review.CustomerID, "review"); err != nil {
		return err
	}

	summary, err := s.reviewRepo.Delete(ctx, id, review.ServiceID)
	if err != nil {
		return err
	}

	s.invalidateServiceCache(ctx, review.ServiceID)

	// Publish deletion event (non-blocking on failure).
	if err := s.producer.PublishReviewDeleted(ctx, review, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id),
		slog.String("service_id", review.ServiceID),
		slog.Float64("avg_rating", summary.AvgRating),
	)

	return nil
}

// invalidateServiceCache drops the cached listing copy after an aggregate change.
func (s *ReviewService) invalidateServiceCache(ctx context.Context, serviceID string) {
	if err := s.cache.Invalidate(ctx, serviceID); err != nil {
		s.logger.WarnContext(ctx, "service cache invalidation failed",
			slog.String("service_id", serviceID),
			slog.String("error", err.Error()),
		)
	}
}
