package repository

import (
	"context"
	"time"

	"github.com/utafrali/MarketplaceGo/internal/domain"
)

// UserFilter defines filter criteria for listing users.
type UserFilter struct {
	Role     *string
	IsActive *bool
	Search   *string
	Page     int
	PerPage  int
}

// ServiceFilter defines filter criteria for listing services.
type ServiceFilter struct {
	VendorID   *string
	CategoryID *string
	Search     *string
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	IsActive   *bool
	Page       int
	PerPage    int
}

// NegotiationFilter defines filter criteria for listing negotiations.
type NegotiationFilter struct {
	ServiceID  *string
	CustomerID *string
	VendorID   *string
	Status     *string
	Page       int
	PerPage    int
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns users matching the given filter along with the total count.
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, u *domain.User) error

	// Delete removes a user from the store by their identifier.
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository defines the interface for refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke revokes a specific refresh token by its hash.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByUserID revokes all refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string) error
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	// Create inserts a new category into the store.
	Create(ctx context.Context, c *domain.Category) error

	// GetByID retrieves a category by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// GetBySlug retrieves a category by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)

	// List returns all categories ordered by name.
	List(ctx context.Context) ([]domain.Category, error)

	// Update modifies an existing category in the store.
	Update(ctx context.Context, c *domain.Category) error

	// Delete removes a category from the store by its identifier.
	Delete(ctx context.Context, id string) error
}

// ServiceRepository defines the interface for service listing persistence.
type ServiceRepository interface {
	// Create inserts a new service into the store.
	Create(ctx context.Context, s *domain.Service) error

	// GetByID retrieves a service by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Service, error)

	// List returns services matching the given filter along with the total count.
	List(ctx context.Context, filter ServiceFilter) ([]domain.Service, int, error)

	// Update modifies an existing service in the store. The rating aggregate
	// columns are excluded; those are maintained by the review repository.
	Update(ctx context.Context, s *domain.Service) error

	// Delete removes a service from the store by its identifier. Dependent
	// negotiations and reviews are cascade-deleted by the store.
	Delete(ctx context.Context, id string) error
}

// NegotiationRepository defines the interface for negotiation persistence.
type NegotiationRepository interface {
	// Create inserts a new PENDING negotiation. A second PENDING negotiation
	// for the same (service, customer) pair fails with ErrDuplicate.
	Create(ctx context.Context, n *domain.Negotiation) error

	// GetByID retrieves a negotiation by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Negotiation, error)

	// List returns negotiations matching the given filter along with the total count.
	List(ctx context.Context, filter NegotiationFilter) ([]domain.Negotiation, int, error)

	// Resolve atomically moves a PENDING negotiation to the given terminal
	// status. Resolving a negotiation that is no longer PENDING fails with
	// ErrInvalidState.
	Resolve(ctx context.Context, id, status string) (*domain.Negotiation, error)

	// CancelPending deletes a negotiation only while it is still PENDING.
	// Cancellation of a resolved negotiation fails with ErrInvalidState.
	CancelPending(ctx context.Context, id string) error

	// HasAccepted reports whether the customer holds an ACCEPTED negotiation
	// on the given service.
	HasAccepted(ctx context.Context, customerID, serviceID string) (bool, error)
}

// ReviewRepository defines the interface for review persistence. Every
// mutation recomputes the owning service's rating aggregate inside the same
// transaction and returns the fresh summary.
type ReviewRepository interface {
	// Create inserts a new review and recomputes the service aggregate.
	// A second review for the same (service, customer) pair fails with ErrDuplicate.
	Create(ctx context.Context, rv *domain.Review) (*domain.ReviewSummary, error)

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ListByServiceID returns paginated reviews for a service with the total count.
	ListByServiceID(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error)

	// Update modifies an existing review. The service aggregate is recomputed
	// only when ratingChanged is true; comment-only edits skip the locking
	// transaction and return the current summary unchanged.
	Update(ctx context.Context, rv *domain.Review, ratingChanged bool) (*domain.ReviewSummary, error)

	// Delete removes a review and recomputes the service aggregate.
	Delete(ctx context.Context, id, serviceID string) (*domain.ReviewSummary, error)

	// GetSummary returns the current rating aggregate for a service.
	GetSummary(ctx context.Context, serviceID string) (*domain.ReviewSummary, error)
}
