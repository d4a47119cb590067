package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/pkg/database"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
//
// Every mutation that can move the owning service's rating aggregate happens
// inside one transaction that locks the service row before reading the review
// set. The aggregate is always recomputed from the full review set, never
// adjusted incrementally; the lock serializes concurrent writers so neither
// can average a snapshot missing the other's rows. Comment-only edits bypass
// the transaction since they cannot move the average.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review and recomputes the service aggregate in one transaction.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (summary *domain.ReviewSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReview", "INSERT INTO reviews; recompute services aggregate")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO reviews (id, service_id, customer_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, query,
		rv.ID,
		rv.ServiceID,
		rv.CustomerID,
		rv.Rating,
		rv.Comment,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Duplicate("DUPLICATE_REVIEW", "you have already reviewed this service")
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	summary, err = recomputeAggregate(ctx, tx, rv.ServiceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return summary, nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT id, service_id, customer_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	var rv domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rv.ID,
		&rv.ServiceID,
		&rv.CustomerID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	return &rv, nil
}

// ListByServiceID returns paginated reviews for a given service along with the total count.
func (r *ReviewRepository) ListByServiceID(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, service_id, customer_id, rating, comment, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE service_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, serviceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ServiceID,
			&rv.CustomerID,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// Update modifies an existing review. When the rating changed the service
// aggregate is recomputed in the same transaction; comment-only edits run as
// a single statement since they cannot move the average.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review, ratingChanged bool) (summary *domain.ReviewSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateReview", "UPDATE reviews; recompute services aggregate")
	defer func() { end(err) }()

	rv.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, updated_at = $3
		WHERE id = $4`

	if !ratingChanged {
		ct, err := r.pool.Exec(ctx, query, rv.Rating, rv.Comment, rv.UpdatedAt, rv.ID)
		if err != nil {
			return nil, fmt.Errorf("update review: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil, apperrors.NotFound("review", rv.ID)
		}
		return r.GetSummary(ctx, rv.ServiceID)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, query, rv.Rating, rv.Comment, rv.UpdatedAt, rv.ID)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("review", rv.ID)
	}

	summary, err = recomputeAggregate(ctx, tx, rv.ServiceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return summary, nil
}

// Delete removes a review and recomputes the service aggregate in one transaction.
func (r *ReviewRepository) Delete(ctx context.Context, id, serviceID string) (summary *domain.ReviewSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteReview", "DELETE FROM reviews; recompute services aggregate")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("review", id)
	}

	summary, err = recomputeAggregate(ctx, tx, serviceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return summary, nil
}

// GetSummary returns the current rating aggregate for a service.
func (r *ReviewRepository) GetSummary(ctx context.Context, serviceID string) (*domain.ReviewSummary, error) {
	query := `
		SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0)::float8, COUNT(*)
		FROM reviews
		WHERE service_id = $1`

	var summary domain.ReviewSummary
	err := r.pool.QueryRow(ctx, query, serviceID).Scan(
		&summary.AvgRating,
		&summary.TotalReviews,
	)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	return &summary, nil
}

// recomputeAggregate recalculates avg_rating and rating_count over the full
// review set for the service and writes them back, all within the caller's
// transaction. The service row is locked before the aggregate is read:
// concurrent review writers serialize on that lock, so the loser's AVG runs
// against a snapshot that already includes the winner's committed rows. The
// average is rounded to two decimals and is exactly 0 when the service has no
// reviews.
func recomputeAggregate(ctx context.Context, tx pgx.Tx, serviceID string) (*domain.ReviewSummary, error) {
	var lockedID string
	err := tx.QueryRow(ctx, `SELECT id FROM services WHERE id = $1 FOR UPDATE`, serviceID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("service", serviceID)
		}
		return nil, fmt.Errorf("lock service row: %w", err)
	}

	var summary domain.ReviewSummary
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0)::float8, COUNT(*)
		FROM reviews
		WHERE service_id = $1`,
		serviceID,
	).Scan(&summary.AvgRating, &summary.TotalReviews)
	if err != nil {
		return nil, fmt.Errorf("recompute rating aggregate: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE services
		SET avg_rating = $1, rating_count = $2, updated_at = $3
		WHERE id = $4`,
		summary.AvgRating, summary.TotalReviews, time.Now().UTC(), serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("write rating aggregate: %w", err)
	}

	return &summary, nil
}
