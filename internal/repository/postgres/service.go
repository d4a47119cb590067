package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	"github.com/utafrali/MarketplaceGo/pkg/database"
)

// ServiceRepository implements repository.ServiceRepository using PostgreSQL.
type ServiceRepository struct {
	pool database.DBTX
}

// NewServiceRepository creates a new PostgreSQL-backed service repository.
func NewServiceRepository(pool database.DBTX) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

// Create inserts a new service into the database.
func (r *ServiceRepository) Create(ctx context.Context, s *domain.Service) error {
	query := `
		INSERT INTO services (id, vendor_id, category_id, title, description, price, avg_rating, rating_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.VendorID,
		s.CategoryID,
		s.Title,
		s.Description,
		s.Price,
		s.AvgRating,
		s.RatingCount,
		s.IsActive,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}

	return nil
}

// GetByID retrieves a service by its ID.
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	query := `
		SELECT id, vendor_id, category_id, title, description, price, avg_rating, rating_count, is_active, created_at, updated_at
		FROM services
		WHERE id = $1`

	var s domain.Service
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.VendorID,
		&s.CategoryID,
		&s.Title,
		&s.Description,
		&s.Price,
		&s.AvgRating,
		&s.RatingCount,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}

	return &s, nil
}

// List returns services matching the given filter with the total count.
func (r *ServiceRepository) List(ctx context.Context, filter repository.ServiceFilter) ([]domain.Service, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIndex))
		args = append(args, *filter.VendorID)
		argIndex++
	}

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("avg_rating >= $%d", argIndex))
		args = append(args, *filter.MinRating)
		argIndex++
	}

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT id, vendor_id, category_id, title, description, price, avg_rating, rating_count, is_active, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM services
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var (
		services   []domain.Service
		totalCount int
	)

	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(
			&s.ID,
			&s.VendorID,
			&s.CategoryID,
			&s.Title,
			&s.Description,
			&s.Price,
			&s.AvgRating,
			&s.RatingCount,
			&s.IsActive,
			&s.CreatedAt,
			&s.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate service rows: %w", err)
	}

	if services == nil {
		services = []domain.Service{}
	}

	return services, totalCount, nil
}

// Update modifies an existing service in the database. The rating aggregate
// columns are deliberately excluded; only review mutations touch those.
func (r *ServiceRepository) Update(ctx context.Context, s *domain.Service) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE services
		SET category_id = $1, title = $2, description = $3, price = $4, is_active = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.pool.Exec(ctx, query,
		s.CategoryID,
		s.Title,
		s.Description,
		s.Price,
		s.IsActive,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("service", s.ID)
	}

	return nil
}

// Delete removes a service from the database by its ID. In-flight PENDING
// negotiations and all reviews for the service are cascade-deleted.
func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM services WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("service", id)
	}

	return nil
}
