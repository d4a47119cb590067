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

// NegotiationRepository implements repository.NegotiationRepository using PostgreSQL.
//
// The single-PENDING-per-(service, customer) invariant is enforced by a
// partial unique index rather than an application-level pre-check, so two
// concurrent creations resolve to exactly one success and one conflict.
type NegotiationRepository struct {
	pool database.DBTX
}

// NewNegotiationRepository creates a new PostgreSQL-backed negotiation repository.
func NewNegotiationRepository(pool database.DBTX) *NegotiationRepository {
	return &NegotiationRepository{pool: pool}
}

// Create inserts a new PENDING negotiation into the database.
func (r *NegotiationRepository) Create(ctx context.Context, n *domain.Negotiation) error {
	query := `
		INSERT INTO negotiations (id, service_id, customer_id, vendor_id, offer_price, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.ServiceID,
		n.CustomerID,
		n.VendorID,
		n.OfferPrice,
		n.Message,
		n.Status,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Duplicate("DUPLICATE_PENDING", "a pending negotiation already exists for this service")
		}
		return fmt.Errorf("insert negotiation: %w", err)
	}

	return nil
}

// GetByID retrieves a negotiation by its ID.
func (r *NegotiationRepository) GetByID(ctx context.Context, id string) (*domain.Negotiation, error) {
	query := `
		SELECT id, service_id, customer_id, vendor_id, offer_price, message, status, resolved_at, created_at, updated_at
		FROM negotiations
		WHERE id = $1`

	var n domain.Negotiation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.ServiceID,
		&n.CustomerID,
		&n.VendorID,
		&n.OfferPrice,
		&n.Message,
		&n.Status,
		&n.ResolvedAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan negotiation: %w", err)
	}

	return &n, nil
}

// List returns negotiations matching the given filter with the total count.
func (r *NegotiationRepository) List(ctx context.Context, filter repository.NegotiationFilter) ([]domain.Negotiation, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ServiceID != nil {
		conditions = append(conditions, fmt.Sprintf("service_id = $%d", argIndex))
		args = append(args, *filter.ServiceID)
		argIndex++
	}

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIndex))
		args = append(args, *filter.CustomerID)
		argIndex++
	}

	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIndex))
		args = append(args, *filter.VendorID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT id, service_id, customer_id, vendor_id, offer_price, message, status, resolved_at, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM negotiations
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
		return nil, 0, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	var (
		negotiations []domain.Negotiation
		totalCount   int
	)

	for rows.Next() {
		var n domain.Negotiation
		if err := rows.Scan(
			&n.ID,
			&n.ServiceID,
			&n.CustomerID,
			&n.VendorID,
			&n.OfferPrice,
			&n.Message,
			&n.Status,
			&n.ResolvedAt,
			&n.CreatedAt,
			&n.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan negotiation row: %w", err)
		}
		negotiations = append(negotiations, n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate negotiation rows: %w", err)
	}

	if negotiations == nil {
		negotiations = []domain.Negotiation{}
	}

	return negotiations, totalCount, nil
}

// Resolve atomically moves a PENDING negotiation to a terminal status.
// The status guard lives in the WHERE clause so two concurrent resolutions
// cannot both succeed; the loser observes zero affected rows.
func (r *NegotiationRepository) Resolve(ctx context.Context, id, status string) (*domain.Negotiation, error) {
	now := time.Now().UTC()

	query := `
		UPDATE negotiations
		SET status = $1, resolved_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING id, service_id, customer_id, vendor_id, offer_price, message, status, resolved_at, created_at, updated_at`

	var n domain.Negotiation
	err := r.pool.QueryRow(ctx, query, status, now, id, domain.NegotiationStatusPending).Scan(
		&n.ID,
		&n.ServiceID,
		&n.CustomerID,
		&n.VendorID,
		&n.OfferPrice,
		&n.Message,
		&n.Status,
		&n.ResolvedAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedUpdate(ctx, id, "cannot update negotiation that is not pending")
		}
		return nil, fmt.Errorf("resolve negotiation: %w", err)
	}

	return &n, nil
}

// CancelPending deletes a negotiation only while it is still PENDING.
func (r *NegotiationRepository) CancelPending(ctx context.Context, id string) error {
	query := `DELETE FROM negotiations WHERE id = $1 AND status = $2`

	ct, err := r.pool.Exec(ctx, query, id, domain.NegotiationStatusPending)
	if err != nil {
		return fmt.Errorf("cancel negotiation: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, id, "cannot cancel negotiation that is not pending")
	}

	return nil
}

// HasAccepted reports whether the customer holds an ACCEPTED negotiation on the service.
func (r *NegotiationRepository) HasAccepted(ctx context.Context, customerID, serviceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM negotiations
			WHERE customer_id = $1 AND service_id = $2 AND status = $3
		)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, customerID, serviceID, domain.NegotiationStatusAccepted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check accepted negotiation: %w", err)
	}

	return exists, nil
}

// classifyMissedUpdate distinguishes a missing row from a status guard miss
// after a conditional update or delete touched zero rows.
func (r *NegotiationRepository) classifyMissedUpdate(ctx context.Context, id, invalidStateMsg string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM negotiations WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("negotiation", id)
		}
		return fmt.Errorf("check negotiation status: %w", err)
	}

	return apperrors.InvalidState(invalidStateMsg)
}
