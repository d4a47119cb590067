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
	"github.com/utafrali/MarketplaceGo/internal/notify"
	"github.com/utafrali/MarketplaceGo/internal/policy"
	"github.com/utafrali/MarketplaceGo/internal/repository"
	"github.com/utafrali/MarketplaceGo/pkg/pagination"
)

// NegotiationService implements the offer lifecycle: a customer opens a
// PENDING offer on a vendor's service, the vendor (or an admin) resolves it
// to ACCEPTED or REJECTED exactly once, and the customer may cancel it while
// it is still PENDING.
type NegotiationService struct {
	negotiationRepo repository.NegotiationRepository
	serviceRepo     repository.ServiceRepository
	producer        *event.Producer
	notifier        notify.Notifier
	logger          *slog.Logger
}

// NewNegotiationService creates a new negotiation service.
func NewNegotiationService(
	negotiationRepo repository.NegotiationRepository,
	serviceRepo repository.ServiceRepository,
	producer *event.Producer,
	notifier notify.Notifier,
	logger *slog.Logger,
) *NegotiationService {
	return &NegotiationService{
		negotiationRepo: negotiationRepo,
		serviceRepo:     serviceRepo,
		producer:        producer,
		notifier:        notifier,
		logger:          logger,
	}
}

// CreateNegotiationInput holds the parameters for opening an offer.
type CreateNegotiationInput struct {
	ServiceID  string
	OfferPrice float64
	Message    string
}

// ListNegotiationsInput holds the filter parameters for listing negotiations.
type ListNegotiationsInput struct {
	ServiceID  *string
	Status     *string
	Pagination pagination.Params
}

// CreateNegotiation opens a new PENDING offer from the acting customer.
func (s *NegotiationService) CreateNegotiation(ctx context.Context, actor policy.Actor, input CreateNegotiationInput) (*domain.Negotiation, error) {
	if err := policy.RequireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}

	if input.OfferPrice <= 0 {
		return nil, apperrors.InvalidInput("offer price must be a positive number")
	}

	svc, err := s.serviceRepo.GetByID(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("service", input.ServiceID)
		}
		return nil, fmt.Errorf("get service for negotiation: %w", err)
	}

	if svc.VendorID == actor.ID {
		return nil, apperrors.SelfAction("SELF_NEGOTIATION", "you cannot negotiate your own service")
	}

	now := time.Now().UTC()
	negotiation := &domain.Negotiation{
		ID:         uuid.New().String(),
		ServiceID:  svc.ID,
		CustomerID: actor.ID,
		VendorID:   svc.VendorID,
		OfferPrice: input.OfferPrice,
		Message:    input.Message,
		Status:     domain.NegotiationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The partial unique index resolves the race between two concurrent
	// creations; the repository maps the conflict to DUPLICATE_PENDING.
	if err := s.negotiationRepo.Create(ctx, negotiation); err != nil {
		return nil, err
	}

	// Publish creation event (non-blocking on failure).
	if err := s.producer.PublishNegotiationCreated(ctx, negotiation); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish negotiation.created event",
			slog.String("negotiation_id", negotiation.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "negotiation created",
		slog.String("negotiation_id", negotiation.ID),
		slog.String("service_id", svc.ID),
		slog.String("customer_id", actor.ID),
	)

	return negotiation, nil
}

// GetNegotiation retrieves a negotiation visible to the actor: its customer,
// the service's vendor, or an admin.
func (s *NegotiationService) GetNegotiation(ctx context.Context, actor policy.Actor, id string) (*domain.Negotiation, error) {
	negotiation, err := s.negotiationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("negotiation", id)
		}
		return nil, fmt.Errorf("get negotiation: %w", err)
	}

	if !actor.IsAdmin() && actor.ID != negotiation.CustomerID && actor.ID != negotiation.VendorID {
		return nil, apperrors.Forbidden("you can only view your own negotiations")
	}

	return negotiation, nil
}

// ListNegotiations returns the negotiations visible to the actor. Customers
// see their own offers, vendors the offers on their services, and admins
// everything.
func (s *NegotiationService) ListNegotiations(ctx context.Context, actor policy.Actor, input ListNegotiationsInput) (*pagination.Result[domain.Negotiation], error) {
	if input.Status != nil && !domain.IsValidNegotiationStatus(*input.Status) {
		return nil, apperrors.InvalidInput("status must be one of PENDING, ACCEPTED, REJECTED")
	}

	filter := repository.NegotiationFilter{
		ServiceID: input.ServiceID,
		Status:    input.Status,
		Page:      input.Pagination.Page,
		PerPage:   input.Pagination.PerPage,
	}

	switch actor.Role {
	case domain.RoleAdmin:
		// No ownership scoping.
	case domain.RoleVendor:
		filter.VendorID = &actor.ID
	default:
		filter.CustomerID = &actor.ID
	}

	negotiations, total, err := s.negotiationRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}

	result := pagination.NewResult(negotiations, total, input.Pagination)
	return &result, nil
}

// ResolveNegotiation moves a PENDING offer to ACCEPTED or REJECTED. Only the
// service's vendor or an admin may resolve, and only once: the terminal
// statuses admit no further transitions.
func (s *NegotiationService) ResolveNegotiation(ctx context.Context, actor policy.Actor, id, status string) (*domain.Negotiation, error) {
	if !domain.IsResolutionStatus(status) {
		return nil, apperrors.InvalidInput("status must be ACCEPTED or REJECTED")
	}

	negotiation, err := s.negotiationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("negotiation", id)
		}
		return nil, fmt.Errorf("get negotiation for resolve: %w", err)
	}

	if err := policy.RequireOwner(actor, negotiation.VendorID, "negotiation"); err != nil {
		return nil, err
	}

	// The repository's conditional update is the authoritative guard; this
	// early check just gives a cleaner error without a round trip.
	if !negotiation.CanTransitionTo(status) {
		return nil, apperrors.InvalidState("cannot update negotiation that is not pending")
	}

	resolved, err := s.negotiationRepo.Resolve(ctx, id, status)
	if err != nil {
		return nil, err
	}

	// Publish resolution event (non-blocking on failure).
	if err := s.producer.PublishNegotiationResolved(ctx, resolved); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish negotiation.resolved event",
			slog.String("negotiation_id", id),
			slog.String("error", err.Error()),
		)
	}

	// Deliver the vendor webhook through the circuit breaker (non-blocking on failure).
	if err := s.notifier.NotifyNegotiationResolved(ctx, resolved); err != nil {
		s.logger.WarnContext(ctx, "failed to deliver negotiation webhook",
			slog.String("negotiation_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "negotiation resolved",
		slog.String("negotiation_id", id),
		slog.String("status", status),
		slog.String("resolved_by", actor.ID),
	)

	return resolved, nil
}

// CancelNegotiation deletes a still-PENDING offer. Only the offering customer
// or an admin may cancel.
func (s *NegotiationService) CancelNegotiation(ctx context.Context, actor policy.Actor, id string) error {
	negotiation, err := s.negotiationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("negotiation", id)
		}
		return fmt.Errorf("get negotiation for cancel: %w", err)
	}

	if err := policy.RequireOwner(actor, negotiation.CustomerID, "negotiation"); err != nil {
		return err
	}

	if negotiation.IsTerminal() {
		return apperrors.InvalidState("cannot cancel negotiation that is not pending")
	}

	if err := s.negotiationRepo.CancelPending(ctx, id); err != nil {
		return err
	}

	// Publish cancellation event (non-blocking on failure).
	if err := s.producer.PublishNegotiationCanceled(ctx, negotiation); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish negotiation.canceled event",
			slog.String("negotiation_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "negotiation canceled",
		slog.String("negotiation_id", id),
		slog.String("canceled_by", actor.ID),
	)

	return nil
}
