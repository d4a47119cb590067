package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	pkgkafka "github.com/utafrali/MarketplaceGo/pkg/kafka"
)

// Kafka topic constants for marketplace domain events.
const (
	TopicUserRegistered      = "marketplace.user.registered"
	TopicServiceCreated      = "marketplace.service.created"
	TopicServiceUpdated      = "marketplace.service.updated"
	TopicServiceDeleted      = "marketplace.service.deleted"
	TopicNegotiationCreated  = "marketplace.negotiation.created"
	TopicNegotiationResolved = "marketplace.negotiation.resolved"
	TopicNegotiationCanceled = "marketplace.negotiation.canceled"
	TopicReviewCreated       = "marketplace.review.created"
	TopicReviewUpdated       = "marketplace.review.updated"
	TopicReviewDeleted       = "marketplace.review.deleted"
)

// Aggregate type constants.
const (
	AggregateTypeUser        = "user"
	AggregateTypeService     = "service"
	AggregateTypeNegotiation = "negotiation"
	AggregateTypeReview      = "review"
)

// Source identifier for events originating from this service.
const SourceMarketplace = "marketplace"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// ServiceEventData is the payload for service lifecycle events.
type ServiceEventData struct {
	ID       string  `json:"id"`
	VendorID string  `json:"vendor_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
}

// NegotiationEventData is the payload for negotiation lifecycle events.
type NegotiationEventData struct {
	ID         string  `json:"id"`
	ServiceID  string  `json:"service_id"`
	CustomerID string  `json:"customer_id"`
	VendorID   string  `json:"vendor_id"`
	OfferPrice float64 `json:"offer_price"`
	Status     string  `json:"status"`
}

// ReviewEventData is the payload for review lifecycle events.
type ReviewEventData struct {
	ID           string  `json:"id"`
	ServiceID    string  `json:"service_id"`
	CustomerID   string  `json:"customer_id"`
	Rating       int     `json:"rating,omitempty"`
	AvgRating    float64 `json:"avg_rating"`
	TotalReviews int     `json:"total_reviews"`
}

// Producer publishes marketplace domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}

	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishServiceCreated publishes a service.created event.
func (p *Producer) PublishServiceCreated(ctx context.Context, svc *domain.Service) error {
	return p.publish(ctx, TopicServiceCreated, svc.ID, AggregateTypeService, serviceData(svc))
}

// PublishServiceUpdated publishes a service.updated event.
func (p *Producer) PublishServiceUpdated(ctx context.Context, svc *domain.Service) error {
	return p.publish(ctx, TopicServiceUpdated, svc.ID, AggregateTypeService, serviceData(svc))
}

// PublishServiceDeleted publishes a service.deleted event.
func (p *Producer) PublishServiceDeleted(ctx context.Context, svc *domain.Service) error {
	return p.publish(ctx, TopicServiceDeleted, svc.ID, AggregateTypeService, serviceData(svc))
}

// PublishNegotiationCreated publishes a negotiation.created event.
func (p *Producer) PublishNegotiationCreated(ctx context.Context, n *domain.Negotiation) error {
	return p.publish(ctx, TopicNegotiationCreated, n.ID, AggregateTypeNegotiation, negotiationData(n))
}

// PublishNegotiationResolved publishes a negotiation.resolved event.
func (p *Producer) PublishNegotiationResolved(ctx context.Context, n *domain.Negotiation) error {
	return p.publish(ctx, TopicNegotiationResolved, n.ID, AggregateTypeNegotiation, negotiationData(n))
}

// PublishNegotiationCanceled publishes a negotiation.canceled event.
func (p *Producer) PublishNegotiationCanceled(ctx context.Context, n *domain.Negotiation) error {
	return p.publish(ctx, TopicNegotiationCanceled, n.ID, AggregateTypeNegotiation, negotiationData(n))
}

// PublishReviewCreated publishes a review.created event carrying the fresh aggregate.
func (p *Producer) PublishReviewCreated(ctx context.Context, rv *domain.Review, summary *domain.ReviewSummary) error {
	return p.publish(ctx, TopicReviewCreated, rv.ID, AggregateTypeReview, reviewData(rv, summary))
}

// PublishReviewUpdated publishes a review.updated event carrying the fresh aggregate.
func (p *Producer) PublishReviewUpdated(ctx context.Context, rv *domain.Review, summary *domain.ReviewSummary) error {
	return p.publish(ctx, TopicReviewUpdated, rv.ID, AggregateTypeReview, reviewData(rv, summary))
}

// PublishReviewDeleted publishes a review.deleted event carrying the fresh aggregate.
func (p *Producer) PublishReviewDeleted(ctx context.Context, rv *domain.Review, summary *domain.ReviewSummary) error {
	return p.publish(ctx, TopicReviewDeleted, rv.ID, AggregateTypeReview, reviewData(rv, summary))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceMarketplace, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

func serviceData(svc *domain.Service) ServiceEventData {
	return ServiceEventData{
		ID:       svc.ID,
		VendorID: svc.VendorID,
		Title:    svc.Title,
		Price:    svc.Price,
	}
}

func negotiationData(n *domain.Negotiation) NegotiationEventData {
	return NegotiationEventData{
		ID:         n.ID,
		ServiceID:  n.ServiceID,
		CustomerID: n.CustomerID,
		VendorID:   n.VendorID,
		OfferPrice: n.OfferPrice,
		Status:     n.Status,
	}
}

func reviewData(rv *domain.Review, summary *domain.ReviewSummary) ReviewEventData {
	return ReviewEventData{
		ID:           rv.ID,
		ServiceID:    rv.ServiceID,
		CustomerID:   rv.CustomerID,
		Rating:       rv.Rating,
		AvgRating:    summary.AvgRating,
		TotalReviews: summary.TotalReviews,
	}
}
