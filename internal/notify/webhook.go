// Package notify delivers vendor-facing webhook notifications for
// negotiation outcomes. Delivery goes through a circuit breaker so a dead
// webhook endpoint cannot slow down negotiation resolution.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/pkg/httpclient"
)

// Notifier sends out-of-band notifications about negotiation lifecycle changes.
type Notifier interface {
	// NotifyNegotiationResolved informs the vendor's webhook endpoint that a
	// negotiation reached a terminal status.
	NotifyNegotiationResolved(ctx context.Context, n *domain.Negotiation) error
}

// negotiationResolvedPayload is the webhook request body.
type negotiationResolvedPayload struct {
	NegotiationID string  `json:"negotiation_id"`
	ServiceID     string  `json:"service_id"`
	CustomerID    string  `json:"customer_id"`
	VendorID      string  `json:"vendor_id"`
	OfferPrice    float64 `json:"offer_price"`
	Status        string  `json:"status"`
	ResolvedAt    string  `json:"resolved_at,omitempty"`
}

// WebhookNotifier delivers notifications over HTTP through a circuit breaker.
type WebhookNotifier struct {
	client *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier targeting the given webhook base URL.
func NewWebhookNotifier(baseURL string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	client := httpclient.New(baseURL, httpclient.WithTimeout(timeout))
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.BreakerSettings{
		Name:             "vendor-webhook",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
	}, logger)

	return &WebhookNotifier{client: cb, logger: logger}
}

// NotifyNegotiationResolved posts the resolution payload to the webhook endpoint.
func (w *WebhookNotifier) NotifyNegotiationResolved(ctx context.Context, n *domain.Negotiation) error {
	payload := negotiationResolvedPayload{
		NegotiationID: n.ID,
		ServiceID:     n.ServiceID,
		CustomerID:    n.CustomerID,
		VendorID:      n.VendorID,
		OfferPrice:    n.OfferPrice,
		Status:        n.Status,
	}
	if n.ResolvedAt != nil {
		payload.ResolvedAt = n.ResolvedAt.UTC().Format(time.RFC3339)
	}

	resp, err := w.client.PostJSON(ctx, "/webhooks/negotiations", payload)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			w.logger.WarnContext(ctx, "webhook delivery skipped, circuit open",
				slog.String("negotiation_id", n.ID),
			)
			return err
		}
		return err
	}
	defer resp.Body.Close()

	w.logger.DebugContext(ctx, "webhook delivered",
		slog.String("negotiation_id", n.ID),
		slog.Int("status", resp.StatusCode),
	)

	return nil
}

// NoopNotifier is used when no webhook endpoint is configured.
type NoopNotifier struct{}

// NotifyNegotiationResolved does nothing.
func (NoopNotifier) NotifyNegotiationResolved(context.Context, *domain.Negotiation) error {
	return nil
}
