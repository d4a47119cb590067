package domain

import (
	"time"
)

// Negotiation status constants.
const (
	NegotiationStatusPending  = "PENDING"
	NegotiationStatusAccepted = "ACCEPTED"
	NegotiationStatusRejected = "REJECTED"
)

// Negotiation represents a price offer from a customer on a vendor's service.
type Negotiation struct {
	ID         string     `json:"id"`
	ServiceID  string     `json:"service_id"`
	CustomerID string     `json:"customer_id"`
	VendorID   string     `json:"vendor_id"`
	OfferPrice float64    `json:"offer_price"`
	Message    string     `json:"message,omitempty"`
	Status     string     `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ValidNegotiationStatuses returns all valid negotiation statuses.
func ValidNegotiationStatuses() []string {
	return []string{
		NegotiationStatusPending,
		NegotiationStatusAccepted,
		NegotiationStatusRejected,
	}
}

// IsValidNegotiationStatus checks if a status string is valid.
func IsValidNegotiationStatus(status string) bool {
	for _, s := range ValidNegotiationStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsResolutionStatus reports whether the status is a valid resolution target.
// Negotiations are created PENDING and can only be resolved to a terminal status.
func IsResolutionStatus(status string) bool {
	return status == NegotiationStatusAccepted || status == NegotiationStatusRejected
}

// AllowedNegotiationTransitions defines which status transitions are valid.
// ACCEPTED and REJECTED are terminal; a PENDING negotiation may also be
// deleted outright via cancellation.
func AllowedNegotiationTransitions() map[string][]string {
	return map[string][]string{
		NegotiationStatusPending:  {NegotiationStatusAccepted, NegotiationStatusRejected},
		NegotiationStatusAccepted: {},
		NegotiationStatusRejected: {},
	}
}

// CanTransitionTo checks if the negotiation can transition to the target status.
func (n *Negotiation) CanTransitionTo(target string) bool {
	allowed, ok := AllowedNegotiationTransitions()[n.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the negotiation has reached a terminal status.
func (n *Negotiation) IsTerminal() bool {
	return n.Status == NegotiationStatusAccepted || n.Status == NegotiationStatusRejected
}
