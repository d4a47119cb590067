package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Status Validation Tests
// ============================================================================

func TestValidNegotiationStatuses_ContainsAll(t *testing.T) {
	statuses := ValidNegotiationStatuses()
	expected := []string{NegotiationStatusPending, NegotiationStatusAccepted, NegotiationStatusRejected}
	assert.ElementsMatch(t, expected, statuses)
}

func TestIsValidNegotiationStatus_ValidStatuses(t *testing.T) {
	for _, s := range ValidNegotiationStatuses() {
		assert.True(t, IsValidNegotiationStatus(s), "expected %q to be valid", s)
	}
}

func TestIsValidNegotiationStatus_Invalid(t *testing.T) {
	assert.False(t, IsValidNegotiationStatus("pending"))
	assert.False(t, IsValidNegotiationStatus(""))
	assert.False(t, IsValidNegotiationStatus("CANCELED"))
}

func TestIsResolutionStatus(t *testing.T) {
	assert.True(t, IsResolutionStatus(NegotiationStatusAccepted))
	assert.True(t, IsResolutionStatus(NegotiationStatusRejected))
	assert.False(t, IsResolutionStatus(NegotiationStatusPending))
	assert.False(t, IsResolutionStatus("accepted"))
}

// ============================================================================
// State Machine Tests
// ============================================================================

func TestCanTransitionTo_PendingResolves(t *testing.T) {
	n := &Negotiation{Status: NegotiationStatusPending}
	assert.True(t, n.CanTransitionTo(NegotiationStatusAccepted))
	assert.True(t, n.CanTransitionTo(NegotiationStatusRejected))
	assert.False(t, n.CanTransitionTo(NegotiationStatusPending))
}

func TestCanTransitionTo_TerminalStatesAreFinal(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"accepted", NegotiationStatusAccepted},
		{"rejected", NegotiationStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Negotiation{Status: tt.status}
			for _, target := range ValidNegotiationStatuses() {
				assert.False(t, n.CanTransitionTo(target),
					"terminal status %q must not transition to %q", tt.status, target)
			}
		})
	}
}

func TestCanTransitionTo_UnknownStatus(t *testing.T) {
	n := &Negotiation{Status: "UNKNOWN"}
	assert.False(t, n.CanTransitionTo(NegotiationStatusAccepted))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, (&Negotiation{Status: NegotiationStatusPending}).IsTerminal())
	assert.True(t, (&Negotiation{Status: NegotiationStatusAccepted}).IsTerminal())
	assert.True(t, (&Negotiation{Status: NegotiationStatusRejected}).IsTerminal())
}

// ============================================================================
// Role Validation Tests
// ============================================================================

func TestValidRoles_ContainsAll(t *testing.T) {
	roles := ValidRoles()
	expected := []string{RoleCustomer, RoleVendor, RoleAdmin}
	assert.ElementsMatch(t, expected, roles)
}

func TestIsValidRole_Invalid(t *testing.T) {
	assert.False(t, IsValidRole("customer"))
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("SUPERADMIN"))
}
