// Package policy holds the authorization predicates evaluated before every
// state-changing operation. Admins pass every check; everyone else is gated
// by role or by resource ownership.
package policy

import (
	"fmt"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
)

// Actor is the authenticated party issuing a request.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// RequireRole checks that the actor holds one of the given roles. Admins
// always pass.
func RequireRole(actor Actor, roles ...string) error {
	if actor.IsAdmin() {
		return nil
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperrors.Forbidden(roleMessage(roles))
}

// RequireAdmin checks that the actor holds the admin role.
func RequireAdmin(actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return apperrors.Forbidden("admin role required")
}

// RequireOwner checks that the actor owns the resource. Admins always pass.
// The resource name is used in the error message ("you can only modify your
// own review").
func RequireOwner(actor Actor, ownerID, resource string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.ID == ownerID {
		return nil
	}
	return apperrors.Forbidden(fmt.Sprintf("you can only modify your own %s", resource))
}

func roleMessage(roles []string) string {
	if len(roles) == 1 {
		return fmt.Sprintf("%s role required", roles[0])
	}
	msg := "one of roles "
	for i, r := range roles {
		if i > 0 {
			msg += ", "
		}
		msg += r
	}
	return msg + " required"
}
