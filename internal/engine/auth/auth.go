package auth

import (
	"fmt"

	"permitflow/internal/config"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Checker resolves role-based permissions from the service config. Roles
// arrive on the principal (JWT claims); the config maps them to permissions.
type Checker struct {
	Config *config.Config
}

// Allowed reports whether any of the roles grants the permission.
func (c Checker) Allowed(roles []string, perm string) bool {
	if c.Config == nil {
		return false
	}
	for _, p := range c.Config.RolePermissions(roles) {
		if p == perm {
			return true
		}
	}
	return false
}

// Require returns ForbiddenError unless one of the roles grants perm.
func (c Checker) Require(roles []string, perm string) error {
	if c.Allowed(roles, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}
