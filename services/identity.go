package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/models"
)

// Identity is the authenticated caller resolved from the bearer token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// AdminPolicy returns the isAdmin predicate: the stored admin role, or the
// configured admin email when one is set.
func AdminPolicy(adminEmail string) func(Identity) bool {
	adminEmail = strings.TrimSpace(adminEmail)
	return func(id Identity) bool {
		if id.Role == models.RoleAdmin {
			return true
		}
		return adminEmail != "" && strings.EqualFold(id.Email, adminEmail)
	}
}
