package auth

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdministrator = "administrator"
	RoleViewer        = "viewer"
)

// MinPasswordLength is the shortest password accepted for admin accounts.
const MinPasswordLength = 6

// Admin is an operator account of the license registry.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAdmin carries the attributes of an account to create.
type NewAdmin struct {
	Username string
	Password string
	Role     string
}

// AdminUpdate is a partial update of username and role.
type AdminUpdate struct {
	Username *string
	Role     *string
}

// Principal is the authenticated caller derived from a verified token.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdministrator reports whether the principal may mutate registry state.
func (p Principal) IsAdministrator() bool {
	return p.Role == RoleAdministrator
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(p.Role, r) {
			return true
		}
	}
	return false
}

func normalizeRole(role string) (string, error) {
	role = strings.TrimSpace(strings.ToLower(role))
	switch role {
	case "":
		return RoleAdministrator, nil
	case RoleAdministrator, RoleViewer:
		return role, nil
	}
	return "", fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}
