package directory

import (
	"strings"
	"time"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// User is a principal known to the review pipeline.
//
// Invariants:
//   - Username is non-empty, lowercase, unique
//   - A user holds at most one workflow role; Admin is orthogonal to it
//   - Inactive users resolve no role and receive no assignments
type User struct {
	ID             id.UserID   `json:"id"`
	Username       string      `json:"username"`
	DisplayName    string      `json:"display_name"`
	Role           models.Role `json:"role,omitempty"`
	Admin          bool        `json:"admin"`
	Active         bool        `json:"active"`
	CredentialHash string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewUser constructs a user, validating invariants. role may be empty for
// administrator-only principals.
func NewUser(userID id.UserID, username string, role models.Role, admin bool, now time.Time) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "username is required")
	}
	if role != "" && !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown role %q", role)
	}
	if role == "" && !admin {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user needs a role or the administrator flag")
	}
	return &User{
		ID:        userID,
		Username:  username,
		Role:      role,
		Admin:     admin,
		Active:    true,
		CreatedAt: now,
	}, nil
}
