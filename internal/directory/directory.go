// Package directory resolves principals to workflow roles and capabilities.
//
// It is the single authority for "who may act on what": the transition
// engine asks it for role membership and the administrative override, the
// assignment policy asks it for role holders, and the HTTP layer asks it to
// authenticate credentials.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// UserStore abstracts principal persistence.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*User, error)
}

// Service answers role and capability questions about principals.
type Service struct {
	users  UserStore
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for security-relevant events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs a directory service.
func New(users UserStore, opts ...Option) *Service {
	s := &Service{users: users}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser registers a principal with a hashed credential.
func (s *Service) CreateUser(ctx context.Context, username, password string, role models.Role, admin bool) (*User, error) {
	user, err := NewUser(id.NewUserID(), username, role, admin, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if password != "" {
		hash, err := HashCredential(password)
		if err != nil {
			return nil, err
		}
		user.CredentialHash = hash
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	return user, nil
}

// RoleOf resolves a principal's workflow role. Administrator-only users
// resolve to the empty role; unknown users fail with not-found.
func (s *Service) RoleOf(ctx context.Context, userID id.UserID) (models.Role, error) {
	user, err := s.findActive(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// IsAdministrator reports whether the principal holds the cross-cutting
// administrative override.
func (s *Service) IsAdministrator(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := s.findActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.Admin, nil
}

// UsersWithRole returns the active holders of a role in a stable order
// (by username), so the assignment policy's cursor is deterministic.
func (s *Service) UsersWithRole(ctx context.Context, role models.Role) ([]*User, error) {
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role holders")
	}
	active := users[:0]
	for _, u := range users {
		if u.Active {
			active = append(active, u)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Username < active[j].Username })
	return active, nil
}

// CanView reports whether the principal may see records in the given
// status: administrators always, others only when the status is owned by
// their resolved role.
func (s *Service) CanView(ctx context.Context, userID id.UserID, status models.Status) (bool, error) {
	user, err := s.findActive(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.Admin {
		return true, nil
	}
	return status.VisibleToRole(user.Role), nil
}

// CanTransition reports whether the principal may run a transition gated on
// requiredRole. True when the principal holds the role or the
// administrative override.
func (s *Service) CanTransition(ctx context.Context, userID id.UserID, requiredRole models.Role) (bool, error) {
	user, err := s.findActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.Admin || user.Role == requiredRole, nil
}

// Authenticate verifies a username/password pair and returns the principal.
// Failures are indistinguishable to the caller (no user enumeration).
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if !user.Active || VerifyCredential(password, user.CredentialHash) != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "authentication failed", "username", username)
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

func (s *Service) findActive(ctx context.Context, userID id.UserID) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "user is inactive")
	}
	return user, nil
}
