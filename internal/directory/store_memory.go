package directory

import (
	"context"
	"sync"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps principals in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	users      map[id.UserID]*User
	byUsername map[string]id.UserID
}

// NewInMemoryStore creates an empty in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:      make(map[id.UserID]*User),
		byUsername: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return sentinel.ErrAlreadyExists
	}
	cp := *user
	s.users[user.ID] = &cp
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.users[userID]
	return &cp, nil
}

func (s *InMemoryStore) ListByRole(_ context.Context, role models.Role) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*User
	for _, user := range s.users {
		if user.Role == role {
			cp := *user
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SetActive flips a user's active flag. Administrative surface used by
// seeding and tests.
func (s *InMemoryStore) SetActive(_ context.Context, userID id.UserID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Active = active
	return nil
}
