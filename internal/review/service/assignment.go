package service

import (
	"context"
	"sync"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// RoundRobinAssigner hands records to the holders of a status's owning role
// in turn, so no single reviewer silently accumulates the whole queue. The
// per-role cursor is the only state; holders are re-read from the directory
// on every call, so membership changes take effect immediately.
type RoundRobinAssigner struct {
	dir Directory

	mu      sync.Mutex
	cursors map[models.Role]int
}

// NewRoundRobinAssigner creates an assigner starting at each role's first
// holder (directory order).
func NewRoundRobinAssigner(dir Directory) *RoundRobinAssigner {
	return &RoundRobinAssigner{
		dir:     dir,
		cursors: make(map[models.Role]int),
	}
}

// AssignOwner selects the next holder of the owning role for status.
// Terminal statuses and roles without holders yield nil: the record goes
// unassigned rather than failing the transition.
func (a *RoundRobinAssigner) AssignOwner(ctx context.Context, status models.Status) (*id.UserID, error) {
	role, ok := status.OwningRole()
	if !ok {
		return nil, nil
	}
	holders, err := a.dir.UsersWithRole(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve role holders")
	}
	if len(holders) == 0 {
		return nil, nil
	}

	a.mu.Lock()
	idx := a.cursors[role] % len(holders)
	a.cursors[role] = idx + 1
	a.mu.Unlock()

	owner := holders[idx].ID
	return &owner, nil
}
