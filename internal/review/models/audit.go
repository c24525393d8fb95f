package models

import (
	"time"

	id "caseflow/pkg/domain"
)

// Audit actions that are not workflow transitions.
const (
	AuditActionImported       = "imported"
	AuditActionDataEdit       = "data_edit"
	AuditActionUserAssignment = "user_assignment"
)

// AuditEntry is an immutable record of one event on a record: a transition,
// an import, a payload edit, or a manual reassignment.
//
// Entries are append-only and ordered by append sequence (slice position),
// not wall clock, so ordering stays well-defined under coarse timestamp
// resolution. Nothing in the engine edits or deletes an entry.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   id.UserID `json:"actor_id"`
	Action    string    `json:"action"`
	Field     string    `json:"field,omitempty"` // set for data_edit entries
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Notes     string    `json:"notes,omitempty"`
}
