package models

import (
	"fmt"
	"maps"
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Record is the aggregate root for one survey response moving through the
// review pipeline.
//
// Invariants:
//   - Status is always a key of the workflow state table
//   - SurveyID/ResponseID are immutable once set (upstream provenance)
//   - Audit is append-only; every status change appends exactly one entry
//   - CompletedAt is set exactly when the record enters a terminal status
//   - Once terminal, the record only changes through administrative
//     operations outside the transition vocabulary
//
// Version is the optimistic concurrency token: stores condition writes on it
// and increment it on every successful save.
type Record struct {
	ID             id.RecordID    `json:"id"`
	SurveyID       id.SurveyID    `json:"survey_id"`
	ResponseID     id.ResponseID  `json:"response_id"`
	Payload        map[string]any `json:"payload"`
	Status         Status         `json:"status"`
	AssignedUserID *id.UserID     `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastModifiedAt time.Time      `json:"last_modified_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Version        int64          `json:"version"`
	Audit          []AuditEntry   `json:"audit"`
}

// NewImportedRecord constructs a record in the initial status with its
// import audit entry. The importer is the only caller.
func NewImportedRecord(recordID id.RecordID, surveyID id.SurveyID, responseID id.ResponseID, payload map[string]any, actor id.UserID, now time.Time) (*Record, error) {
	if recordID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record id is required")
	}
	if surveyID == "" || responseID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "survey and response provenance are required")
	}
	r := &Record{
		ID:             recordID,
		SurveyID:       surveyID,
		ResponseID:     responseID,
		Payload:        payload,
		Status:         StatusInitial,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	r.appendAudit(AuditEntry{
		Timestamp: now,
		ActorID:   actor,
		Action:    AuditActionImported,
		NewValue:  string(StatusInitial),
	})
	return r, nil
}

// AvailableActions returns the actions structurally valid for the record's
// current status. Empty for terminal records.
func (r *Record) AvailableActions() []Action {
	return ActionsFrom(r.Status)
}

// CanApplyTransition checks the record's status against the transition's
// from-set. Returns an InvalidTransitionError carrying the valid actions.
// Use with ApplyTransition inside a store Execute callback.
func (r *Record) CanApplyTransition(t Transition) error {
	if !t.AllowsFrom(r.Status) {
		return NewInvalidTransition(t.Action, r.Status)
	}
	return nil
}

// ApplyTransition moves the record to the computed destination status and
// appends the matching audit entry. Call CanApplyTransition first; the
// destination is computed by the engine (it differs from t.To only for the
// sampling gate).
func (r *Record) ApplyTransition(t Transition, to Status, actor id.UserID, notes string, now time.Time) {
	old := r.Status
	r.Status = to
	r.LastModifiedAt = now
	if to.IsTerminal() {
		completed := now
		r.CompletedAt = &completed
	}
	r.appendAudit(AuditEntry{
		Timestamp: now,
		ActorID:   actor,
		Action:    string(t.Action),
		OldValue:  string(old),
		NewValue:  string(to),
		Notes:     notes,
	})
}

// CanEditPayload checks that the record sits in a payload-editable status.
func (r *Record) CanEditPayload() error {
	if !r.Status.PayloadEditable() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "payload is not editable in status %q", r.Status)
	}
	return nil
}

// ApplyPayloadEdit sets one payload field and appends a data_edit entry.
// Call CanEditPayload first.
func (r *Record) ApplyPayloadEdit(field string, value any, actor id.UserID, now time.Time) {
	old := ""
	if r.Payload == nil {
		r.Payload = make(map[string]any)
	} else if prev, ok := r.Payload[field]; ok {
		old = fmt.Sprint(prev)
	}
	r.Payload[field] = value
	r.LastModifiedAt = now
	r.appendAudit(AuditEntry{
		Timestamp: now,
		ActorID:   actor,
		Action:    AuditActionDataEdit,
		Field:     field,
		OldValue:  old,
		NewValue:  fmt.Sprint(value),
	})
}

// ApplyAssignment sets the responsible user as part of a transition. The
// transition's own audit entry covers the change, so no extra entry is
// appended here.
func (r *Record) ApplyAssignment(owner *id.UserID) {
	r.AssignedUserID = owner
}

// ApplyManualAssignment reassigns the record outside a transition and
// appends a user_assignment entry.
func (r *Record) ApplyManualAssignment(newOwner id.UserID, actor id.UserID, now time.Time) {
	old := ""
	if r.AssignedUserID != nil {
		old = r.AssignedUserID.String()
	}
	r.AssignedUserID = &newOwner
	r.LastModifiedAt = now
	r.appendAudit(AuditEntry{
		Timestamp: now,
		ActorID:   actor,
		Action:    AuditActionUserAssignment,
		OldValue:  old,
		NewValue:  newOwner.String(),
	})
}

// Clone returns a deep copy so in-memory stores never hand out aliased
// state.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Payload != nil {
		cp.Payload = maps.Clone(r.Payload)
	}
	if r.AssignedUserID != nil {
		owner := *r.AssignedUserID
		cp.AssignedUserID = &owner
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		cp.CompletedAt = &completed
	}
	cp.Audit = append([]AuditEntry(nil), r.Audit...)
	return &cp
}

func (r *Record) appendAudit(entry AuditEntry) {
	r.Audit = append(r.Audit, entry)
}
