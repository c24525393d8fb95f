package handler

import (
	"time"

	"caseflow/internal/review/models"
	"caseflow/internal/review/service"
)

// recordResponse is the JSON shape of a record on read endpoints.
type recordResponse struct {
	ID               string          `json:"id"`
	SurveyID         string          `json:"survey_id"`
	ResponseID       string          `json:"response_id"`
	Status           string          `json:"status"`
	StatusLabel      string          `json:"status_label"`
	Terminal         bool            `json:"terminal"`
	AssignedUserID   *string         `json:"assigned_user_id,omitempty"`
	Payload          map[string]any  `json:"payload"`
	CreatedAt        time.Time       `json:"created_at"`
	LastModifiedAt   time.Time       `json:"last_modified_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Version          int64           `json:"version"`
	AvailableActions []models.Action `json:"available_actions"`
}

// transitionResponse reports a completed transition.
type transitionResponse struct {
	Record    recordResponse `json:"record"`
	OldStatus string         `json:"old_status"`
	NewStatus string         `json:"new_status"`
}

// actionsResponse lists the structurally valid actions for a record.
type actionsResponse struct {
	Status  string          `json:"status"`
	Actions []models.Action `json:"actions"`
}

// auditResponse wraps a record's audit trail.
type auditResponse struct {
	RecordID string              `json:"record_id"`
	Entries  []models.AuditEntry `json:"entries"`
}

func toRecordResponse(rec *models.Record) recordResponse {
	resp := recordResponse{
		ID:               rec.ID.String(),
		SurveyID:         string(rec.SurveyID),
		ResponseID:       string(rec.ResponseID),
		Status:           string(rec.Status),
		StatusLabel:      rec.Status.Label(),
		Terminal:         rec.Status.IsTerminal(),
		Payload:          rec.Payload,
		CreatedAt:        rec.CreatedAt,
		LastModifiedAt:   rec.LastModifiedAt,
		CompletedAt:      rec.CompletedAt,
		Version:          rec.Version,
		AvailableActions: rec.AvailableActions(),
	}
	if rec.AssignedUserID != nil {
		assignee := rec.AssignedUserID.String()
		resp.AssignedUserID = &assignee
	}
	return resp
}

func toTransitionResponse(outcome *service.TransitionOutcome) transitionResponse {
	return transitionResponse{
		Record:    toRecordResponse(outcome.Record),
		OldStatus: string(outcome.OldStatus),
		NewStatus: string(outcome.NewStatus),
	}
}
