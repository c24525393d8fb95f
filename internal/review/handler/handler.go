package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/platform/middleware"
	"caseflow/internal/review/models"
	"caseflow/internal/review/service"
	"caseflow/internal/stats"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Service defines the workflow operations the handler exposes.
type Service interface {
	Execute(ctx context.Context, recordID id.RecordID, action models.Action, actorID id.UserID, notes string) (*service.TransitionOutcome, error)
	EditPayload(ctx context.Context, recordID id.RecordID, actorID id.UserID, field string, value any) (*models.Record, error)
	Reassign(ctx context.Context, recordID id.RecordID, actorID id.UserID, newOwner id.UserID) (*models.Record, error)
	Delete(ctx context.Context, recordID id.RecordID, actorID id.UserID) error
	GetRecord(ctx context.Context, recordID id.RecordID, actorID id.UserID) (*models.Record, error)
	ListAudit(ctx context.Context, recordID id.RecordID, actorID id.UserID) ([]models.AuditEntry, error)
}

// Stats defines the dashboard count queries the handler exposes.
type Stats interface {
	CountByStatusFor(ctx context.Context, userID id.UserID) ([]stats.StatusCount, error)
}

// Handler handles record workflow endpoints.
type Handler struct {
	logger       *slog.Logger
	review       Service
	stats        Stats
	jwtValidator middleware.JWTValidator
}

// New creates a new review Handler.
func New(review Service, statsSvc Stats, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		review:       review,
		stats:        statsSvc,
		jwtValidator: jwtValidator,
	}
}

// Register registers the record routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Recovery(h.logger))
		gr.Use(middleware.RequestID)
		gr.Use(middleware.Logger(h.logger))
		gr.Use(middleware.Timeout(30 * time.Second))
		gr.Use(middleware.ContentTypeJSON)
		gr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		gr.Get("/records/{id}", h.handleGetRecord)
		gr.Get("/records/{id}/audit", h.handleGetAudit)
		gr.Get("/records/{id}/actions", h.handleGetActions)
		gr.Post("/records/{id}/actions/{action}", h.handleTransition)
		gr.Patch("/records/{id}/payload", h.handleEditPayload)
		gr.Post("/records/{id}/assignee", h.handleReassign)
		gr.Delete("/records/{id}", h.handleDelete)
		gr.Get("/stats/statuses", h.handleStatusCounts)
	})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	action := models.Action(chi.URLParam(r, "action"))

	// An absent body means no notes; note enforcement happens in the engine.
	req, err := httputil.Decode[transitionRequest](r)
	if err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.review.Execute(ctx, recordID, action, requestcontext.UserID(ctx), req.Notes)
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "transition failed", "action", action)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransitionResponse(outcome))
}

func (h *Handler) handleEditPayload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[payloadEditRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.review.EditPayload(ctx, recordID, requestcontext.UserID(ctx), req.Field, req.Value)
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "payload edit failed", "field", req.Field)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleReassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[assigneeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	assignee, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "user_id must be a UUID"))
		return
	}

	rec, err := h.review.Reassign(ctx, recordID, requestcontext.UserID(ctx), assignee)
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "reassignment failed", "assignee", req.UserID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	if err := h.review.Delete(ctx, recordID, requestcontext.UserID(ctx)); err != nil {
		h.writeWorkflowError(ctx, w, err, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.review.GetRecord(ctx, recordID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "record lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	entries, err := h.review.ListAudit(ctx, recordID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "audit lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{RecordID: recordID.String(), Entries: entries})
}

func (h *Handler) handleGetActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.review.GetRecord(ctx, recordID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "actions lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionsResponse{Status: string(rec.Status), Actions: rec.AvailableActions()})
}

func (h *Handler) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.stats.CountByStatusFor(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeWorkflowError(ctx, w, err, "status counts failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.RecordID, bool) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "record id must be a UUID"))
		return id.RecordID{}, false
	}
	return recordID, true
}

// writeWorkflowError logs the failure and renders the coded envelope.
// Invalid transitions additionally carry the actions that would have been
// accepted.
func (h *Handler) writeWorkflowError(ctx context.Context, w http.ResponseWriter, err error, logMsg string, attrs ...any) {
	logAttrs := append([]any{
		"error", err.Error(),
		"role", middleware.GetRole(ctx),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, logMsg, logAttrs...)
	} else {
		h.logger.WarnContext(ctx, logMsg, logAttrs...)
	}

	var ite *models.InvalidTransitionError
	if errors.As(err, &ite) {
		httputil.WriteErrorDetails(w, err, map[string]any{
			"status":        ite.Status,
			"valid_actions": ite.ValidActions,
		})
		return
	}
	httputil.WriteError(w, err)
}
