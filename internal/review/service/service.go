// Package service implements the transition engine: the only writer of
// workflow state. It validates a requested action against the static
// transition table, gates it on the actor's role, computes the destination
// (including the sampling gate's randomized branch), and persists status,
// assignment, and audit entry as one atomic unit per record.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"caseflow/internal/directory"
	"caseflow/internal/events"
	reviewmetrics "caseflow/internal/review/metrics"
	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/random"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// conflictRetries bounds how often a conflicted transition is revalidated
// and retried before surfacing the conflict to the caller.
const conflictRetries = 3

// RecordStore abstracts record persistence. Execute must serialize the
// validate/mutate pair per record id (lock or transactional
// read-modify-write); the status write and the appended audit entries must
// commit together.
type RecordStore interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	FindByProvenance(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (*models.Record, error)
	Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
	Delete(ctx context.Context, recordID id.RecordID) error
}

// Directory answers role and capability questions about principals.
type Directory interface {
	RoleOf(ctx context.Context, userID id.UserID) (models.Role, error)
	IsAdministrator(ctx context.Context, userID id.UserID) (bool, error)
	UsersWithRole(ctx context.Context, role models.Role) ([]*directory.User, error)
	CanView(ctx context.Context, userID id.UserID, status models.Status) (bool, error)
}

// Assigner selects the principal responsible for a record in its new
// status. Nil result means the record is unassigned (terminal states,
// empty roles).
type Assigner interface {
	AssignOwner(ctx context.Context, status models.Status) (*id.UserID, error)
}

// TransitionOutcome reports a successful Execute call.
type TransitionOutcome struct {
	Record           *models.Record
	OldStatus        models.Status
	NewStatus        models.Status
	AvailableActions []models.Action
	// SamplingDraw is the 1-100 draw behind a sampling-gate decision,
	// zero for ordinary transitions.
	SamplingDraw int
}

// Engine executes workflow transitions.
type Engine struct {
	records     RecordStore
	dir         Directory
	assigner    Assigner
	rng         random.Source
	sink        events.Sink
	logger      *slog.Logger
	metrics     *reviewmetrics.Metrics
	samplingPct int
	requireNote bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a logger for security-relevant and operational events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *reviewmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSink sets the status-changed event sink.
func WithSink(sink events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithRandomSource overrides the sampling draw source. Tests inject
// deterministic sequences here.
func WithRandomSource(src random.Source) Option {
	return func(e *Engine) { e.rng = src }
}

// WithAssigner overrides the assignment policy.
func WithAssigner(a Assigner) Option {
	return func(e *Engine) { e.assigner = a }
}

// WithNotePolicy toggles enforcement of mandatory notes on rejections.
func WithNotePolicy(require bool) Option {
	return func(e *Engine) { e.requireNote = require }
}

// New constructs a transition engine. samplingPct is the percentage of
// sampling-gate transitions finalized outright, 1-100 inclusive.
func New(records RecordStore, dir Directory, samplingPct int, opts ...Option) (*Engine, error) {
	if samplingPct < 1 || samplingPct > 100 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "sampling percentage must be 1-100, got %d", samplingPct)
	}
	e := &Engine{
		records:     records,
		dir:         dir,
		rng:         random.Default(),
		samplingPct: samplingPct,
		requireNote: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.assigner == nil {
		e.assigner = NewRoundRobinAssigner(dir)
	}
	return e, nil
}

// Execute runs one named transition on a record.
//
// Validation order follows the contract: record existence, action
// existence, from-state membership, role gate, note requirement. The
// from-state check runs again inside the store's critical section so a
// request serialized behind a concurrent transition is validated against
// the freshly committed status.
func (e *Engine) Execute(ctx context.Context, recordID id.RecordID, action models.Action, actorID id.UserID, notes string) (*TransitionOutcome, error) {
	start := time.Now()
	defer e.observeExecute(start)

	outcome, err := e.execute(ctx, recordID, action, actorID, notes)
	e.countTransition(action, err)
	return outcome, err
}

func (e *Engine) execute(ctx context.Context, recordID id.RecordID, action models.Action, actorID id.UserID, notes string) (*TransitionOutcome, error) {
	rec, err := e.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, e.translateStoreErr(err)
	}

	t, ok := models.LookupTransition(action)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown action %q", action)
	}

	if err := rec.CanApplyTransition(t); err != nil {
		return nil, err
	}

	if err := e.authorize(ctx, actorID, t.RequiredRole); err != nil {
		return nil, err
	}

	if e.requireNote && t.RequiresNote && strings.TrimSpace(notes) == "" {
		return nil, dErrors.Newf(dErrors.CodeNoteRequired, "action %q requires a justification note", action)
	}

	// The destination and the new owner are computed outside the critical
	// section: neither depends on the record's current state.
	to, draw := e.destination(t)
	owner, assignErr := e.assigner.AssignOwner(ctx, to)
	if assignErr != nil {
		return nil, assignErr
	}
	auditNotes := notes
	if t.Sampling {
		auditNotes = joinNotes(notes, fmt.Sprintf("sampling draw %d/%d: %s", draw, e.samplingPct, to))
	}

	now := requestcontext.Now(ctx)
	var (
		updated   *models.Record
		oldStatus models.Status
	)
	for attempt := 0; ; attempt++ {
		updated, err = e.records.Execute(ctx, recordID,
			func(rec *models.Record) error {
				oldStatus = rec.Status
				return rec.CanApplyTransition(t)
			},
			func(rec *models.Record) {
				rec.ApplyTransition(t, to, actorID, auditNotes, now)
				rec.ApplyAssignment(owner)
			},
		)
		if errors.Is(err, sentinel.ErrConflict) && attempt < conflictRetries {
			continue
		}
		break
	}
	if err != nil {
		return nil, e.translateStoreErr(err)
	}

	if t.Sampling {
		e.countSamplingBranch(to)
	}
	e.emitStatusChanged(ctx, events.StatusChanged{
		RecordID:   recordID,
		OldStatus:  oldStatus,
		NewStatus:  to,
		Action:     action,
		ActorID:    actorID,
		OccurredAt: now,
	})

	return &TransitionOutcome{
		Record:           updated,
		OldStatus:        oldStatus,
		NewStatus:        to,
		AvailableActions: updated.AvailableActions(),
		SamplingDraw:     draw,
	}, nil
}

// EditPayload sets one payload field. Only the interviewer role (or an
// administrator) may edit, and only while the record sits in a
// payload-editable status.
func (e *Engine) EditPayload(ctx context.Context, recordID id.RecordID, actorID id.UserID, field string, value any) (*models.Record, error) {
	if strings.TrimSpace(field) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "field name is required")
	}
	if err := e.authorize(ctx, actorID, models.RoleInterviewer); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated, err := e.records.Execute(ctx, recordID,
		func(rec *models.Record) error { return rec.CanEditPayload() },
		func(rec *models.Record) { rec.ApplyPayloadEdit(field, value, actorID, now) },
	)
	if err != nil {
		return nil, e.translateStoreErr(err)
	}
	if e.metrics != nil {
		e.metrics.PayloadEditsTotal.Inc()
	}
	return updated, nil
}

// Reassign hands the record to another principal holding the owning role
// for its current status. Supervisors and administrators only.
func (e *Engine) Reassign(ctx context.Context, recordID id.RecordID, actorID id.UserID, newOwner id.UserID) (*models.Record, error) {
	if err := e.authorize(ctx, actorID, models.RoleSupervisor); err != nil {
		return nil, err
	}
	ownerRole, err := e.dir.RoleOf(ctx, newOwner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "assignee is unknown")
	}

	now := requestcontext.Now(ctx)
	updated, err := e.records.Execute(ctx, recordID,
		func(rec *models.Record) error {
			if rec.Status.IsTerminal() {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "records in terminal status %q cannot be reassigned", rec.Status)
			}
			if required, ok := rec.Status.OwningRole(); ok && required != ownerRole {
				return dErrors.Newf(dErrors.CodeValidation, "assignee does not hold the %s role", required)
			}
			return nil
		},
		func(rec *models.Record) { rec.ApplyManualAssignment(newOwner, actorID, now) },
	)
	if err != nil {
		return nil, e.translateStoreErr(err)
	}
	if e.metrics != nil {
		e.metrics.ReassignmentsTotal.Inc()
	}
	return updated, nil
}

// Delete removes a record. This is the explicit administrative operation
// outside the transition vocabulary; only administrators may call it.
func (e *Engine) Delete(ctx context.Context, recordID id.RecordID, actorID id.UserID) error {
	admin, err := e.dir.IsAdministrator(ctx, actorID)
	if err != nil {
		return e.forbidden(ctx, actorID, "delete")
	}
	if !admin {
		return e.forbidden(ctx, actorID, "delete")
	}
	if err := e.records.Delete(ctx, recordID); err != nil {
		return e.translateStoreErr(err)
	}
	return nil
}

// GetRecord loads a record, enforcing per-status visibility.
func (e *Engine) GetRecord(ctx context.Context, recordID id.RecordID, actorID id.UserID) (*models.Record, error) {
	rec, err := e.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, e.translateStoreErr(err)
	}
	visible, err := e.dir.CanView(ctx, actorID, rec.Status)
	if err != nil || !visible {
		return nil, e.forbidden(ctx, actorID, "view")
	}
	return rec, nil
}

// ListAudit returns the record's audit trail in append order.
func (e *Engine) ListAudit(ctx context.Context, recordID id.RecordID, actorID id.UserID) ([]models.AuditEntry, error) {
	rec, err := e.GetRecord(ctx, recordID, actorID)
	if err != nil {
		return nil, err
	}
	return rec.Audit, nil
}

// AvailableActions lists the structurally valid actions for a record.
func (e *Engine) AvailableActions(ctx context.Context, recordID id.RecordID, actorID id.UserID) ([]models.Action, error) {
	rec, err := e.GetRecord(ctx, recordID, actorID)
	if err != nil {
		return nil, err
	}
	return rec.AvailableActions(), nil
}

// destination computes where a transition lands. Sampling transitions draw
// one uniform integer in 1-100 and finalize when it falls within the
// configured percentage.
func (e *Engine) destination(t models.Transition) (models.Status, int) {
	if !t.Sampling {
		return t.To, 0
	}
	draw := e.rng.IntN(100) + 1
	if draw <= e.samplingPct {
		return t.SampledTo, draw
	}
	return t.To, draw
}

// authorize resolves the actor and checks the role gate. All failure modes
// collapse into the same generic Forbidden error so callers learn nothing
// about role membership.
func (e *Engine) authorize(ctx context.Context, actorID id.UserID, required models.Role) error {
	admin, err := e.dir.IsAdministrator(ctx, actorID)
	if err != nil {
		return e.forbidden(ctx, actorID, string(required))
	}
	if admin {
		return nil
	}
	role, err := e.dir.RoleOf(ctx, actorID)
	if err != nil || role != required {
		return e.forbidden(ctx, actorID, string(required))
	}
	return nil
}

func (e *Engine) forbidden(ctx context.Context, actorID id.UserID, operation string) error {
	if e.logger != nil {
		e.logger.WarnContext(ctx, "workflow permission denied",
			"actor_id", actorID,
			"operation", operation,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "security",
		)
	}
	return dErrors.New(dErrors.CodeForbidden, "operation not permitted")
}

// translateStoreErr maps store sentinels onto coded domain errors. Domain
// errors raised inside validate callbacks pass through untouched.
func (e *Engine) translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		if e.metrics != nil {
			e.metrics.ConflictsTotal.Inc()
		}
		return dErrors.New(dErrors.CodeConflict, "record was modified concurrently, retry the operation")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	var ite *models.InvalidTransitionError
	if errors.As(err, &ite) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
}

func (e *Engine) emitStatusChanged(ctx context.Context, event events.StatusChanged) {
	if e.sink != nil {
		e.sink.Emit(ctx, event)
	}
}

func (e *Engine) observeExecute(start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveExecute(start)
	}
}

func (e *Engine) countTransition(action models.Action, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	e.metrics.IncTransition(string(action), outcome)
}

func (e *Engine) countSamplingBranch(to models.Status) {
	if e.metrics == nil {
		return
	}
	branch := "routed_to_examiner"
	if to == models.StatusFinalizedBySampling {
		branch = "finalized"
	}
	e.metrics.IncSamplingBranch(branch)
}

func joinNotes(notes, samplingNote string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return samplingNote
	}
	return notes + "; " + samplingNote
}
