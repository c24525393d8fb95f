// Package importer pulls survey responses from the upstream survey API and
// creates review records for them. Runs are idempotent: a response already
// known by its (survey, response) provenance pair is skipped, so a crashed
// or repeated run never duplicates records.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	reviewmetrics "caseflow/internal/review/metrics"
	"caseflow/internal/review/models"
	"caseflow/internal/review/service"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// defaultWorkers bounds how many responses are created concurrently per
// page. Creation is store-bound, not CPU-bound.
const defaultWorkers = 8

// SurveyResponse is one response as delivered by the upstream API.
type SurveyResponse struct {
	ResponseID  id.ResponseID
	Answers     map[string]any
	SubmittedAt time.Time
}

// Client fetches survey responses from the upstream source, one page at a
// time. more reports whether further pages exist.
type Client interface {
	FetchResponses(ctx context.Context, surveyID id.SurveyID, page int) (responses []SurveyResponse, more bool, err error)
}

// RecordStore is the slice of record persistence the importer needs.
type RecordStore interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByProvenance(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (*models.Record, error)
}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
}

// Service imports upstream responses into the review pipeline.
type Service struct {
	client   Client
	records  RecordStore
	assigner service.Assigner
	logger   *slog.Logger
	metrics  *reviewmetrics.Metrics
	workers  int
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for per-run summaries and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *reviewmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWorkers overrides the per-page creation concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New constructs an import service. The assigner picks the interviewer who
// receives each newly created record.
func New(client Client, records RecordStore, assigner service.Assigner, opts ...Option) *Service {
	s := &Service{
		client:   client,
		records:  records,
		assigner: assigner,
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportSurvey walks all pages of a survey and creates a record for every
// response not yet known. Pages are fetched sequentially (the upstream
// paginates with a cursor), records within a page are created concurrently.
func (s *Service) ImportSurvey(ctx context.Context, surveyID id.SurveyID) (*Result, error) {
	if surveyID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "survey id is required")
	}

	var imported, skipped atomic.Int64
	for page := 1; ; page++ {
		responses, more, err := s.client.FetchResponses(ctx, surveyID, page)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch survey responses")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, resp := range responses {
			g.Go(func() error {
				created, err := s.importOne(gctx, surveyID, resp)
				if err != nil {
					return err
				}
				if created {
					imported.Add(1)
				} else {
					skipped.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	result := &Result{Imported: int(imported.Load()), Skipped: int(skipped.Load())}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "survey import finished",
			"survey_id", surveyID,
			"imported", result.Imported,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

func (s *Service) importOne(ctx context.Context, surveyID id.SurveyID, resp SurveyResponse) (bool, error) {
	if _, err := s.records.FindByProvenance(ctx, surveyID, resp.ResponseID); err == nil {
		return false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check provenance")
	}

	now := requestcontext.Now(ctx)
	// Imports are system-initiated; the audit entry carries the zero actor.
	rec, err := models.NewImportedRecord(id.NewRecordID(), surveyID, resp.ResponseID, resp.Answers, id.UserID{}, now)
	if err != nil {
		return false, err
	}
	owner, err := s.assigner.AssignOwner(ctx, models.StatusInitial)
	if err != nil {
		return false, err
	}
	rec.ApplyAssignment(owner)

	if err := s.records.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			// Lost a race against a concurrent import of the same response.
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create record")
	}
	if s.metrics != nil {
		s.metrics.RecordsImported.Inc()
	}
	return true, nil
}
