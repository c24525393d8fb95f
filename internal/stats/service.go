// Package stats is the read side of the pipeline: per-status record counts
// for dashboards, filtered by each caller's visibility. It never writes
// workflow state.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"caseflow/internal/events"
	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

const (
	cacheKey = "caseflow:stats:status_counts"
	cacheTTL = 30 * time.Second
)

// RecordCounter is the slice of record persistence the read side needs.
type RecordCounter interface {
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

// Visibility filters statuses per caller.
type Visibility interface {
	CanView(ctx context.Context, userID id.UserID, status models.Status) (bool, error)
}

// StatusCount pairs a status with its record count, in workflow order.
type StatusCount struct {
	Status models.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
}

// Service aggregates record counts, caching them in redis when a client is
// configured. Redis outages degrade to a direct store read: dashboards go
// slower, never dark.
type Service struct {
	records RecordCounter
	vis     Visibility
	cache   *redis.Client
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithCache sets the redis client used for count caching.
func WithCache(client *redis.Client) Option {
	return func(s *Service) { s.cache = client }
}

// WithLogger sets a logger for cache failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs a statistics service.
func New(records RecordCounter, vis Visibility, opts ...Option) *Service {
	s := &Service{records: records, vis: vis}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CountByStatus returns one entry per workflow status (zero counts
// included), for administrators and system dashboards.
func (s *Service) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	counts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StatusCount, 0, len(models.AllStatuses()))
	for _, status := range models.AllStatuses() {
		out = append(out, StatusCount{Status: status, Label: status.Label(), Count: counts[status]})
	}
	return out, nil
}

// CountByStatusFor returns counts restricted to the statuses the caller may
// view.
func (s *Service) CountByStatusFor(ctx context.Context, userID id.UserID) ([]StatusCount, error) {
	all, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sc := range all {
		visible, err := s.vis.CanView(ctx, userID, sc.Status)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, sc)
		}
	}
	return out, nil
}

// SubscribeInvalidation drops the cached counts whenever a transition
// commits.
func (s *Service) SubscribeInvalidation(sink *events.MemorySink) {
	sink.Subscribe(func(events.StatusChanged) {
		s.invalidate(context.Background())
	})
}

func (s *Service) load(ctx context.Context) (map[models.Status]int, error) {
	if counts, ok := s.fromCache(ctx); ok {
		return counts, nil
	}
	counts, err := s.records.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count records")
	}
	s.toCache(ctx, counts)
	return counts, nil
}

func (s *Service) fromCache(ctx context.Context) (map[models.Status]int, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil && s.logger != nil {
			s.logger.WarnContext(ctx, "stats cache read failed", "error", err)
		}
		return nil, false
	}
	var counts map[models.Status]int
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false
	}
	return counts, true
}

func (s *Service) toCache(ctx context.Context, counts map[models.Status]int) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "stats cache write failed", "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed", "error", err)
	}
}
