//go:build integration

package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/directory"
	"caseflow/internal/events"
	"caseflow/internal/review/models"
	recordstore "caseflow/internal/review/store/record"
	"caseflow/internal/stats"
	id "caseflow/pkg/domain"
	"caseflow/pkg/testutil/containers"
)

type StatsCacheSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	store   *recordstore.InMemory
	service *stats.Service
	sink    *events.MemorySink
}

func TestStatsCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StatsCacheSuite))
}

func (s *StatsCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *StatsCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushAll(context.Background()).Err())

	s.store = recordstore.NewInMemory()
	s.sink = events.NewMemorySink()
	dir := directory.New(directory.NewInMemoryStore())
	s.service = stats.New(s.store, dir, stats.WithCache(s.redis.Client))
	s.service.SubscribeInvalidation(s.sink)
}

func (s *StatsCacheSuite) addRecord(responseID id.ResponseID, status models.Status) {
	rec, err := models.NewImportedRecord(id.NewRecordID(), "sv-1", responseID, nil, id.UserID{}, time.Now().UTC())
	s.Require().NoError(err)
	rec.Status = status
	s.Require().NoError(s.store.Create(context.Background(), rec))
}

func (s *StatsCacheSuite) countFor(status models.Status) int {
	counts, err := s.service.CountByStatus(context.Background())
	s.Require().NoError(err)
	for _, sc := range counts {
		if sc.Status == status {
			return sc.Count
		}
	}
	s.Failf("missing status", "%s not in counts", status)
	return 0
}

func (s *StatsCacheSuite) TestCachedCountsServeStaleUntilInvalidated() {
	s.addRecord("r1", models.StatusPendingA)
	s.Equal(1, s.countFor(models.StatusPendingA))

	// A write the cache never heard about stays invisible.
	s.addRecord("r2", models.StatusPendingA)
	s.Equal(1, s.countFor(models.StatusPendingA))

	// An emitted transition event drops the cache; the next read is fresh.
	s.sink.Emit(context.Background(), events.StatusChanged{
		RecordID:  id.NewRecordID(),
		OldStatus: models.StatusPendingA,
		NewStatus: models.StatusPendingB,
	})
	s.Equal(2, s.countFor(models.StatusPendingA))
}

func (s *StatsCacheSuite) TestRedisOutageFailsOpen() {
	// A cache pointed at a dead address must degrade to direct store reads.
	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	dir := directory.New(directory.NewInMemoryStore())
	svc := stats.New(s.store, dir, stats.WithCache(dead))

	s.addRecord("r1", models.StatusPendingB)

	counts, err := svc.CountByStatus(context.Background())
	s.Require().NoError(err)
	for _, sc := range counts {
		if sc.Status == models.StatusPendingB {
			s.Equal(1, sc.Count)
		}
	}
}
