package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/directory"
	"caseflow/internal/events"
	"caseflow/internal/review/models"
	recordstore "caseflow/internal/review/store/record"
	id "caseflow/pkg/domain"
)

// =============================================================================
// Statistics Service Test Suite
// =============================================================================

type StatsSuite struct {
	suite.Suite
	store   *recordstore.InMemory
	users   *directory.InMemoryStore
	dir     *directory.Service
	service *Service
}

func TestStatsSuite(t *testing.T) {
	suite.Run(t, new(StatsSuite))
}

func (s *StatsSuite) SetupTest() {
	s.store = recordstore.NewInMemory()
	s.users = directory.NewInMemoryStore()
	s.dir = directory.New(s.users)
	s.service = New(s.store, s.dir)
}

func (s *StatsSuite) addRecord(responseID id.ResponseID, status models.Status) {
	rec, err := models.NewImportedRecord(id.NewRecordID(), "sv-1", responseID, nil, id.UserID{}, time.Now().UTC())
	s.Require().NoError(err)
	rec.Status = status
	s.Require().NoError(s.store.Create(context.Background(), rec))
}

func (s *StatsSuite) TestCountByStatus() {
	ctx := context.Background()
	s.addRecord("r1", models.StatusPendingA)
	s.addRecord("r2", models.StatusPendingA)
	s.addRecord("r3", models.StatusPendingB)
	s.addRecord("r4", models.StatusFinalized)

	counts, err := s.service.CountByStatus(ctx)
	s.Require().NoError(err)

	// One entry per workflow status, zero counts included, stable order.
	s.Require().Len(counts, len(models.AllStatuses()))
	byStatus := make(map[models.Status]int)
	for i, sc := range counts {
		s.Equal(models.AllStatuses()[i], sc.Status)
		s.NotEmpty(sc.Label)
		byStatus[sc.Status] = sc.Count
	}
	s.Equal(2, byStatus[models.StatusPendingA])
	s.Equal(1, byStatus[models.StatusPendingB])
	s.Equal(0, byStatus[models.StatusPendingC])
	s.Equal(1, byStatus[models.StatusFinalized])
}

func (s *StatsSuite) TestCountByStatusFor() {
	ctx := context.Background()
	s.addRecord("r1", models.StatusPendingA)
	s.addRecord("r2", models.StatusFinalized)

	interviewer, err := s.dir.CreateUser(ctx, "ana", "pw", models.RoleInterviewer, false)
	s.Require().NoError(err)
	admin, err := s.dir.CreateUser(ctx, "root", "pw", "", true)
	s.Require().NoError(err)

	s.Run("role holders only see their own statuses", func() {
		counts, err := s.service.CountByStatusFor(ctx, interviewer.ID)
		s.Require().NoError(err)
		s.Require().Len(counts, 2)
		s.Equal(models.StatusPendingA, counts[0].Status)
		s.Equal(models.StatusRejectedByB, counts[1].Status)
	})

	s.Run("administrators see every status", func() {
		counts, err := s.service.CountByStatusFor(ctx, admin.ID)
		s.Require().NoError(err)
		s.Len(counts, len(models.AllStatuses()))
	})
}

func (s *StatsSuite) TestInvalidationSubscription() {
	// Without a cache the subscription is a no-op; it must still be safe to
	// emit through it.
	sink := events.NewMemorySink()
	s.service.SubscribeInvalidation(sink)

	sink.Emit(context.Background(), events.StatusChanged{
		RecordID:  id.NewRecordID(),
		OldStatus: models.StatusPendingA,
		NewStatus: models.StatusPendingB,
	})
	s.Len(sink.Events(), 1)
}
