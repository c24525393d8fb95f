package record

import (
	"context"
	"sync"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemory keeps records in process memory. Concurrency discipline: the map
// mutex only guards lookup/insert/delete; each record carries its own mutex
// so Execute serializes per record without any cross-record lock. Two
// different records transition fully in parallel. Read paths take the same
// per-record lock before touching a record, so they never observe a
// half-applied mutation.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*slot
}

type slot struct {
	mu     sync.Mutex
	record *models.Record
}

// NewInMemory creates an empty in-memory record store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.RecordID]*slot)}
}

// Create inserts a new record. Fails with sentinel.ErrAlreadyExists when the
// id or the provenance pair is already taken.
func (s *InMemory) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	for _, sl := range s.records {
		if sl.record.SurveyID == rec.SurveyID && sl.record.ResponseID == rec.ResponseID {
			return sentinel.ErrAlreadyExists
		}
	}
	s.records[rec.ID] = &slot{record: rec.Clone()}
	return nil
}

// FindByID returns a deep copy of the record.
func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	sl, ok := s.records[recordID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.record.Clone(), nil
}

// FindByProvenance looks a record up by its upstream identifiers.
func (s *InMemory) FindByProvenance(_ context.Context, surveyID id.SurveyID, responseID id.ResponseID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range s.records {
		sl.mu.Lock()
		if sl.record.SurveyID == surveyID && sl.record.ResponseID == responseID {
			rec := sl.record.Clone()
			sl.mu.Unlock()
			return rec, nil
		}
		sl.mu.Unlock()
	}
	return nil, sentinel.ErrNotFound
}

// Execute runs validate then mutate while holding the record's lock, so the
// pair is atomic with respect to concurrent Execute calls on the same
// record. The validate callback must treat the record as read-only. On
// success the version is bumped and a deep copy of the updated record is
// returned.
func (s *InMemory) Execute(_ context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.RLock()
	sl, ok := s.records[recordID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if err := validate(sl.record); err != nil {
		return nil, err
	}
	mutate(sl.record)
	sl.record.Version++
	return sl.record.Clone(), nil
}

// Delete removes a record. Administrative operation outside the transition
// vocabulary.
func (s *InMemory) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, recordID)
	return nil
}

// CountByStatus returns the number of records per workflow status.
func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, sl := range s.records {
		sl.mu.Lock()
		counts[sl.record.Status]++
		sl.mu.Unlock()
	}
	return counts, nil
}

// ListByStatus returns deep copies of all records in the given status.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, sl := range s.records {
		sl.mu.Lock()
		if sl.record.Status == status {
			out = append(out, sl.record.Clone())
		}
		sl.mu.Unlock()
	}
	return out, nil
}
