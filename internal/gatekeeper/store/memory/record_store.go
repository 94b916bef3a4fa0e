package memory

import (
	"context"
	"sync"
	"time"

	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
)

// RecordStore is an in-memory implementation of store.RecordStore.
// It is intended for use in tests and dev environments.
type RecordStore struct {
	mu      sync.Mutex
	nextID  int64
	records []store.AdmissionRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{nextID: 1}
}

func (s *RecordStore) GetActiveRecords(_ context.Context, identifier, applicantID string) ([]store.AdmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AdmissionRecord
	for _, rec := range s.records {
		if rec.Identifier == identifier && rec.ApplicantID == applicantID && !rec.Invalidated {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RecordStore) Insert(_ context.Context, rec store.AdmissionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *RecordStore) InvalidateAll(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range s.records {
		if _, ok := set[s.records[i].ID]; ok {
			s.records[i].Invalidated = true
		}
	}
	return nil
}

func (s *RecordStore) PruneInvalidatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, rec := range s.records {
		if rec.Invalidated && rec.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// All returns a copy of every record, invalidated ones included.
// Test-only helper.
func (s *RecordStore) All() []store.AdmissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AdmissionRecord, len(s.records))
	copy(out, s.records)
	return out
}
