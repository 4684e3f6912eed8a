package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/weather-ingest/internal/ingest"
)

var (
	// ErrNotFound is returned when no record has been stored yet.
	ErrNotFound = errors.New("no records stored")
)

// StoredRecord is a record plus the time the store accepted it.
type StoredRecord struct {
	Record     ingest.CanonicalRecord
	ReceivedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory implementation of ingest.Store.
type MemoryStore struct {
	mu sync.RWMutex

	records []StoredRecord
	// key: signal name
	signals map[string]ingest.SignalDescriptor

	// retention configuration
	maxHistory int           // max number of records kept
	maxAge     time.Duration // optional max age for records

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		signals:    make(map[string]ingest.SignalDescriptor),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Insert appends a record and enforces retention.
func (s *MemoryStore) Insert(_ context.Context, rec ingest.CanonicalRecord) (ingest.Ack, error) {
	if len(rec.Series) == 0 {
		return ingest.Ack{}, fmt.Errorf("%w: empty series", ingest.ErrStoreRejected)
	}

	// Own a copy; callers may reuse the map.
	series := make(map[string]float64, len(rec.Series))
	for k, v := range rec.Series {
		series[k] = v
	}
	rec.Series = series

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.records = append(s.records, StoredRecord{Record: rec, ReceivedAt: now})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.records) > s.maxHistory {
		over := len(s.records) - s.maxHistory
		s.records = s.records[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		i := 0
		for ; i < len(s.records); i++ {
			if !s.records[i].ReceivedAt.Before(cutoff) {
				break
			}
		}
		s.records = s.records[i:]
	}

	body, _ := json.Marshal(map[string]int{"stored": len(s.records)})
	return ingest.Ack{Store: "memory", Body: body}, nil
}

// SaveSignals merges the descriptors into the known signals. Enum labels are
// added or overwritten per code; createOnly skips signals that already exist.
func (s *MemoryStore) SaveSignals(_ context.Context, inputs map[string]ingest.SignalDescriptor, createOnly bool) (ingest.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[string]string, len(inputs))
	for input, d := range inputs {
		existing, ok := s.signals[d.Name]
		switch {
		case ok && createOnly:
			saved[input] = "skipped"
			continue
		case ok:
			saved[input] = "updated"
		default:
			saved[input] = "created"
		}

		merged := ingest.SignalDescriptor{Name: d.Name, Type: d.Type}
		if len(existing.EnumValues) > 0 || len(d.EnumValues) > 0 {
			merged.EnumValues = make(map[int]string, len(existing.EnumValues)+len(d.EnumValues))
			for code, label := range existing.EnumValues {
				merged.EnumValues[code] = label
			}
			for code, label := range d.EnumValues {
				merged.EnumValues[code] = label
			}
		}
		s.signals[d.Name] = merged
	}

	body, _ := json.Marshal(saved)
	return ingest.Ack{Store: "memory", Body: body}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Latest returns the most recent record.
func (s *MemoryStore) Latest() (ingest.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return ingest.CanonicalRecord{}, ErrNotFound
	}
	return s.records[len(s.records)-1].Record, nil
}

// Records returns all retained records, oldest first.
func (s *MemoryStore) Records() []StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Signal returns the descriptor registered under name.
func (s *MemoryStore) Signal(name string) (ingest.SignalDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.signals[name]
	return d, ok
}
