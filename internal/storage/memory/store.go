// Package memory provides an in-memory storage implementation for case records.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sftools/incident-classifier/pkg/models"
)

// Store is an in-memory storage for classified case records.
type Store struct {
	mu    sync.RWMutex
	cases map[string]*models.CaseRecord
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		cases: make(map[string]*models.CaseRecord),
	}
}

// StoreCase stores a classified case record.
func (s *Store) StoreCase(ctx context.Context, record *models.CaseRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cases[record.ID] = record
	return nil
}

// GetCase retrieves a case record by ID.
func (s *Store) GetCase(ctx context.Context, id string) (*models.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.cases[id]
	if !exists {
		return nil, fmt.Errorf("case %s: %w", id, models.ErrNotFound)
	}

	return record, nil
}

// ListCases returns stored cases, newest first, optionally filtered.
func (s *Store) ListCases(ctx context.Context, alertType string, matchedOnly bool) ([]*models.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.CaseRecord, 0, len(s.cases))
	for _, record := range s.cases {
		if alertType != "" && record.AlertTypeName != alertType {
			continue
		}
		if matchedOnly && !record.Matched {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// TypeStats returns per-alert-type case counts, highest count first.
func (s *Store) TypeStats(ctx context.Context) ([]models.TypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, record := range s.cases {
		name := record.AlertTypeName
		if name == "" {
			name = "Unmatched"
		}
		counts[name]++
	}

	stats := make([]models.TypeCount, 0, len(counts))
	for name, count := range counts {
		stats = append(stats, models.TypeCount{AlertTypeName: name, Count: count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].AlertTypeName < stats[j].AlertTypeName
		}
		return stats[i].Count > stats[j].Count
	})

	return stats, nil
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cases = make(map[string]*models.CaseRecord)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
