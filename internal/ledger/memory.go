package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local ledger. Records vanish when the process exits.
type Memory struct {
	mu      sync.Mutex
	records []Record
	keys    map[string]struct{}
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]struct{})}
}

// Insert appends rec unless its key was already recorded.
func (m *Memory) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[rec.Key]; ok {
		return nil
	}
	m.keys[rec.Key] = struct{}{}
	m.records = append(m.records, rec)
	return nil
}

// SumCharacters totals the session's records created at or after since.
func (m *Memory) SumCharacters(ctx context.Context, sessionID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, rec := range m.records {
		if rec.SessionID == sessionID && !rec.CreatedAt.Before(since) {
			total += rec.Characters
		}
	}
	return total, nil
}

// Stats aggregates the records matching filter.
func (m *Memory) Stats(ctx context.Context, filter StatsFilter, now time.Time) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	m.mu.Lock()
	matched := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}
	m.mu.Unlock()
	return Aggregate(matched, now), nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
