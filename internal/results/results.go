// Package results keeps the history of computed index values.
package results

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cpicli/internal/cpi"
	"cpicli/internal/table"
)

// ErrNoRecords is returned by Latest when nothing has been saved
var ErrNoRecords = errors.New("no index records")

// Record is one stored computation
type Record struct {
	ID          string    `json:"id"`
	BaseDate    string    `json:"base_date"`
	ReportDate  string    `json:"report_date"`
	Index       float64   `json:"index"`
	HasData     bool      `json:"has_data"`
	Weighting   string    `json:"weighting"`
	Coverage    float64   `json:"coverage"`
	Categories  int       `json:"categories"`
	DroppedRows int       `json:"dropped_rows"`
	ComputedAt  time.Time `json:"computed_at"`
}

// NewRecord summarizes a calculator result
func NewRecord(result *cpi.Result, computedAt time.Time) Record {
	return Record{
		ID:          uuid.New().String(),
		BaseDate:    result.BaseDate.Format(table.DateLayout),
		ReportDate:  result.ReportDate.Format(table.DateLayout),
		Index:       result.Index,
		HasData:     result.HasData,
		Weighting:   string(result.Weighting),
		Coverage:    result.Coverage(),
		Categories:  len(result.Categories),
		DroppedRows: result.Diagnostics.Dropped(),
		ComputedAt:  computedAt.UTC(),
	}
}

// Store persists records ordered by report date, newest first
type Store interface {
	Save(ctx context.Context, rec Record) error
	Latest(ctx context.Context) (*Record, error)
	History(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// newer orders records by report date, then computation time, descending
func newer(a, b Record) bool {
	if a.ReportDate != b.ReportDate {
		return a.ReportDate > b.ReportDate
	}
	return a.ComputedAt.After(b.ComputedAt)
}

// MemoryStore is a bounded in-process Store
type MemoryStore struct {
	mu         sync.RWMutex
	records    []Record
	maxHistory int
}

// NewMemoryStore keeps at most maxHistory records; zero or less is unbounded
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{maxHistory: maxHistory}
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	sort.SliceStable(m.records, func(i, j int) bool { return newer(m.records[i], m.records[j]) })
	if m.maxHistory > 0 && len(m.records) > m.maxHistory {
		m.records = m.records[:m.maxHistory]
	}
	return nil
}

// Latest implements Store
func (m *MemoryStore) Latest(ctx context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.records) == 0 {
		return nil, ErrNoRecords
	}
	rec := m.records[0]
	return &rec, nil
}

// History implements Store
func (m *MemoryStore) History(ctx context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, m.records[:n])
	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
