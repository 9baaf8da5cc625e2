package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/radiusdt/adsight/internal/models"
)

const periodLayout = "2006-01-02"

// ParsePeriod parses a YYYY-MM-DD reporting period.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: expected YYYY-MM-DD", period)
	}
	return t, nil
}

// InMemoryRecordSource serves records held in memory. It backs local
// development and tests.
type InMemoryRecordSource struct {
	mu      sync.RWMutex
	records []models.Record
}

// NewInMemoryRecordSource creates a source over a copy of records.
func NewInMemoryRecordSource(records []models.Record) *InMemoryRecordSource {
	return &InMemoryRecordSource{records: append([]models.Record(nil), records...)}
}

// FetchPeriod returns a copy of the records whose report_month falls on
// period.
func (s *InMemoryRecordSource) FetchPeriod(_ context.Context, period string) ([]models.Record, error) {
	month, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, r := range s.records {
		if sameDay(r.ReportMonth, month) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Add appends records to the source.
func (s *InMemoryRecordSource) Add(records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// fileRecord mirrors models.Record with report_month as a date string.
type fileRecord struct {
	models.Record
	ReportMonth string `json:"report_month"`
}

// LoadRecordsFile reads a JSON array of records. report_month may be a
// YYYY-MM-DD date or an RFC 3339 timestamp.
func LoadRecordsFile(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode records file: %w", err)
	}

	records := make([]models.Record, 0, len(raw))
	for i, fr := range raw {
		r := fr.Record
		month, err := time.Parse(periodLayout, fr.ReportMonth)
		if err != nil {
			month, err = time.Parse(time.RFC3339, fr.ReportMonth)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid report_month %q", i, fr.ReportMonth)
		}
		r.ReportMonth = month
		records = append(records, r)
	}
	return records, nil
}
