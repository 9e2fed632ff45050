// Path: internal/export/csv_test.go
package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"viral-scout/internal/domain"
)

func readAll(t *testing.T, b *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(b).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	return rows
}

func TestWriteHistory(t *testing.T) {
	recs := []domain.HistoryRecord{{
		ID:          "abc",
		Terms:       domain.TermSet{"open marriage", "aita"},
		Title:       `He said "no", then left`,
		Views:       500,
		Subscribers: 3,
		PublishedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
		LastSeen:    "2026-10-17",
	}}

	var buf bytes.Buffer
	if err := WriteHistory(&buf, recs); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	rows := readAll(t, &buf)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	row := rows[1]
	if row[0] != "abc" || row[1] != "open marriage,aita" || row[2] != `He said "no", then left` {
		t.Errorf("row = %q", row)
	}
	if row[5] != "500" || row[6] != "3" || row[7] != "125.00" {
		t.Errorf("counters = %q", row[5:8])
	}
	if row[8] != "2026-10-01T09:30:00Z" || row[9] != "2026-10-17" || row[10] != WatchURLPrefix+"abc" {
		t.Errorf("tail = %q", row[8:])
	}
}

func TestWriteResults(t *testing.T) {
	item := domain.ScoredItem{
		EnrichedItem: domain.EnrichedItem{
			RawItem:     domain.RawItem{ID: "v1", ChannelID: "c1", Term: "cats", Title: "t"},
			Views:       1000,
			Subscribers: 9,
		},
		Score: 100,
	}
	var buf bytes.Buffer
	if err := WriteResults(&buf, []domain.ScoredItem{item}); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	rows := readAll(t, &buf)
	if len(rows) != 2 || len(rows[0]) != len(resultsHeader) {
		t.Fatalf("rows = %q", rows)
	}
	if rows[1][1] != "cats" || rows[1][8] != "100.00" || rows[1][9] != "" {
		t.Errorf("row = %q", rows[1])
	}
}

func TestWriteHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistory(&buf, nil); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	if rows := readAll(t, &buf); len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
