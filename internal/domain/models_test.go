// Path: internal/domain/models_test.go
package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFlexibleCount(t *testing.T) {
	tests := []struct {
		in   string
		want FlexibleCount
	}{
		{`"12345"`, 12345},
		{`678`, 678},
		{`" 42 "`, 42},
		{`"not-a-number"`, 0},
		{`null`, 0},
		{`-5`, 0},
		{`true`, 0},
	}
	for _, tt := range tests {
		var got FlexibleCount
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestItemStats_MissingCounter(t *testing.T) {
	var s ItemStats
	if err := json.Unmarshal([]byte(`{"likeCount":"3"}`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.ViewCount != 0 {
		t.Errorf("ViewCount = %d, want 0", s.ViewCount)
	}
}

func TestViralScore(t *testing.T) {
	if got := ViralScore(0, 0); got != 0 {
		t.Errorf("ViralScore(0, 0) = %v, want 0", got)
	}
	if got := ViralScore(1000, 0); got != 1000 {
		t.Errorf("ViralScore(1000, 0) = %v, want 1000", got)
	}
	if got := ViralScore(1000, 9); got != 100 {
		t.Errorf("ViralScore(1000, 9) = %v, want 100", got)
	}

	// Increasing in views, decreasing in subscribers.
	for subs := int64(0); subs < 50; subs += 7 {
		if ViralScore(500, subs) >= ViralScore(501, subs) {
			t.Errorf("score not increasing in views at subs=%d", subs)
		}
		if ViralScore(500, subs) <= ViralScore(500, subs+1) {
			t.Errorf("score not decreasing in subscribers at subs=%d", subs)
		}
	}
}

func TestShortText(t *testing.T) {
	long := strings.Repeat("x", 250)
	got := ShortText(long, DescriptionLimit)
	if len(got) != 200 {
		t.Fatalf("len = %d, want 200", len(got))
	}
	if !strings.HasSuffix(got, "...") || got[:197] != long[:197] {
		t.Errorf("unexpected truncation %q", got)
	}

	exact := strings.Repeat("y", 200)
	if got := ShortText(exact, DescriptionLimit); got != exact {
		t.Error("200-character text should be kept as is")
	}
	if got := ShortText("", DescriptionLimit); got != "" {
		t.Errorf("ShortText(\"\") = %q", got)
	}
}

func TestNewHistoryRecord(t *testing.T) {
	item := ScoredItem{
		EnrichedItem: EnrichedItem{
			RawItem: RawItem{
				ID:          "vid1",
				ChannelID:   "ch1",
				Term:        "open marriage",
				Title:       "A title",
				Description: strings.Repeat("d", 250),
			},
			Views:       900,
			Subscribers: 2,
		},
		Score: 300,
	}
	now := time.Date(2026, 3, 4, 23, 30, 0, 0, time.FixedZone("X", -5*3600))

	rec := NewHistoryRecord(item, now)
	if rec.ID != "vid1" || rec.Views != 900 || rec.Subscribers != 2 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.LastSeen != "2026-03-05" {
		t.Errorf("LastSeen = %q, want UTC date 2026-03-05", rec.LastSeen)
	}
	if len(rec.Description) != 200 {
		t.Errorf("description length = %d, want 200", len(rec.Description))
	}
	if rec.Terms.String() != "open marriage" {
		t.Errorf("Terms = %q", rec.Terms.String())
	}
	if rec.Score() != 300 {
		t.Errorf("Score() = %v, want 300", rec.Score())
	}
}
