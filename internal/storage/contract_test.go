// Path: internal/storage/contract_test.go
package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"viral-scout/internal/domain"
)

func record(id, term string, views, subs int64, lastSeen string) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:           id,
		Terms:        domain.TermSet{term},
		Title:        "title " + id,
		Description:  "desc " + lastSeen,
		ThumbnailURL: "https://img/" + id,
		Views:        views,
		Subscribers:  subs,
		PublishedAt:  time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
		LastSeen:     lastSeen,
	}
}

func mustFind(t *testing.T, s Store, id string) domain.HistoryRecord {
	t.Helper()
	rec, err := s.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	if rec == nil {
		t.Fatalf("FindByID(%s) = nil", id)
	}
	return *rec
}

// runStoreContract exercises the merge policy against a freshly emptied store.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("insert", func(t *testing.T) {
		rec := record("v1", "open marriage", 100, 5, "2026-10-01")
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		got := mustFind(t, s, "v1")
		if got.Title != rec.Title || got.Views != 100 || got.Subscribers != 5 || got.LastSeen != "2026-10-01" {
			t.Errorf("got %+v", got)
		}
		if !got.PublishedAt.Equal(rec.PublishedAt) {
			t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, rec.PublishedAt)
		}
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"open marriage"}) {
			t.Errorf("Terms = %v", got.Terms)
		}
	})

	t.Run("idempotent term", func(t *testing.T) {
		if err := s.Upsert(ctx, record("v1", "open marriage", 250, 6, "2026-10-02")); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		got := mustFind(t, s, "v1")
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"open marriage"}) {
			t.Errorf("Terms = %v, want no duplicate", got.Terms)
		}
		if got.Views != 250 || got.Subscribers != 6 || got.LastSeen != "2026-10-02" {
			t.Errorf("counters not refreshed: %+v", got)
		}
		if got.Description != "desc 2026-10-02" {
			t.Errorf("Description = %q, want the newer one", got.Description)
		}
	})

	t.Run("union keeps first title", func(t *testing.T) {
		rec := record("v1", "reddit cheating", 300, 6, "2026-10-03")
		rec.Title = "renamed"
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		got := mustFind(t, s, "v1")
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"open marriage", "reddit cheating"}) {
			t.Errorf("Terms = %v", got.Terms)
		}
		if got.Title != "title v1" {
			t.Errorf("Title = %q, want first insert's title", got.Title)
		}
	})

	t.Run("substring terms are distinct", func(t *testing.T) {
		if err := s.Upsert(ctx, record("v2", "AITA Update", 1, 1, "2026-10-03")); err != nil {
			t.Fatal(err)
		}
		if err := s.Upsert(ctx, record("v2", "AI", 1, 1, "2026-10-03")); err != nil {
			t.Fatal(err)
		}
		got := mustFind(t, s, "v2")
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"AITA Update", "AI"}) {
			t.Errorf("Terms = %v", got.Terms)
		}
	})

	t.Run("remove term", func(t *testing.T) {
		if err := s.RemoveQueryTerm(ctx, "v1", "open marriage"); err != nil {
			t.Fatalf("RemoveQueryTerm: %v", err)
		}
		got := mustFind(t, s, "v1")
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"reddit cheating"}) {
			t.Errorf("Terms = %v", got.Terms)
		}
		if err := s.RemoveQueryTerm(ctx, "missing", "x"); err != nil {
			t.Errorf("RemoveQueryTerm on absent id: %v", err)
		}
	})

	t.Run("bulk upsert merges repeats", func(t *testing.T) {
		err := s.BulkUpsert(ctx, []domain.HistoryRecord{
			record("v3", "a", 10, 1, "2026-10-04"),
			record("v3", "b", 20, 2, "2026-10-05"),
			record("v4", "a", 30, 3, "2026-10-05"),
		})
		if err != nil {
			t.Fatalf("BulkUpsert: %v", err)
		}
		got := mustFind(t, s, "v3")
		if !reflect.DeepEqual(got.Terms, domain.TermSet{"a", "b"}) || got.Views != 20 {
			t.Errorf("v3 = %+v", got)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		all, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		var ids []string
		for _, r := range all {
			ids = append(ids, r.ID)
		}
		if !reflect.DeepEqual(ids, []string{"v1", "v2", "v3", "v4"}) {
			t.Errorf("ids = %v", ids)
		}

		if err := s.Delete(ctx, "v2"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if rec, err := s.FindByID(ctx, "v2"); err != nil || rec != nil {
			t.Errorf("FindByID after delete = %v, %v", rec, err)
		}
		if err := s.Delete(ctx, "v2"); err != nil {
			t.Errorf("second Delete: %v", err)
		}

		n, err := s.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		if n != 3 {
			t.Errorf("DeleteAll removed %d, want 3", n)
		}
		all, _ = s.ListAll(ctx)
		if len(all) != 0 {
			t.Errorf("ListAll after DeleteAll = %d records", len(all))
		}
	})

	t.Run("runs", func(t *testing.T) {
		last, err := s.LastRun(ctx)
		if err != nil || last != nil {
			t.Fatalf("LastRun on empty store = %v, %v", last, err)
		}

		base := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
		older := domain.RunSummary{ID: "r1", State: domain.RunStateCompleted, Terms: []string{"a"}, StartedAt: base}
		newer := domain.RunSummary{ID: "r2", State: domain.RunStateRunning, Terms: []string{"a", "b"}, StartedAt: base.Add(time.Minute)}
		for _, r := range []domain.RunSummary{older, newer} {
			if err := s.SaveRun(ctx, r); err != nil {
				t.Fatalf("SaveRun: %v", err)
			}
		}

		newer.State = domain.RunStateCompleted
		newer.FinishedAt = base.Add(2 * time.Minute)
		newer.Searched, newer.Unique, newer.Accepted, newer.Saved = 10, 8, 3, 3
		if err := s.SaveRun(ctx, newer); err != nil {
			t.Fatalf("SaveRun update: %v", err)
		}

		last, err = s.LastRun(ctx)
		if err != nil || last == nil {
			t.Fatalf("LastRun = %v, %v", last, err)
		}
		if last.ID != "r2" || last.State != domain.RunStateCompleted || last.Accepted != 3 || last.Unique != 8 {
			t.Errorf("LastRun = %+v", last)
		}
		if !last.FinishedAt.Equal(newer.FinishedAt) || len(last.Terms) != 2 {
			t.Errorf("LastRun = %+v", last)
		}
	})
}
