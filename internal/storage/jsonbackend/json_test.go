package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/happynews/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	b, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	for i, outcome := range []string{storage.OutcomeOK, storage.OutcomeError, storage.OutcomeOK} {
		rec := &storage.FetchRecord{
			ID:        string(rune('a' + i)),
			URL:       "https://n.news.naver.com/article/" + string(rune('a'+i)),
			Host:      "n.news.naver.com",
			Outcome:   outcome,
			Duration:  time.Duration(i+1) * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := b.Save(ctx, rec); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	oks, err := b.Query(ctx, storage.Filter{Outcome: storage.OutcomeOK})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(oks) != 2 || oks[0].ID != "c" || oks[1].ID != "a" {
		t.Fatalf("Expected [c a] newest first, got %d records", len(oks))
	}
	if oks[0].Duration != 3*time.Millisecond {
		t.Errorf("Expected duration to round-trip, got %v", oks[0].Duration)
	}

	since := base.Add(90 * time.Second)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query since: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Errorf("Expected only c after %v", since)
	}

	// writes after a query still append
	if err := b.Save(ctx, &storage.FetchRecord{ID: "d", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("Failed to save after query: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer reopened.Close()

	all, err := reopened.Query(ctx, storage.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to query reopened: %v", err)
	}
	if len(all) != 2 || all[0].ID != "d" {
		t.Errorf("Expected limit 2 with d first, got %d records", len(all))
	}
}
