package csvbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/happynews/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	b, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()

	empty, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query empty log: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected no records, got %d", len(empty))
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &storage.FetchRecord{
		ID:           "csv-1",
		URL:          "https://n.news.naver.com/article/421/0001",
		Host:         "n.news.naver.com",
		StatusCode:   403,
		Duration:     250 * time.Millisecond,
		Bytes:        512,
		DetectedBot:  true,
		DetectionSrc: "Akamai",
		Outcome:      storage.OutcomeBlocked,
		Error:        `blocked, "quoted"`,
		CreatedAt:    now,
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := b.Save(ctx, &storage.FetchRecord{ID: "csv-2", Outcome: storage.OutcomeOK, CreatedAt: now}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := b.Query(ctx, storage.Filter{Outcome: storage.OutcomeBlocked})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}

	r := got[0]
	if r.ID != rec.ID || r.Error != rec.Error || r.Bytes != rec.Bytes || r.DetectionSrc != rec.DetectionSrc || !r.DetectedBot {
		t.Errorf("Expected %+v, got %+v", rec, r)
	}
	if !r.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", rec.CreatedAt, r.CreatedAt)
	}
	if r.Duration != rec.Duration {
		t.Errorf("Expected Duration %v, got %v", rec.Duration, r.Duration)
	}
}
