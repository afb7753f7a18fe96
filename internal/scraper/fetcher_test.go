package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/happynews/internal/fingerprint"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/internal/storage"
	"github.com/FranksOps/happynews/pkg/proxy"
	"github.com/FranksOps/happynews/pkg/useragent"
)

type memRecorder struct {
	mu   sync.Mutex
	recs []*storage.FetchRecord
}

func (m *memRecorder) Save(_ context.Context, rec *storage.FetchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memRecorder) Query(_ context.Context, f storage.Filter) ([]*storage.FetchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.FetchRecord
	for _, r := range m.recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return f.Page(out), nil
}

func (m *memRecorder) Close() error { return nil }

func (m *memRecorder) all() []*storage.FetchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.FetchRecord(nil), m.recs...)
}

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBrowser/1.0" {
			t.Errorf("expected pooled User-Agent, got %q", got)
		}
		if got := r.Header.Get("Accept-Language"); got == "" {
			t.Errorf("expected Accept-Language header, got none")
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	rec := &memRecorder{}
	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"TestBrowser/1.0"}, useragent.ModeSequential),
		Recorder:    rec,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusOK || !page.OK() {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if string(page.Body) != "ok" {
		t.Errorf("expected body 'ok', got %s", string(page.Body))
	}
	if page.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", page.Header["X-Test"])
	}
	if page.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}

	recs := rec.all()
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recs))
	}
	if recs[0].ID == "" || recs[0].Outcome != storage.OutcomeOK || recs[0].Bytes != 2 {
		t.Errorf("unexpected audit record %+v", recs[0])
	}
	if recs[0].Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", recs[0].Host)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rec := &memRecorder{}
	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
		Recorder:    rec,
	})

	_, err := fetcher.Fetch(context.Background(), ts.URL)
	var netErr *news.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}

	recs := rec.all()
	if len(recs) != 1 || recs[0].Outcome != storage.OutcomeError || recs[0].Error == "" {
		t.Errorf("expected an error audit record, got %+v", recs)
	}
}

func TestFetcher_DetectsChallenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html><title>Just a moment...</title><div id="challenge-form"></div></html>`))
	}))
	defer ts.Close()

	rec := &memRecorder{}
	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo, Recorder: rec})

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.DetectedBot || page.DetectionSrc != "Cloudflare" {
		t.Errorf("expected Cloudflare detection, got %v %q", page.DetectedBot, page.DetectionSrc)
	}
	if recs := rec.all(); len(recs) != 1 || recs[0].Outcome != storage.OutcomeBlocked {
		t.Errorf("expected blocked audit record, got %+v", recs)
	}
}

func TestFetcher_BadStatusRecorded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	rec := &memRecorder{}
	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo, Recorder: rec})

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.OK() {
		t.Errorf("expected 404 page to not be OK")
	}
	if recs := rec.all(); len(recs) != 1 || recs[0].Outcome != storage.OutcomeStatus {
		t.Errorf("expected bad_status audit record, got %+v", recs)
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// The "proxy" answers every request itself, so a 418 proves routing.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	pPool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Second})
	if err := pPool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pPool,
	})

	targetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer targetServer.Close()

	page, err := fetcher.Fetch(context.Background(), targetServer.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 Teapot from proxy, got %d", page.StatusCode)
	}
}
