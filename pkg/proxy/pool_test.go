package proxy

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestPool_AddAndNext(t *testing.T) {
	pool := NewPool(Config{})

	err := pool.Add("127.0.0.1:8080", "# comment", "", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050", "http://127.0.0.1:8081")
	if err != nil {
		t.Fatalf("unexpected error adding proxies: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 proxies after skipping comments and duplicates, got %d", pool.Len())
	}

	want := []string{"http://127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050", "http://127.0.0.1:8080"}
	for i, w := range want {
		got := pool.Next()
		if got == nil || got.String() != w {
			t.Errorf("call %d: expected %s, got %v", i, w, got)
		}
	}
}

func TestPool_HealthTracking(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Minute})
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }

	if err := pool.Add("http://a", "http://b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := pool.Next()
	if a.String() != "http://a" {
		t.Fatalf("expected http://a, got %v", a)
	}
	_ = pool.MarkFailure(a)
	_ = pool.MarkFailure(a)

	for i := 0; i < 2; i++ {
		if got := pool.Next(); got.String() != "http://b" {
			t.Fatalf("expected http://b while a cools down, got %v", got)
		}
	}

	now = now.Add(2 * time.Minute)
	if got := pool.Next(); got.String() != "http://a" {
		t.Fatalf("expected http://a after cooldown, got %v", got)
	}
}

func TestPool_SuccessResetsFailures(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	_ = pool.Add("http://a")

	a := pool.Next()
	_ = pool.MarkFailure(a)
	_ = pool.MarkSuccess(a)
	_ = pool.MarkFailure(a)

	if got := pool.Next(); got == nil {
		t.Errorf("expected proxy to remain available after an intermediate success")
	}
}

func TestPool_AllDisabled(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 1, Cooldown: time.Hour})
	_ = pool.Add("http://a")

	_ = pool.MarkFailure(pool.Next())
	if got := pool.Next(); got != nil {
		t.Errorf("expected nil when all proxies are cooling down, got %v", got)
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(Config{})
	if got := pool.Next(); got != nil {
		t.Errorf("expected nil from empty pool, got %v", got)
	}
}

func TestPool_MarkUnknown(t *testing.T) {
	pool := NewPool(Config{})
	u, _ := url.Parse("http://nowhere")

	if err := pool.MarkFailure(u); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy, got %v", err)
	}
	if err := pool.MarkSuccess(nil); err == nil {
		t.Errorf("expected error for nil url")
	}
}
