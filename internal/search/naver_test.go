package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/happynews/internal/news"
)

const sampleResponse = `{
	"lastBuildDate": "Mon, 06 Jan 2025 10:00:00 +0900",
	"total": 1523,
	"start": 1,
	"display": 2,
	"items": [
		{"title": "<b>경제</b> 회복", "originallink": "https://example.co.kr/1", "link": "https://n.news.naver.com/mnews/article/001/0001", "description": "d1", "pubDate": "Mon, 06 Jan 2025 09:00:00 +0900"},
		{"title": "t2", "originallink": "https://example.co.kr/2", "link": "https://example.co.kr/2", "description": "d2", "pubDate": "Mon, 06 Jan 2025 08:00:00 +0900"}
	]
}`

func TestNaver_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Naver-Client-Id") != "id" || r.Header.Get("X-Naver-Client-Secret") != "secret" {
			t.Errorf("expected credential headers, got %v", r.Header)
		}
		q := r.URL.Query()
		if q.Get("query") != "경제" || q.Get("display") != "10" || q.Get("start") != "1" || q.Get("sort") != "date" {
			t.Errorf("unexpected query string %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer ts.Close()

	n, err := NewNaver(NaverConfig{Endpoint: ts.URL, ClientID: "id", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("NewNaver: %v", err)
	}

	res, err := n.Search(context.Background(), news.Query{Text: "경제", Display: 10, Start: 1, Sort: news.SortDate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1523 || len(res.Items) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Items[0].Title != "<b>경제</b> 회복" {
		t.Errorf("expected stubs to be returned unmodified, got %q", res.Items[0].Title)
	}
	if res.Items[0].Link != "https://n.news.naver.com/mnews/article/001/0001" {
		t.Errorf("unexpected link %q", res.Items[0].Link)
	}
}

func TestNaver_UpstreamError(t *testing.T) {
	const body = `{"errorMessage":"Authentication failed (인증에 실패했습니다.)","errorCode":"024"}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	n, _ := NewNaver(NaverConfig{Endpoint: ts.URL, ClientID: "id", ClientSecret: "wrong"})
	_, err := n.Search(context.Background(), news.Query{Text: "x", Display: 10, Start: 1, Sort: news.SortDate})

	var upstream *news.UpstreamSearchError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamSearchError, got %v", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized || upstream.Body != body {
		t.Errorf("expected status and raw body to be relayed, got %d %q", upstream.StatusCode, upstream.Body)
	}
}

func TestNaver_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer ts.Close()

	n, _ := NewNaver(NaverConfig{Endpoint: ts.URL, ClientID: "id", ClientSecret: "secret", Timeout: 10 * time.Millisecond})
	_, err := n.Search(context.Background(), news.Query{Text: "x", Display: 10, Start: 1, Sort: news.SortDate})

	var netErr *news.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if news.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("expected 500 for network failure, got %d", news.StatusCode(err))
	}
}

func TestNewNaver_MissingCredentials(t *testing.T) {
	_, err := NewNaver(NaverConfig{ClientID: "id"})
	var cfgErr *news.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 1 || cfgErr.Missing[0] != "search.client_secret" {
		t.Errorf("unexpected missing list %v", cfgErr.Missing)
	}
}
