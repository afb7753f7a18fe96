package storage

import (
	"testing"
	"time"
)

func TestFilter_Match(t *testing.T) {
	now := time.Now()
	rec := &FetchRecord{URL: "https://n.news.naver.com/a", Host: "n.news.naver.com", Outcome: OutcomeOK, CreatedAt: now}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"url", Filter{URL: rec.URL}, true},
		{"other url", Filter{URL: "https://x"}, false},
		{"host", Filter{Host: "n.news.naver.com"}, true},
		{"outcome", Filter{Outcome: OutcomeBlocked}, false},
		{"since past", Filter{Since: &past}, true},
		{"since future", Filter{Since: &future}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(rec); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestFilter_Page(t *testing.T) {
	recs := []*FetchRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}

	got := Filter{Offset: 1, Limit: 2}.Page(recs)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("expected [3 2], got %v", ids(got))
	}

	if got := (Filter{Offset: 10}).Page(recs); len(got) != 0 {
		t.Errorf("expected empty page, got %v", ids(got))
	}
}

func ids(recs []*FetchRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
