package storage

import (
	"context"
	"time"
)

// Outcome values recorded for a fetch attempt.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeStatus  = "bad_status"
	OutcomeBlocked = "blocked"
)

// FetchRecord is one article fetch attempt. Bodies are never stored.
type FetchRecord struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Host         string        `json:"host"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	Bytes        int64         `json:"bytes"`
	DetectedBot  bool          `json:"detected_bot"`
	DetectionSrc string        `json:"detection_src,omitempty"` // e.g. "Cloudflare", "NaverCaptcha"
	Outcome      string        `json:"outcome"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Filter selects FetchRecords. Zero fields do not filter.
type Filter struct {
	URL     string
	Host    string
	Outcome string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Backend is an append-only fetch audit log.
type Backend interface {
	Save(ctx context.Context, rec *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}

// Match reports whether rec passes the filter's predicates (not paging).
func (f Filter) Match(rec *FetchRecord) bool {
	if f.URL != "" && rec.URL != f.URL {
		return false
	}
	if f.Host != "" && rec.Host != f.Host {
		return false
	}
	if f.Outcome != "" && rec.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && rec.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies newest-first ordering, Offset and Limit to records that are
// in insertion order. File backends use it after filtering in memory.
func (f Filter) Page(recs []*FetchRecord) []*FetchRecord {
	out := make([]*FetchRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i])
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*FetchRecord{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}
