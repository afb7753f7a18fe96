package storage

import (
	"math"

	sq "github.com/Masterminds/squirrel"
)

// Table is the audit table shared by the SQL backends.
const Table = "fetch_audit"

// Columns lists the audit columns in scan order.
var Columns = []string{
	"id", "url", "host", "status_code", "duration_ms", "bytes",
	"detected_bot", "detection_src", "outcome", "error", "created_at",
}

// InsertQuery builds the INSERT for rec.
func InsertQuery(rec *FetchRecord, format sq.PlaceholderFormat) (string, []any, error) {
	return sq.Insert(Table).
		Columns(Columns...).
		Values(
			rec.ID, rec.URL, rec.Host, rec.StatusCode, rec.Duration.Milliseconds(), rec.Bytes,
			rec.DetectedBot, rec.DetectionSrc, rec.Outcome, rec.Error, rec.CreatedAt.UTC(),
		).
		PlaceholderFormat(format).
		ToSql()
}

// SelectQuery builds the newest-first SELECT for filter.
func SelectQuery(filter Filter, format sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select(Columns...).From(Table)

	if filter.URL != "" {
		q = q.Where(sq.Eq{"url": filter.URL})
	}
	if filter.Host != "" {
		q = q.Where(sq.Eq{"host": filter.Host})
	}
	if filter.Outcome != "" {
		q = q.Where(sq.Eq{"outcome": filter.Outcome})
	}
	if filter.Since != nil {
		// sqlite compares created_at as text, so both sides must be UTC
		q = q.Where(sq.GtOrEq{"created_at": filter.Since.UTC()})
	}

	q = q.OrderBy("created_at DESC")
	switch {
	case filter.Limit > 0:
		q = q.Limit(uint64(filter.Limit))
	case filter.Offset > 0:
		// SQLite rejects OFFSET without LIMIT
		q = q.Limit(math.MaxInt64)
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q.PlaceholderFormat(format).ToSql()
}
