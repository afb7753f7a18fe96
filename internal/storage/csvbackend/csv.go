package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/happynews/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// header defines the CSV column order
var header = []string{
	"id",
	"url",
	"host",
	"status_code",
	"duration_ms",
	"bytes",
	"detected_bot",
	"detection_src",
	"outcome",
	"error",
	"created_at",
}

// New opens a CSV audit log at filePath, writing the header row if the file
// is new.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	row := []string{
		rec.ID,
		rec.URL,
		rec.Host,
		strconv.Itoa(rec.StatusCode),
		strconv.FormatInt(rec.Duration.Milliseconds(), 10),
		strconv.FormatInt(rec.Bytes, 10),
		strconv.FormatBool(rec.DetectedBot),
		rec.DetectionSrc,
		rec.Outcome,
		rec.Error,
		rec.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: flush: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = len(header)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*storage.FetchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return filter.Page(matched), nil
}

func parseRow(row []string) (*storage.FetchRecord, error) {
	status, err := strconv.Atoi(row[3])
	if err != nil {
		return nil, fmt.Errorf("csvbackend: status_code: %w", err)
	}
	durationMs, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: duration_ms: %w", err)
	}
	size, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: bytes: %w", err)
	}
	detected, err := strconv.ParseBool(row[6])
	if err != nil {
		return nil, fmt.Errorf("csvbackend: detected_bot: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, row[10])
	if err != nil {
		return nil, fmt.Errorf("csvbackend: created_at: %w", err)
	}

	return &storage.FetchRecord{
		ID:           row[0],
		URL:          row[1],
		Host:         row[2],
		StatusCode:   status,
		Duration:     time.Duration(durationMs) * time.Millisecond,
		Bytes:        size,
		DetectedBot:  detected,
		DetectionSrc: row[7],
		Outcome:      row[8],
		Error:        row[9],
		CreatedAt:    created,
	}, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
