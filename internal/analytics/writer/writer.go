// Package writer streams booking event rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/googleapis/gax-go/v2"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/types"
)

// Inserter is the streaming insert surface of pkg/bigquery.Client.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Options tune batching and retries. Zero values pick defaults: rows are
// written one at a time with three attempts.
type Options struct {
	Table     string
	BatchSize int
	Attempts  int
	Backoff   gax.Backoff
}

// BookingWriter buffers rows and writes them in batches. It is safe for the
// concurrent callbacks of a Pub/Sub receiver.
type BookingWriter struct {
	dst      Inserter
	table    string
	batch    int
	attempts int
	backoff  gax.Backoff

	mu      sync.Mutex
	pending []types.BookingEventRow
}

func New(dst Inserter, opts Options) (*BookingWriter, error) {
	if dst == nil {
		return nil, errors.New("bigquery inserter is required")
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		return nil, errors.New("booking table is required")
	}
	w := &BookingWriter{
		dst:      dst,
		table:    table,
		batch:    max(opts.BatchSize, 1),
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
	}
	if w.attempts <= 0 {
		w.attempts = 3
	}
	if w.backoff.Initial <= 0 {
		w.backoff.Initial = 250 * time.Millisecond
	}
	if w.backoff.Max < w.backoff.Initial {
		w.backoff.Max = max(2*time.Second, w.backoff.Initial)
	}
	return w, nil
}

// InsertBooking queues row and writes the batch once it is full. When that
// write fails only row is dropped from the queue; earlier rows belong to
// messages that were already acked and wait for the next write.
func (w *BookingWriter) InsertBooking(ctx context.Context, row types.BookingEventRow) error {
	if row.IngestedAt.IsZero() {
		row.IngestedAt = time.Now().UTC()
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, row)
	if len(w.pending) < w.batch {
		return nil
	}
	if err := w.writePending(ctx); err != nil {
		w.pending = w.pending[:len(w.pending)-1]
		return err
	}
	return nil
}

// Flush writes whatever is queued.
func (w *BookingWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writePending(ctx)
}

func (w *BookingWriter) writePending(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &w.pending[i])
	}
	if err := w.put(ctx, rows); err != nil {
		return fmt.Errorf("write %d rows to %s: %w", len(rows), w.table, err)
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BookingWriter) put(ctx context.Context, rows []any) error {
	bo := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.dst.InsertRows(ctx, w.table, rows)
		if err == nil || attempt >= w.attempts || !transient(err) {
			return err
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return err
		}
	}
}

// JSONColumn prepares payload for a nullable BigQuery JSON column.
func JSONColumn(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json column: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
