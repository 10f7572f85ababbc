// Package batch implements a chunked write buffer. Plan generation and
// recommendation refresh produce hundreds of writes per run; storage
// backends cap how many operations one atomic commit may carry, so the
// writer buffers operations and commits them in bounded chunks.
//
// A chunk is the only atomicity boundary: chunks already committed stay
// committed when a later chunk fails. Callers accept partial progress and
// re-running is expected to be idempotent.
package batch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/seedlinghq/seedling-engine/pkg/retry"
)

// DefaultLimit is the default maximum number of operations per commit,
// mirroring the 500-operation limit common to document-store batch APIs.
const DefaultLimit = 500

// ErrClosed is returned when adding to a writer after Close.
var ErrClosed = errors.New("batch: writer is closed")

// CommitFunc commits one chunk of operations atomically.
type CommitFunc[T any] func(ctx context.Context, ops []T) error

// Stats reports writer progress. Committed counts survive a failed flush so
// callers can report partial progress.
type Stats struct {
	OpsBuffered    int
	OpsCommitted   int
	ChunksFlushed  int
	FailedAttempts int
}

// Writer buffers operations and flushes them through a CommitFunc whenever
// the buffer reaches the configured limit. Flush must be called once at the
// end to commit the remainder. Writer is not safe for concurrent use; batch
// jobs build one writer per child or per run.
type Writer[T any] struct {
	limit   int
	commit  CommitFunc[T]
	retrier *retry.Retrier
	logger  *slog.Logger

	buf    []T
	stats  Stats
	closed bool
}

// Option configures a Writer.
type Option[T any] func(*Writer[T])

// WithLimit overrides the per-chunk operation limit.
func WithLimit[T any](limit int) Option[T] {
	return func(w *Writer[T]) {
		if limit > 0 {
			w.limit = limit
		}
	}
}

// WithRetrier retries failed chunk commits with the given retrier.
// Commit functions must be safe to re-run for this to be sound.
func WithRetrier[T any](r *retry.Retrier) Option[T] {
	return func(w *Writer[T]) {
		w.retrier = r
	}
}

// WithLogger sets the logger used for flush diagnostics.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(w *Writer[T]) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter creates a chunked writer committing through fn.
func NewWriter[T any](fn CommitFunc[T], opts ...Option[T]) *Writer[T] {
	w := &Writer[T]{
		limit:  DefaultLimit,
		commit: fn,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.buf = make([]T, 0, w.limit)
	return w
}

// Add buffers one operation, flushing first if the buffer is full.
func (w *Writer[T]) Add(ctx context.Context, op T) error {
	if w.closed {
		return ErrClosed
	}
	if len(w.buf) >= w.limit {
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}
	w.buf = append(w.buf, op)
	w.stats.OpsBuffered++
	return nil
}

// Flush commits all buffered operations as one chunk. It is a no-op on an
// empty buffer. On failure the buffer is kept so a caller may retry Flush;
// previously committed chunks are unaffected.
func (w *Writer[T]) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}

	ops := w.buf
	do := func(ctx context.Context) error {
		return w.commit(ctx, ops)
	}

	var err error
	if w.retrier != nil {
		err = w.retrier.Do(ctx, do)
	} else {
		err = do(ctx)
	}
	if err != nil {
		w.stats.FailedAttempts++
		w.logger.Error("chunk commit failed",
			"ops", len(ops),
			"chunks_flushed", w.stats.ChunksFlushed,
			"error", err,
		)
		return err
	}

	w.stats.OpsCommitted += len(ops)
	w.stats.ChunksFlushed++
	w.buf = w.buf[:0]
	return nil
}

// Close flushes the remaining operations and rejects further writes.
func (w *Writer[T]) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	err := w.Flush(ctx)
	if err == nil {
		w.closed = true
	}
	return err
}

// Len returns the number of currently buffered operations.
func (w *Writer[T]) Len() int {
	return len(w.buf)
}

// Stats returns a snapshot of writer progress.
func (w *Writer[T]) Stats() Stats {
	return w.stats
}
