// Package worker drains queued audit events into a store, optionally in
// batches.
package worker

import (
	"context"
	"time"

	audit "ekyc/pkg/platform/audit"
)

// BatchAppender is implemented by stores that can write several events in
// one round trip.
type BatchAppender interface {
	AppendBatch(ctx context.Context, events []audit.Event) error
}

// FlushFunc observes every write the worker performs.
type FlushFunc func(ctx context.Context, events []audit.Event, elapsed time.Duration, err error)

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store         audit.Store
	inbox         <-chan audit.Event
	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration
	onFlush       FlushFunc
}

// Option configures a Worker.
type Option func(*Worker)

// WithBatchSize groups up to n events per write. Batches only reach the
// store as one call when it implements BatchAppender.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval bounds how long a partial batch waits.
func WithFlushInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.writeTimeout = d
		}
	}
}

// WithFlushHandler reports each write's outcome.
func WithFlushHandler(fn FlushFunc) Option {
	return func(w *Worker) {
		w.onFlush = fn
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{
		store:         store,
		inbox:         inbox,
		batchSize:     1,
		flushInterval: 200 * time.Millisecond,
		writeTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run persists events until inbox is closed, flushing whatever is pending
// before it returns. Cancelling ctx also flushes and returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	var pending []audit.Event
	for {
		select {
		case <-ctx.Done():
			w.flush(pending)
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				w.flush(pending)
				return nil
			}
			pending = append(pending, event)
			if len(pending) >= w.batchSize {
				w.flush(pending)
				pending = nil
			}
		case <-ticker.C:
			if len(pending) > 0 {
				w.flush(pending)
				pending = nil
			}
		}
	}
}

func (w *Worker) flush(events []audit.Event) {
	if len(events) == 0 {
		return
	}
	// The requests that produced these events may be gone by now.
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if batcher, ok := w.store.(BatchAppender); ok && len(events) > 1 {
		start := time.Now()
		err := batcher.AppendBatch(ctx, events)
		w.report(ctx, events, time.Since(start), err)
		return
	}
	for i := range events {
		start := time.Now()
		err := w.store.Append(ctx, events[i])
		w.report(ctx, events[i:i+1], time.Since(start), err)
	}
}

func (w *Worker) report(ctx context.Context, events []audit.Event, elapsed time.Duration, err error) {
	if w.onFlush != nil {
		w.onFlush(ctx, events, elapsed, err)
	}
}
