// Package publisher delivers audit events to an audit.Store.
//
// Compliance events are always written. Operations events pass through an
// optional sampler first. In async mode events are queued on a bounded buffer
// and persisted by a background worker; Close drains the queue.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "ekyc/pkg/platform/audit"
	"ekyc/pkg/platform/audit/worker"
)

// ErrBufferFull is returned by Emit in async mode when the queue is full.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher emits audit events.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	sampler *Sampler
	now     func() time.Time

	bufferSize    int
	batchSize     int
	flushInterval time.Duration
	queue         chan audit.Event
	done          chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithBatching groups async writes into batches of up to size events,
// flushed at least every interval.
func WithBatching(size int, interval time.Duration) Option {
	return func(p *Publisher) {
		p.batchSize = size
		p.flushInterval = interval
	}
}

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSampler samples operations events. Compliance events are never sampled.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

// NewPublisher creates a publisher over store. Without WithAsyncBuffer every
// Emit writes synchronously.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.queue = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.queue,
			worker.WithBatchSize(p.batchSize),
			worker.WithFlushInterval(p.flushInterval),
			worker.WithFlushHandler(p.observeFlush),
		)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. It fills the timestamp, ID and category when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Category == audit.CategoryOperations && p.sampler != nil && !p.sampler.ShouldSample(event.Action) {
		p.metrics.incSampled()
		return nil
	}

	if p.queue == nil {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

// List returns the events recorded for subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Recent returns up to limit events, newest first.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting events and waits for queued events to be persisted.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		if p.queue == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		<-p.done
	})
	return nil
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	p.observeFlush(ctx, []audit.Event{event}, time.Since(start), err)
	return err
}

func (p *Publisher) observeFlush(ctx context.Context, events []audit.Event, elapsed time.Duration, err error) {
	if err != nil {
		p.metrics.incPersistFailures(len(events))
		for _, event := range events {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"category", event.Category,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return
	}
	p.metrics.observePersist(len(events), elapsed)
}
