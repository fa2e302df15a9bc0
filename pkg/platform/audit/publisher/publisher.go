// Package publisher emits audit events to an audit.Store, synchronously or
// through a bounded buffer drained by one background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "quorum/pkg/platform/audit"
)

var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan queued
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type queued struct {
	ctx   context.Context
	event audit.Event
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer makes Emit non-blocking: events go to a buffer of size n
// and are persisted in the background. Transactional stores must stay
// synchronous so the event commits with the caller's transaction.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan queued, n)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records event. Timestamp and Category are filled in when empty.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return ErrBufferFull
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for q := range p.buffer {
		if err := p.store.Append(q.ctx, q.event); err != nil {
			p.logger.ErrorContext(q.ctx, "failed to persist audit event",
				"action", q.event.Action,
				"error", err,
			)
		}
	}
}

// Close flushes buffered events. Later Emit calls write synchronously.
func (p *Publisher) Close() error {
	if p.buffer == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.buffer)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
