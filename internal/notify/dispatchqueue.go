package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/casekit/lexflow/pkg/schema"
)

// Dispatcher performs actual delivery of an envelope. Implementations live
// outside the core (mail gateway, SMS provider, push service).
type Dispatcher interface {
	Dispatch(ctx context.Context, env *schema.Envelope) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, env *schema.Envelope) error

func (f DispatcherFunc) Dispatch(ctx context.Context, env *schema.Envelope) error {
	return f(ctx, env)
}

// DispatchQueue holds produced envelopes until their DispatchAt time and
// hands them to the Dispatcher. Envelopes whose dispatch fails stay queued
// and are retried on the next tick.
type DispatchQueue struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	interval   time.Duration
	clock      func() time.Time

	mu      sync.Mutex
	pending []*schema.Envelope
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatchQueue creates a queue over the given dispatcher. The tick
// interval defaults to one minute when non-positive.
func NewDispatchQueue(dispatcher Dispatcher, logger *slog.Logger, interval time.Duration) *DispatchQueue {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DispatchQueue{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		clock:      time.Now,
	}
}

// Enqueue adds envelopes to the queue. Safe to call whether or not the
// background loop is running; Flush can drain without Start.
func (q *DispatchQueue) Enqueue(envelopes ...*schema.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, envelopes...)
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].DispatchAt.Before(q.pending[j].DispatchAt)
	})
	q.mu.Unlock()
}

// Len returns the number of queued envelopes.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the background dispatch loop.
func (q *DispatchQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.done != nil {
		q.mu.Unlock()
		return fmt.Errorf("dispatch queue already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.loop(loopCtx)
	q.logger.Info("dispatch queue started", slog.Duration("interval", q.interval))
	return nil
}

func (q *DispatchQueue) loop(ctx context.Context) {
	defer close(q.done)

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	q.Flush(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Flush dispatches every envelope whose DispatchAt has passed. Failed
// envelopes are retained for the next attempt. Returns the number
// successfully dispatched.
func (q *DispatchQueue) Flush(ctx context.Context) int {
	now := q.clock()

	q.mu.Lock()
	var due, rest []*schema.Envelope
	for _, env := range q.pending {
		if env.DispatchAt.After(now) {
			rest = append(rest, env)
		} else {
			due = append(due, env)
		}
	}
	q.pending = rest
	q.mu.Unlock()

	dispatched := 0
	var failed []*schema.Envelope
	for _, env := range due {
		if err := q.dispatcher.Dispatch(ctx, env); err != nil {
			q.logger.Error("envelope dispatch failed",
				slog.String("envelope_id", env.ID),
				slog.String("step_id", env.StepID),
				slog.String("error", err.Error()),
			)
			failed = append(failed, env)
			continue
		}
		dispatched++
	}

	if len(failed) > 0 {
		q.Enqueue(failed...)
	}
	return dispatched
}

// Stop gracefully shuts down the dispatch loop. Queued envelopes remain
// queued; callers wanting a final drain should Flush before Stop.
func (q *DispatchQueue) Stop() error {
	q.mu.Lock()
	if q.cancel == nil {
		q.mu.Unlock()
		return nil
	}
	cancel, done := q.cancel, q.done
	q.cancel = nil
	q.done = nil
	q.mu.Unlock()

	cancel()
	<-done

	q.logger.Info("dispatch queue stopped")
	return nil
}
