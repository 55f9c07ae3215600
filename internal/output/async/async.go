// Package async decouples evaluation producers from slow sinks.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
)

const (
	defaultBufferSize   = 64
	defaultDrainTimeout = 30 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithDrainTimeout bounds how long Close waits for queued evaluations.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// WithOnError replaces the default warning log for inner write failures.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.onError = f }
}

// Async queues evaluations on a channel drained by one goroutine. Write
// blocks only when the queue is full. Inner errors go to the error
// callback, never back to the caller.
type Async struct {
	inner        output.Output
	ch           chan model.Evaluation
	done         chan struct{}
	onError      func(error)
	bufSize      int
	drainTimeout time.Duration
	closeOnce    sync.Once
	log          *slog.Logger
}

// New wraps inner and starts the drain goroutine.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		log:          logging.New("async-output"),
	}
	a.onError = func(err error) { a.log.Warn("evaluation sink write failed", "error", err) }
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.Evaluation, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write enqueues ev, or gives up when ctx ends first.
func (a *Async) Write(ctx context.Context, ev model.Evaluation) error {
	select {
	case a.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue (bounded by the drain timeout) and closes inner.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			a.log.Warn("evaluation sink drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for ev := range a.ch {
		if err := a.inner.Write(context.Background(), ev); err != nil {
			a.onError(err)
		}
	}
}
