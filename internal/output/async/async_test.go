package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/argval/internal/model"
)

type mockOutput struct {
	mu     sync.Mutex
	evals  []model.Evaluation
	closed bool
	err    error         // if set, Write returns this
	delay  time.Duration // if >0, Write sleeps first
}

func (m *mockOutput) Write(_ context.Context, ev model.Evaluation) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.evals = append(m.evals, ev)
	m.mu.Unlock()
	return m.err
}

func (m *mockOutput) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockOutput) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evals)
}

func testEvaluation(level string) model.Evaluation {
	return model.Evaluation{Level: level, Method: "SVM", Partition: model.UsageValidation}
}

func TestEvaluationsFlowThroughInOrder(t *testing.T) {
	inner := &mockOutput{}
	a := New(inner, WithBufferSize(4))

	levels := []string{"1", "2", "3", "4a", "4b"}
	for _, l := range levels {
		if err := a.Write(context.Background(), testEvaluation(l)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if inner.count() != len(levels) {
		t.Fatalf("got %d evaluations, want %d", inner.count(), len(levels))
	}
	for i, l := range levels {
		if inner.evals[i].Level != l {
			t.Errorf("evaluation %d: level %q, want %q", i, inner.evals[i].Level, l)
		}
	}
	if !inner.closed {
		t.Error("inner output not closed")
	}
}

func TestBackpressureBlocksUntilDrained(t *testing.T) {
	inner := &mockOutput{delay: 50 * time.Millisecond}
	a := New(inner, WithBufferSize(1))
	a.Write(context.Background(), testEvaluation("1"))

	done := make(chan struct{})
	go func() {
		a.Write(context.Background(), testEvaluation("2"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked indefinitely")
	}
	a.Close()
}

func TestWriteHonoursContext(t *testing.T) {
	inner := &mockOutput{delay: 200 * time.Millisecond}
	a := New(inner, WithBufferSize(1))
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = a.Write(ctx, testEvaluation("1"))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error from a full queue, got %v", err)
	}
}

func TestErrorCallbackInvoked(t *testing.T) {
	inner := &mockOutput{err: errors.New("write failed")}
	var errs atomic.Int64
	a := New(inner, WithBufferSize(16), WithOnError(func(error) { errs.Add(1) }))

	for i := 0; i < 5; i++ {
		a.Write(context.Background(), testEvaluation("1"))
	}
	a.Close()

	if errs.Load() != 5 {
		t.Errorf("error callback called %d times, want 5", errs.Load())
	}
}

func TestCloseIdempotent(t *testing.T) {
	a := New(&mockOutput{}, WithBufferSize(16))
	a.Write(context.Background(), testEvaluation("1"))

	if err := a.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine did not exit after Close")
	}
}
