package segmentation

import (
	"context"
	"sync"
)

// RequestSlot serializes ownership of an interactive request, such as the
// extraction behind a threshold slider. Each request owns one cancellation
// handle for its lifetime. Beginning a new request cancels the previous one
// and waits until the superseded worker has observably finished before the
// old handle is let go, so a background worker never reads a released handle.
type RequestSlot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Begin cancels any in-flight request, waits for it to finish, and returns
// the context for the new request together with a finish function. The worker
// must call finish exactly once when it completes or faults; until then the
// next Begin will block.
func (s *RequestSlot) Begin(parent context.Context) (context.Context, func()) {
	s.mu.Lock()
	prevCancel, prevDone := s.cancel, s.done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	var once sync.Once
	finish := func() {
		once.Do(func() { close(done) })
	}
	return ctx, finish
}

// Cancel aborts the current request, if any, without starting a new one. It
// returns once the superseded worker has finished.
func (s *RequestSlot) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
