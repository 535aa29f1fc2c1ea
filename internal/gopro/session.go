package gopro

import (
	"context"
	"sync"
	"time"
)

const teardownTimeout = 10 * time.Second

// Session is a scoped camera session. Close runs stop-then-disconnect
// exactly once, on a fresh context, so teardown happens even when the
// caller's context was already cancelled.
type Session struct {
	ctrl *Controller
	once sync.Once
	err  error
}

// Acquire connects and returns a scoped session. The caller must Close it;
// defer the call immediately after a successful Acquire.
func (c *Controller) Acquire(ctx context.Context) (*Session, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return &Session{ctrl: c}, nil
}

// Controller exposes the underlying controller for session operations.
func (s *Session) Controller() *Controller {
	return s.ctrl
}

// Close tears the session down: stop streaming, then disconnect. Safe to
// call multiple times; only the first call does the work.
func (s *Session) Close() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := s.ctrl.Stop(ctx); err != nil {
			s.err = err
		}
		if err := s.ctrl.Disconnect(ctx); err != nil && s.err == nil {
			s.err = err
		}
	})
	return s.err
}
