package auth

import (
	"context"

	"github.com/pkg/errors"
)

// BackgroundRefresh is an identity refresh running on its own goroutine.
type BackgroundRefresh struct {
	done chan struct{}
	err  error
}

// Done is closed once the refresh has resolved.
func (t *BackgroundRefresh) Done() <-chan struct{} { return t.done }

// Err is the outcome of the refresh; nil while it runs.
func (t *BackgroundRefresh) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the refresh resolves or ctx is done.
func (t *BackgroundRefresh) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) startRefresh(gen uint64) *BackgroundRefresh {
	task := &BackgroundRefresh{done: make(chan struct{})}
	m.mu.Lock()
	m.background = task
	m.mu.Unlock()

	go func() {
		defer close(task.done)
		ctx, cancel := context.WithTimeout(context.Background(), m.bgTimeout)
		defer cancel()

		err := m.refreshIdentity(ctx, gen)
		switch {
		case err == nil:
		case errors.Is(err, ErrSessionChanged):
			m.logger.Debug("auth: background identity refresh superseded")
		default:
			m.logger.Warn("auth: background identity refresh failed, session logged out", err)
		}
		task.err = err
	}()
	return task
}
