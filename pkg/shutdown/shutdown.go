// Package shutdown coordinates graceful teardown of the journeyd process.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/opjourney/opjourney/pkg/logging"
)

// Manager collects teardown hooks and runs them in reverse registration
// order once a termination signal arrives.
type Manager struct {
	mu      sync.Mutex
	hooks   []func(context.Context) error
	timeout time.Duration
	log     *logging.Logger
	done    chan struct{}
	once    sync.Once
}

// New creates a shutdown manager with the given per-shutdown timeout.
func New(timeout time.Duration, log *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		log:     log.WithComponent("shutdown"),
		done:    make(chan struct{}),
	}
}

// Register adds a teardown hook. Hooks run LIFO.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Wait blocks until SIGTERM or SIGINT.
func (m *Manager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	m.log.Info("Received signal, shutting down", map[string]interface{}{"signal": sig.String()})
	m.once.Do(func() { close(m.done) })
}

// Done is closed once shutdown has been initiated.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Shutdown runs all registered hooks in reverse order under one timeout.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.hooks) - 1; i >= 0; i-- {
		if err := m.hooks[i](ctx); err != nil {
			m.log.Error("Shutdown hook failed", map[string]interface{}{"index": i, "error": err.Error()})
		}
	}
	m.log.Info("Graceful shutdown complete")
}
