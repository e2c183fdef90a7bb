// Package resources manages lifecycle cleanup for worker-owned
// handles (storage clients, brick volumes) and gates external accessor
// calls by a shared byte budget.
package resources

import (
	"fmt"
	"sync"

	"github.com/janelia-flyem/recospark/internal/common/logger"
)

// Closer represents a resource that can be closed.
type Closer interface {
	Close() error
}

// CloseFunc adapts a plain function to Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

// Manager tracks resources registered by a worker and closes them, in
// reverse registration order, when the worker is done with them.
type Manager struct {
	resources []Closer
	mu        sync.Mutex
	closed    bool
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a resource to be cleaned up by Close.
func (m *Manager) Register(r Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		if err := r.Close(); err != nil {
			logger.Error("resources: failed to close resource after manager shutdown: %v", err)
		}
		return
	}
	m.resources = append(m.resources, r)
}

// RegisterFunc registers a cleanup function.
func (m *Manager) RegisterFunc(fn func() error) {
	m.Register(CloseFunc(fn))
}

// Close closes all registered resources LIFO.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for i := len(m.resources) - 1; i >= 0; i-- {
		if err := m.resources[i].Close(); err != nil {
			errs = append(errs, err)
			logger.Error("resources: failed to close resource: %v", err)
		}
	}
	m.resources = nil
	if len(errs) > 0 {
		return fmt.Errorf("resources: failed to close %d resources", len(errs))
	}
	return nil
}
