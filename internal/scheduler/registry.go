package scheduler

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide, mutex-guarded map of running per-tenant
// processors, enforcing the single-writer-per-tenant invariant: at most one
// Processor goroutine may be claiming and dispatching commands for a given
// instance at a time.
type Registry struct {
	mu         sync.Mutex
	processors map[uuid.UUID]*Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[uuid.UUID]*Processor)}
}

// EnsureRunning starts a Processor for instanceID if one is not already
// running, returning false if it was already present.
func (r *Registry) EnsureRunning(instanceID uuid.UUID, start func() *Processor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.processors[instanceID]; ok && !p.Stopped() {
		return false
	}
	r.processors[instanceID] = start()
	return true
}

// Remove drops a processor's registry entry once it has stopped, so a
// future tick can restart it if new work arrives.
func (r *Registry) Remove(instanceID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processors, instanceID)
}

// Count returns the number of currently registered processors, used by the
// ActiveTenantProcessorsGauge.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processors)
}

// StopAll signals every running processor to stop, used on graceful
// shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.processors {
		p.Stop()
	}
}
