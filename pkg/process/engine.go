package process

import (
	"context"
	"fmt"
	"sync"
)

// Engine owns the lifecycle of running Processes: creation, lookup, and
// driving them to completion. InMemoryEngine is the default; spec.md §9's
// open question on durable execution notes that a TemporalEngine
// implementing this same interface over Temporal workflows is a natural
// extension this seam exists to enable, without this module taking a
// dependency on Temporal itself.
type Engine interface {
	// Run registers p under id and begins driving it with driver on its own
	// goroutine, returning immediately. Use Wait or Get to observe p's
	// outcome.
	Run(ctx context.Context, id string, p *Process, driver Driver)
	// Get returns a previously started process by ID.
	Get(id string) (*Process, bool)
	// Wait blocks until the process identified by id reaches a terminal,
	// paused, or waiting status, returning the error (if any) Driver.Run
	// produced.
	Wait(ctx context.Context, id string) error
}

// InMemoryEngine runs every process as a goroutine within the current Go
// process, tracking them in a map. This is the only Engine this module
// implements; it is grounded on the teacher's in-memory workflow engine.
type InMemoryEngine struct {
	mu        sync.Mutex
	processes map[string]*Process
	done      map[string]chan error
}

// NewInMemoryEngine constructs an empty InMemoryEngine.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{
		processes: make(map[string]*Process),
		done:      make(map[string]chan error),
	}
}

// Run starts a process for agent using bodies and driver, and blocks the
// calling goroutine only long enough to register it; the driver itself
// runs asynchronously. Run is the primary entry point most callers (and
// cmd/demo) use instead of the generic Engine interface.
func (e *InMemoryEngine) Run(ctx context.Context, id string, p *Process, driver Driver) {
	done := make(chan error, 1)
	e.mu.Lock()
	e.processes[id] = p
	e.done[id] = done
	e.mu.Unlock()

	go func() {
		done <- driver.Run(ctx, p)
	}()
}

// Get returns the process registered under id.
func (e *InMemoryEngine) Get(id string) (*Process, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.processes[id]
	return p, ok
}

// Wait blocks until the process identified by id finishes its Driver.Run
// call, returning whatever error that call produced.
func (e *InMemoryEngine) Wait(ctx context.Context, id string) error {
	e.mu.Lock()
	done, ok := e.done[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("process: no such process %q", id)
	}
	select {
	case err := <-done:
		done <- err // allow a second Wait call to observe the same result
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
