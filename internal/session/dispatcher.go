package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Dispatcher runs tasks serially per key and concurrently across keys. A key
// has at most one drain goroutine, started on demand and exiting when its
// queue is empty.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[string][]func()
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{pending: make(map[string][]func())}
}

// Submit reports false once the dispatcher is closed.
func (d *Dispatcher) Submit(key string, task func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	queue, running := d.pending[key]
	d.pending[key] = append(queue, task)
	if !running {
		d.wg.Add(1)
		go d.drain(key)
	}
	return true
}

func (d *Dispatcher) drain(key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.pending[key]
		if len(queue) == 0 {
			delete(d.pending, key)
			d.mu.Unlock()
			return
		}
		task := queue[0]
		queue[0] = nil
		d.pending[key] = queue[1:]
		d.mu.Unlock()

		d.run(key, task)
	}
}

func (d *Dispatcher) run(key string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatcher task panicked", "key", key, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	task()
}

// Close stops accepting new tasks. Already queued tasks still run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Wait blocks until every queued task has run or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
