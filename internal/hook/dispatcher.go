package hook

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayusman/handtower/internal/log"
)

// Runner executes one hook. Executor is the production Runner.
type Runner interface {
	Execute(ctx context.Context, h *Hook, req *Request) (*Response, error)
}

// Result is the outcome of one hook run.
type Result struct {
	Hook     string
	Event    string
	Response *Response
	Err      error
}

// Dispatcher queues events from the render loop and runs subscribed hooks
// on a single worker goroutine. Fire never blocks; when the queue is full
// the event is dropped.
type Dispatcher struct {
	manager *Manager
	runner  Runner
	queue   chan Request

	// OnResult, when set before Start, is called from the worker after every run.
	OnResult func(Result)

	dropped atomic.Int64
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with room for buffer pending events.
func NewDispatcher(manager *Manager, runner Runner, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		manager: manager,
		runner:  runner,
		queue:   make(chan Request, buffer),
	}
}

// Start runs the worker until ctx is done or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case req, ok := <-d.queue:
				if !ok {
					return
				}
				d.dispatch(ctx, req)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Fire queues req and reports whether it was accepted.
func (d *Dispatcher) Fire(req Request) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- req:
		return true
	default:
		d.dropped.Add(1)
		log.Warn("hook queue full, dropping event", "event", req.Event)
		return false
	}
}

// Dropped returns how many events were dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events, lets the worker drain the queue and waits for it.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) {
	for _, h := range d.manager.Subscribers(req.Event) {
		resp, err := d.runner.Execute(ctx, h, &req)
		switch {
		case err != nil:
			log.Warn("hook failed", "hook", h.Manifest.Name, "event", req.Event, "error", err)
		case !resp.Success:
			log.Warn("hook reported failure", "hook", h.Manifest.Name, "event", req.Event, "error", resp.Error)
		default:
			log.Debug("hook ran", "hook", h.Manifest.Name, "event", req.Event)
		}
		if d.OnResult != nil {
			d.OnResult(Result{Hook: h.Manifest.Name, Event: req.Event, Response: resp, Err: err})
		}
	}
}
