// Package dispatcher routes console and network commands to their handlers.
package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

var (
	// ErrUnknownCommand is returned when no handler is registered for a command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
)

// Queued is the result of a command accepted by a buffered handler.
const Queued = "queued"

// Event is one command addressed to the simulator. Args holds the raw JSON
// arguments and is decoded by the handler.
type Event struct {
	Command   string          `json:"command"`
	Args      json.RawMessage `json:"args,omitempty"`
	Timestamp time.Time       `json:"-"`
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is what the dispatcher logs through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a registration.
type Option func(*options)

type options struct {
	buffer   int
	blocking bool
	logged   bool
}

// Buffered runs the handler on its own goroutine behind a queue of size
// events. Dispatch then returns Queued immediately.
func Buffered(size int) Option {
	return func(o *options) { o.buffer = size }
}

// Blocking makes Dispatch wait for room in a full buffered queue instead of
// failing with ErrQueueFull.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs every dispatch at debug level and failures at error level.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

type route struct {
	handle HandlerFunc
	// queue is nil for synchronous routes.
	queue chan Event
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	log     Logger
	metrics *metrics

	mu      sync.RWMutex
	routes  map[string]*route
	workers sync.WaitGroup
}

// New creates a Dispatcher.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		log:    logger,
		routes: make(map[string]*route),
	}
	m, err := newMetrics(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register installs h for command, replacing any earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &route{handle: h}
	if o.buffer > 0 {
		r.queue = make(chan Event, o.buffer)
		d.workers.Add(1)
		go d.work(command, r.queue, h)
		r.handle = d.enqueue(command, r.queue, o.blocking)
	}
	if o.logged {
		r.handle = d.logged(command, r.handle)
	}

	d.mu.Lock()
	d.routes[command] = r
	d.mu.Unlock()
}

// Dispatch runs the handler for e.Command and returns its result. Events
// without a timestamp are stamped now.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if r.queue != nil {
		return r.handle(e)
	}
	start := time.Now()
	res, err := r.handle(e)
	d.metrics.record(e.Command, time.Since(start), err)
	return res, err
}

// HasHandler reports whether command is registered.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.routes))
}

// Close unregisters buffered handlers and waits until their queues are
// drained. It must not run concurrently with Dispatch.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for cmd, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
			delete(d.routes, cmd)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) queueDepths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	depths := make(map[string]int)
	for cmd, r := range d.routes {
		if r.queue != nil {
			depths[cmd] = len(r.queue)
		}
	}
	return depths
}

func (d *Dispatcher) work(command string, queue <-chan Event, h HandlerFunc) {
	defer d.workers.Done()
	for e := range queue {
		start := time.Now()
		_, err := h(e)
		d.metrics.record(command, time.Since(start), err)
		if err != nil {
			d.log.Error("buffered command failed", "command", command, "error", err)
		}
	}
}

func (d *Dispatcher) enqueue(command string, queue chan<- Event, blocking bool) HandlerFunc {
	if blocking {
		return func(e Event) (any, error) {
			queue <- e
			return Queued, nil
		}
	}
	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return Queued, nil
		default:
			d.metrics.drop(command)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.log.Debug("handling command", "command", command, "argBytes", len(e.Args))
		res, err := h(e)
		if err != nil {
			d.log.Error("command failed", "command", command, "took", time.Since(start), "error", err)
			return res, err
		}
		d.log.Debug("command complete", "command", command, "took", time.Since(start))
		return res, nil
	}
}
