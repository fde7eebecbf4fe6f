// Package simulator drives a swarm in real time on its own goroutine.
//
// The swarm is owned by the tick loop. Other goroutines interact with it by
// queueing commands, which are applied at the start of the next tick, or by
// running a function under the simulator lock with Exec.
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dronelab/swarmsim/internal/channel"
	"github.com/dronelab/swarmsim/internal/queue"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
)

const (
	// MaxDT caps the wall-clock step so a stalled loop never integrates a
	// huge timestep.
	MaxDT = 0.1
	// DefaultTickRate is the loop frequency in Hz.
	DefaultTickRate = 60.0
	// DefaultFrameBuffer is the backlog of each subscriber channel.
	DefaultFrameBuffer = 64
	// MaxPendingCommands bounds the command queue.
	MaxPendingCommands = 1024
)

// ErrRunning is returned by Start on a simulator that is already running.
var ErrRunning = errors.New("simulator already running")

// Command mutates the swarm at the start of a tick.
type Command struct {
	Name  string
	Apply func(s *swarm.Swarm) error
}

// Options configure a Simulator.
type Options struct {
	TickRate    float64
	FrameBuffer int
	Logger      *slog.Logger
	// Now replaces time.Now for measuring tick intervals.
	Now func() time.Time
}

// Simulator owns a swarm and advances it in real time.
type Simulator struct {
	mu       sync.Mutex
	swarm    *swarm.Swarm
	paused   bool
	frame    core.Frame
	index    uint
	lastTick time.Time

	commands *queue.Queue[Command]
	metrics  *metrics
	logger   *slog.Logger
	now      func() time.Time
	tickRate float64
	buffer   int

	dropped atomic.Uint64

	subMu     sync.Mutex
	frameSubs []channel.Channel[core.Frame]
	eventSubs []channel.Channel[core.Event]

	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps s. The simulator starts unpaused and stopped.
func New(s *swarm.Swarm, opts Options) (*Simulator, error) {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = DefaultFrameBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	sim := &Simulator{
		swarm:    s,
		commands: queue.NewBounded[Command](MaxPendingCommands),
		metrics:  m,
		logger:   opts.Logger,
		now:      opts.Now,
		tickRate: opts.TickRate,
		buffer:   opts.FrameBuffer,
	}
	sim.frame = sim.buildFrame()
	return sim, nil
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (sim *Simulator) Start(ctx context.Context) error {
	sim.mu.Lock()
	if sim.done != nil {
		sim.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	sim.cancel = cancel
	sim.done = make(chan struct{})
	sim.lastTick = sim.now()
	done := sim.done
	sim.mu.Unlock()

	interval := time.Duration(float64(time.Second) / sim.tickRate)
	sim.logger.Info("Simulator started", "tickRate", sim.tickRate, "drones", sim.swarm.Len())

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sim.loopTick()
			}
		}
	}()
	return nil
}

// Stop ends the tick loop, waits for it to exit and closes every
// subscriber channel.
func (sim *Simulator) Stop() {
	sim.mu.Lock()
	cancel, done := sim.cancel, sim.done
	sim.cancel, sim.done = nil, nil
	sim.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		sim.logger.Info("Simulator stopped", "time", sim.Snapshot().Timestamp)
	}

	sim.subMu.Lock()
	for _, c := range sim.frameSubs {
		c.Close()
	}
	for _, c := range sim.eventSubs {
		c.Close()
	}
	sim.frameSubs, sim.eventSubs = nil, nil
	sim.subMu.Unlock()
}

// Pause freezes simulated time. Queued commands still apply.
func (sim *Simulator) Pause() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.paused = true
}

// Resume continues from a pause without integrating the paused interval.
func (sim *Simulator) Resume() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.paused = false
	sim.lastTick = sim.now()
}

// Paused reports whether simulated time is frozen.
func (sim *Simulator) Paused() bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.paused
}

// Step advances exactly one nominal tick, paused or not.
func (sim *Simulator) Step() core.Frame {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.tick(1 / sim.tickRate)
}

// Advance advances by dt seconds, capped at MaxDT.
func (sim *Simulator) Advance(dt float64) core.Frame {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.tick(min(dt, MaxDT))
}

// Enqueue schedules cmd for the start of the next tick.
func (sim *Simulator) Enqueue(cmd Command) {
	sim.commands.Push(cmd)
}

// Exec runs fn with exclusive access to the swarm.
func (sim *Simulator) Exec(fn func(s *swarm.Swarm) error) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return fn(sim.swarm)
}

// Snapshot returns the frame published after the most recent tick. The
// returned frame is never mutated by the simulator.
func (sim *Simulator) Snapshot() core.Frame {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.frame
}

// Subscribe returns a channel receiving every published frame. Frames are
// dropped for a subscriber whose backlog is full.
func (sim *Simulator) Subscribe() channel.Receiver[core.Frame] {
	c := channel.New[core.Frame](sim.buffer)
	sim.subMu.Lock()
	sim.frameSubs = append(sim.frameSubs, c)
	sim.subMu.Unlock()
	return c
}

// SubscribeEvents returns a channel receiving collision, crash and command
// events.
func (sim *Simulator) SubscribeEvents() channel.Receiver[core.Event] {
	c := channel.New[core.Event](sim.buffer)
	sim.subMu.Lock()
	sim.eventSubs = append(sim.eventSubs, c)
	sim.subMu.Unlock()
	return c
}

// DroppedFrames counts frames not delivered to a full subscriber.
func (sim *Simulator) DroppedFrames() uint64 {
	return sim.dropped.Load()
}

func (sim *Simulator) loopTick() {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	now := sim.now()
	dt := min(now.Sub(sim.lastTick).Seconds(), MaxDT)
	sim.lastTick = now
	if sim.paused {
		sim.applyCommands()
		return
	}
	sim.tick(dt)
}

// tick must be called with sim.mu held.
func (sim *Simulator) tick(dt float64) core.Frame {
	start := time.Now()
	ctx := context.Background()

	sim.applyCommands()
	sim.swarm.Update(dt)

	events := sim.swarm.CollisionEvents()
	for _, e := range events {
		switch e.Type {
		case core.EventCollision, core.EventObstacleCollision:
			sim.metrics.collisions.Add(ctx, 1, metric.WithAttributes(attribute.String("type", e.Type)))
		case core.EventCrash:
			sim.metrics.crashes.Add(ctx, 1)
			sim.logger.Warn("Drone crashed", "drone", e.Data["drone"], "time", e.Timestamp)
		}
		sim.publishEvent(e)
	}

	sim.index++
	sim.frame = sim.buildFrame()
	sim.publishFrame(sim.frame)

	sim.metrics.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	return sim.frame
}

func (sim *Simulator) applyCommands() {
	for _, cmd := range sim.commands.Drain() {
		err := cmd.Apply(sim.swarm)
		sim.metrics.commands.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("command", cmd.Name), attribute.Bool("ok", err == nil)))
		if err != nil {
			sim.logger.Error("Command failed", "command", cmd.Name, "error", err)
			continue
		}
		sim.publishEvent(core.Event{
			Timestamp: sim.swarm.Time(),
			Type:      core.EventCommand,
			Data:      map[string]any{"command": cmd.Name},
		})
	}
}

func (sim *Simulator) buildFrame() core.Frame {
	return core.Frame{
		Index:     sim.index,
		Timestamp: sim.swarm.Time(),
		Drones:    sim.swarm.States(),
	}
}

func (sim *Simulator) publishFrame(f core.Frame) {
	sim.subMu.Lock()
	defer sim.subMu.Unlock()
	for _, c := range sim.frameSubs {
		if !c.TrySend(f) {
			sim.dropped.Add(1)
			sim.metrics.droppedFrames.Add(context.Background(), 1)
		}
	}
}

func (sim *Simulator) publishEvent(e core.Event) {
	sim.subMu.Lock()
	defer sim.subMu.Unlock()
	for _, c := range sim.eventSubs {
		c.TrySend(e)
	}
}
