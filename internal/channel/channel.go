// Package channel wraps Go channels behind small interfaces so the simulator
// can fan frames and events out without knowing who reads them.
package channel

// Receiver is the consumer side.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender is the producer side.
type Sender[T any] interface {
	Send(T)
	// TrySend delivers without blocking and reports whether it did.
	TrySend(T) bool
}

// Channel is owned by the producer, which closes it.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Pipe is a Channel over a plain chan. A zero capacity Pipe hands values
// only to receivers that are already waiting.
type Pipe[T any] chan T

// NewPipe returns a Pipe with room for capacity pending values.
func NewPipe[T any](capacity int) Pipe[T] {
	return make(Pipe[T], max(capacity, 0))
}

func (p Pipe[T]) Send(v T) { p <- v }

func (p Pipe[T]) TrySend(v T) bool {
	select {
	case p <- v:
		return true
	default:
		return false
	}
}

func (p Pipe[T]) Receive() <-chan T { return p }

// Len is the number of values waiting, always zero when unbuffered.
func (p Pipe[T]) Len() int { return len(p) }

func (p Pipe[T]) Close() { close(p) }
