//go:build !debug

package channel

// New returns a subscriber channel with the given backlog.
func New[T any](size int) Channel[T] {
	return NewPipe[T](size)
}
