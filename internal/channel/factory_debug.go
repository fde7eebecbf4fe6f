//go:build debug

package channel

// New ignores size so that slow consumers show up as dropped frames.
func New[T any](int) Channel[T] {
	return NewPipe[T](0)
}
