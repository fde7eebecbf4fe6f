package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var _ Channel[int] = Pipe[int](nil)

func TestPipe_TrySend(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		sends    int
		accepted int
	}{
		{"unbuffered without receiver", 0, 3, 0},
		{"negative capacity", -4, 1, 0},
		{"partial backlog", 4, 2, 2},
		{"full backlog drops", 2, 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipe[int](tt.capacity)
			accepted := 0
			for i := range tt.sends {
				if p.TrySend(i) {
					accepted++
				}
			}
			assert.Equal(t, tt.accepted, accepted)
			assert.Equal(t, tt.accepted, p.Len())
		})
	}
}

func TestPipe_FIFO(t *testing.T) {
	p := NewPipe[int](2)
	p.Send(1)
	p.Send(2)
	assert.False(t, p.TrySend(3))

	assert.Equal(t, 1, <-p.Receive())
	assert.True(t, p.TrySend(4))
	assert.Equal(t, 2, <-p.Receive())
	assert.Equal(t, 4, <-p.Receive())
}

func TestPipe_CloseDrains(t *testing.T) {
	p := NewPipe[string](1)
	p.Send("frame")
	p.Close()

	v, ok := <-p.Receive()
	assert.True(t, ok)
	assert.Equal(t, "frame", v)
	_, ok = <-p.Receive()
	assert.False(t, ok)
}

func TestPipe_UnbufferedHandOff(t *testing.T) {
	p := NewPipe[int](0)
	go p.Send(7)
	assert.Equal(t, 7, <-p.Receive())
}

func TestNew(t *testing.T) {
	c := New[int](8)
	assert.NotNil(t, c)
	defer c.Close()
	assert.Zero(t, c.Len())
}
