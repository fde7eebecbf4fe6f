package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("DEBUG", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("INFO", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("ERROR", msg, kv) }

func (l *recordingLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func newDispatcher(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, log
}

func TestDispatch_Sync(t *testing.T) {
	d, _ := newDispatcher(t)

	var got Event
	d.Register("status", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	res, err := d.Dispatch(Event{Command: "status", Args: json.RawMessage(`{"id":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "result", res)
	assert.JSONEq(t, `{"id":1}`, string(got.Args))
	assert.False(t, got.Timestamp.IsZero(), "dispatch stamps a missing timestamp")
}

func TestDispatch_KeepsTimestamp(t *testing.T) {
	d, _ := newDispatcher(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var got time.Time
	d.Register("status", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	_, err := d.Dispatch(Event{Command: "status", Timestamp: at})
	require.NoError(t, err)
	assert.Equal(t, at, got)
}

func TestDispatch_Errors(t *testing.T) {
	boom := errors.New("boom")
	d, _ := newDispatcher(t)
	d.Register("fail", func(Event) (any, error) { return nil, boom })

	tests := []struct {
		name    string
		command string
		want    error
	}{
		{"unknown command", "warp", ErrUnknownCommand},
		{"handler error", "fail", boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(Event{Command: tt.command})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegister_Replaces(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register("mode", func(Event) (any, error) { return "first", nil })
	d.Register("mode", func(Event) (any, error) { return "second", nil })

	res, err := d.Dispatch(Event{Command: "mode"})
	require.NoError(t, err)
	assert.Equal(t, "second", res)
}

func TestBuffered_RunsInBackground(t *testing.T) {
	d, _ := newDispatcher(t)

	var n atomic.Int32
	d.Register("waypoint", func(Event) (any, error) {
		n.Add(1)
		return nil, nil
	}, Buffered(10))

	for range 5 {
		res, err := d.Dispatch(Event{Command: "waypoint"})
		require.NoError(t, err)
		assert.Equal(t, Queued, res)
	}
	assert.Eventually(t, func() bool { return n.Load() == 5 }, time.Second, 5*time.Millisecond)
}

func TestBuffered_QueueFull(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("slow", func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1))
	defer close(release)

	_, err := d.Dispatch(Event{Command: "slow"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Command: "slow"})
	require.NoError(t, err, "queue has room for one waiting event")

	_, err = d.Dispatch(Event{Command: "slow"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestBuffered_Blocking(t *testing.T) {
	d, _ := newDispatcher(t)

	var n atomic.Int32
	d.Register("pose", func(Event) (any, error) {
		time.Sleep(time.Millisecond)
		n.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	for range 10 {
		_, err := d.Dispatch(Event{Command: "pose"})
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return n.Load() == 10 }, time.Second, 5*time.Millisecond)
}

func TestClose_DrainsQueues(t *testing.T) {
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)

	var n atomic.Int32
	d.Register("frame", func(Event) (any, error) {
		n.Add(1)
		return nil, nil
	}, Buffered(100))
	d.Register("status", func(Event) (any, error) { return "ok", nil })

	for range 50 {
		_, err := d.Dispatch(Event{Command: "frame"})
		require.NoError(t, err)
	}
	d.Close()

	assert.Equal(t, int32(50), n.Load())
	assert.False(t, d.HasHandler("frame"), "buffered handlers are removed")
	assert.True(t, d.HasHandler("status"), "sync handlers stay")
}

func TestLogged(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"success", nil, "DEBUG"},
		{"failure", errors.New("rotor fault"), "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, log := newDispatcher(t)
			d.Register("arm", func(Event) (any, error) { return nil, tt.err }, Logged())

			_, err := d.Dispatch(Event{Command: "arm"})
			assert.Equal(t, tt.err, err)

			lines := log.snapshot()
			require.GreaterOrEqual(t, len(lines), 2)
			assert.True(t, strings.HasPrefix(lines[len(lines)-1], tt.wantLevel), lines)
		})
	}
}

func TestLogged_Buffered(t *testing.T) {
	d, log := newDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Register("land", func(Event) (any, error) {
		defer wg.Done()
		return nil, nil
	}, Buffered(4), Logged())

	res, err := d.Dispatch(Event{Command: "land"})
	require.NoError(t, err)
	assert.Equal(t, Queued, res)
	wg.Wait()

	assert.GreaterOrEqual(t, len(log.snapshot()), 2)
}

func TestBuffered_ErrorIsLogged(t *testing.T) {
	d, log := newDispatcher(t)

	d.Register("bad", func(Event) (any, error) {
		return nil, errors.New("bad pose")
	}, Buffered(4))

	_, err := d.Dispatch(Event{Command: "bad"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, log.snapshot()[0], "buffered command failed")
}

func TestCommands(t *testing.T) {
	d, _ := newDispatcher(t)
	for _, cmd := range []string{"takeoff", "land", "arm"} {
		d.Register(cmd, func(Event) (any, error) { return nil, nil })
	}

	assert.Equal(t, []string{"arm", "land", "takeoff"}, d.Commands())
	assert.True(t, d.HasHandler("land"))
	assert.False(t, d.HasHandler("hover"))
}

func TestDispatch_Concurrent(t *testing.T) {
	d, _ := newDispatcher(t)

	var n atomic.Int64
	d.Register("tick", func(Event) (any, error) {
		n.Add(1)
		return nil, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = d.Dispatch(Event{Command: "tick"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), n.Load())
}
