package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/dispatcher"
	"github.com/dronelab/swarmsim/internal/logging"
)

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	d.Register("echo", func(e dispatcher.Event) (any, error) {
		var args map[string]any
		if len(e.Args) > 0 {
			if err := json.Unmarshal(e.Args, &args); err != nil {
				return nil, err
			}
		}
		return args, nil
	})
	d.Register("fail", func(e dispatcher.Event) (any, error) {
		return nil, errors.New("nope")
	})
	return d
}

func readReplies(t *testing.T, out *bytes.Buffer) []reply {
	t.Helper()
	var replies []reply
	dec := json.NewDecoder(out)
	for dec.More() {
		var r reply
		require.NoError(t, dec.Decode(&r))
		replies = append(replies, r)
	}
	return replies
}

func TestConsole_Serve(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"command":"echo","args":{"x":1}}`,
		``,
		`# comment`,
		`echo {"y":"z"}`,
		`fail`,
		`missing`,
		`echo {broken`,
	}, "\n"))
	var out bytes.Buffer
	c := newConsole(newTestDispatcher(t), in, &out, Logger)

	require.NoError(t, c.Serve(context.Background()))

	replies := readReplies(t, &out)
	require.Len(t, replies, 5)

	assert.True(t, replies[0].OK)
	assert.Equal(t, map[string]any{"x": float64(1)}, replies[0].Result)

	assert.True(t, replies[1].OK)
	assert.Equal(t, map[string]any{"y": "z"}, replies[1].Result)

	assert.False(t, replies[2].OK)
	assert.Equal(t, "fail", replies[2].Command)
	assert.Equal(t, "nope", replies[2].Error)

	assert.False(t, replies[3].OK)
	assert.Contains(t, replies[3].Error, dispatcher.ErrUnknownCommand.Error())

	assert.False(t, replies[4].OK)
	assert.NotEmpty(t, replies[4].Error)
}

func TestConsole_Quit(t *testing.T) {
	in := strings.NewReader("echo\nquit\necho\n")
	var out bytes.Buffer
	c := newConsole(newTestDispatcher(t), in, &out, Logger)

	err := c.Serve(context.Background())
	assert.ErrorIs(t, err, errQuit)
	assert.Len(t, readReplies(t, &out), 1)
}

func TestConsole_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	c := newConsole(newTestDispatcher(t), blockingReader{}, &out, Logger)
	assert.NoError(t, c.Serve(ctx))
}

// blockingReader never returns.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		command string
		args    string
		wantErr bool
	}{
		{line: "status", command: "status"},
		{line: `takeoff {"id":1,"altitude":5}`, command: "takeoff", args: `{"id":1,"altitude":5}`},
		{line: `{"command":"land","args":{"id":2}}`, command: "land", args: `{"id":2}`},
		{line: `{"args":{}}`, wantErr: true},
		{line: `takeoff five`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, e.Command)
			assert.Equal(t, tt.args, string(e.Args))
		})
	}
}
