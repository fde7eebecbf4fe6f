package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dronelab/swarmsim/internal/dispatcher"
)

// errQuit is returned by Serve when the operator asks to exit.
var errQuit = errors.New("quit")

// maxLineSize bounds one console line.
const maxLineSize = 1 << 20

// reply is written as one JSON line per command.
type reply struct {
	OK      bool   `json:"ok"`
	Command string `json:"command,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// console reads commands line by line and writes the dispatcher's replies.
// A line is either a JSON event, {"command":"takeoff","args":{"altitude":5}},
// or a command name followed by optional JSON arguments:
//
//	takeoff {"altitude":5}
type console struct {
	d   *dispatcher.Dispatcher
	in  io.Reader
	enc *json.Encoder
	log *slog.Logger
}

func newConsole(d *dispatcher.Dispatcher, in io.Reader, out io.Writer, log *slog.Logger) *console {
	return &console{d: d, in: in, enc: json.NewEncoder(out), log: log}
}

// Serve handles lines until ctx is done, the input ends or a quit command
// arrives. It returns nil at end of input and errQuit on quit.
func (c *console) Serve(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := c.handleLine(line); err != nil {
				return err
			}
		}
	}
}

func (c *console) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if line == "quit" || line == "exit" {
		return errQuit
	}

	e, err := parseLine(line)
	if err != nil {
		return c.write(reply{Error: err.Error()})
	}
	e.Timestamp = time.Now()

	res, err := c.d.Dispatch(e)
	if err != nil {
		c.log.Debug("Command rejected", "command", e.Command, "error", err)
		return c.write(reply{Command: e.Command, Error: err.Error()})
	}
	return c.write(reply{OK: true, Command: e.Command, Result: res})
}

// parseLine accepts both line forms.
func parseLine(line string) (dispatcher.Event, error) {
	var e dispatcher.Event
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return e, err
		}
		if e.Command == "" {
			return e, errors.New("missing command")
		}
		return e, nil
	}

	name, args, _ := strings.Cut(line, " ")
	e.Command = name
	if args = strings.TrimSpace(args); args != "" {
		if !json.Valid([]byte(args)) {
			return e, errors.New("arguments must be a JSON object")
		}
		e.Args = json.RawMessage(args)
	}
	return e, nil
}

func (c *console) write(r reply) error {
	return c.enc.Encode(r)
}
