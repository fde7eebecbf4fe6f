package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/dronelab/swarmsim/pkg/streaming"
)

const (
	outboxSize    = 10_000
	ackBufferSize = 16
	maxRedials    = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
	pingPeriod    = 20 * time.Second
	ackTimeout    = 10 * time.Second
)

var errLinkClosed = errors.New("websocket link closed")

// link is one logical stream to the replay server. A single supervisor
// goroutine owns every write; when the socket fails it redials with
// exponential backoff and replays the greeting (the start_session message)
// so the server can resume the session.
type link struct {
	url    string
	dialer ws.Dialer
	log    *slog.Logger

	outbox chan []byte
	acks   chan streaming.AckMessage
	quit   chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	greeting []byte
	started  bool
	closed   bool

	dropped atomic.Uint64
}

func newLink(log *slog.Logger) *link {
	return &link{
		dialer: ws.Dialer{HandshakeTimeout: writeWait},
		log:    log,
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// open dials once and starts the supervisor. The secret travels as a query
// parameter.
func (l *link) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	l.url = u.String()

	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
	go l.supervise(conn)
	return nil
}

func (l *link) dial() (*ws.Conn, error) {
	conn, _, err := l.dialer.Dial(l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (l *link) supervise(conn *ws.Conn) {
	defer close(l.done)
	for conn != nil {
		err := l.pump(conn)
		_ = conn.Close()
		if errors.Is(err, errLinkClosed) {
			return
		}
		l.log.Warn("WebSocket connection lost", "error", err)
		conn = l.redial()
	}
}

// pump writes queued messages and keepalive pings until the socket fails or
// the link is closed.
func (l *link) pump(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- l.readAcks(conn) }()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-l.quit:
			_ = write(conn, ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return errLinkClosed
		case err := <-readErr:
			return err
		case data := <-l.outbox:
			if err := write(conn, ws.TextMessage, data); err != nil {
				return err
			}
		case <-ping.C:
			if err := write(conn, ws.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func write(conn *ws.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// readAcks forwards server acks until the socket fails. Other messages are
// ignored.
func (l *link) readAcks(conn *ws.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != streaming.TypeAck {
			l.log.Debug("Ignoring server message", "raw", string(msg))
			continue
		}
		select {
		case l.acks <- ack:
		default:
			l.log.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial returns a fresh connection with the greeting already sent, or nil
// when the link closes or every attempt fails.
func (l *link) redial() *ws.Conn {
	backoff := time.Second
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-l.quit:
			return nil
		case <-time.After(backoff):
		}

		conn, err := l.dial()
		if err == nil {
			if g := l.getGreeting(); g != nil {
				if err = write(conn, ws.TextMessage, g); err != nil {
					_ = conn.Close()
				}
			}
		}
		if err == nil {
			l.log.Info("WebSocket reconnected", "attempt", attempt)
			return conn
		}
		l.log.Warn("WebSocket redial failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, maxBackoff)
	}
	l.log.Error("Giving up on WebSocket", "attempts", maxRedials)
	return nil
}

func (l *link) setGreeting(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.greeting = data
}

func (l *link) getGreeting() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.greeting
}

// enqueue never blocks the recorder. A full outbox drops the message.
func (l *link) enqueue(data []byte) {
	select {
	case l.outbox <- data:
	default:
		n := l.dropped.Add(1)
		l.log.Warn("WebSocket outbox full, dropping message", "dropped", n)
	}
}

// request enqueues data and waits for the server to ack msgType.
func (l *link) request(data []byte, msgType string, timeout time.Duration) error {
	for len(l.acks) > 0 {
		<-l.acks
	}
	l.enqueue(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-l.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w: %q", ErrAckTimeout, msgType)
		case <-l.quit:
			return errLinkClosed
		}
	}
}

// close sends a close frame and waits for the supervisor. Safe to call more
// than once.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	started := l.started
	close(l.quit)
	l.mu.Unlock()

	if started {
		<-l.done
	}
	return nil
}
