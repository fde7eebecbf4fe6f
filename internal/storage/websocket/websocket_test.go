package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
	"github.com/dronelab/swarmsim/pkg/streaming"
)

// testServer upgrades to WebSocket, records received messages, and acks
// start_session/end_session unless ack is false.
func testServer(t *testing.T, ack bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if ack && (env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession) {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) getSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t, true)

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "abc", Name: "live"}))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[1].Type)
	assert.Equal(t, "test", ml.getSecret())

	var payload streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "live", payload.Session.Name)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, true)

	b := New(Config{URL: wsURL(srv), Secret: "s"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "abc"}))
	require.NoError(t, b.RecordObstacles([]core.ObstacleDef{{Type: core.ShapeCylinder, Radius: 1, Height: 4}}))
	require.NoError(t, b.RecordFrame(&core.Frame{Timestamp: 0.1, Drones: []core.DroneState{{ID: 0}}}))
	require.NoError(t, b.RecordEvent(&core.Event{Type: core.EventCrash}))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	types := make([]string, len(msgs))
	for i, m := range msgs {
		types[i] = m.Type
	}
	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeObstacles,
		streaming.TypeFrame,
		streaming.TypeEvent,
		streaming.TypeEndSession,
	}, types)

	var frame core.Frame
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &frame))
	assert.Equal(t, 0.1, frame.Timestamp)
}

func TestRecordWithoutSession(t *testing.T) {
	srv, _ := testServer(t, true)

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.RecordFrame(&core.Frame{}), storage.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestStartSession_AckTimeout(t *testing.T) {
	srv, _ := testServer(t, false)

	b := New(Config{URL: wsURL(srv), AckTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.StartSession(&core.Session{ID: "abc"})
	assert.ErrorIs(t, err, ErrAckTimeout)
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/stream"}, nil)
	assert.Error(t, b.Init())
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, true)

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestReconnect_ReplaysStartSession(t *testing.T) {
	ml := &messageLog{}
	var conns atomic.Int32
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		first := conns.Add(1) == 1

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)
			if env.Type != streaming.TypeStartSession {
				continue
			}
			data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
			_ = c.WriteMessage(ws.TextMessage, data)
			if first {
				// drop the first connection right after the handshake
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartSession(&core.Session{ID: "resume"}))

	require.Eventually(t, func() bool { return conns.Load() == 2 && len(ml.all()) == 2 }, 5*time.Second, 20*time.Millisecond)
	msgs := ml.all()
	assert.Equal(t, streaming.TypeStartSession, msgs[1].Type)
	var payload streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &payload))
	assert.Equal(t, "resume", payload.Session.ID)
}
