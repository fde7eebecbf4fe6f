package worker

import (
	"fmt"

	"github.com/dronelab/swarmsim/internal/dispatcher"
)

// RegisterHandlers registers the session commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register("session_start", m.handleSessionStart, dispatcher.Logged())
	d.Register("session_end", m.handleSessionEnd, dispatcher.Logged())
	d.Register("session_status", m.handleSessionStatus)
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseSession(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	s, err := m.StartSession(cmd.Name, cmd.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return *s, nil
}

func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	if err := m.EndSession(); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return m.Stats(), nil
}

// SessionStatus is the reply of the session_status command.
type SessionStatus struct {
	Active  bool   `json:"active"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Stats   Stats  `json:"stats"`
	WriteMs int64  `json:"lastWriteMs"`
}

func (m *Manager) handleSessionStatus(e dispatcher.Event) (any, error) {
	s := m.deps.Session.GetSession()
	return SessionStatus{
		Active:  m.deps.Session.Active(),
		ID:      s.ID,
		Name:    s.Name,
		Stats:   m.Stats(),
		WriteMs: m.GetLastWriteDuration().Milliseconds(),
	}, nil
}
