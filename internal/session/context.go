// Package session tracks the recording session currently in progress.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dronelab/swarmsim/pkg/core"
)

// DefaultName is used when a session is started without a name.
const DefaultName = "No session loaded"

// Context holds the current session and its database record id.
type Context struct {
	mu       sync.RWMutex
	session  *core.Session
	recordID uint
	active   bool
}

// NewContext creates a new Context with a placeholder session.
func NewContext() *Context {
	return &Context{
		session: &core.Session{Name: DefaultName},
	}
}

// New builds a session with a fresh id. An empty name is derived from the
// start time.
func New(name, tag string, start time.Time) *core.Session {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "swarm_" + start.UTC().Format("20060102_150405")
	}
	return &core.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Tag:       tag,
		StartTime: start,
	}
}

// GetSession returns a copy of the current session.
func (c *Context) GetSession() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

// SetSession makes s the current session and marks it active.
func (c *Context) SetSession(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.recordID = 0
	c.active = true
}

// End marks the current session finished. The session stays readable.
func (c *Context) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// Active reports whether a session is being recorded.
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetRecordID stores the database id assigned to the session row.
func (c *Context) SetRecordID(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordID = id
}

// RecordID returns the database id of the session row, or 0.
func (c *Context) RecordID() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recordID
}
