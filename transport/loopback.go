package transport

import (
	"sync"

	"github.com/google/uuid"
)

// LoopbackConn implements Conn in memory, recording the responses sent
// through it. Tests and the demo daemon use it in place of a real session.
type LoopbackConn struct {
	mu        sync.Mutex
	id        string
	open      bool
	responses []bool
}

// NewLoopbackConn creates an open loopback connection with a fresh ID.
func NewLoopbackConn() *LoopbackConn {
	return &LoopbackConn{
		id:   uuid.NewString(),
		open: true,
	}
}

// ID implements Conn.ID.
func (c *LoopbackConn) ID() string {
	return c.id
}

// Open implements Conn.Open.
func (c *LoopbackConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SendResponse implements Conn.SendResponse.
func (c *LoopbackConn) SendResponse(accepted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrConnClosed
	}
	c.responses = append(c.responses, accepted)
	return nil
}

// Close implements Conn.Close.
func (c *LoopbackConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// Responses returns a copy of the responses sent so far.
func (c *LoopbackConn) Responses() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bool, len(c.responses))
	copy(out, c.responses)
	return out
}
