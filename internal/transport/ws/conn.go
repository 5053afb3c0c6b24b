package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Ruqii/LLMPuzzle/internal/registry"
)

// sendBuffer is the per-connection outbound queue length.
const sendBuffer = 256

// Conn is one player's WebSocket. It implements registry.Channel; frames are
// queued and written by the connection's write pump.
type Conn struct {
	ID string

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

var _ registry.Channel = (*Conn)(nil)

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ID:   uuid.New().String(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues data for the write pump.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return registry.ErrChannelClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return registry.ErrChannelClosed
	case <-ctx.Done():
		return registry.ErrSendTimeout
	}
}

// Close stops the write pump, which then closes the socket. Safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Done is closed once Close was called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) write(messageType int, data []byte, timeout time.Duration) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
