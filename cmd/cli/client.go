package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/Ruqii/LLMPuzzle/internal/protocol"
)

// sender is what the model needs from the connection.
type sender interface {
	SendText(text string) error
	SendVote(name string) error
	Close() error
}

type (
	// frameMsg is one frame received from the server.
	frameMsg string
	// disconnectedMsg reports that the read loop ended.
	disconnectedMsg struct{ err error }
)

type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func gameURL(server, room string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if room != "" {
		q := u.Query()
		q.Set("room", room)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func dial(ctx context.Context, target string) (*wsClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &wsClient{conn: conn}, nil
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) SendText(text string) error {
	return c.write([]byte(text))
}

func (c *wsClient) SendVote(name string) error {
	data, err := json.Marshal(protocol.VoteMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeVote},
		VoteFor:     name,
	})
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}

// readLoop forwards frames to out until the socket fails.
func (c *wsClient) readLoop(out chan<- tea.Msg) {
	defer close(out)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			out <- disconnectedMsg{err: err}
			return
		}
		out <- frameMsg(data)
	}
}

// waitFrame blocks on the next inbound message.
func waitFrame(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
