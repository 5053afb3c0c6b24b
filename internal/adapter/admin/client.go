// Package admin is a JSON-RPC client for the game server's operator endpoints.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/Ruqii/LLMPuzzle/internal/game"
	"github.com/Ruqii/LLMPuzzle/internal/transport/rpc"
)

// ErrNoAddress is returned when the client has no server address.
var ErrNoAddress = errors.New("rpc address is required")

// Client calls Game.* methods. Every call dials a fresh connection.
type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

// NewClient accepts "host:port" or a URL such as "tcp://host:port".
func NewClient(addr string) *Client {
	return &Client{
		addr:        resolveRPCAddr(addr),
		dialTimeout: 5 * time.Second,
		callTimeout: 5 * time.Second,
	}
}

// Announce broadcasts text to a room and returns how many players received it.
func (c *Client) Announce(ctx context.Context, roomID, text string) (int, error) {
	var resp rpc.AnnounceResponse
	req := &rpc.AnnounceRequest{RoomID: roomID, Text: text}
	if err := c.call(ctx, rpc.ServiceName+".Announce", req, &resp); err != nil {
		return 0, fmt.Errorf("failed to announce: %w", err)
	}
	if !resp.OK {
		return 0, errors.New("announce returned ok=false")
	}
	return resp.Delivered, nil
}

// Roster returns a room's display names.
func (c *Client) Roster(ctx context.Context, roomID string) ([]string, error) {
	var resp rpc.RosterResponse
	if err := c.call(ctx, rpc.ServiceName+".Roster", &rpc.RosterRequest{RoomID: roomID}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	return resp.Players, nil
}

// Rooms lists live rooms.
func (c *Client) Rooms(ctx context.Context) ([]game.RoomInfo, error) {
	var resp rpc.RoomsResponse
	if err := c.call(ctx, rpc.ServiceName+".Rooms", &rpc.RoomsRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	if c.addr == "" {
		return ErrNoAddress
	}
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.callTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.callTimeout))
	}

	client := jsonrpc.NewClient(conn)
	defer client.Close()
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
