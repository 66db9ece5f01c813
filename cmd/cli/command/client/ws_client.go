package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	relay "mycelhub/internal/microservices/websocket"
)

// ErrNoEcho means the relay never echoed the command back. Publish failures are
// silent on the relay side, so this is the only signal a client gets.
var ErrNoEcho = errors.New("no echo from relay")

// ws_client.go = dashboard connection to the relay's /ws endpoint.
type WSClient struct {
	conn *websocket.Conn
}

// Dial connects to serverURL, which may be a bare host:port, an http(s) URL or a ws(s) URL.
func Dial(serverURL string) (*WSClient, error) {
	u, err := wsURL(serverURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &WSClient{conn: conn}, nil
}

func wsURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func (c *WSClient) Send(cmd relay.ClientCommand) error {
	data, err := relay.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Next returns the next decodable event. Frames this client does not understand are skipped.
func (c *WSClient) Next(deadline time.Time) (relay.ServerEvent, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		ev, err := relay.DecodeEvent(data)
		if err != nil {
			continue
		}
		return ev, nil
	}
}

// Request sends cmd and waits up to timeout for its echo: an event of type want
// whose fields match the command. Other broadcasts arriving first are skipped.
func (c *WSClient) Request(cmd relay.ClientCommand, want relay.EventType, timeout time.Duration) (relay.ServerEvent, error) {
	if err := c.Send(cmd); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		ev, err := c.Next(deadline)
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%s: %w", cmd.CommandType(), ErrNoEcho)
			}
			return nil, err
		}
		if ev.EventType() == want && isEcho(cmd, ev) {
			return ev, nil
		}
		if notice, ok := ev.(relay.ErrorNotice); ok {
			return nil, fmt.Errorf("relay error: %s", notice.Message)
		}
	}
}

// Watch prints every event until ctx is cancelled or the relay closes the socket.
func (c *WSClient) Watch(ctx context.Context, print func(relay.ServerEvent)) error {
	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		ev, err := c.Next(time.Time{})
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		print(ev)
	}
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}
