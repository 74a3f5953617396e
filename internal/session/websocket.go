package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rank-client/internal/errors"
	"rank-client/internal/wire"
)

const (
	// Path is the websocket endpoint of the rank service.
	Path = "/session"

	writeWait      = 5 * time.Second
	maxMessageSize = 8 * 1024 * 1024
)

// WebsocketDialer connects to the rank service over a websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial opens a websocket to ws://addr/session.
func (d WebsocketDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

func (c *wsConn) WriteFrame(ctx context.Context, f wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(f)
}

// ReadEvent reads the next event. A frame that is not a valid event yields an
// error wrapping ErrMalformedEvent and leaves the connection usable.
func (c *wsConn) ReadEvent() (wire.Event, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return wire.Event{}, err
	}
	var ev wire.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return wire.Event{}, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	return ev, nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
