// internal/stream/client.go
package stream

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame or control write to the peer.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound messages. Subscribers are not expected to
	// send anything beyond control frames.
	maxMessageSize = 512
)

// Client is one websocket telemetry subscriber.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	subject    string
	pingPeriod time.Duration
}

func newClient(conn *websocket.Conn, subject string, sendBuffer int, pingPeriod time.Duration) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if pingPeriod <= 0 {
		pingPeriod = 30 * time.Second
	}
	return &Client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		subject:    subject,
		pingPeriod: pingPeriod,
	}
}

// readPump drains inbound frames until the peer goes away. Subscribers do
// not send telemetry upstream; the loop exists to observe close frames and
// pong replies.
func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := 2 * c.pingPeriod
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes broadcast frames and keepalive pings to the peer. It
// exits when the hub closes the send channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
