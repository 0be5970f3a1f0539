package websocket

import (
	"context"
	"errors"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second

	// Clients never send payloads, only control frames.
	readLimit = 1024
)

// Client is one open connection of an authenticated user. The hub owns the
// send channel and closes it on Unregister.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	userID string
	send   chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run serves the connection until either side goes away.
func (c *Client) Run(ctx context.Context) {
	defer c.conn.CloseNow()
	c.conn.SetReadLimit(readLimit)
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		if err := c.deliver(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.hub.logger.Debug("websocket write failed", "user_id", c.userID, "error", err)
		}
	}()

	// Reading is what processes pongs and the peer's close frame.
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// deliver writes queued notifications and keeps the connection alive with
// pings. It closes the connection normally when the hub drops the client.
func (c *Client) deliver(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return c.conn.Close(ws.StatusNormalClosure, "")
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
