package realtime

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const pingInterval = 30 * time.Second

// Client bridges one websocket connection to one or more subscriptions.
type Client struct {
	conn *ws.Conn
	subs []*Subscription
}

func NewClient(conn *ws.Conn, subs ...*Subscription) *Client {
	return &Client{conn: conn, subs: subs}
}

// Run starts the write pump and runs the read pump. It blocks until the
// connection closes, then cancels every subscription. If any subscription
// ends first, for example because a newer one took its name, the
// connection is closed.
func (c *Client) Run(ctx context.Context) {
	defer func() {
		for _, sub := range c.subs {
			sub.Cancel()
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, eventBufferSize)
	ended := make(chan string, len(c.subs))
	for _, sub := range c.subs {
		go forward(ctx, sub, events, ended)
	}

	go c.writePump(ctx, cancel, events, ended)
	c.readPump(ctx)
}

func forward(ctx context.Context, sub *Subscription, out chan<- Event, ended chan<- string) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				ended <- sub.Name
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump discards incoming messages until the connection errors.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc, events <-chan Event, ended <-chan string) {
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case <-ended:
			c.conn.Close(ws.StatusGoingAway, "subscription closed")
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
