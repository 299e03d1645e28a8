package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Conn is one live client connection. Outbound frames go through a
// bounded outbox drained by a single writer goroutine; when the outbox
// is full the oldest frame is dropped, so a stalled peer can never block
// the goroutine that accepted a move.
type Conn struct {
	id     string
	userID string
	name   string
	guest  bool

	sock *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(userID, name string, guest bool, sock *websocket.Conn, outboxSize int) *Conn {
	if outboxSize <= 0 {
		outboxSize = 32
	}
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		name:   name,
		guest:  guest,
		sock:   sock,
		out:    make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// UserID returns the identity presented at the handshake.
func (c *Conn) UserID() string { return c.userID }

// Name returns the display name presented at the handshake.
func (c *Conn) Name() string { return c.name }

// Outbox exposes the outbound frame stream; tests read it directly in
// place of a websocket writer.
func (c *Conn) Outbox() <-chan []byte { return c.out }

// enqueue never blocks: on a full outbox it evicts the oldest frame and
// tries again.
func (c *Conn) enqueue(b []byte) {
	for {
		select {
		case <-c.done:
			return
		case c.out <- b:
			return
		default:
		}
		select {
		case <-c.out:
		default:
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WriteLoop drains the outbox into the websocket until the context ends,
// the connection is unregistered, or a write fails.
func (c *Conn) WriteLoop(ctx context.Context, writeTimeout time.Duration) {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case b := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.sock.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
