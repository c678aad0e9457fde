package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

type Conn struct {
	conn    *websocket.Conn
	id      uuid.UUID
	doneCtx context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

func NewConn(ctx context.Context, conn *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(ctx)

	return &Conn{
		conn:    conn,
		id:      uuid.New(),
		doneCtx: ctx,
		cancel:  cancel,
	}
}

func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Send writes msg as JSON. Writes are serialized; a write past the deadline
// fails the connection so the hub can drop it.
func (c *Conn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("connection is nil")
	}

	select {
	case <-c.doneCtx.Done():
		return errors.New("connection context cancelled")
	default:
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Wait blocks until the peer closes the socket or the context ends. Reads
// are discarded; the feed is one-way.
func (c *Conn) Wait() {
	for {
		select {
		case <-c.doneCtx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
