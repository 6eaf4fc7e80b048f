// Package ws adapts gorilla/websocket sockets to the core.Conn contract:
// binary frames only, buffered non-blocking sends, server-driven heartbeat.
package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/songbooklive/songbook/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SocketConn is an indirection over *websocket.Conn to ease testing.
type SocketConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// wsConn is a live socket endpoint. It implements core.Conn.
// Sends go through a buffered channel drained by the write pump; a full
// buffer drops the frame rather than blocking the sender.
type wsConn struct {
	conn   SocketConn
	send   chan core.Frame
	done   chan struct{}
	misses atomic.Int32
	once   sync.Once
}

func newWSConn(conn SocketConn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, 32),
		done: make(chan struct{}),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
