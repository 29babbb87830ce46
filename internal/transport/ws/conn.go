// Package ws provides the WebSocket transport for chat sessions and the room
// relay, built on gobwas/ws.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/room-chat/internal/chat"
)

// closeWait bounds how long Close waits to hand the close frame to the peer.
const closeWait = time.Second

// Conn adapts a gobwas/ws connection to the chat.Conn interface.
// Reads and writes may run concurrently; writes are serialized.
type Conn struct {
	conn       net.Conn
	src        io.Reader
	state      ws.State
	op         ws.OpCode
	remoteAddr string

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewClientConn wraps the client end of an upgraded connection. br holds any
// bytes buffered during the handshake and may be nil.
func NewClientConn(conn net.Conn, br io.Reader, binary bool) *Conn {
	return newConn(conn, br, ws.StateClientSide, binary)
}

// NewServerConn wraps the server end of an upgraded connection.
func NewServerConn(conn net.Conn, br io.Reader, binary bool) *Conn {
	return newConn(conn, br, ws.StateServerSide, binary)
}

func newConn(conn net.Conn, br io.Reader, state ws.State, binary bool) *Conn {
	src := io.Reader(conn)
	if br != nil {
		src = br
	}
	op := ws.OpText
	if binary {
		op = ws.OpBinary
	}
	return &Conn{
		conn:       conn,
		src:        src,
		state:      state,
		op:         op,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// Read implements chat.Conn.
// Control frames are answered in place; a normal close from the peer is
// reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := c.bindDeadline(ctx, c.conn.SetReadDeadline)
	defer stop()

	rd := wsutil.Reader{
		Source:         c.src,
		State:          c.state,
		CheckUTF8:      true,
		OnIntermediate: wsutil.ControlFrameHandler(lockedWriter{c}, c.state),
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, c.readErr(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := rd.OnIntermediate(hdr, &rd); err != nil {
				return nil, c.readErr(ctx, err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, c.readErr(ctx, err)
			}
			continue
		}
		data, err := io.ReadAll(&rd)
		if err != nil {
			return nil, c.readErr(ctx, err)
		}
		return data, nil
	}
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop := c.bindDeadline(ctx, c.conn.SetWriteDeadline)
	defer stop()

	if err := wsutil.WriteMessage(c.conn, c.state, c.op, data); err != nil {
		return contextErr(ctx, err)
	}
	return nil
}

// Close implements chat.Conn. It sends a normal close frame before closing
// the underlying connection. Calling it more than once is safe.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeWait))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
		c.wmu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// bindDeadline applies the context deadline to the connection and interrupts
// the blocked call when ctx is cancelled. Once stop returns, the interrupt can
// no longer touch the connection.
func (c *Conn) bindDeadline(ctx context.Context, set func(time.Time) error) (stop func()) {
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
	fired := make(chan struct{})
	cancel := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = set(time.Unix(1, 0))
	})
	return func() {
		if !cancel() {
			<-fired
		}
	}
}

// contextErr reports a deadline hit by the connection as the context error
// that caused it.
func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

func (c *Conn) readErr(ctx context.Context, err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		if closed.Code == ws.StatusNormalClosure || closed.Code == ws.StatusGoingAway {
			return io.EOF
		}
	}
	return contextErr(ctx, err)
}

// lockedWriter lets control frame replies share the write lock with Write.
type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return w.c.conn.Write(p)
}

var _ chat.Conn = (*Conn)(nil)
