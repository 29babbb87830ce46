package ws

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/room-chat/internal/chat"
)

// Dialer opens client connections to a chat endpoint.
type Dialer struct {
	// Timeout bounds the TCP connect and the opening handshake.
	// Zero means no limit beyond the context.
	Timeout time.Duration

	// Binary sends outbound frames as binary instead of text.
	Binary bool
}

// Dial connects to target, a ws:// or wss:// URL.
func (d Dialer) Dial(ctx context.Context, target string) (chat.Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	conn, br, _, err := dialer.Dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	// A nil *bufio.Reader must not be passed on as a non-nil io.Reader.
	var src io.Reader
	if br != nil {
		src = br
	}
	return NewClientConn(conn, src, d.Binary), nil
}
