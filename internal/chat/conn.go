// Package chat provides the transport-agnostic pieces shared by the client
// session and the room relay.
package chat

import "context"

// Conn abstracts one framed, bidirectional chat connection.
// Each Read or Write carries exactly one encoded message.
type Conn interface {
	// Read blocks until the next frame arrives.
	// Returns io.EOF when the peer closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
