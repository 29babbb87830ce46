package test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/room-chat/internal/chat"
	"github.com/omochice/room-chat/internal/session"
	"github.com/omochice/room-chat/internal/transport/ws"
	"github.com/omochice/room-chat/pkg/protocol"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// recorder is a session.Sink that hands every event to the test.
type recorder struct {
	bound    chan string
	messages chan protocol.ChatMessage
	closed   chan error
}

func newRecorder() *recorder {
	return &recorder{
		bound:    make(chan string, 1),
		messages: make(chan protocol.ChatMessage, 16),
		closed:   make(chan error, 1),
	}
}

func (r *recorder) NicknameBound(name string)                 { r.bound <- name }
func (r *recorder) MessageReceived(msg protocol.ChatMessage) { r.messages <- msg }
func (r *recorder) SessionClosed(reason error)               { r.closed <- reason }

func (r *recorder) nextMessage(t *testing.T) protocol.ChatMessage {
	t.Helper()
	select {
	case msg := <-r.messages:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("no message received")
		return protocol.ChatMessage{}
	}
}

func (r *recorder) closeReason(t *testing.T) error {
	t.Helper()
	select {
	case reason := <-r.closed:
		return reason
	case <-time.After(waitTimeout):
		t.Fatal("session was not closed")
		return nil
	}
}

func startRelay(t *testing.T, codec protocol.Codec) *ws.Server {
	t.Helper()
	srv := ws.NewServer(ws.ServerOptions{
		Address: "127.0.0.1:0",
		Codec:   codec,
		Logger:  logs.GetLoggerFromLevel(slog.LevelDebug),
	}, chat.NewHub())
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)
	return srv
}

func member(t *testing.T, endpoint, room, nickname string, codec protocol.Codec) (*session.Session, *recorder) {
	t.Helper()
	sink := newRecorder()
	s, err := session.New(session.Options{
		RoomID:      room,
		Endpoint:    endpoint,
		Codec:       codec,
		Dialer:      ws.Dialer{Timeout: time.Second, Binary: codec.Binary()},
		Sink:        sink,
		DialTimeout: time.Second,
		Logger:      logs.GetLoggerFromLevel(slog.LevelDebug),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.BindNickname(nickname))
	require.Equal(t, nickname, <-sink.bound)
	return s, sink
}

func open(t *testing.T, s *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.WaitOpen(ctx))
	require.Equal(t, session.StateOpen, s.State())
}

func TestIntegration_RoomChat(t *testing.T) {
	codecs := []protocol.Codec{protocol.JSONCodec{}, protocol.ProtoCodec{}}

	for _, codec := range codecs {
		name := protocol.CodecJSON
		if codec.Binary() {
			name = protocol.CodecProto
		}
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			srv := startRelay(t, codec)
			endpoint := "ws://" + srv.Addr()

			alice, aliceSink := member(t, endpoint, "room1", "alice", codec)
			bob, bobSink := member(t, endpoint, "room1", "bob", codec)
			open(t, alice)
			open(t, bob)
			req.Eventually(func() bool {
				return srv.Hub().ClientCount("room1") == 2
			}, waitTimeout, 5*time.Millisecond)

			ctx := context.Background()
			req.NoError(alice.Send(ctx, "hello"))
			req.Equal(protocol.ChatMessage{Nickname: "alice", Message: "hello"}, bobSink.nextMessage(t))
			req.Equal(protocol.ChatMessage{Nickname: "alice", Message: "hello"}, aliceSink.nextMessage(t))

			req.NoError(bob.Send(ctx, "hi alice"))
			req.NoError(bob.Send(ctx, "how are you?"))
			req.Equal("hi alice", aliceSink.nextMessage(t).Message)
			req.Equal("how are you?", aliceSink.nextMessage(t).Message)

			// User-initiated close reports no reason.
			req.NoError(alice.Close())
			req.NoError(aliceSink.closeReason(t))
			req.Eventually(func() bool {
				return srv.Hub().ClientCount("room1") == 1
			}, waitTimeout, 5*time.Millisecond)

			// Losing the relay closes the remaining member with a connection error.
			srv.Stop()
			reason := bobSink.closeReason(t)
			var connErr *session.ConnectionError
			req.ErrorAs(reason, &connErr)
			req.Equal("read", connErr.Op)
			req.Equal(session.StateClosed, bob.State())

			err := bob.Send(ctx, "anyone?")
			req.ErrorIs(err, session.ErrClosed)
		})
	}
}

func TestIntegration_RoomsAreIsolated(t *testing.T) {
	codec := protocol.JSONCodec{}
	srv := startRelay(t, codec)
	endpoint := "ws://" + srv.Addr()

	alice, _ := member(t, endpoint, "room1", "alice", codec)
	carol, carolSink := member(t, endpoint, "room 2/b", "carol", codec)
	open(t, alice)
	open(t, carol)
	require.Eventually(t, func() bool {
		return srv.Hub().ClientCount("room1") == 1 && srv.Hub().ClientCount("room 2/b") == 1
	}, waitTimeout, 5*time.Millisecond)

	require.NoError(t, alice.Send(context.Background(), "only room1"))
	require.NoError(t, carol.Send(context.Background(), "only room 2"))

	msg := carolSink.nextMessage(t)
	require.Equal(t, protocol.ChatMessage{Nickname: "carol", Message: "only room 2"}, msg)
	select {
	case msg := <-carolSink.messages:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIntegration_DialFailure(t *testing.T) {
	srv := startRelay(t, nil)
	endpoint := "ws://" + srv.Addr()
	srv.Stop()

	s, sink := member(t, endpoint, "room1", "alice", protocol.JSONCodec{})
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, s.Connect(ctx))

	err := s.WaitOpen(ctx)
	var connErr *session.ConnectionError
	require.True(t, errors.As(err, &connErr), "WaitOpen() error = %v", err)
	require.Equal(t, "dial", connErr.Op)
	require.Equal(t, err, sink.closeReason(t))
}
