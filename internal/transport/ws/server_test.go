package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/room-chat/internal/chat"
	"github.com/omochice/room-chat/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, codec protocol.Codec) *Server {
	t.Helper()
	srv := NewServer(ServerOptions{
		Address: "127.0.0.1:0",
		Codec:   codec,
		Logger:  logs.GetLoggerFromLevel(slog.LevelDebug),
	}, chat.NewHub())
	require.NoError(t, srv.Listen())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Stop()
		require.NoError(t, <-errc)
	})
	return srv
}

func join(t *testing.T, srv *Server, binary bool, room, nickname string) chat.Conn {
	t.Helper()
	before := srv.Hub().ClientCount(room)

	target := fmt.Sprintf("ws://%s/community/%s/chat?nickname=%s", srv.Addr(), room, nickname)
	conn, err := Dialer{Timeout: time.Second, Binary: binary}.Dial(context.Background(), target)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return srv.Hub().ClientCount(room) == before+1
	}, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn chat.Conn, codec protocol.Codec) protocol.ChatMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	msg, err := codec.Decode(data)
	require.NoError(t, err)
	return msg
}

func requireSilent(t *testing.T, conn chat.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	data, err := conn.Read(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected frame %q", data)
}

func TestServer_RequiresNickname(t *testing.T) {
	srv := startRelay(t, nil)

	resp, err := http.Get("http://" + srv.Addr() + "/community/room1/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, srv.Hub().RoomCount())
}

func TestServer_UnknownPath(t *testing.T) {
	srv := startRelay(t, nil)

	resp, err := http.Get("http://" + srv.Addr() + "/ws?nickname=alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_BroadcastsWithinRoom(t *testing.T) {
	codec := protocol.JSONCodec{}
	srv := startRelay(t, codec)

	alice := join(t, srv, false, "room1", "alice")
	bob := join(t, srv, false, "room1", "bob")
	carol := join(t, srv, false, "room2", "carol")

	// The relay trusts the connection's nickname, not the payload's.
	data, err := codec.Encode(protocol.ChatMessage{Nickname: "mallory", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, alice.Write(context.Background(), data))

	want := protocol.ChatMessage{Nickname: "alice", Message: "hi"}
	require.Equal(t, want, readMessage(t, bob, codec))
	require.Equal(t, want, readMessage(t, alice, codec))
	requireSilent(t, carol)
}

func TestServer_DropsMalformedFrames(t *testing.T) {
	codec := protocol.JSONCodec{}
	srv := startRelay(t, codec)

	alice := join(t, srv, false, "room1", "alice")
	bob := join(t, srv, false, "room1", "bob")

	require.NoError(t, alice.Write(context.Background(), []byte("not json")))
	require.NoError(t, alice.Write(context.Background(), []byte(`{"nickname":"alice"}`)))
	data, err := codec.Encode(protocol.ChatMessage{Nickname: "alice", Message: "ok"})
	require.NoError(t, err)
	require.NoError(t, alice.Write(context.Background(), data))

	require.Equal(t, protocol.ChatMessage{Nickname: "alice", Message: "ok"}, readMessage(t, bob, codec))
}

func TestServer_ProtoCodec(t *testing.T) {
	codec := protocol.ProtoCodec{}
	srv := startRelay(t, codec)

	alice := join(t, srv, true, "7", "alice")
	bob := join(t, srv, true, "7", "bob")

	data, err := codec.Encode(protocol.ChatMessage{Nickname: "alice", Message: "hello"})
	require.NoError(t, err)
	require.NoError(t, bob.Write(context.Background(), data))

	require.Equal(t, protocol.ChatMessage{Nickname: "bob", Message: "hello"}, readMessage(t, alice, codec))
}

func TestServer_MemberLeaves(t *testing.T) {
	srv := startRelay(t, nil)

	alice := join(t, srv, false, "room1", "alice")
	join(t, srv, false, "room1", "bob")
	require.Equal(t, 2, srv.Hub().ClientCount("room1"))

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return srv.Hub().ClientCount("room1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServer_StopDisconnectsMembers(t *testing.T) {
	srv := NewServer(ServerOptions{Address: "127.0.0.1:0"}, chat.NewHub())
	require.NoError(t, srv.Listen())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	members := []chat.Conn{
		join(t, srv, false, "room1", "alice"),
		join(t, srv, false, "room1", "bob"),
		join(t, srv, false, "room2", "carol"),
	}

	srv.Stop()
	require.NoError(t, <-errc)

	for _, conn := range members {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := conn.Read(ctx)
		cancel()
		require.Error(t, err)
		require.NotErrorIs(t, err, context.DeadlineExceeded)
	}
	require.Zero(t, srv.Hub().RoomCount())
}

func TestDialer_Failure(t *testing.T) {
	srv := startRelay(t, nil)

	_, err := Dialer{Timeout: time.Second}.Dial(context.Background(), "ws://"+srv.Addr()+"/community/room1/chat")
	require.Error(t, err)

	_, err = Dialer{Timeout: time.Second}.Dial(context.Background(), "ws://"+srv.Addr()+"/elsewhere?nickname=a")
	require.Error(t, err)
}

func TestDialer_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dialer{}.Dial(ctx, "ws://127.0.0.1:1/community/room1/chat?nickname=a")
	require.Error(t, err)
}
