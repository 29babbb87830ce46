package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/omochice/room-chat/internal/chat"
	"github.com/omochice/room-chat/pkg/protocol"
	"github.com/samber/lo"
)

const (
	// ChatPath is the route pattern of a room's chat endpoint.
	ChatPath = "/community/{room}/chat"

	writeWait             = 10 * time.Second
	defaultOutgoingBuffer = 16
)

// ServerOptions configures a relay Server.
type ServerOptions struct {
	Address        string
	Codec          protocol.Codec
	OutgoingBuffer int
	Logger         *slog.Logger
}

// Server accepts WebSocket members on ChatPath and relays every message to
// the rest of the room through a Hub.
type Server struct {
	opts   ServerOptions
	hub    *chat.Hub
	log    *slog.Logger
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	clients  map[*chat.Client]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// NewServer creates a relay Server that uses the provided Hub.
func NewServer(opts ServerOptions, hub *chat.Hub) *Server {
	if opts.Codec == nil {
		opts.Codec = protocol.JSONCodec{}
	}
	if opts.OutgoingBuffer <= 0 {
		opts.OutgoingBuffer = defaultOutgoingBuffer
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts:    opts,
		hub:     hub,
		log:     log,
		clients: make(map[*chat.Client]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ChatPath, s.handleWebSocket)
	s.server = &http.Server{Handler: mux}
	return s
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the listening socket without serving yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.log.Info("Relay listening", "addr", listener.Addr().String())
	return nil
}

// Serve serves on the socket bound by Listen. It returns nil after Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("relay is not listening")
	}
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting members and disconnects the current ones.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	_ = s.server.Shutdown(ctx)

	s.mu.Lock()
	s.stopped = true
	clients := lo.Keys(s.clients)
	s.mu.Unlock()

	for _, client := range clients {
		_ = client.Conn.Close()
	}

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Hub returns the hub members are registered with.
func (s *Server) Hub() *chat.Hub {
	return s.hub
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}

	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn("Failed to upgrade WebSocket connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &chat.Client{
		ID:       uuid.NewString(),
		Room:     room,
		Nickname: nickname,
		Conn:     NewServerConn(conn, rw.Reader, s.opts.Codec.Binary()),
		Outgoing: make(chan []byte, s.opts.OutgoingBuffer),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = client.Conn.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()
	s.hub.Register(client)

	s.log.Info("Member joined", "client", client.ID, "room", room, "nickname", nickname)

	go s.readLoop(client)
	go s.writeLoop(client)
}

// readLoop relays the member's messages to the room until the connection
// ends. The nickname is always taken from the connection, never the payload.
func (s *Server) readLoop(client *chat.Client) {
	defer s.wg.Done()
	defer func() {
		s.hub.Unregister(client)
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		close(client.Outgoing)
		s.log.Info("Member left", "client", client.ID, "room", client.Room, "nickname", client.Nickname)
	}()

	for {
		data, err := client.Conn.Read(context.Background())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("Read from member failed", "client", client.ID, "error", err)
			}
			return
		}

		msg, err := s.opts.Codec.Decode(data)
		if err != nil {
			s.log.Warn("Dropping malformed message", "client", client.ID, "error", err)
			continue
		}
		msg.Nickname = client.Nickname

		out, err := s.opts.Codec.Encode(msg)
		if err != nil {
			s.log.Warn("Dropping unencodable message", "client", client.ID, "error", err)
			continue
		}
		for _, skipped := range s.hub.Broadcast(client.Room, out) {
			s.log.Warn("Member queue full, skipping", "client", skipped.ID, "room", skipped.Room)
		}
	}
}

func (s *Server) writeLoop(client *chat.Client) {
	defer s.wg.Done()
	defer client.Conn.Close()

	for data := range client.Outgoing {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := client.Conn.Write(ctx, data)
		cancel()
		if err != nil {
			s.log.Debug("Write to member failed", "client", client.ID, "error", err)
			return
		}
	}
}
