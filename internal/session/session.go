// Package session implements the client side of a room chat: nickname
// binding, the connection lifecycle and message exchange.
//
// A Session moves through UNBOUND → BOUND → CONNECTING → OPEN → CLOSED.
// Every transition happens under one mutex. Events are delivered to the Sink
// from a single goroutine, in order, and SessionClosed is always the last one.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omochice/room-chat/internal/chat"
	"github.com/omochice/room-chat/pkg/protocol"
)

const defaultEventBuffer = 64

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_sink.go -package=mocks github.com/omochice/room-chat/internal/session Sink

// Sink receives session events. Calls come from one goroutine and should
// return quickly. A Sink may call back into the Session, including Close.
type Sink interface {
	NicknameBound(name string)
	MessageReceived(msg protocol.ChatMessage)
	// SessionClosed is called exactly once. reason is nil when the caller
	// closed the session, a *ConnectionError otherwise.
	SessionClosed(reason error)
}

// Dialer opens the transport connection to a chat target URL.
type Dialer interface {
	Dial(ctx context.Context, target string) (chat.Conn, error)
}

// Options configures a Session.
type Options struct {
	RoomID   string
	Endpoint string // base URL such as ws://localhost:8000
	Codec    protocol.Codec
	Dialer   Dialer
	Sink     Sink

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	EventBuffer  int
	Logger       *slog.Logger
}

type eventKind int

const (
	eventNicknameBound eventKind = iota
	eventMessage
)

type event struct {
	kind     eventKind
	nickname string
	msg      protocol.ChatMessage
}

// Session is one client's nickname binding and connection to a room.
// Close must be called to release it.
type Session struct {
	id   string
	opts Options
	log  *slog.Logger

	mu         sync.Mutex
	state      State
	nickname   string
	target     string
	conn       chat.Conn
	reason     error
	cancelDial context.CancelFunc

	// wmu serializes writes. It is never held together with mu.
	wmu sync.Mutex

	opened     chan struct{} // closed once the session leaves CONNECTING
	openedOnce sync.Once
	quit       chan struct{} // closed on entering CLOSED
	events     chan event
	done       chan struct{} // closed after SessionClosed was delivered
}

// New creates an UNBOUND session for opts.RoomID.
func New(opts Options) (*Session, error) {
	if opts.RoomID == "" {
		return nil, errors.New("room id is required")
	}
	if _, err := parseEndpoint(opts.Endpoint); err != nil {
		return nil, err
	}
	if opts.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if opts.Codec == nil {
		opts.Codec = protocol.JSONCodec{}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		opts:   opts,
		log:    log.With("session", id, "room", opts.RoomID),
		state:  StateUnbound,
		opened: make(chan struct{}),
		quit:   make(chan struct{}),
		events: make(chan event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
	go s.dispatch()
	return s, nil
}

// ID returns the session's log correlation id.
func (s *Session) ID() string { return s.id }

// RoomID returns the room the session is scoped to.
func (s *Session) RoomID() string { return s.opts.RoomID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Nickname returns the bound nickname, or "" before BindNickname succeeded.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Done is closed after SessionClosed has been delivered to the Sink.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the reason the session closed. It is nil while the session is
// not closed and when the caller closed it.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// BindNickname binds name to the session. It is only valid once, in UNBOUND.
func (s *Session) BindNickname(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnbound {
		return &StateError{Op: "bind nickname", State: s.state}
	}
	if name == "" {
		return &ValidationError{Field: "nickname", Err: ErrEmptyNickname}
	}

	s.nickname = name
	s.state = StateBound
	// Nothing else can be queued before the first connect, so this never blocks.
	s.events <- event{kind: eventNicknameBound, nickname: name}
	s.log.Debug("Nickname bound", "nickname", name)
	return nil
}

// Connect starts opening the connection and returns without waiting for it.
// ctx bounds the dial only. On failure the session closes and the Sink gets
// SessionClosed with a *ConnectionError. Use WaitOpen to block until OPEN.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateBound {
		return &StateError{Op: "connect", State: s.state}
	}
	target, err := BuildTarget(s.opts.Endpoint, s.opts.RoomID, s.nickname)
	if err != nil {
		return err
	}

	var dialCtx context.Context
	var cancel context.CancelFunc
	if s.opts.DialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.DialTimeout)
	} else {
		dialCtx, cancel = context.WithCancel(ctx)
	}

	s.target = target
	s.cancelDial = cancel
	s.state = StateConnecting
	s.log.Info("Connecting", "target", target, "nickname", s.nickname)

	go s.dial(dialCtx, cancel, target)
	return nil
}

// WaitOpen blocks until the session leaves CONNECTING. It returns nil once
// OPEN, or the close reason (ErrClosed when closed by the caller).
func (s *Session) WaitOpen(ctx context.Context) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st == StateUnbound || st == StateBound {
		return &StateError{Op: "wait for open", State: st}
	}

	select {
	case <-s.opened:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpen {
		return nil
	}
	if s.reason != nil {
		return s.reason
	}
	return ErrClosed
}

// Send transmits text as the bound nickname. It is only valid in OPEN and
// returns once the frame is handed to the transport. A write failure closes
// the session and is returned as a *ConnectionError.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state != StateOpen {
		err := &StateError{Op: "send", State: s.state}
		s.mu.Unlock()
		return err
	}
	if text == "" {
		s.mu.Unlock()
		return &ValidationError{Field: "message", Err: ErrEmptyMessage}
	}
	data, err := s.opts.Codec.Encode(protocol.ChatMessage{Nickname: s.nickname, Message: text})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conn, target := s.conn, s.target
	s.mu.Unlock()

	s.wmu.Lock()
	if s.isClosed() {
		s.wmu.Unlock()
		return ErrClosed
	}
	if s.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()
	}
	err = conn.Write(ctx, data)
	s.wmu.Unlock()
	if err == nil {
		return nil
	}
	if s.isClosed() {
		return ErrClosed
	}
	connErr := &ConnectionError{Op: "write", Target: target, Err: err}
	s.fail(conn, connErr)
	return connErr
}

// Close releases the connection, if any, and moves the session to CLOSED.
// Calling it again is a no-op. It never waits for the Sink.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	conn := s.closeLocked(nil)
	s.mu.Unlock()

	s.log.Info("Session closed")
	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

func (s *Session) dial(ctx context.Context, cancel context.CancelFunc, target string) {
	defer cancel()
	conn, err := s.opts.Dialer.Dial(ctx, target)

	s.mu.Lock()
	if s.state != StateConnecting {
		// Closed while dialing.
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.closeLocked(&ConnectionError{Op: "dial", Target: target, Err: err})
		s.mu.Unlock()
		s.log.Warn("Connection failed", "target", target, "error", err)
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.markOpened()
	s.mu.Unlock()

	s.log.Info("Connected", "target", target, "remote", conn.RemoteAddr())
	go s.readLoop(conn, target)
}

// readLoop decodes inbound frames in arrival order. Malformed payloads are
// logged and skipped; a read failure ends the session.
func (s *Session) readLoop(conn chat.Conn, target string) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrRemoteClosed
			}
			s.fail(conn, &ConnectionError{Op: "read", Target: target, Err: err})
			return
		}

		msg, err := s.opts.Codec.Decode(data)
		if err != nil {
			s.log.Warn("Ignoring malformed message", "error", err)
			continue
		}

		select {
		case s.events <- event{kind: eventMessage, msg: msg}:
		case <-s.quit:
			return
		}
	}
}

// fail closes the session with reason unless conn is no longer the live
// connection.
func (s *Session) fail(conn chat.Conn, reason error) {
	s.mu.Lock()
	if s.state != StateOpen || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.closeLocked(reason)
	s.mu.Unlock()

	s.log.Warn("Connection lost", "error", reason)
	_ = conn.Close()
}

// closeLocked moves to CLOSED and returns the connection the caller must
// close after releasing mu.
func (s *Session) closeLocked(reason error) chat.Conn {
	s.state = StateClosed
	s.reason = reason
	if s.cancelDial != nil {
		s.cancelDial()
	}
	conn := s.conn
	s.conn = nil
	close(s.quit)
	s.markOpened()
	return conn
}

func (s *Session) markOpened() {
	s.openedOnce.Do(func() { close(s.opened) })
}

func (s *Session) isClosed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// dispatch delivers queued events to the Sink until the session closes, then
// emits SessionClosed. Messages still queued at that point are dropped.
func (s *Session) dispatch() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.events:
			s.deliver(ev)
		case <-s.quit:
			s.drain()
			s.mu.Lock()
			reason := s.reason
			s.mu.Unlock()
			s.opts.Sink.SessionClosed(reason)
			return
		}
	}
}

func (s *Session) deliver(ev event) {
	switch ev.kind {
	case eventNicknameBound:
		s.opts.Sink.NicknameBound(ev.nickname)
	case eventMessage:
		if s.isClosed() {
			return
		}
		s.opts.Sink.MessageReceived(ev.msg)
	}
}

func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			if ev.kind == eventNicknameBound {
				s.opts.Sink.NicknameBound(ev.nickname)
			}
		default:
			return
		}
	}
}
