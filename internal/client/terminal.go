// Package client renders a chat session on a terminal and feeds it the
// user's input.
package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
	"github.com/omochice/room-chat/pkg/protocol"
)

var (
	nicknameStyle = color.New(color.FgCyan, color.OpBold)
	noticeStyle   = color.New(color.FgGreen)
	errorStyle    = color.New(color.FgRed)
)

// Terminal is a session.Sink that prints events as lines on out.
type Terminal struct {
	out    io.Writer
	colors bool
	mu     sync.Mutex
}

// NewTerminal creates a Terminal writing to out. Colors are only emitted when
// colors is true.
func NewTerminal(out io.Writer, colors bool) *Terminal {
	return &Terminal{out: out, colors: colors}
}

// NicknameBound announces the nickname the session is using.
func (t *Terminal) NicknameBound(name string) {
	t.println(t.paint(noticeStyle, fmt.Sprintf("*** You are %s ***", name)))
}

// MessageReceived prints msg as "nickname : message".
func (t *Terminal) MessageReceived(msg protocol.ChatMessage) {
	t.println(fmt.Sprintf("%s : %s", t.paint(nicknameStyle, msg.Nickname), msg.Message))
}

// SessionClosed reports the end of the session.
func (t *Terminal) SessionClosed(reason error) {
	if reason == nil {
		t.println(t.paint(noticeStyle, "*** Disconnected ***"))
		return
	}
	t.println(t.paint(errorStyle, fmt.Sprintf("*** Disconnected: %v ***", reason)))
}

func (t *Terminal) paint(style color.Style, s string) string {
	if !t.colors {
		return s
	}
	return style.Render(s)
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, s)
}
