package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/omochice/room-chat/internal/session"
)

// ErrNoNickname is returned by Run when the input ends before a nickname
// was entered.
var ErrNoNickname = errors.New("no nickname entered")

// Chat is the part of a session the terminal drives.
type Chat interface {
	BindNickname(name string) error
	Connect(ctx context.Context) error
	WaitOpen(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Close() error
	Done() <-chan struct{}
	Err() error
}

// Run binds nickname (prompting on in when it is empty), connects chat and
// sends every line of in until "quit", "exit", the end of in, the end of the
// session or the cancellation of ctx. Rejected lines are reported and the
// user is prompted again. Run closes chat before returning and reports why
// the session ended, nil when it was the user.
func (t *Terminal) Run(ctx context.Context, chat Chat, nickname string, in io.Reader) error {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go scanLines(in, lines, stop)

	for {
		if nickname == "" {
			t.print("Nickname: ")
			var ok bool
			select {
			case nickname, ok = <-lines:
				if !ok {
					return t.finish(chat, ErrNoNickname)
				}
				nickname = strings.TrimSpace(nickname)
			case <-ctx.Done():
				return t.finish(chat, nil)
			}
			continue
		}
		if err := chat.BindNickname(nickname); err != nil {
			var ve *session.ValidationError
			if errors.As(err, &ve) {
				nickname = ""
				continue
			}
			return t.finish(chat, err)
		}
		break
	}

	if err := chat.Connect(ctx); err != nil {
		return t.finish(chat, err)
	}
	if err := chat.WaitOpen(ctx); err != nil {
		// The close reason, if any, is reported by finish.
		return t.finish(chat, nil)
	}

	t.println("Type your messages (or 'quit' to exit):")
	for {
		select {
		case <-ctx.Done():
			return t.finish(chat, nil)
		case <-chat.Done():
			return t.finish(chat, nil)
		case line, ok := <-lines:
			if !ok {
				return t.finish(chat, nil)
			}
			if cmd := strings.TrimSpace(line); cmd == "quit" || cmd == "exit" {
				return t.finish(chat, nil)
			}
			// The line is sent as typed; the session rejects an empty one.
			if err := chat.Send(ctx, line); err != nil {
				var ce *session.ConnectionError
				var ve *session.ValidationError
				switch {
				case errors.As(err, &ce) || errors.Is(err, session.ErrClosed):
					return t.finish(chat, nil)
				case errors.As(err, &ve):
					t.println(t.paint(errorStyle, "*** Type a message before sending ***"))
				default:
					t.println(t.paint(errorStyle, fmt.Sprintf("*** Not sent: %v ***", err)))
				}
			}
		}
	}
}

// finish closes chat, waits for its last event and returns err or, failing
// that, the reason the session closed.
func (t *Terminal) finish(chat Chat, err error) error {
	closeErr := chat.Close()
	<-chat.Done()
	if err != nil {
		return err
	}
	if reason := chat.Err(); reason != nil {
		return reason
	}
	return closeErr
}

func scanLines(in io.Reader, lines chan<- string, stop <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-stop:
			return
		}
	}
}
