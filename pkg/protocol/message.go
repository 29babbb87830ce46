// Package protocol defines the chat message model and its wire codecs.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ChatMessage is a single chat line exchanged with a room.
type ChatMessage struct {
	Nickname string
	Message  string
}

// Codec converts chat messages to and from a single transport frame.
type Codec interface {
	Encode(msg ChatMessage) ([]byte, error)
	Decode(data []byte) (ChatMessage, error)

	// Binary reports whether encoded frames are binary rather than text.
	Binary() bool
}

// Codec names accepted by NewCodec.
const (
	CodecJSON  = "json"
	CodecProto = "proto"
)

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case CodecJSON, "":
		return JSONCodec{}, nil
	case CodecProto:
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// DecodeError reports an inbound payload that is not a well formed message.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s message: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// missingField builds the error used when a required field is absent.
var errInvalidUTF8 = errors.New("string field contains invalid UTF-8")

// checkUTF8 rejects messages no codec could carry unchanged.
func checkUTF8(msg ChatMessage) error {
	if !utf8.ValidString(msg.Nickname) || !utf8.ValidString(msg.Message) {
		return fmt.Errorf("failed to encode message: %w", errInvalidUTF8)
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}
