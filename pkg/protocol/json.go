package protocol

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes messages as {"nickname":"...","message":"..."} text frames.
type JSONCodec struct{}

// wireMessage uses pointers so that absent fields can be told apart from
// empty strings.
type wireMessage struct {
	Nickname *string `json:"nickname"`
	Message  *string `json:"message"`
}

// Encode implements Codec.
func (JSONCodec) Encode(msg ChatMessage) ([]byte, error) {
	if err := checkUTF8(msg); err != nil {
		return nil, err
	}
	data, err := json.Marshal(wireMessage{
		Nickname: &msg.Nickname,
		Message:  &msg.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
// Unknown fields are ignored; both known fields must be present strings.
func (JSONCodec) Decode(data []byte) (ChatMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return ChatMessage{}, &DecodeError{Codec: CodecJSON, Err: err}
	}
	if w.Nickname == nil {
		return ChatMessage{}, &DecodeError{Codec: CodecJSON, Err: missingField("nickname")}
	}
	if w.Message == nil {
		return ChatMessage{}, &DecodeError{Codec: CodecJSON, Err: missingField("message")}
	}
	return ChatMessage{Nickname: *w.Nickname, Message: *w.Message}, nil
}

// Binary implements Codec.
func (JSONCodec) Binary() bool { return false }
