package protocol

import (
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary message layout:
//
//	message ChatMessage {
//	  string nickname = 1;
//	  string message  = 2;
//	}
const (
	fieldNickname protowire.Number = 1
	fieldMessage  protowire.Number = 2
)

// ProtoCodec encodes messages in protobuf wire format as binary frames.
// Both fields are always emitted, even when empty, so that a missing field
// can be detected on decode.
type ProtoCodec struct{}

// Encode implements Codec.
func (ProtoCodec) Encode(msg ChatMessage) ([]byte, error) {
	if err := checkUTF8(msg); err != nil {
		return nil, err
	}
	size := protowire.SizeTag(fieldNickname) + protowire.SizeBytes(len(msg.Nickname)) +
		protowire.SizeTag(fieldMessage) + protowire.SizeBytes(len(msg.Message))
	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, fieldNickname, protowire.BytesType)
	b = protowire.AppendString(b, msg.Nickname)
	b = protowire.AppendTag(b, fieldMessage, protowire.BytesType)
	b = protowire.AppendString(b, msg.Message)
	return b, nil
}

// Decode implements Codec.
func (ProtoCodec) Decode(data []byte) (ChatMessage, error) {
	var (
		msg                 ChatMessage
		hasNick, hasMessage bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: protowire.ParseError(n)}
		}
		data = data[n:]

		if (num == fieldNickname || num == fieldMessage) && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: protowire.ParseError(n)}
			}
			if !utf8.ValidString(v) {
				return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: errInvalidUTF8}
			}
			data = data[n:]
			if num == fieldNickname {
				msg.Nickname, hasNick = v, true
			} else {
				msg.Message, hasMessage = v, true
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: protowire.ParseError(n)}
		}
		data = data[n:]
	}

	if !hasNick {
		return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: missingField("nickname")}
	}
	if !hasMessage {
		return ChatMessage{}, &DecodeError{Codec: CodecProto, Err: missingField("message")}
	}
	return msg, nil
}

// Binary implements Codec.
func (ProtoCodec) Binary() bool { return true }
