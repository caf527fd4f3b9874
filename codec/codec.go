// Package codec provides the serialization layer for the runtime.
//
// Two codecs are mandatory (spec §6): a self-describing textual codec
// (JSON) and a compact binary codec (msgpack). The codec type is also
// stored in the TCP transport's frame header so the receiver knows which
// codec decoded the body, but every boundary (HTTP/1, HTTP/2, WebSocket,
// the gateway) consults the same global Registry keyed by content type
// instead of the frame-local byte, which only the TCP variant has.
package codec

import "github.com/bx-d/corerpc/message"

// CodecType identifies the serialization format, stored as 1 byte in the
// TCP transport's frame header.
type CodecType byte

const (
	CodecTypeJSON    CodecType = 0
	CodecTypeMsgpack CodecType = 1
)

// Codec is the interface every serialization format implements.
// Implementing this interface lets a new format (e.g. Protobuf) be added
// without changing any other layer.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
	ContentType() string
	Aliases() []string
	Extension() string
	Name() string
	// Detect reports whether data plausibly belongs to this codec, used
	// for content sniffing when no Content-Type header is present.
	Detect(data []byte) bool
	// Valid reports whether data is well-formed for this codec.
	Valid(data []byte) bool
}

// GetCodec is a factory function that returns the appropriate codec for
// the TCP frame header's CodecType byte.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}
	return &MsgpackCodec{}
}

// EncodeRPC and DecodeRPC marshal the teacher's original
// message.RPCMessage envelope directly, independent of the
// message.Message/dispatch.Context path the server and gateway use —
// kept so a codec round trip against the teacher's own wire shape stays
// testable (see codec_test.go) without requiring the full dispatch stack.
func EncodeRPC(c Codec, msg *message.RPCMessage) ([]byte, error) {
	return c.Encode(msg)
}

func DecodeRPC(c Codec, data []byte) (*message.RPCMessage, error) {
	msg := &message.RPCMessage{}
	if err := c.Decode(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
