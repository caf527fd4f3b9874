package transport

import (
	"time"

	"github.com/bx-d/corerpc/codec"
	"github.com/bx-d/corerpc/message"
)

// wireMessage is the on-wire shape of message.Message, msgpack-encoded by
// every variant that frames raw bytes (tcp, websocket). It exists
// separately from message.Message so envelope (de)serialization has no
// dependency on how a given transport chooses to carry status or stream
// ids out of band.
type wireMessage struct {
	ID        string              `msgpack:"id"`
	Type      byte                `msgpack:"type"`
	Target    string               `msgpack:"target"`
	Endpoint  string               `msgpack:"endpoint"`
	Body      []byte               `msgpack:"body"`
	Headers   map[string][]string  `msgpack:"headers"`
	Timestamp int64                `msgpack:"timestamp"` // unix nanos
}

func toWire(msg *message.Message) wireMessage {
	return wireMessage{
		ID:        msg.ID,
		Type:      byte(msg.Type),
		Target:    msg.Target,
		Endpoint:  msg.Endpoint,
		Body:      msg.Body,
		Headers:   map[string][]string(msg.Headers),
		Timestamp: msg.Timestamp.UnixNano(),
	}
}

func fromWire(w wireMessage) *message.Message {
	return &message.Message{
		ID:        w.ID,
		Type:      message.Type(w.Type),
		Target:    w.Target,
		Endpoint:  w.Endpoint,
		Body:      w.Body,
		Headers:   message.Headers(w.Headers),
		Timestamp: time.Unix(0, w.Timestamp),
	}
}

var wireCodec = codec.GetCodec(codec.CodecTypeMsgpack)

func encodeMessage(msg *message.Message) ([]byte, error) {
	return wireCodec.Encode(toWire(msg))
}

func decodeMessage(data []byte) (*message.Message, error) {
	var w wireMessage
	if err := wireCodec.Decode(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w), nil
}

// statusFromHeaders extracts X-Status-Code for protocol.Header.Status;
// absence yields 0, meaning "no authoritative status at the frame level"
// (request/event frames).
func statusFromHeaders(h message.Headers) uint16 {
	v := h.Get("X-Status-Code")
	if v == "" {
		return 0
	}
	var code uint16
	for _, c := range []byte(v) {
		if c < '0' || c > '9' {
			return 0
		}
		code = code*10 + uint16(c-'0')
	}
	return code
}
