package codec

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec is the compact binary codec mandated by spec §6. It
// replaces the teacher's hand-rolled length-prefixed encoding with the
// ecosystem's msgpack implementation — the teacher's hand-rolled format
// only knew how to encode *message.RPCMessage; the runtime also needs to
// encode arbitrary handler args/replies and value.Value trees, which a
// real msgpack codec handles for free via reflection, the same way
// JSONCodec already does for JSON.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgpackCodec) Type() CodecType { return CodecTypeMsgpack }

func (c *MsgpackCodec) ContentType() string { return "application/msgpack" }

func (c *MsgpackCodec) Aliases() []string {
	return []string{"msgpack", "application/x-msgpack", "application/vnd.msgpack"}
}

func (c *MsgpackCodec) Extension() string { return "msgpack" }

func (c *MsgpackCodec) Name() string { return "msgpack" }

// Detect has no reliable magic byte to sniff for msgpack in general (its
// first byte varies with the top-level type encoded), so sniffing falls
// back to "decodes without error" via Valid — callers should prefer an
// explicit Content-Type whenever one is available.
func (c *MsgpackCodec) Detect(data []byte) bool {
	return c.Valid(data)
}

func (c *MsgpackCodec) Valid(data []byte) bool {
	var probe any
	return msgpack.Unmarshal(data, &probe) == nil
}
