package codec

import (
	"bytes"
	"encoding/json"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower than msgpack due to reflection + string parsing, larger
// payload (field names repeated).
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType { return CodecTypeJSON }

func (c *JSONCodec) ContentType() string { return "application/json" }

func (c *JSONCodec) Aliases() []string { return nil }

func (c *JSONCodec) Extension() string { return "json" }

func (c *JSONCodec) Name() string { return "json" }

// Detect sniffs for a leading '{', '[', or '"' (ignoring whitespace),
// the common top-level shapes of a JSON document.
func (c *JSONCodec) Detect(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return true
	default:
		return false
	}
}

func (c *JSONCodec) Valid(data []byte) bool {
	return json.Valid(data)
}
