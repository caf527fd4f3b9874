package codec

import (
	"testing"

	"github.com/bx-d/corerpc/message"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	jsonCodec := &JSONCodec{}

	originalMsg := &message.RPCMessage{
		ServiceMethod: "ArithService.Add",
		Payload:       []byte(`{"a":1,"b":2}`),
		Error:         "",
	}

	data, err := jsonCodec.Encode(originalMsg)
	if err != nil {
		t.Fatalf("JSONCodec Encode failed: %v", err)
	}

	var decodedMsg message.RPCMessage
	if err := jsonCodec.Decode(data, &decodedMsg); err != nil {
		t.Fatalf("JSONCodec Decode failed: %v", err)
	}

	if originalMsg.ServiceMethod != decodedMsg.ServiceMethod {
		t.Errorf("ServiceMethod mismatch: got %s, want %s", decodedMsg.ServiceMethod, originalMsg.ServiceMethod)
	}
	if string(originalMsg.Payload) != string(decodedMsg.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedMsg.Payload), string(originalMsg.Payload))
	}
}

func TestMsgpackCodecRoundTrip(t *testing.T) {
	mp := &MsgpackCodec{}

	originalMsg := &message.RPCMessage{
		ServiceMethod: "ArithService.Add",
		Payload:       []byte(`{"a":1,"b":2}`),
		Error:         "",
	}

	data, err := mp.Encode(originalMsg)
	if err != nil {
		t.Fatalf("MsgpackCodec Encode failed: %v", err)
	}

	var decodedMsg message.RPCMessage
	if err := mp.Decode(data, &decodedMsg); err != nil {
		t.Fatalf("MsgpackCodec Decode failed: %v", err)
	}

	if originalMsg.ServiceMethod != decodedMsg.ServiceMethod {
		t.Errorf("ServiceMethod mismatch: got %s, want %s", decodedMsg.ServiceMethod, originalMsg.ServiceMethod)
	}
	if string(originalMsg.Payload) != string(decodedMsg.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedMsg.Payload), string(originalMsg.Payload))
	}
}

func TestRegistryLookupAndAliases(t *testing.T) {
	r := NewRegistry()
	r.Register(&JSONCodec{})
	r.Register(&MsgpackCodec{})

	if _, ok := r.Lookup("application/json"); !ok {
		t.Fatal("expected application/json to resolve")
	}
	if _, ok := r.Lookup("application/json; charset=utf-8"); !ok {
		t.Fatal("expected content-type with params to resolve")
	}
	for _, alias := range []string{"msgpack", "application/x-msgpack", "application/vnd.msgpack"} {
		if _, ok := r.Lookup(alias); !ok {
			t.Fatalf("expected alias %q to resolve", alias)
		}
	}
	if _, ok := r.Lookup("application/xml"); ok {
		t.Fatal("expected unregistered content-type to miss")
	}
}

func TestRegistryNegotiate(t *testing.T) {
	r := NewRegistry()
	r.Register(&JSONCodec{})
	r.Register(&MsgpackCodec{})

	c, ok := r.Negotiate("text/html, application/msgpack;q=0.9", "application/json")
	if !ok {
		t.Fatal("expected negotiation to succeed")
	}
	if c.ContentType() != "application/msgpack" {
		t.Errorf("expected msgpack to win from Accept, got %s", c.ContentType())
	}

	c, ok = r.Negotiate("", "application/json")
	if !ok || c.ContentType() != "application/json" {
		t.Fatal("expected fallback to request content-type")
	}

	if _, ok := r.Negotiate("application/xml", "application/xml"); ok {
		t.Fatal("expected negotiation to fail for unregistered type")
	}
}

func TestJSONDetect(t *testing.T) {
	c := &JSONCodec{}
	if !c.Detect([]byte(`{"a":1}`)) {
		t.Error("expected JSON object to be detected")
	}
	if c.Detect([]byte{0x81, 0xa1, 'a', 0x01}) {
		t.Error("did not expect msgpack bytes to sniff as JSON")
	}
}

func TestCodecRoundTripProperty(t *testing.T) {
	type T struct {
		A int
		B string
	}
	for _, c := range []Codec{&JSONCodec{}, &MsgpackCodec{}} {
		original := T{A: 42, B: "hello"}
		data, err := c.Encode(original)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", c.Name(), err)
		}
		var out T
		if err := c.Decode(data, &out); err != nil {
			t.Fatalf("%s: decode failed: %v", c.Name(), err)
		}
		if out != original {
			t.Errorf("%s: round trip mismatch: got %+v, want %+v", c.Name(), out, original)
		}
	}
}
