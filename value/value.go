// Package value implements the dynamic typed value tree shared by the
// codecs and the gateway's response transformations.
//
// Codecs decode wire bytes into plain Go values (maps, slices, scalars);
// FromNative and ToNative convert those to and from a Value tree, and
// response transformations (RemoveFields, AddFields, ...) only ever
// operate on this tree, never on raw JSON/msgpack bytes.
package value

import "fmt"

// Kind tags the concrete type held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	Str
	Bytes
	Array
	Object
)

// Value is a tagged union over the kinds a wire payload can describe.
// Exactly one of the typed fields is meaningful for a given Kind.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Bytes  []byte
	Array  []Value
	Object map[string]Value
}

func NewNull() Value            { return Value{Kind: Null} }
func NewBool(b bool) Value       { return Value{Kind: Bool, Bool: b} }
func NewInt(i int64) Value       { return Value{Kind: Int, Int: i} }
func NewFloat(f float64) Value   { return Value{Kind: Float, Float: f} }
func NewStr(s string) Value      { return Value{Kind: Str, Str: s} }
func NewBytes(b []byte) Value    { return Value{Kind: Bytes, Bytes: b} }
func NewArray(a []Value) Value   { return Value{Kind: Array, Array: a} }
func NewObject(o map[string]Value) Value {
	return Value{Kind: Object, Object: o}
}

// FromNative converts a generic Go value (the shape produced by
// encoding/json.Unmarshal into `any`, or similar) into a Value tree.
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil:
		return NewNull()
	case bool:
		return NewBool(t)
	case int:
		return NewInt(int64(t))
	case int64:
		return NewInt(t)
	case float64:
		return NewFloat(t)
	case string:
		return NewStr(t)
	case []byte:
		return NewBytes(t)
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromNative(e)
		}
		return NewArray(arr)
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromNative(e)
		}
		return NewObject(obj)
	default:
		return Value{Kind: Str, Str: fmt.Sprintf("%v", t)}
	}
}

// ToNative converts a Value tree back into plain `any` for JSON-family
// encoders.
func (v Value) ToNative() any {
	switch v.Kind {
	case Null:
		return nil
	case Bool:
		return v.Bool
	case Int:
		return v.Int
	case Float:
		return v.Float
	case Str:
		return v.Str
	case Bytes:
		return v.Bytes
	case Array:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.ToNative()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.Object))
		for k, e := range v.Object {
			out[k] = e.ToNative()
		}
		return out
	default:
		return nil
	}
}

// RemoveFields deletes the named keys from an Object value. Values of
// any other Kind are returned unchanged — the contract only applies to
// structured objects.
func (v Value) RemoveFields(names []string) Value {
	if v.Kind != Object {
		return v
	}
	out := make(map[string]Value, len(v.Object))
	for k, val := range v.Object {
		out[k] = val
	}
	for _, n := range names {
		delete(out, n)
	}
	return NewObject(out)
}

// AddFields sets keys on an Object value, overwriting any existing key.
// Non-Object values are returned unchanged.
func (v Value) AddFields(fields map[string]Value) Value {
	if v.Kind != Object {
		return v
	}
	out := make(map[string]Value, len(v.Object)+len(fields))
	for k, val := range v.Object {
		out[k] = val
	}
	for k, val := range fields {
		out[k] = val
	}
	return NewObject(out)
}
