package gateway

import "github.com/bx-d/corerpc/value"

// Transform is a composable response transformation (spec §4.6):
// RemoveFields and AddFields are the two named here, future ones
// (Rename, Flatten) follow the same interface. Apply must pass through
// unknown value.Kinds unchanged.
type Transform interface {
	Apply(v value.Value) value.Value
}

// RemoveFieldsTransform deletes Names from a structured object, leaving
// any other Kind untouched.
type RemoveFieldsTransform struct {
	Names []string
}

func (t RemoveFieldsTransform) Apply(v value.Value) value.Value {
	return v.RemoveFields(t.Names)
}

// AddFieldsTransform sets Fields on a structured object, overwriting
// existing keys, leaving any other Kind untouched.
type AddFieldsTransform struct {
	Fields map[string]value.Value
}

func (t AddFieldsTransform) Apply(v value.Value) value.Value {
	return v.AddFields(t.Fields)
}

// ApplyAll runs every transform over v in order.
func ApplyAll(transforms []Transform, v value.Value) value.Value {
	for _, t := range transforms {
		v = t.Apply(v)
	}
	return v
}
