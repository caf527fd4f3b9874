package value

import "testing"

func TestFromNativeToNativeRoundTrip(t *testing.T) {
	native := map[string]any{
		"id":     "p-1",
		"active": true,
		"count":  float64(3),
		"tags":   []any{"a", "b"},
	}

	v := FromNative(native)
	if v.Kind != Object {
		t.Fatalf("expect Object kind, got %v", v.Kind)
	}

	back := v.ToNative()
	m, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("expect map[string]any, got %T", back)
	}
	if m["id"] != "p-1" {
		t.Fatalf("expect id p-1, got %v", m["id"])
	}
	if m["active"] != true {
		t.Fatalf("expect active true, got %v", m["active"])
	}
}

func TestRemoveFieldsOnlyAffectsObjects(t *testing.T) {
	obj := NewObject(map[string]Value{"a": NewInt(1), "b": NewInt(2)})
	out := obj.RemoveFields([]string{"b"})
	if _, ok := out.Object["b"]; ok {
		t.Fatal("expect b removed")
	}
	if _, ok := out.Object["a"]; !ok {
		t.Fatal("expect a preserved")
	}

	arr := NewArray([]Value{NewInt(1)})
	if got := arr.RemoveFields([]string{"a"}); got.Kind != Array {
		t.Fatalf("expect non-Object passed through unchanged, got kind %v", got.Kind)
	}
}

func TestAddFieldsOverwritesExistingKey(t *testing.T) {
	obj := NewObject(map[string]Value{"a": NewInt(1)})
	out := obj.AddFields(map[string]Value{"a": NewInt(2), "b": NewInt(3)})

	if out.Object["a"].Int != 2 {
		t.Fatalf("expect a overwritten to 2, got %d", out.Object["a"].Int)
	}
	if out.Object["b"].Int != 3 {
		t.Fatalf("expect b added as 3, got %d", out.Object["b"].Int)
	}
}
