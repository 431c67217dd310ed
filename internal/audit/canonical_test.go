package audit

import "testing"

func TestCanonicalJSONKeyOrderIndependent(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 1, "a": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalJSON(map[string]interface{}{"a": 2, "b": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ for key-order permutations: %q != %q", a, b)
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	payload := map[string]interface{}{
		"event_id": "abc-123",
		"nested":   map[string]interface{}{"z": 1, "a": 2},
		"list":     []interface{}{3, 1, 2},
	}
	a, err := CanonicalJSON(payload)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalJSON(payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("CanonicalJSON not deterministic for repeated calls on the same value")
	}
}

func TestHashRoundTrip(t *testing.T) {
	canonical, err := CanonicalJSON(map[string]interface{}{"x": 1})
	if err != nil {
		t.Fatal(err)
	}
	h1 := Hash(canonical)
	h2 := Hash(canonical)
	if h1 != h2 {
		t.Error("Hash not stable for identical canonical bytes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (hex SHA-256)", len(h1))
	}
}

func TestHashDiffersOnMutation(t *testing.T) {
	c1, _ := CanonicalJSON(map[string]interface{}{"x": 1})
	c2, _ := CanonicalJSON(map[string]interface{}{"x": 2})
	if Hash(c1) == Hash(c2) {
		t.Error("distinct payloads hashed identically")
	}
}
