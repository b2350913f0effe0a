package nodeid

import (
	"strings"
	"testing"
)

func TestDerive_Deterministic(t *testing.T) {
	inputs := []struct {
		org  string
		typ  string
		data any
	}{
		{"Org1", "Person", "Alice"},
		{"Org1", "Person", map[string]any{"name": "Alice", "age": 30}},
		{"Org1", "Company", 42},
		{"Org2", "Person", nil},
	}

	for _, in := range inputs {
		first, err := Derive(in.org, in.typ, in.data)
		if err != nil {
			t.Fatalf("Derive failed: %v", err)
		}
		for i := 0; i < 10; i++ {
			again, err := Derive(in.org, in.typ, in.data)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			if again != first {
				t.Errorf("expected deterministic id %q, got %q", first, again)
			}
		}
	}
}

func TestDerive_Format(t *testing.T) {
	id, err := Derive("Org1", "Person", "Alice")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if !strings.HasPrefix(id, "Org1#") {
		t.Errorf("expected prefix 'Org1#', got %q", id)
	}

	hash := strings.TrimPrefix(id, "Org1#")
	if len(hash) != 32 {
		t.Errorf("expected 32 character hash, got %d (%q)", len(hash), hash)
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("expected hex character, got %c in %q", c, hash)
		}
	}
}

func TestDerive_MapKeyOrderIrrelevant(t *testing.T) {
	a, _ := Derive("Org1", "Person", map[string]any{"a": 1, "b": 2})
	b, _ := Derive("Org1", "Person", map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Errorf("expected equal ids for equal maps, got %q and %q", a, b)
	}
}

func TestDerive_Uniqueness(t *testing.T) {
	ids := make(map[string]string)
	inputs := []struct {
		org, typ string
		data     any
	}{
		{"Org1", "Person", "Alice"},
		{"Org1", "Person", "Bob"},
		{"Org1", "Company", "Alice"},
		{"Org2", "Person", "Alice"},
		{"Org1", "Person", 1},
	}

	for _, in := range inputs {
		id, err := Derive(in.org, in.typ, in.data)
		if err != nil {
			t.Fatalf("Derive failed: %v", err)
		}
		if existing, ok := ids[id]; ok {
			t.Errorf("collision: %s and %s/%s/%v both produce %q", existing, in.org, in.typ, in.data, id)
		}
		ids[id] = in.org + "/" + in.typ
	}
}

func TestDerive_NoCollisions(t *testing.T) {
	tests := []struct {
		name  string
		typA  string
		dataA any
		typB  string
		dataB any
	}{
		{"type and data boundary", "Ab", "c", "A", "bc"},
		{"empty type", "", "Personx", "Person", "x"},
		{"string and number", "Count", "1", "Count", 1},
		{"string and bool", "Flag", "true", "Flag", true},
		{"string and null", "Empty", "null", "Empty", nil},
		{"bytes and string", "Blob", []byte("aGk="), "Blob", "aGk="},
		{"bytes and encoded bytes", "Blob", []byte("hi"), "Blob", "aGk="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Derive("Org1", tt.typA, tt.dataA)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			b, err := Derive("Org1", tt.typB, tt.dataB)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			if a == b {
				t.Errorf("(%q, %#v) and (%q, %#v) both derive %q", tt.typA, tt.dataA, tt.typB, tt.dataB, a)
			}
		})
	}
}

func TestDerive_UnencodableData(t *testing.T) {
	_, err := Derive("Org1", "Person", make(chan int))
	if err == nil {
		t.Fatal("expected error for unencodable data")
	}
}

func TestKeyAndSplit(t *testing.T) {
	node := Key("Org1", "abc123")
	if node != "Org1#abc123" {
		t.Fatalf("expected 'Org1#abc123', got %q", node)
	}

	org, id, ok := Split(node)
	if !ok || org != "Org1" || id != "abc123" {
		t.Errorf("Split(%q) = %q, %q, %v", node, org, id, ok)
	}

	_, id, ok = Split("no-separator")
	if ok {
		t.Error("expected ok=false without separator")
	}
	if id != "no-separator" {
		t.Errorf("expected id to be the whole input, got %q", id)
	}
}

func TestSplit_OrgWithSeparator(t *testing.T) {
	org, id, ok := Split("tenant#Org1#abc")
	if !ok || org != "tenant#Org1" || id != "abc" {
		t.Errorf("got %q, %q, %v", org, id, ok)
	}
}
