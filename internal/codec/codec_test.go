package codec

import (
	"testing"
)

func TestEncodeLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "None"},
		{"true", true, "True"},
		{"false", false, "False"},
		{"int", 42, "42"},
		{"negative int", -7, "-7"},
		{"float", 3.14, "3.14"},
		{"string", "hello", `"hello"`},
		{"string escapes", "a\"b\\c\nd\te\r", `"a\"b\\c\nd\te\r"`},
		{"list", []any{1, "two", nil}, `[1, "two", None]`},
		{"nested list", []any{[]any{true}}, `[[True]]`},
		{"map", map[string]any{"b": 2, "a": 1}, `{"a": 1, "b": 2}`},
		{"nested map", map[string]any{"xs": []any{1, 2}}, `{"xs": [1, 2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeLiteral(tt.value)
			if err != nil {
				t.Fatalf("EncodeLiteral(%v) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("EncodeLiteral(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestEncodeLiteralUnsupported(t *testing.T) {
	if _, err := EncodeLiteral(struct{}{}); err == nil {
		t.Error("expected error for unsupported type, got nil")
	}
}

func TestEquivalentIntegers(t *testing.T) {
	for _, n := range []int{-3, 0, 1, 42, 100000} {
		if !Equivalent(n, n) {
			t.Errorf("Equivalent(%d, %d) = false, want true", n, n)
		}
	}
	if Equivalent(1, 2) {
		t.Error("Equivalent(1, 2) = true, want false")
	}
}

func TestEquivalentFloatEpsilon(t *testing.T) {
	a := 1.5
	if !Equivalent(a, a+0.00005) {
		t.Error("values within epsilon should be equivalent")
	}
	if Equivalent(a, a+0.01) {
		t.Error("values outside epsilon should not be equivalent")
	}
	// integral float vs near-integral float crosses into the epsilon branch
	if !Equivalent(2.0, 2.00005) {
		t.Error("Equivalent(2.0, 2.00005) = false, want true")
	}
}

func TestEquivalentMixedNumericTypes(t *testing.T) {
	if !Equivalent(5, 5.0) {
		t.Error("Equivalent(5, 5.0) = false, want true")
	}
	if !Equivalent(int64(7), 7) {
		t.Error("Equivalent(int64(7), 7) = false, want true")
	}
}

func TestEquivalentStringsTrimmed(t *testing.T) {
	if !Equivalent("  hello \n", "hello") {
		t.Error("trimmed strings should be equivalent")
	}
	if Equivalent("hello", "world") {
		t.Error("different strings should not be equivalent")
	}
	if !Equivalent("a b", "a b") {
		t.Error("interior whitespace must be preserved")
	}
}

func TestEquivalentListOrderMatters(t *testing.T) {
	l := []any{1, 2, 3}
	reversed := []any{3, 2, 1}
	if Equivalent(l, reversed) {
		t.Error("reversed list should not be equivalent")
	}
	if !Equivalent(l, []any{1, 2, 3}) {
		t.Error("identical lists should be equivalent")
	}
	if Equivalent([]any{1}, []any{1, 2}) {
		t.Error("lists of different length should not be equivalent")
	}
	// palindromes of length <= 1
	if !Equivalent([]any{}, []any{}) {
		t.Error("empty lists should be equivalent")
	}
	if !Equivalent([]any{9}, []any{9}) {
		t.Error("single-element lists should be equivalent")
	}
}

func TestEquivalentMapOrderIgnored(t *testing.T) {
	a := map[string]any{"x": 1, "y": []any{2.5}, "z": "ok"}
	b := map[string]any{"z": "ok", "x": 1, "y": []any{2.5}}
	if !Equivalent(a, b) {
		t.Error("key order must not matter for maps")
	}
	if Equivalent(a, map[string]any{"x": 1}) {
		t.Error("maps with different key sets should not be equivalent")
	}
	if Equivalent(a, map[string]any{"x": 1, "y": []any{2.5}, "z": "no"}) {
		t.Error("maps with different values should not be equivalent")
	}
}

func TestEquivalentNulls(t *testing.T) {
	if !Equivalent(nil, nil) {
		t.Error("Equivalent(nil, nil) = false, want true")
	}
	if Equivalent(nil, 1) {
		t.Error("Equivalent(nil, 1) = true, want false")
	}
	if Equivalent("x", nil) {
		t.Error("Equivalent(\"x\", nil) = true, want false")
	}
}

func TestEquivalentTypeMismatchFallback(t *testing.T) {
	// number vs string: canonical serialization differs
	if Equivalent(1, "1") {
		t.Error("Equivalent(1, \"1\") = true, want false")
	}
	if Equivalent(true, 1) {
		t.Error("Equivalent(true, 1) = true, want false")
	}
}

func TestEquivalentNestedStructures(t *testing.T) {
	a := map[string]any{
		"items": []any{
			map[string]any{"id": 1, "price": 9.99},
			map[string]any{"id": 2, "price": 5.0},
		},
		"total": 14.99,
	}
	b := map[string]any{
		"total": 14.9900002,
		"items": []any{
			map[string]any{"price": 9.99, "id": 1},
			map[string]any{"price": 5, "id": 2},
		},
	}
	if !Equivalent(a, b) {
		t.Error("structurally equivalent nested values should match")
	}
}
