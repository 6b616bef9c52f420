package value

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestContentHash_IgnoresMapOrder(t *testing.T) {
	t.Parallel()

	a := Map{}
	a.Set("a", MapOf(Map{NumberKey(1): String("x"), NumberKey(2): String("y")}))

	b := Map{}
	b.Set("a", MapOf(Map{NumberKey(2): String("y"), NumberKey(1): String("x")}))

	ha, err := ContentHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := ContentHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected equal hashes, got %s vs %s", ha, hb)
	}
}

func TestContentHash_SensitiveToChanges(t *testing.T) {
	t.Parallel()

	base := MustMap(map[any]any{"a": map[any]any{1: "a", 2: map[any]any{"a": "1", "b": map[any]any{2: nil}}}})

	cases := []struct {
		name string
		data Map
	}{
		{"leaf value", MustMap(map[any]any{"a": map[any]any{1: "a", 2: map[any]any{"a": "1", "b": map[any]any{2: true}}}})},
		{"extra key", MustMap(map[any]any{"a": map[any]any{1: "a", 2: map[any]any{"a": "1", "b": map[any]any{2: nil}}}, "c": 1})},
		{"missing key", MustMap(map[any]any{"a": map[any]any{1: "a"}})},
		{"string vs number key", MustMap(map[any]any{"a": map[any]any{"1": "a", 2: map[any]any{"a": "1", "b": map[any]any{2: nil}}}})},
		{"nesting", MustMap(map[any]any{"a": map[any]any{1: []any{"a"}, 2: map[any]any{"a": "1", "b": map[any]any{2: nil}}}})},
	}

	hBase, err := ContentHash(base)
	if err != nil {
		t.Fatalf("hash base: %v", err)
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, err := ContentHash(tc.data)
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if h == hBase {
				t.Fatalf("expected a different hash")
			}
		})
	}

	again, err := ContentHash(base.Clone())
	if err != nil {
		t.Fatalf("hash clone: %v", err)
	}
	if again != hBase {
		t.Fatalf("expected clone to hash identically")
	}
}

func TestMapJSON_PreservesKeyKinds(t *testing.T) {
	t.Parallel()

	in := MustMap(map[any]any{"a": 1, 2: "bee", 3: map[any]any{4: true, 5: "false"}, "list": []any{1.5, nil, "x"}})

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Map
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("round trip mismatch: %s", b)
	}

	if _, ok := out.GetKey(NumberKey(2)); !ok {
		t.Fatalf("expected number key 2 to survive")
	}
	if _, ok := out.Get("2"); ok {
		t.Fatalf("number key must not turn into a string key")
	}
}

func TestCanonicalJSON_SortedAndUnescaped(t *testing.T) {
	t.Parallel()

	m := MustMap(map[any]any{"b": "<x>", "a": 1, 10: true, 2: false})

	b, err := CanonicalJSON(m)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}

	want := `{"n:2":false,"n:10":true,"s:a":1,"s:b":"<x>"}`
	if string(b) != want {
		t.Fatalf("canonical mismatch:\n got %s\nwant %s", b, want)
	}
}

func TestFromAny_RejectsUnsupported(t *testing.T) {
	t.Parallel()

	cases := []any{
		struct{}{},
		map[any]any{true: "x"},
		[]any{make(chan int)},
	}
	for _, c := range cases {
		if _, err := FromAny(c); err == nil {
			t.Fatalf("expected error for %T", c)
		}
	}
}

func TestMapFromAny_RequiresMap(t *testing.T) {
	t.Parallel()

	if _, err := MapFromAny([]any{1}); err == nil {
		t.Fatalf("expected error for list input")
	}
	m, err := MapFromAny(nil)
	if err != nil || m == nil || m.Len() != 0 {
		t.Fatalf("expected empty map for nil, got %v %v", m, err)
	}
}

func TestMarshal_RejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data Map
	}{
		{"string value", MustMap(map[string]any{"k": "a\xff"})},
		{"string key", Map{StringKey("k\xfe"): String("a")}},
		{"nested in list", MustMap(map[string]any{"k": []any{"ok", "b\xff"}})},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ContentHash(tc.data); !errors.Is(err, ErrInvalidUTF8) {
				t.Fatalf("expected ErrInvalidUTF8, got %v", err)
			}
		})
	}

	// Two trees differing only in invalid bytes must never share a hash.
	ha, errA := ContentHash(MustMap(map[string]any{"k": "a\xff"}))
	hb, errB := ContentHash(MustMap(map[string]any{"k": "a\xfe"}))
	if errA == nil && errB == nil && ha == hb {
		t.Fatalf("expected distinct hashes or errors, got %s for both", ha)
	}

	if _, err := ContentHash(MustMap(map[string]any{"k": "héllo ✓"})); err != nil {
		t.Fatalf("valid utf-8 must encode: %v", err)
	}
}
