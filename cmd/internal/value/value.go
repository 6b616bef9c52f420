// Package value implements the tagged data tree stored in sessions and in
// free-form identity attributes.
//
// A Value is one of: null, bool, number, string, list, or map. Map keys are
// either strings or numbers (Key). The tree has a canonical JSON encoding in
// which map keys are sorted at every depth, so two trees that differ only in
// key insertion order encode (and hash) identically.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable-by-convention node of the data tree.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    Map
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value  { return Value{kind: KindString, s: s} }

// ListOf returns a list value holding vs in order.
func ListOf(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// MapOf returns a map value. A nil m is stored as an empty map.
func MapOf(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

func (v Value) AsMap() (Map, bool) { return v.m, v.kind == KindMap }

func (v Value) String() string { return fmt.Sprint(v.Interface()) }

// Equal reports whether v and other are structurally equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// Interface converts v to plain Go values: nil, bool, float64, string,
// []any, and map[any]any keyed by string or float64.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[any]any, len(v.m))
		for k, e := range v.m {
			if k.num {
				out[k.n] = e.Interface()
			} else {
				out[k.s] = e.Interface()
			}
		}
		return out
	default:
		return nil
	}
}

// Key is a map key: either a string or a number.
type Key struct {
	num bool
	n   float64
	s   string
}

// StringKey returns a string key.
func StringKey(s string) Key { return Key{s: s} }

// NumberKey returns a numeric key. Negative zero is folded into zero.
func NumberKey(n float64) Key {
	if n == 0 {
		n = 0
	}
	return Key{num: true, n: n}
}

func (k Key) IsNumber() bool { return k.num }

func (k Key) Text() (string, bool) { return k.s, !k.num }

func (k Key) Number() (float64, bool) { return k.n, k.num }

func (k Key) String() string {
	if k.num {
		return strconv.FormatFloat(k.n, 'g', -1, 64)
	}
	return k.s
}

// less orders numbers before strings, numbers numerically, strings bytewise.
func (k Key) less(o Key) bool {
	if k.num != o.num {
		return k.num
	}
	if k.num {
		return k.n < o.n
	}
	return k.s < o.s
}

// Map is a mapping from Key to Value. Maps are Go maps: copy with Clone
// before handing one to another owner.
type Map map[Key]Value

// Get returns the entry stored under the string key.
func (m Map) Get(key string) (Value, bool) {
	v, ok := m[StringKey(key)]
	return v, ok
}

// Set stores v under the string key. m must be non-nil.
func (m Map) Set(key string, v Value) { m[StringKey(key)] = v }

// Delete removes the string key from m.
func (m Map) Delete(key string) { delete(m, StringKey(key)) }

func (m Map) GetKey(k Key) (Value, bool) {
	v, ok := m[k]
	return v, ok
}

func (m Map) SetKey(k Key, v Value) { m[k] = v }

func (m Map) Len() int { return len(m) }

// Equal reports whether m and other hold equal entries.
func (m Map) Equal(other Map) bool { return mapEqual(m, other) }

// Keys returns the keys of m in canonical order.
func (m Map) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.Clone()
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Map key order never matters; list
// order does. A nil map equals an empty map.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return mapEqual(a.m, b.m)
	default:
		return false
	}
}

func mapEqual(a, b Map) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// FromAny converts plain Go data into a Value.
//
// Accepted leaves: nil, bool, string, all integer and float kinds,
// and Value itself. Containers: []any, []string, map[string]any,
// map[any]any and map[int]any. Map keys must be strings or numbers.
// NaN and infinities are rejected because they have no JSON form.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Map:
		return MapOf(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case []string:
		out := make([]Value, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return ListOf(out...), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return ListOf(out...), nil
	case map[string]any:
		m := make(Map, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("%q: %w", k, err)
			}
			m[StringKey(k)] = v
		}
		return MapOf(m), nil
	case map[int]any:
		m := make(Map, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("%d: %w", k, err)
			}
			m[NumberKey(float64(k))] = v
		}
		return MapOf(m), nil
	case map[any]any:
		m := make(Map, len(t))
		for k, e := range t {
			key, err := keyFromAny(k)
			if err != nil {
				return Value{}, err
			}
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("%v: %w", k, err)
			}
			m[key] = v
		}
		return MapOf(m), nil
	}

	n, ok := toFloat(x)
	if !ok {
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Value{}, fmt.Errorf("value: non-finite number")
	}
	return Number(n), nil
}

// MustFromAny is FromAny for literals known to be valid. It panics on error.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// MapFromAny converts x with FromAny and requires the result to be a map.
// A nil x yields an empty map.
func MapFromAny(x any) (Map, error) {
	if x == nil {
		return Map{}, nil
	}
	v, err := FromAny(x)
	if err != nil {
		return nil, err
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("value: expected map, got %s", v.Kind())
	}
	return m, nil
}

// MustMap is MapFromAny for literals known to be valid. It panics on error.
func MustMap(x any) Map {
	m, err := MapFromAny(x)
	if err != nil {
		panic(err)
	}
	return m
}

func keyFromAny(k any) (Key, error) {
	if s, ok := k.(string); ok {
		return StringKey(s), nil
	}
	n, ok := toFloat(k)
	if !ok {
		return Key{}, fmt.Errorf("value: unsupported map key type %T", k)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Key{}, fmt.Errorf("value: non-finite map key")
	}
	return NumberKey(n), nil
}

func toFloat(x any) (float64, bool) {
	switch t := x.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
