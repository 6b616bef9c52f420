package value

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when encoding a string value or key that is not
// valid UTF-8. encoding/json would replace the bad bytes with U+FFFD, and two
// different trees would then share one canonical form.
var ErrInvalidUTF8 = errors.New("value: invalid utf-8 string")

// Map keys are written as JSON object members with a type prefix so that the
// string key "1" and the number key 1 stay distinct:
//
//	{"s:name": "alice", "n:1": true}
const (
	stringKeyPrefix = "s:"
	numberKeyPrefix = "n:"
)

func (k Key) encode() string {
	if k.num {
		return numberKeyPrefix + strconv.FormatFloat(k.n, 'g', -1, 64)
	}
	return stringKeyPrefix + k.s
}

func decodeKey(raw string) (Key, error) {
	switch {
	case strings.HasPrefix(raw, stringKeyPrefix):
		return StringKey(raw[len(stringKeyPrefix):]), nil
	case strings.HasPrefix(raw, numberKeyPrefix):
		n, err := strconv.ParseFloat(raw[len(numberKeyPrefix):], 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Key{}, fmt.Errorf("value: bad number key %q", raw)
		}
		return NumberKey(n), nil
	default:
		return Key{}, fmt.Errorf("value: untagged map key %q", raw)
	}
}

// MarshalJSON writes m as an object with sorted, type-tagged keys.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k.encode())
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := m[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes v in canonical form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("value: non-finite number")
		}
		return []byte(strconv.FormatFloat(v.n, 'g', -1, 64)), nil
	case KindString:
		return marshalString(v.s)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		return v.m.MarshalJSON()
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := decode(data)
	if err != nil {
		return err
	}
	if v.kind == KindNull {
		*m = Map{}
		return nil
	}
	mm, ok := v.AsMap()
	if !ok {
		return fmt.Errorf("value: expected object, got %s", v.kind)
	}
	*m = mm
	return nil
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	out, err := decode(data)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("value: decode: %w", err)
	}
	return fromDecoded(raw)
}

func fromDecoded(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: bad number %q", t)
		}
		return Number(n), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			v, err := fromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return ListOf(out...), nil
	case map[string]any:
		m := make(Map, len(t))
		for rk, e := range t {
			k, err := decodeKey(rk)
			if err != nil {
				return Value{}, err
			}
			v, err := fromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return MapOf(m), nil
	default:
		return Value{}, fmt.Errorf("value: unexpected json type %T", raw)
	}
}

// CanonicalJSON produces deterministic JSON for v: object members are
// emitted in sorted order at every depth and HTML characters are not
// escaped. Value and Map encode themselves canonically; other types go
// through encoding/json, which sorts Go map keys and keeps struct field order.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := marshalNoEscape(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return b, nil
}

// ContentHash returns the hex SHA-256 of CanonicalJSON(v).
func ContentHash(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func marshalString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, ErrInvalidUTF8
	}
	return marshalNoEscape(s)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
