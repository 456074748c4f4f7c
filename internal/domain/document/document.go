package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Document is an untyped, ordered field-name -> value mapping (immutable value object).
// Values are whatever encoding/json produces for `any`: string, float64, bool, nil,
// []any or map[string]any.
type Document struct {
	keys   []string
	values map[string]any
}

// Field is a single key/value pair used to build documents in a fixed order.
type Field struct {
	Key   string
	Value any
}

// New creates a Document from fields in the given order.
// A repeated key keeps its first position and its last value.
func New(fields ...Field) Document {
	d := Document{values: make(map[string]any, len(fields))}
	for _, f := range fields {
		d.set(f.Key, f.Value)
	}
	return d
}

// FromMap creates a Document from a map. Keys are sorted so the result is deterministic.
func FromMap(m map[string]any) Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := Document{keys: keys, values: make(map[string]any, len(m))}
	for k, v := range m {
		d.values[k] = v
	}
	return d
}

func (d *Document) set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Len returns the number of fields.
func (d Document) Len() int { return len(d.keys) }

// Keys returns the field names in order.
func (d Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value of a field.
func (d Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// String returns a string field; ok is false when the field is absent or not a string.
func (d Document) String(key string) (string, bool) {
	s, ok := d.values[key].(string)
	return s, ok
}

// Fields returns the key/value pairs in order.
func (d Document) Fields() []Field {
	out := make([]Field, len(d.keys))
	for i, k := range d.keys {
		out[i] = Field{Key: k, Value: d.values[k]}
	}
	return out
}

// Map returns a copy of the document as a plain map.
func (d Document) Map() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to value. An existing key keeps its position.
func (d Document) With(key string, value any) Document {
	out := d.clone()
	out.set(key, value)
	return out
}

// Filter returns a copy holding only the fields for which keep returns true.
func (d Document) Filter(keep func(key string) bool) Document {
	out := Document{values: make(map[string]any, len(d.values))}
	for _, k := range d.keys {
		if keep(k) {
			out.keys = append(out.keys, k)
			out.values[k] = d.values[k]
		}
	}
	return out
}

// Without returns a copy with the given keys removed.
func (d Document) Without(keys ...string) Document {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	return d.Filter(func(k string) bool {
		_, ok := drop[k]
		return !ok
	})
}

func (d Document) clone() Document {
	out := Document{
		keys:   make([]string, len(d.keys)),
		values: make(map[string]any, len(d.values)),
	}
	copy(out.keys, d.keys)
	for k, v := range d.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON encodes the document as a JSON object, preserving field order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the order of its top-level keys.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode document: expected JSON object, got %v", tok)
	}

	out := Document{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode document: expected key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode document field %q: %w", key, err)
		}
		out.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	*d = out
	return nil
}

// Decode parses a JSON object into a Document.
func Decode(data []byte) (Document, error) {
	var d Document
	if err := d.UnmarshalJSON(data); err != nil {
		return Document{}, err
	}
	return d, nil
}
