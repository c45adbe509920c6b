package params

import (
	"bytes"
	"encoding/json"
)

// Map is an insertion-ordered mapping of parameter names to literal values.
// The zero value is an empty map ready to use.
type Map struct {
	keys   []string
	values map[string]any
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position and takes the new value.
func (m *Map) Set(key string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m Map) Len() int {
	return len(m.keys)
}

// Clone returns a shallow copy.
func (m Map) Clone() Map {
	var out Map
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// Merge returns base overlaid with override. Keys from override always win;
// base order is kept and keys only present in override are appended.
func Merge(base, override Map) Map {
	out := base.Clone()
	for _, k := range override.keys {
		out.Set(k, override.values[k])
	}
	return out
}

// ToMap converts m, and any nested Map, into plain Go maps for template and
// JSON consumers.
func (m Map) ToMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plain(m.values[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case Map:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes m as a JSON object preserving key order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseAll parses every raw literal in raw, keyed by name, in the order of
// names. It is used by the configuration layer where YAML maps lose order.
func ParseAll(names []string, raw map[string]string) (Map, error) {
	var m Map
	for _, name := range names {
		v, err := ParseLiteral(raw[name])
		if err != nil {
			return Map{}, &FieldError{Name: name, Err: err}
		}
		m.Set(name, v)
	}
	return m, nil
}
