package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawParams holds unparsed param literals keyed by name, in file order.
type RawParams struct {
	keys   []string
	values map[string]string
}

// NewRawParams builds params from alternating name/literal pairs.
func NewRawParams(pairs ...string) RawParams {
	var p RawParams
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i], pairs[i+1])
	}
	return p
}

// Set stores a literal, keeping the position of an existing name.
func (p *RawParams) Set(name, literal string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = literal
}

// Keys returns the names in file order.
func (p RawParams) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Values returns a copy of the name to literal mapping.
func (p RawParams) Values() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Len returns the number of params.
func (p RawParams) Len() int {
	return len(p.keys)
}

// UnmarshalYAML implements yaml.Unmarshaler. Scalars are taken verbatim;
// sequences and mappings are re-encoded in flow style.
func (p *RawParams) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("params must be a mapping, line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		text, err := literalText(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("param %s: %w", node.Content[i].Value, err)
		}
		p.Set(node.Content[i].Value, text)
	}
	return nil
}

func literalText(n *yaml.Node) (string, error) {
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	flow(n)
	out, err := yaml.Marshal(n)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func flow(n *yaml.Node) {
	if n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		flow(c)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (p RawParams) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range p.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.values[k], Style: yaml.DoubleQuotedStyle},
		)
	}
	return node, nil
}

// UnmarshalJSON implements json.Unmarshaler. String values are taken as the
// literal text; any other JSON value is kept as written.
func (p *RawParams) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("params must be an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			p.Set(name, s)
		} else {
			p.Set(name, string(raw))
		}
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON implements json.Marshaler, keeping file order.
func (p RawParams) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		val, _ := json.Marshal(p.values[k])
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
