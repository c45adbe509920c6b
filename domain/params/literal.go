// Package params implements tool and toolchanger parameters: an ordered map of
// typed literal values parsed from configuration strings.
//
// The literal grammar is deliberately small:
//
//	literal  = int | float | bool | string | list | mapping
//	string   = '...' | "..."
//	list     = "[" [ literal { "," literal } ] "]"
//	mapping  = "{" [ string ":" literal { "," string ":" literal } ] "}"
//	bool     = True | False | true | false
//
// Bare words, null/None, anchors, tags and block-style collections are rejected.
package params

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseLiteral parses s as a typed literal. Integers decode to int64,
// floats to float64, lists to []any and mappings to Map.
func ParseLiteral(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidLiteral)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLiteral, s, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLiteral, s)
	}

	v, err := literalValue(doc.Content[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLiteral, s, err)
	}
	return v, nil
}

func literalValue(n *yaml.Node) (any, error) {
	if n.Anchor != "" {
		return nil, fmt.Errorf("anchors are not allowed")
	}
	if n.Style&yaml.TaggedStyle != 0 {
		return nil, fmt.Errorf("explicit tags are not allowed")
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return scalarValue(n)
	case yaml.SequenceNode:
		if n.Style&yaml.FlowStyle == 0 {
			return nil, fmt.Errorf("lists must use [a, b] syntax")
		}
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := literalValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		if n.Style&yaml.FlowStyle == 0 {
			return nil, fmt.Errorf("mappings must use {'k': v} syntax")
		}
		var m Map
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode || !quoted(key) {
				return nil, fmt.Errorf("mapping keys must be quoted strings")
			}
			v, err := literalValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(key.Value, v)
		}
		return m, nil
	case yaml.AliasNode:
		return nil, fmt.Errorf("aliases are not allowed")
	default:
		return nil, fmt.Errorf("unsupported value")
	}
}

func scalarValue(n *yaml.Node) (any, error) {
	if quoted(n) {
		return n.Value, nil
	}

	switch n.ShortTag() {
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "!!bool":
		switch n.Value {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		}
		return nil, fmt.Errorf("unsupported boolean %q", n.Value)
	default:
		return nil, fmt.Errorf("%q is not a literal (quote strings)", n.Value)
	}
}

func quoted(n *yaml.Node) bool {
	return n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0
}
