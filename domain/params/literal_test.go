package params

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"int", "42", int64(42)},
		{"negative int", "-7", int64(-7)},
		{"float", "1.5", 1.5},
		{"exponent float", "2e3", 2000.0},
		{"python true", "True", true},
		{"lower false", "false", false},
		{"single quoted", "'red'", "red"},
		{"double quoted", `"blue"`, "blue"},
		{"quoted number stays string", "'5'", "5"},
		{"list", "[1, 2.5, 'x']", []any{int64(1), 2.5, "x"}},
		{"empty list", "[]", []any{}},
		{"nested list", "[[1], [True]]", []any{[]any{int64(1)}, []any{true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLiteral(tt.input)
			if err != nil {
				t.Fatalf("ParseLiteral(%q) error = %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLiteral(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLiteral_Mapping(t *testing.T) {
	t.Parallel()

	got, err := ParseLiteral("{'b': 1, 'a': [2, 3], 'c': {'d': 'e'}}")
	if err != nil {
		t.Fatalf("ParseLiteral() error = %v", err)
	}

	m, ok := got.(Map)
	if !ok {
		t.Fatalf("ParseLiteral() = %T, want Map", got)
	}
	if keys := m.Keys(); !reflect.DeepEqual(keys, []string{"b", "a", "c"}) {
		t.Errorf("Keys() = %v, want [b a c]", keys)
	}

	want := map[string]any{
		"b": int64(1),
		"a": []any{int64(2), int64(3)},
		"c": map[string]any{"d": "e"},
	}
	if !reflect.DeepEqual(m.ToMap(), want) {
		t.Errorf("ToMap() = %#v, want %#v", m.ToMap(), want)
	}
}

func TestParseLiteral_Rejects(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"red",
		"None",
		"null",
		"~",
		"yes",
		"[1, red]",
		"{a: 1}",
		"- 1\n- 2",
		"a: 1",
		"!!str 5",
		"&x 1",
		"[1, 2",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseLiteral(input); !errors.Is(err, ErrInvalidLiteral) {
				t.Errorf("ParseLiteral(%q) error = %v, want ErrInvalidLiteral", input, err)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	m, err := ParseAll([]string{"params_b", "params_a"}, map[string]string{
		"params_a": "1",
		"params_b": "'two'",
	})
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if keys := m.Keys(); !reflect.DeepEqual(keys, []string{"params_b", "params_a"}) {
		t.Errorf("Keys() = %v", keys)
	}

	_, err = ParseAll([]string{"params_bad"}, map[string]string{"params_bad": "oops"})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Name != "params_bad" {
		t.Errorf("ParseAll() error = %v, want FieldError for params_bad", err)
	}
	if !errors.Is(err, ErrInvalidLiteral) {
		t.Errorf("ParseAll() error should wrap ErrInvalidLiteral")
	}
}
