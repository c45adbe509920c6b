package config

import (
	"errors"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolchanger/domain/config"
)

func TestEnvExpander_Expand(t *testing.T) {
	t.Setenv("TC_BROKER", "mqtt://printer:1883")
	t.Setenv("TC_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bracket syntax", "${TC_BROKER}", "mqtt://printer:1883"},
		{"embedded in text", "broker: ${TC_BROKER}/x", "broker: mqtt://printer:1883/x"},
		{"multiple variables", "${TC_BROKER} ${TC_BROKER}", "mqtt://printer:1883 mqtt://printer:1883"},
		{"unset with default", "${TC_UNSET:-sqlite}", "sqlite"},
		{"empty with default", "${TC_EMPTY:-memory}", "memory"},
		{"set with default", "${TC_BROKER:-none}", "mqtt://printer:1883"},
		{"default with colon", "${TC_UNSET:-localhost:4317}", "localhost:4317"},
		{"unset without default", "a${TC_UNSET}b", "ab"},
		{"bare dollar is kept", "{{ $x := 1 }} $TC_BROKER", "{{ $x := 1 }} $TC_BROKER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnvExpander_Required(t *testing.T) {
	t.Setenv("TC_EMPTY", "")

	tests := []struct {
		name  string
		input string
	}{
		{"required unset", "${TC_REQUIRED_UNSET:?broker is required}"},
		{"required empty", "${TC_EMPTY:?must not be empty}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandEnvStrict(tt.input)
			if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
				t.Errorf("ExpandEnvStrict(%q) error = %v, want ErrMissingEnvVar", tt.input, err)
			}
		})
	}

	// Required variables fail even in lenient mode.
	e := &envExpander{}
	if _, err := e.Expand("${TC_REQUIRED_UNSET:?x}"); err == nil {
		t.Error("lenient Expand() should still fail for required variables")
	}
}

func TestEnvExpander_StrictMode(t *testing.T) {
	_, err := ExpandEnvStrict("${TC_MISSING_VAR}")
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Errorf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
	}
	if got := ExpandEnv("${TC_MISSING_VAR}"); got != "" {
		t.Errorf("ExpandEnv() = %q, want empty", got)
	}
}
