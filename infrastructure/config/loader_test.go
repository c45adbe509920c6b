package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolchanger/domain/config"
)

const machineYAML = `
toolchanger:
  name: tc
  initialize_on: home
  clear_gcode_offset_for_toolchange: false
  initialize_gcode: |
    M118 init {{.toolchanger.name}}
  params:
    park_x: 10.5
    dock: "'left'"
  tool_defaults:
    fan: fan0
    t_command_restore_axis: Z
tools:
  - name: T0
    tool_number: 0
    extruder: extruder
    gcode_x_offset: 1.5
    pickup_gcode: M118 pickup T0
  - name: T1
    tool_number: 1
    extruder: extruder1
    fan: fan1
    params:
      park_x: 20
machine:
  extruders: [extruder, extruder1]
  fans: [fan0, fan1]
`

func TestLoader_LoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	if err := os.WriteFile(path, []byte(machineYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Toolchanger.Name != "tc" {
		t.Errorf("Name = %s, want tc", cfg.Toolchanger.Name)
	}
	if cfg.Toolchanger.InitializeOn != "home" {
		t.Errorf("InitializeOn = %s, want home", cfg.Toolchanger.InitializeOn)
	}
	if cfg.Toolchanger.ClearOffset() {
		t.Error("ClearOffset() = true, want false")
	}
	if got := cfg.Toolchanger.Params.Keys(); len(got) != 2 || got[0] != "park_x" || got[1] != "dock" {
		t.Errorf("params keys = %v", got)
	}
	if len(cfg.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(cfg.Tools))
	}
	if cfg.Tools[0].GcodeXOffset == nil || *cfg.Tools[0].GcodeXOffset != 1.5 {
		t.Errorf("T0 x offset = %v", cfg.Tools[0].GcodeXOffset)
	}
	if cfg.Logging.Level != domainconfig.DefaultLogLevel {
		t.Errorf("logging level default = %s", cfg.Logging.Level)
	}
	if cfg.Journal.Driver != domainconfig.DefaultJournalDriver {
		t.Errorf("journal driver default = %s", cfg.Journal.Driver)
	}
}

func TestLoader_LoadFile_JSON(t *testing.T) {
	content := `{
  "toolchanger": {"name": "json-tc", "params": {"speed": "100"}},
  "tools": [{"name": "T0", "tool_number": 0}]
}`
	path := filepath.Join(t.TempDir(), "machine.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Toolchanger.Name != "json-tc" {
		t.Errorf("Name = %s, want json-tc", cfg.Toolchanger.Name)
	}
	if cfg.Toolchanger.InitializeOn != domainconfig.DefaultInitializeOn {
		t.Errorf("InitializeOn = %s, want default", cfg.Toolchanger.InitializeOn)
	}
	if v := cfg.Toolchanger.Params.Values()["speed"]; v != "100" {
		t.Errorf("speed literal = %q", v)
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	ini := filepath.Join(dir, "machine.ini")
	if err := os.WriteFile(ini, []byte("[toolchanger]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), domainconfig.ErrConfigNotFound},
		{"directory", dir, domainconfig.ErrInvalidFormat},
		{"unsupported extension", ini, domainconfig.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadFile(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFile(%s) = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestLoader_LoadString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		loader  *Loader
		content string
		format  Format
		wantErr error
	}{
		{
			name:    "minimal",
			loader:  NewLoader(),
			content: "toolchanger: {}",
			format:  FormatYAML,
		},
		{
			name:    "invalid yaml",
			loader:  NewLoaderWithOptions(WithValidation(false)),
			content: "toolchanger:\n  name: a\n    bad: indent",
			format:  FormatYAML,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "invalid json",
			loader:  NewLoaderWithOptions(WithValidation(false)),
			content: `{"toolchanger": nope}`,
			format:  FormatJSON,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "unknown format",
			loader:  NewLoader(),
			content: "",
			format:  Format("toml"),
			wantErr: domainconfig.ErrUnsupportedFormat,
		},
		{
			name:    "validation failure",
			loader:  NewLoader(),
			content: "toolchanger:\n  initialize_on: sometimes",
			format:  FormatYAML,
			wantErr: domainconfig.ErrValidationFailed,
		},
		{
			name:    "validation disabled",
			loader:  NewLoaderWithOptions(WithValidation(false)),
			content: "toolchanger:\n  initialize_on: sometimes",
			format:  FormatYAML,
		},
		{
			name:    "duplicate tool numbers",
			loader:  NewLoader(),
			content: "tools:\n  - {name: A, tool_number: 0}\n  - {name: B, tool_number: 0}",
			format:  FormatYAML,
			wantErr: domainconfig.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.loader.LoadString(tt.content, tt.format)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("LoadString() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadString() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("TC_NAME", "env-tc")

	tests := []struct {
		name     string
		loader   *Loader
		content  string
		wantName string
		wantErr  bool
	}{
		{"expanded", NewLoader(), "toolchanger:\n  name: ${TC_NAME}", "env-tc", false},
		{"default", NewLoader(), "toolchanger:\n  name: ${TC_UNSET:-fallback}", "fallback", false},
		{"disabled", NewLoaderWithOptions(WithEnvExpansion(false)), "toolchanger:\n  name: ${TC_NAME}", "${TC_NAME}", false},
		{"strict missing", NewLoaderWithOptions(WithStrictEnv(true)), "toolchanger:\n  name: ${TC_UNSET}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.loader.LoadString(tt.content, FormatYAML)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadString() error = %v", err)
			}
			if cfg.Toolchanger.Name != tt.wantName {
				t.Errorf("Name = %s, want %s", cfg.Toolchanger.Name, tt.wantName)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.yaml", FormatYAML, false},
		{"a.YML", FormatYAML, false},
		{"a.json", FormatJSON, false},
		{"a.cfg", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFromPath(%s) = %s, %v", tt.path, got, err)
		}
	}
}
