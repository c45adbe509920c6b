// Package config provides domain models for the toolchanger machine configuration.
package config

import (
	"time"
)

// Default values applied when the configuration leaves a field empty.
const (
	DefaultToolchangerName = "toolchanger"
	DefaultInitializeOn    = "first-use"
	DefaultRestoreAxis     = "XYZ"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultJournalDriver   = "memory"
	DefaultTopicPrefix     = "toolchanger"
)

// Config represents the complete machine configuration file.
type Config struct {
	// Toolchanger contains the toolchanger section.
	Toolchanger ToolchangerConfig `json:"toolchanger" yaml:"toolchanger"`
	// Tools lists every configured tool.
	Tools []ToolConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Logging configures the process logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Journal configures the lifecycle event journal.
	Journal JournalConfig `json:"journal,omitempty" yaml:"journal,omitempty"`
	// MQTT configures the retained status publisher.
	MQTT MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	// Telemetry toggles metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	// Machine describes the simulated machine backend.
	Machine MachineConfig `json:"machine,omitempty" yaml:"machine,omitempty"`
}

// ToolchangerConfig is the toolchanger section.
type ToolchangerConfig struct {
	// Name identifies the toolchanger in status and logs.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// InitializeOn is one of home, manual, first-use.
	InitializeOn string `json:"initialize_on,omitempty" yaml:"initialize_on,omitempty"`
	// ClearOffsetForToolchange zeroes the offset while changing (default true).
	ClearOffsetForToolchange *bool `json:"clear_gcode_offset_for_toolchange,omitempty" yaml:"clear_gcode_offset_for_toolchange,omitempty"`
	// InitializeGcode runs on initialize.
	InitializeGcode string `json:"initialize_gcode,omitempty" yaml:"initialize_gcode,omitempty"`
	// BeforeChangeGcode runs before every change.
	BeforeChangeGcode string `json:"before_change_gcode,omitempty" yaml:"before_change_gcode,omitempty"`
	// AfterChangeGcode runs after every change.
	AfterChangeGcode string `json:"after_change_gcode,omitempty" yaml:"after_change_gcode,omitempty"`
	// Params are base param literals shared with every tool.
	Params RawParams `json:"params,omitempty" yaml:"params,omitempty"`
	// ToolDefaults are used by tools that leave an option empty.
	ToolDefaults ToolOptions `json:"tool_defaults,omitempty" yaml:"tool_defaults,omitempty"`
}

// ClearOffset returns the effective clear_gcode_offset_for_toolchange.
func (c ToolchangerConfig) ClearOffset() bool {
	if c.ClearOffsetForToolchange == nil {
		return true
	}
	return *c.ClearOffsetForToolchange
}

// ToolOptions are the per-tool options that may also be given as toolchanger defaults.
type ToolOptions struct {
	PickupGcode     string   `json:"pickup_gcode,omitempty" yaml:"pickup_gcode,omitempty"`
	DropoffGcode    string   `json:"dropoff_gcode,omitempty" yaml:"dropoff_gcode,omitempty"`
	GcodeXOffset    *float64 `json:"gcode_x_offset,omitempty" yaml:"gcode_x_offset,omitempty"`
	GcodeYOffset    *float64 `json:"gcode_y_offset,omitempty" yaml:"gcode_y_offset,omitempty"`
	GcodeZOffset    *float64 `json:"gcode_z_offset,omitempty" yaml:"gcode_z_offset,omitempty"`
	Extruder        string   `json:"extruder,omitempty" yaml:"extruder,omitempty"`
	ExtruderStepper string   `json:"extruder_stepper,omitempty" yaml:"extruder_stepper,omitempty"`
	Fan             string   `json:"fan,omitempty" yaml:"fan,omitempty"`
	RestoreAxis     string   `json:"t_command_restore_axis,omitempty" yaml:"t_command_restore_axis,omitempty"`
}

// WithDefaults returns o with every empty option taken from d.
func (o ToolOptions) WithDefaults(d ToolOptions) ToolOptions {
	if o.PickupGcode == "" {
		o.PickupGcode = d.PickupGcode
	}
	if o.DropoffGcode == "" {
		o.DropoffGcode = d.DropoffGcode
	}
	if o.GcodeXOffset == nil {
		o.GcodeXOffset = d.GcodeXOffset
	}
	if o.GcodeYOffset == nil {
		o.GcodeYOffset = d.GcodeYOffset
	}
	if o.GcodeZOffset == nil {
		o.GcodeZOffset = d.GcodeZOffset
	}
	if o.Extruder == "" {
		o.Extruder = d.Extruder
	}
	if o.ExtruderStepper == "" {
		o.ExtruderStepper = d.ExtruderStepper
	}
	if o.Fan == "" {
		o.Fan = d.Fan
	}
	if o.RestoreAxis == "" {
		o.RestoreAxis = d.RestoreAxis
	}
	return o
}

// ToolConfig configures one tool.
type ToolConfig struct {
	// Name is the unique tool name.
	Name string `json:"name" yaml:"name"`
	// ToolNumber is the initial assignment; nil leaves the tool unassigned.
	ToolNumber *int `json:"tool_number,omitempty" yaml:"tool_number,omitempty"`
	// Params are tool param literals; they override toolchanger params.
	Params RawParams `json:"params,omitempty" yaml:"params,omitempty"`

	ToolOptions `yaml:",inline"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is console or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// JournalConfig configures the event journal.
type JournalConfig struct {
	// Driver is one of memory, sqlite, badger, postgres, redis, mongodb,
	// dynamodb.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// DSN is the sqlite data source, the badger directory (or ":memory:"),
	// a postgres, redis or mongodb URL, or dynamodb://region/table.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// BufferSize batches publisher writes; 0 writes synchronously.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	// FlushInterval flushes a partial buffer.
	FlushInterval Duration `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
}

// MQTTConfig configures the MQTT status publisher.
type MQTTConfig struct {
	Enabled     bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Broker      string   `json:"broker,omitempty" yaml:"broker,omitempty"`
	TopicPrefix string   `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`
	ClientID    string   `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Username    string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string   `json:"password,omitempty" yaml:"password,omitempty"`
	KeepAlive   Duration `json:"keep_alive,omitempty" yaml:"keep_alive,omitempty"`
}

// TelemetryConfig toggles OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Metrics *bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *bool `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	// Exporter is one of none, stdout, otlp. Spans are only exported when set.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP gRPC endpoint, e.g. localhost:4317.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate *float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// MetricsEnabled reports whether metrics are on (default true).
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}

// TracingEnabled reports whether tracing is on (default true).
func (t TelemetryConfig) TracingEnabled() bool {
	return t.Tracing == nil || *t.Tracing
}

// MachineConfig describes the peripherals of the simulated machine.
type MachineConfig struct {
	Extruders  []string `json:"extruders,omitempty" yaml:"extruders,omitempty"`
	Steppers   []string `json:"steppers,omitempty" yaml:"steppers,omitempty"`
	Fans       []string `json:"fans,omitempty" yaml:"fans,omitempty"`
	MeshActive bool     `json:"mesh_active,omitempty" yaml:"mesh_active,omitempty"`
}

// ApplyDefaults fills empty fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Toolchanger.Name == "" {
		c.Toolchanger.Name = DefaultToolchangerName
	}
	if c.Toolchanger.InitializeOn == "" {
		c.Toolchanger.InitializeOn = DefaultInitializeOn
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournalDriver
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = Duration(30 * time.Second)
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
