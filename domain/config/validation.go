package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates machine configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateToolchanger(config)
	v.validateTools(config)
	v.validateLogging(config)
	v.validateJournal(config)
	v.validateMQTT(config)
	v.validateTelemetry(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateToolchanger(config *Config) {
	tc := config.Toolchanger
	if tc.Name == "" {
		v.addError("toolchanger.name", "name is required")
	}
	if _, err := toolchanger.ParseInitPolicy(tc.InitializeOn); err != nil {
		v.addError("toolchanger.initialize_on", fmt.Sprintf("invalid policy: %s", tc.InitializeOn))
	}
	v.validateParams("toolchanger.params", tc.Params)
	v.validateOptions("toolchanger.tool_defaults", tc.ToolDefaults)
}

func (v *Validator) validateTools(config *Config) {
	names := make(map[string]int)
	numbers := make(map[int]int)

	for i, t := range config.Tools {
		path := fmt.Sprintf("tools[%d]", i)
		if t.Name == "" {
			v.addError(path+".name", "tool name is required")
		} else if first, dup := names[t.Name]; dup {
			v.addError(path+".name", fmt.Sprintf("duplicate tool name %s (also tools[%d])", t.Name, first))
		} else {
			names[t.Name] = i
		}

		if t.ToolNumber != nil {
			n := *t.ToolNumber
			if n < 0 {
				v.addError(path+".tool_number", "tool_number must be non-negative")
			} else if first, dup := numbers[n]; dup {
				v.addError(path+".tool_number", fmt.Sprintf("duplicate tool number %d (also tools[%d])", n, first))
			} else {
				numbers[n] = i
			}
		}

		v.validateParams(path+".params", t.Params)
		v.validateOptions(path, t.ToolOptions)
	}
}

func (v *Validator) validateOptions(path string, opts ToolOptions) {
	if opts.RestoreAxis == "" {
		return
	}
	if err := motion.ValidateAxes(opts.RestoreAxis); err != nil {
		v.addError(path+".t_command_restore_axis", fmt.Sprintf("invalid axes: %s", opts.RestoreAxis))
	}
}

func (v *Validator) validateParams(path string, raw RawParams) {
	for _, name := range raw.Keys() {
		literal := raw.Values()[name]
		if _, err := params.ParseLiteral(literal); err != nil {
			v.addError(path+"."+name, fmt.Sprintf("not a valid literal: %s", literal))
		}
	}
}

func (v *Validator) validateLogging(config *Config) {
	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"trace": true, "debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[strings.ToLower(config.Logging.Level)] {
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" && config.Logging.Format != "console" && config.Logging.Format != "json" {
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateJournal(config *Config) {
	switch config.Journal.Driver {
	case "", "memory":
	case "sqlite", "badger", "postgres", "redis", "mongodb", "dynamodb":
		if config.Journal.DSN == "" {
			v.addError("journal.dsn", fmt.Sprintf("dsn is required for %s driver", config.Journal.Driver))
		}
	default:
		v.addError("journal.driver", fmt.Sprintf("unknown driver: %s", config.Journal.Driver))
	}
	if config.Journal.BufferSize < 0 {
		v.addError("journal.buffer_size", "buffer_size must be non-negative")
	}
}

func (v *Validator) validateMQTT(config *Config) {
	if !config.MQTT.Enabled {
		return
	}
	if config.MQTT.Broker == "" {
		v.addError("mqtt.broker", "broker is required when enabled")
		return
	}
	u, err := url.Parse(config.MQTT.Broker)
	if err != nil || u.Host == "" {
		v.addError("mqtt.broker", fmt.Sprintf("invalid broker URL: %s", config.MQTT.Broker))
		return
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl", "tls", "ws", "wss":
	default:
		v.addError("mqtt.broker", fmt.Sprintf("unsupported scheme: %s", u.Scheme))
	}
}

func (v *Validator) validateTelemetry(config *Config) {
	t := config.Telemetry
	switch t.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if t.Endpoint == "" {
			v.addError("telemetry.endpoint", "endpoint is required for otlp exporter")
		}
	default:
		v.addError("telemetry.exporter", fmt.Sprintf("unknown exporter: %s", t.Exporter))
	}
	if t.SampleRate != nil && (*t.SampleRate < 0 || *t.SampleRate > 1) {
		v.addError("telemetry.sample_rate", "sample_rate must be between 0 and 1")
	}
}
