// Package config loads the toolchanger machine file and builds the runtime
// objects it describes.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/toolchanger/domain/config"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// Format is a machine file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var decoders = map[Format]func([]byte, any) error{
	FormatYAML: yaml.Unmarshal,
	FormatJSON: json.Unmarshal,
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedFormat, ext)
	}
}

// Loader reads machine files. The zero value neither expands environment
// references nor validates; use NewLoader.
type Loader struct {
	expandEnv bool
	strictEnv bool
	validate  bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvExpansion toggles ${VAR} and ${VAR:-default} expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) { l.expandEnv = enabled }
}

// WithStrictEnv makes a reference to an unset variable without a default an
// error.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) { l.strictEnv = enabled }
}

// WithValidation toggles validation after defaults are applied.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) { l.validate = enabled }
}

// NewLoader returns a loader that expands environment references leniently
// and validates.
func NewLoader() *Loader {
	return &Loader{expandEnv: true, validate: true}
}

// NewLoaderWithOptions returns NewLoader adjusted by opts.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads the machine file at path. The format follows the extension.
func (l *Loader) LoadFile(path string) (*config.Config, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("read machine file: %w", err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine file: %w", err)
	}

	cfg, err := l.decode(data, format)
	if err != nil {
		return nil, err
	}
	logging.Debug().
		Add(logging.Component("config")).
		Add(logging.Str("file", path)).
		Add(logging.Toolchanger(cfg.Toolchanger.Name)).
		Add(logging.Int("tools", len(cfg.Tools))).
		Msg("machine file loaded")
	return cfg, nil
}

// LoadString loads a machine file held in a string.
func (l *Loader) LoadString(content string, format Format) (*config.Config, error) {
	return l.decode([]byte(content), format)
}

// decode expands, decodes, applies defaults and validates, in that order.
func (l *Loader) decode(data []byte, format Format) (*config.Config, error) {
	unmarshal, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}

	if l.expandEnv {
		expanded, err := (&envExpander{strict: l.strictEnv}).Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	cfg := &config.Config{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}
	cfg.ApplyDefaults()

	if l.validate {
		if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
		}
	}
	return cfg, nil
}
