// Package command implements the console command surface: extended command
// lines ("NAME KEY=VALUE ...") dispatched one at a time onto the toolchanger.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCommand indicates no handler and no fallback for a command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMalformed indicates a command line that could not be parsed.
	ErrMalformed = errors.New("malformed command")

	// ErrMissingParam indicates a required parameter was not given.
	ErrMissingParam = errors.New("missing parameter")
)

// Command is one parsed command line.
type Command struct {
	Name   string
	Line   string
	params map[string]string
}

// Parse parses an extended command line. Values may be double quoted to
// contain spaces. Names and keys are upper-cased.
func Parse(line string) (*Command, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	cmd := &Command{
		Name:   strings.ToUpper(tokens[0]),
		Line:   strings.TrimSpace(line),
		params: make(map[string]string, len(tokens)-1),
	}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %s: expected KEY=VALUE, got %q", ErrMalformed, cmd.Name, tok)
		}
		cmd.params[strings.ToUpper(key)] = value
	}
	return cmd, nil
}

func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrMalformed, line)
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// Has reports whether key was given.
func (c *Command) Has(key string) bool {
	_, ok := c.params[strings.ToUpper(key)]
	return ok
}

// Get returns the value of key, or def when absent.
func (c *Command) Get(key, def string) string {
	if v, ok := c.params[strings.ToUpper(key)]; ok {
		return v
	}
	return def
}

// Require returns the value of key or ErrMissingParam.
func (c *Command) Require(key string) (string, error) {
	v, ok := c.params[strings.ToUpper(key)]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s requires %s", ErrMissingParam, c.Name, strings.ToUpper(key))
	}
	return v, nil
}

// GetInt returns key as an integer no smaller than min, or def when absent.
func (c *Command) GetInt(key string, def, min int) (int, error) {
	v, ok := c.params[strings.ToUpper(key)]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s=%q is not an integer", ErrMalformed, c.Name, strings.ToUpper(key), v)
	}
	if n < min {
		return 0, fmt.Errorf("%w: %s: %s=%d must be at least %d", ErrMalformed, c.Name, strings.ToUpper(key), n, min)
	}
	return n, nil
}
