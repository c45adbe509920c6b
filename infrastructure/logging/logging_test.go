package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
	if ProductionConfig().Format != "json" {
		t.Error("ProductionConfig() should log json")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"WARN", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"toolchanger", Toolchanger("tc"), `"toolchanger":"tc"`},
		{"tool", ToolName("T0"), `"tool":"T0"`},
		{"tool number", ToolNumber(3), `"tool_number":3`},
		{"status", Status(toolchanger.StatusReady), `"status":"ready"`},
		{"from", FromStatus(toolchanger.StatusReady), `"from_status":"ready"`},
		{"to", ToStatus(toolchanger.StatusChanging), `"to_status":"changing"`},
		{"hook", Hook("pickup"), `"hook":"pickup"`},
		{"restore axis", RestoreAxis("XZ"), `"restore_axis":"XZ"`},
		{"duration", Duration(150 * time.Millisecond), `"duration_ms":150`},
		{"reason", Reason("abort"), `"reason":"abort"`},
		{"component", Component("mqtt"), `"component":"mqtt"`},
		{"operation", Operation("select"), `"operation":"select"`},
		{"str", Str("k", "v"), `"k":"v"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")
			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(errors.New("boom"))(logger.Error()).Msg("failed")
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Errorf("expected error in output: %s", buf.String())
	}

	logger, buf = testLogger()
	ErrorField(nil)(logger.Info()).Msg("ok")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error should add no field: %s", buf.String())
	}
}

func TestLogEvent_Chaining(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	NewEvent(logger.Info()).
		Add(Toolchanger("tc")).
		Add(ToolName("T1")).
		Msg("selected")

	for _, want := range []string{`"toolchanger":"tc"`, `"tool":"T1"`, "selected"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("expected %s in output: %s", want, buf.String())
		}
	}
}

func TestInit_ReplacesLogger(t *testing.T) {
	var first, second bytes.Buffer

	Init(Config{Level: "warn", Format: "json", Output: &first})
	Info().Add(Component("test")).Msg("dropped")
	Warn().Add(Component("test")).Msg("kept")

	Init(Config{Level: "debug", Format: "json", Output: &second})
	Debug().Add(Int("attempt", 2)).Msg("after reinit")
	t.Cleanup(func() { Init(Config{Level: "error", Output: io.Discard}) })

	if bytes.Contains(first.Bytes(), []byte("dropped")) || !bytes.Contains(first.Bytes(), []byte("kept")) {
		t.Errorf("first logger output = %s", first.String())
	}
	if !bytes.Contains(second.Bytes(), []byte(`"attempt":2`)) {
		t.Errorf("second logger output = %s", second.String())
	}
}
