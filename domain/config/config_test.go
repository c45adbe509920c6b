package config

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func floatPtr(v float64) *float64 { return &v }

func TestToolOptions_WithDefaults(t *testing.T) {
	defaults := ToolOptions{
		PickupGcode:  "PICKUP",
		DropoffGcode: "DROPOFF",
		GcodeZOffset: floatPtr(0.2),
		Fan:          "fan0",
		RestoreAxis:  "Z",
	}
	own := ToolOptions{
		PickupGcode:  "MY_PICKUP",
		GcodeXOffset: floatPtr(1),
		Extruder:     "extruder1",
	}

	got := own.WithDefaults(defaults)

	if got.PickupGcode != "MY_PICKUP" {
		t.Errorf("PickupGcode = %s, want own value", got.PickupGcode)
	}
	if got.DropoffGcode != "DROPOFF" || got.Fan != "fan0" || got.RestoreAxis != "Z" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if *got.GcodeXOffset != 1 || *got.GcodeZOffset != 0.2 || got.GcodeYOffset != nil {
		t.Errorf("offsets = %v %v %v", got.GcodeXOffset, got.GcodeYOffset, got.GcodeZOffset)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Toolchanger.Name != DefaultToolchangerName {
		t.Errorf("Name = %s", cfg.Toolchanger.Name)
	}
	if cfg.Toolchanger.InitializeOn != DefaultInitializeOn {
		t.Errorf("InitializeOn = %s", cfg.Toolchanger.InitializeOn)
	}
	if !cfg.Toolchanger.ClearOffset() {
		t.Error("ClearOffset() should default to true")
	}
	if !cfg.Telemetry.MetricsEnabled() || !cfg.Telemetry.TracingEnabled() {
		t.Error("telemetry should default to enabled")
	}
	if cfg.MQTT.KeepAlive.Duration() != 30*time.Second {
		t.Errorf("KeepAlive = %v", cfg.MQTT.KeepAlive.Duration())
	}
}

func TestRawParams_YAMLOrder(t *testing.T) {
	src := `
params:
  zeta: "'last'"
  alpha: 1
  list: [1, 2.5, 'x']
  flag: True
`
	var doc struct {
		Params RawParams `yaml:"params"`
	}
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got := doc.Params.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "list", "flag"}) {
		t.Errorf("Keys() = %v", got)
	}
	values := doc.Params.Values()
	if values["zeta"] != "'last'" || values["alpha"] != "1" || values["flag"] != "True" {
		t.Errorf("Values() = %v", values)
	}
	if values["list"] != "[1, 2.5, 'x']" {
		t.Errorf("list = %q", values["list"])
	}
}

func TestRawParams_JSONOrder(t *testing.T) {
	var p RawParams
	if err := json.Unmarshal([]byte(`{"b": "'s'", "a": 3, "c": [1,2]}`), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got := p.Keys(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if v := p.Values(); v["b"] != "'s'" || v["a"] != "3" || v["c"] != "[1,2]" {
		t.Errorf("Values() = %v", v)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"b":"'s'","a":"3","c":"[1,2]"}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestToolConfig_InlineOptions(t *testing.T) {
	src := `
name: T0
tool_number: 0
extruder: extruder
gcode_x_offset: -1.5
`
	var tc ToolConfig
	if err := yaml.Unmarshal([]byte(src), &tc); err != nil {
		t.Fatalf("yaml error = %v", err)
	}
	if tc.Extruder != "extruder" || tc.GcodeXOffset == nil || *tc.GcodeXOffset != -1.5 {
		t.Errorf("yaml inline options = %+v", tc.ToolOptions)
	}

	var jc ToolConfig
	if err := json.Unmarshal([]byte(`{"name":"T1","fan":"fan1"}`), &jc); err != nil {
		t.Fatalf("json error = %v", err)
	}
	if jc.Fan != "fan1" || jc.ToolNumber != nil {
		t.Errorf("json inline options = %+v", jc)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", d.Duration())
	}

	var y struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 250ms"), &y); err != nil {
		t.Fatalf("UnmarshalYAML() error = %v", err)
	}
	if y.D.Duration() != 250*time.Millisecond {
		t.Errorf("yaml Duration() = %v", y.D.Duration())
	}
}
