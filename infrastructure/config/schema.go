package config

import (
	"encoding/json"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
}

// GenerateSchema generates a JSON Schema for the machine configuration file.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/felixgeelhaar/toolchanger/toolchanger.schema.json",
		Title:       "Toolchanger Configuration",
		Description: "Machine configuration for the toolchanger controller",
		Type:        "object",
		Required:    []string{"toolchanger"},
		Properties: map[string]*JSONSchema{
			"toolchanger": generateToolchangerSchema(),
			"tools": {
				Type:        "array",
				Description: "Tools in configuration order",
				Items:       generateToolSchema(),
			},
			"logging":   generateLoggingSchema(),
			"journal":   generateJournalSchema(),
			"mqtt":      generateMQTTSchema(),
			"telemetry": generateTelemetrySchema(),
			"machine":   generateMachineSchema(),
		},
	}
}

func generateToolchangerSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Toolchanger section",
		Properties: map[string]*JSONSchema{
			"name": {
				Type:    "string",
				Default: "toolchanger",
			},
			"initialize_on": {
				Type:        "string",
				Description: "When the toolchanger initializes itself",
				Enum:        []string{"home", "manual", "first-use"},
				Default:     "first-use",
			},
			"clear_gcode_offset_for_toolchange": {
				Type:        "boolean",
				Description: "Zero the G-code offset while changing tools",
				Default:     true,
			},
			"initialize_gcode":    hookSchema("Runs on initialize"),
			"before_change_gcode": hookSchema("Runs before every tool change"),
			"after_change_gcode":  hookSchema("Runs after every tool change"),
			"params":              paramsSchema(),
			"tool_defaults":       generateToolOptionsSchema(),
		},
	}
}

func generateToolSchema() *JSONSchema {
	s := generateToolOptionsSchema()
	s.Required = []string{"name"}
	s.Properties["name"] = &JSONSchema{
		Type:        "string",
		Description: "Unique tool name",
	}
	s.Properties["tool_number"] = &JSONSchema{
		Type:        "integer",
		Description: "Initial tool number; omit to leave the tool unassigned",
		Minimum:     floatPtr(0),
	}
	s.Properties["params"] = paramsSchema()
	return s
}

func generateToolOptionsSchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"pickup_gcode":     hookSchema("Picks the tool up"),
			"dropoff_gcode":    hookSchema("Puts the tool away"),
			"gcode_x_offset":   {Type: "number"},
			"gcode_y_offset":   {Type: "number"},
			"gcode_z_offset":   {Type: "number"},
			"extruder":         {Type: "string", Description: "Extruder activated with the tool"},
			"extruder_stepper": {Type: "string", Description: "Stepper synced to the tool's extruder"},
			"fan":              {Type: "string", Description: "Part cooling fan activated with the tool"},
			"t_command_restore_axis": {
				Type:        "string",
				Description: "Axes restored after a T<n> shortcut",
				Pattern:     "^[XYZxyz]*$",
				Default:     "XYZ",
			},
		},
	}
}

func generateLoggingSchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"level": {
				Type:    "string",
				Enum:    []string{"trace", "debug", "info", "warn", "error"},
				Default: "info",
			},
			"format": {
				Type:    "string",
				Enum:    []string{"console", "json"},
				Default: "console",
			},
		},
	}
}

func generateJournalSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Lifecycle event journal",
		Properties: map[string]*JSONSchema{
			"driver": {
				Type:    "string",
				Enum:    []string{DriverMemory, DriverSQLite, DriverBadger, DriverPostgres, DriverRedis, DriverMongoDB, DriverDynamoDB},
				Default: DriverMemory,
			},
			"dsn": {
				Type:        "string",
				Description: "Driver data source: sqlite DSN, badger directory, postgres/redis/mongodb URL or dynamodb://region/table",
			},
			"buffer_size": {
				Type:    "integer",
				Minimum: floatPtr(0),
			},
			"flush_interval": {
				Type:   "string",
				Format: "duration",
			},
		},
	}
}

func generateMQTTSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Retained status and event publishing",
		Properties: map[string]*JSONSchema{
			"enabled":      {Type: "boolean", Default: false},
			"broker":       {Type: "string", Format: "uri"},
			"topic_prefix": {Type: "string", Default: "toolchanger"},
			"client_id":    {Type: "string"},
			"username":     {Type: "string"},
			"password":     {Type: "string"},
			"keep_alive":   {Type: "string", Format: "duration", Default: "30s"},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"metrics":  {Type: "boolean", Default: true},
			"tracing":  {Type: "boolean", Default: true},
			"exporter": {Type: "string", Enum: []string{"none", "stdout", "otlp"}},
			"endpoint": {Type: "string"},
			"insecure": {Type: "boolean"},
			"sample_rate": {
				Type:    "number",
				Minimum: floatPtr(0),
				Maximum: floatPtr(1),
			},
		},
	}
}

func generateMachineSchema() *JSONSchema {
	names := &JSONSchema{Type: "array", Items: &JSONSchema{Type: "string"}}
	return &JSONSchema{
		Type:        "object",
		Description: "Peripherals of the simulated machine",
		Properties: map[string]*JSONSchema{
			"extruders":   names,
			"steppers":    names,
			"fans":        names,
			"mesh_active": {Type: "boolean"},
		},
	}
}

func hookSchema(desc string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: desc + " (G-code template)",
	}
}

func paramsSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Literal values exposed to hook templates",
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

// SchemaJSON returns the JSON Schema as a JSON string.
func SchemaJSON() (string, error) {
	schema := GenerateSchema()
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
