package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Descriptor is the public description of a tool, as returned by tools/list.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Call is what a handler receives once arguments passed validation.
// Connection is nil for tools that never touch the database.
type Call struct {
	Arguments  map[string]interface{}
	Connection client.ConnectionSpec
}

// ToolDefinition represents a complete tool with its metadata and handler
type ToolDefinition struct {
	Descriptor      Descriptor
	NeedsConnection bool

	handler func(ctx context.Context, call Call) (interface{}, error)
	schema  *gojsonschema.Schema
	err     error
}

// NewToolDefinition creates a new tool definition. The parameter schema is
// inferred from TInput's json and jsonschema tags, and arguments are decoded
// into TInput before the handler runs.
func NewToolDefinition[TInput any](
	name, description string,
	handler func(ctx context.Context, input TInput, conn client.ConnectionSpec) (interface{}, error),
) *ToolDefinition {
	params, err := jsonschema.For[TInput](nil)
	return &ToolDefinition{
		Descriptor: Descriptor{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		handler: func(ctx context.Context, call Call) (interface{}, error) {
			var input TInput
			if err := decodeArguments(call.Arguments, &input); err != nil {
				return nil, err
			}
			return handler(ctx, input, call.Connection)
		},
		err: err,
	}
}

// ConnectionInput is the optional per-call connection override.
type ConnectionInput struct {
	Host     string      `json:"host,omitempty" jsonschema:"Database host"`
	Port     interface{} `json:"port,omitempty" jsonschema:"Database port, number or numeric string"`
	User     string      `json:"user,omitempty" jsonschema:"Database user"`
	Password string      `json:"password,omitempty" jsonschema:"Database password, may be empty"`
	Database string      `json:"database,omitempty" jsonschema:"Database name, or file path for sqlite3"`
}

// UsesDatabase marks the tool as needing a session and adds the optional
// connection override to its parameters.
func (td *ToolDefinition) UsesDatabase() *ToolDefinition {
	td.NeedsConnection = true
	if td.err != nil {
		return td
	}
	conn, err := jsonschema.For[ConnectionInput](nil)
	if err != nil {
		td.err = err
		return td
	}
	conn.Description = "Optional connection override. Replaces the configured connection entirely."
	if td.Descriptor.Parameters.Properties == nil {
		td.Descriptor.Parameters.Properties = map[string]*jsonschema.Schema{}
	}
	td.Descriptor.Parameters.Properties["connection"] = conn
	return td
}

// compile prepares the argument validator. It fails only on a malformed
// built-in schema.
func (td *ToolDefinition) compile() error {
	if td.err != nil {
		return fmt.Errorf("infer schema for %s: %w", td.Descriptor.Name, td.err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(td.Descriptor.Parameters))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", td.Descriptor.Name, err)
	}
	td.schema = schema
	return nil
}

func (td *ToolDefinition) validate(args map[string]interface{}) error {
	result, err := td.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return mcpdb.InvalidParams("%v", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return mcpdb.InvalidParams("%s", strings.Join(msgs, "; "))
}

func decodeArguments(args map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return mcpdb.InvalidParams("%v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return mcpdb.InvalidParams("%v", err)
	}
	return nil
}
