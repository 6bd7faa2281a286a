package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

// Gateway is the database surface the tools need.
type Gateway interface {
	Dialect() client.Dialect
	Execute(ctx context.Context, spec client.ConnectionSpec, statement string) (mcpdb.Result, error)
	ListTables(ctx context.Context, spec client.ConnectionSpec) ([]string, error)
	Ping(ctx context.Context, spec client.ConnectionSpec) error
}

var _ Gateway = (*client.Gateway)(nil)

type Options struct {
	// Ambient is used when a call carries no connection override.
	Ambient client.ConnectionSpec
	// AllowOverride lets callers pass their own connection object.
	AllowOverride bool
}

// Registry is the fixed set of tools. It is built once and never mutated.
type Registry struct {
	gateway Gateway
	opts    Options
	tools   map[string]*ToolDefinition
	order   []*ToolDefinition
	listing json.RawMessage
}

func NewRegistry(gw Gateway, opts Options) *Registry {
	r, err := newRegistry(gw, opts,
		// List Tables Tool
		GetListTablesTool(gw),
		// Query Tool
		GetQueryTool(gw),
		// Echo Tool
		GetEchoTool(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func newRegistry(gw Gateway, opts Options, defs ...*ToolDefinition) (*Registry, error) {
	r := &Registry{
		gateway: gw,
		opts:    opts,
		tools:   make(map[string]*ToolDefinition, len(defs)),
	}
	descriptors := make([]Descriptor, 0, len(defs))
	for _, td := range defs {
		if _, dup := r.tools[td.Descriptor.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %s", td.Descriptor.Name)
		}
		if err := td.compile(); err != nil {
			return nil, err
		}
		r.tools[td.Descriptor.Name] = td
		r.order = append(r.order, td)
		descriptors = append(descriptors, td.Descriptor)
	}

	listing, err := json.Marshal(struct {
		Tools []Descriptor `json:"tools"`
	}{descriptors})
	if err != nil {
		return nil, fmt.Errorf("render tool listing: %w", err)
	}
	r.listing = listing
	return r, nil
}

// Lookup is an exact, case-sensitive match.
func (r *Registry) Lookup(name string) (*ToolDefinition, bool) {
	td, ok := r.tools[name]
	return td, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, td := range r.order {
		names = append(names, td.Descriptor.Name)
	}
	return names
}

// Listing is the tools/list result, rendered once at construction.
func (r *Registry) Listing() json.RawMessage {
	return r.listing
}

// Call validates args, resolves the connection and runs the tool.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	td, ok := r.Lookup(name)
	if !ok {
		return nil, mcpdb.ToolNotFound(name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := td.validate(args); err != nil {
		return nil, err
	}

	call := Call{Arguments: args}
	if td.NeedsConnection {
		spec, err := r.resolveConnection(args["connection"])
		if err != nil {
			return nil, err
		}
		call.Connection = spec
	}
	return td.handler(ctx, call)
}

func (r *Registry) resolveConnection(raw interface{}) (client.ConnectionSpec, error) {
	if raw == nil {
		return r.opts.Ambient, nil
	}
	if !r.opts.AllowOverride {
		return nil, mcpdb.InvalidParams("connection overrides are disabled")
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, mcpdb.InvalidParams("connection must be an object")
	}
	return client.ParseCallerSupplied(obj, r.gateway.Dialect())
}
