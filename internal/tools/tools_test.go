package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	"github.com/aqaranewbiz/mysql-server/internal/config"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	tables     []string
	result     mcpdb.Result
	err        error
	specs      []client.ConnectionSpec
	statements []string
}

func (f *fakeGateway) Dialect() client.Dialect { return client.MySQL }

func (f *fakeGateway) Execute(_ context.Context, spec client.ConnectionSpec, statement string) (mcpdb.Result, error) {
	f.specs = append(f.specs, spec)
	f.statements = append(f.statements, statement)
	return f.result, f.err
}

func (f *fakeGateway) ListTables(_ context.Context, spec client.ConnectionSpec) ([]string, error) {
	f.specs = append(f.specs, spec)
	return f.tables, f.err
}

func (f *fakeGateway) Ping(_ context.Context, spec client.ConnectionSpec) error {
	f.specs = append(f.specs, spec)
	return f.err
}

var ambient = client.AmbientFromConfig(config.DatabaseConfig{Host: "localhost", Port: 3306, User: "root", Name: "shop"})

func newTestRegistry(gw *fakeGateway, allowOverride bool) *Registry {
	return NewRegistry(gw, Options{Ambient: ambient, AllowOverride: allowOverride})
}

func TestListingIsStable(t *testing.T) {
	r := newTestRegistry(&fakeGateway{}, true)

	first := r.Listing()
	second := r.Listing()
	assert.Equal(t, string(first), string(second))

	var listing struct {
		Tools []struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			Parameters  map[string]interface{} `json:"parameters"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(first, &listing))
	require.Len(t, listing.Tools, 3)
	assert.Equal(t, []string{"list_tables", "query", "echo"}, r.Names())

	for _, tool := range listing.Tools {
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.Parameters["type"], tool.Name)
	}
	query := listing.Tools[1]
	assert.Equal(t, []interface{}{"query"}, query.Parameters["required"])
	props := query.Parameters["properties"].(map[string]interface{})
	assert.Contains(t, props, "connection")
}

func TestSchemasInferredFromInputTags(t *testing.T) {
	r := newTestRegistry(&fakeGateway{}, true)

	query, ok := r.Lookup("query")
	require.True(t, ok)
	params := query.Descriptor.Parameters
	require.Contains(t, params.Properties, "query")
	assert.Equal(t, "string", params.Properties["query"].Type)
	assert.Equal(t, "SQL statement to execute", params.Properties["query"].Description)
	assert.Equal(t, []string{"query"}, params.Required)

	conn := params.Properties["connection"]
	require.NotNil(t, conn)
	for _, field := range []string{"host", "port", "user", "password", "database"} {
		assert.Contains(t, conn.Properties, field)
	}
	assert.Empty(t, conn.Required)

	echo, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.NotContains(t, echo.Descriptor.Parameters.Properties, "connection")
	assert.Equal(t, []string{"message"}, echo.Descriptor.Parameters.Required)
	assert.False(t, echo.NeedsConnection)

	listTables, ok := r.Lookup("list_tables")
	require.True(t, ok)
	assert.True(t, listTables.NeedsConnection)
	assert.Contains(t, listTables.Descriptor.Parameters.Properties, "connection")
}

func TestUnknownConnectionFieldRejected(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRegistry(gw, true)

	_, err := r.Call(context.Background(), "list_tables", map[string]interface{}{
		"connection": map[string]interface{}{"host": "h", "user": "u", "password": "", "socket": "/tmp/x"},
	})
	assert.Equal(t, mcpdb.CodeInvalidParams, mcpdb.AsError(err).Code)
	assert.Empty(t, gw.specs)
}

func TestLookupIsCaseSensitive(t *testing.T) {
	r := newTestRegistry(&fakeGateway{}, true)

	_, ok := r.Lookup("query")
	assert.True(t, ok)
	_, ok = r.Lookup("QUERY")
	assert.False(t, ok)
	assert.False(t, r.Has("drop_everything"))
}

func TestCallUnknownTool(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRegistry(gw, true)

	_, err := r.Call(context.Background(), "nope", nil)
	rpcErr := mcpdb.AsError(err)
	assert.Equal(t, mcpdb.CodeToolNotFound, rpcErr.Code)
	assert.Equal(t, "Tool not found: nope", rpcErr.Message)
	assert.Empty(t, gw.specs)
}

func TestEcho(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRegistry(gw, true)

	for _, msg := range []string{"", "hello", `she said "hi"`, "line one\nline two"} {
		out, err := r.Call(context.Background(), "echo", map[string]interface{}{"message": msg})
		require.NoError(t, err)
		assert.Equal(t, EchoOutput{Echo: msg}, out)
	}
	assert.Empty(t, gw.specs)
}

func TestQueryUsesAmbientConnection(t *testing.T) {
	gw := &fakeGateway{result: mcpdb.MutationSummary(1)}
	r := newTestRegistry(gw, true)

	out, err := r.Call(context.Background(), "query", map[string]interface{}{"query": "INSERT INTO t VALUES (1)"})
	require.NoError(t, err)

	assert.Equal(t, mcpdb.MutationSummary(1), out)
	require.Len(t, gw.specs, 1)
	assert.Equal(t, ambient, gw.specs[0])
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)"}, gw.statements)
}

func TestQueryWithConnectionOverride(t *testing.T) {
	gw := &fakeGateway{result: mcpdb.RowSet([]map[string]interface{}{{"n": int64(1)}})}
	r := newTestRegistry(gw, true)

	_, err := r.Call(context.Background(), "query", map[string]interface{}{
		"query": "SELECT 1 AS n",
		"connection": map[string]interface{}{
			"host": "replica", "port": float64(3307), "user": "reader", "password": "pw",
		},
	})
	require.NoError(t, err)

	require.Len(t, gw.specs, 1)
	spec := gw.specs[0]
	assert.Equal(t, "caller", spec.Source())
	// nothing from the ambient config is merged in
	assert.Equal(t, client.Params{Host: "replica", Port: 3307, User: "reader", Password: "pw"}, spec.Params())
}

func TestInvalidParamsNeverReachTheGateway(t *testing.T) {
	tests := []struct {
		name          string
		tool          string
		args          map[string]interface{}
		allowOverride bool
		wantMsg       string
	}{
		{name: "missing query", tool: "query", args: map[string]interface{}{}, allowOverride: true, wantMsg: "query"},
		{name: "query not a string", tool: "query", args: map[string]interface{}{"query": 42}, allowOverride: true, wantMsg: "query"},
		{name: "blank query", tool: "query", args: map[string]interface{}{"query": "   "}, allowOverride: true, wantMsg: "must not be empty"},
		{name: "missing echo message", tool: "echo", args: nil, allowOverride: true, wantMsg: "message"},
		{
			name:          "missing credentials",
			tool:          "list_tables",
			args:          map[string]interface{}{"connection": map[string]interface{}{"host": "h"}},
			allowOverride: true,
			wantMsg:       "missing credentials",
		},
		{
			name:          "connection not an object",
			tool:          "list_tables",
			args:          map[string]interface{}{"connection": "mysql://root@h"},
			allowOverride: true,
			wantMsg:       "connection",
		},
		{
			name:          "overrides disabled",
			tool:          "query",
			args:          map[string]interface{}{"query": "SELECT 1", "connection": map[string]interface{}{"host": "h", "user": "u", "password": ""}},
			allowOverride: false,
			wantMsg:       "overrides are disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			r := newTestRegistry(gw, tt.allowOverride)

			_, err := r.Call(context.Background(), tt.tool, tt.args)
			require.Error(t, err)

			rpcErr := mcpdb.AsError(err)
			assert.Equal(t, mcpdb.CodeInvalidParams, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.wantMsg)
			assert.Empty(t, gw.specs)
		})
	}
}

func TestListTablesPassesThroughOrder(t *testing.T) {
	gw := &fakeGateway{tables: []string{"b", "a"}}
	r := newTestRegistry(gw, true)

	out, err := r.Call(context.Background(), "list_tables", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, out)
}

func TestGatewayErrorsPropagate(t *testing.T) {
	gw := &fakeGateway{err: mcpdb.DatabaseError(errors.New("Access denied for user 'root'"))}
	r := newTestRegistry(gw, true)

	_, err := r.Call(context.Background(), "query", map[string]interface{}{"query": "SELECT 1"})
	rpcErr := mcpdb.AsError(err)
	assert.Equal(t, mcpdb.CodeDatabase, rpcErr.Code)
	assert.Equal(t, "Access denied for user 'root'", rpcErr.Message)
}

func TestDuplicateToolRejected(t *testing.T) {
	_, err := newRegistry(&fakeGateway{}, Options{}, GetEchoTool(), GetEchoTool())
	assert.Error(t, err)
}
