package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	"github.com/aqaranewbiz/mysql-server/internal/config"
	"github.com/aqaranewbiz/mysql-server/internal/tools"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway counts every database touch.
type recordingGateway struct {
	calls   int
	tables  []string
	result  mcpdb.Result
	pingErr error
}

func (g *recordingGateway) Dialect() client.Dialect { return client.MySQL }

func (g *recordingGateway) Execute(context.Context, client.ConnectionSpec, string) (mcpdb.Result, error) {
	g.calls++
	return g.result, nil
}

func (g *recordingGateway) ListTables(context.Context, client.ConnectionSpec) ([]string, error) {
	g.calls++
	return g.tables, nil
}

func (g *recordingGateway) Ping(context.Context, client.ConnectionSpec) error {
	g.calls++
	return g.pingErr
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *mcpdb.Error    `json:"error"`
}

func newTestDispatcher(gw *recordingGateway, checkDB bool) *Dispatcher {
	ambient := client.AmbientFromConfig(config.DatabaseConfig{Host: "localhost", Port: 3306, User: "root"})
	registry := tools.NewRegistry(gw, tools.Options{Ambient: ambient, AllowOverride: true})
	return NewDispatcher(registry, gw, Options{
		Info:              &mcp.Implementation{Name: "mysql-mcp-server", Version: "1.0.0"},
		Ambient:           ambient,
		ProbeOnInitialize: checkDB,
	})
}

func send(t *testing.T, d *Dispatcher, frame string) response {
	t.Helper()
	raw := d.HandleString(context.Background(), frame)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &fields), raw)
	_, hasResult := fields["result"]
	_, hasError := fields["error"]
	assert.True(t, hasResult != hasError, "exactly one of result and error: %s", raw)
	assert.Contains(t, fields, "id")

	var resp response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestMalformedEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		wantID string
	}{
		{name: "not json", frame: `{"jsonrpc": "2.0", "method":`, wantID: "null"},
		{name: "array", frame: `[1, 2, 3]`, wantID: "null"},
		{name: "null", frame: `null`, wantID: "null"},
		{name: "string", frame: `"tools/list"`, wantID: "null"},
		{name: "missing version", frame: `{"id": 1, "method": "tools/list"}`, wantID: "1"},
		{name: "wrong version", frame: `{"jsonrpc": "1.0", "id": "a", "method": "tools/list"}`, wantID: `"a"`},
		{name: "numeric version", frame: `{"jsonrpc": 2.0, "id": 2, "method": "tools/list"}`, wantID: "2"},
		{name: "missing method", frame: `{"jsonrpc": "2.0", "id": 3}`, wantID: "3"},
		{name: "method not a string", frame: `{"jsonrpc": "2.0", "id": 4, "method": 7}`, wantID: "4"},
		{name: "tools/call with missing method", frame: `{"jsonrpc": "2.0", "id": 5, "params": {"tool": "query", "params": {"query": "DROP TABLE t"}}}`, wantID: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &recordingGateway{}
			d := newTestDispatcher(gw, true)

			resp := send(t, d, tt.frame)
			require.NotNil(t, resp.Error)
			assert.Equal(t, mcpdb.CodeInvalidEnvelope, resp.Error.Code)
			assert.JSONEq(t, tt.wantID, string(resp.ID))
			assert.Zero(t, gw.calls)
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	d := newTestDispatcher(&recordingGateway{}, false)

	resp := send(t, d, `{"jsonrpc": "2.0", "id": 9, "method": "resources/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Method not found: resources/list", resp.Error.Message)
	assert.JSONEq(t, "9", string(resp.ID))
}

func TestUnknownToolEchoesID(t *testing.T) {
	ids := map[string]string{
		"string": `,"id":"req-1"`,
		"number": `,"id":42`,
		"null":   `,"id":null`,
		"absent": ``,
	}
	for name, idField := range ids {
		t.Run(name, func(t *testing.T) {
			gw := &recordingGateway{}
			d := newTestDispatcher(gw, false)

			resp := send(t, d, `{"jsonrpc":"2.0","method":"tools/call","params":{"tool":"drop_everything"}`+idField+`}`)
			require.NotNil(t, resp.Error)
			assert.Equal(t, mcpdb.CodeToolNotFound, resp.Error.Code)
			assert.Equal(t, "Tool not found: drop_everything", resp.Error.Message)

			want := "null"
			if idField != "" {
				want = idField[len(`,"id":`):]
			}
			assert.JSONEq(t, want, string(resp.ID))
			assert.Zero(t, gw.calls)
		})
	}
}

func TestToolCallParamsShape(t *testing.T) {
	gw := &recordingGateway{}
	d := newTestDispatcher(gw, false)

	resp := send(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeToolNotFound, resp.Error.Code)

	resp = send(t, d, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"tool":7}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeToolNotFound, resp.Error.Code)

	resp = send(t, d, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"tool":"echo","params":"hello"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeInvalidParams, resp.Error.Code)

	resp = send(t, d, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"tool":"query"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeInvalidParams, resp.Error.Code)

	assert.Zero(t, gw.calls)
}

func TestToolsListIsIdempotent(t *testing.T) {
	gw := &recordingGateway{}
	d := newTestDispatcher(gw, false)

	first := d.HandleString(context.Background(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	second := d.HandleString(context.Background(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, first, second)

	resp := send(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	var listing struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &listing))
	names := make([]string, 0, len(listing.Tools))
	for _, tool := range listing.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"list_tables", "query", "echo"}, names)
	assert.Zero(t, gw.calls)
}

func TestEchoRoundTrip(t *testing.T) {
	d := newTestDispatcher(&recordingGateway{}, false)

	for _, msg := range []string{"", "plain", `with "quotes"`, "multi\nline\n"} {
		frame, err := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      "e",
			"method":  "tools/call",
			"params":  map[string]interface{}{"tool": "echo", "params": map[string]interface{}{"message": msg}},
		})
		require.NoError(t, err)

		resp := send(t, d, string(frame))
		require.Nil(t, resp.Error)

		var out struct {
			Echo string `json:"echo"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &out))
		assert.Equal(t, msg, out.Echo)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("reachable database", func(t *testing.T) {
		gw := &recordingGateway{}
		d := newTestDispatcher(gw, true)

		resp := send(t, d, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{}}`)
		require.Nil(t, resp.Error)
		var res initializeResult
		require.NoError(t, json.Unmarshal(resp.Result, &res))
		assert.Equal(t, "2.0", res.ProtocolVersion)
		require.NotNil(t, res.ServerInfo)
		assert.Equal(t, "mysql-mcp-server", res.ServerInfo.Name)
		assert.Equal(t, "1.0.0", res.ServerInfo.Version)
		assert.Equal(t, "ready", res.Status)
		assert.Equal(t, map[string]interface{}{"tools": map[string]interface{}{}}, res.Capabilities)
		assert.Equal(t, &databaseStatus{Connected: true}, res.Database)
		assert.Equal(t, 1, gw.calls)
	})

	t.Run("unreachable database is informational", func(t *testing.T) {
		gw := &recordingGateway{pingErr: mcpdb.DatabaseError(errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))}
		d := newTestDispatcher(gw, true)

		resp := send(t, d, `{"jsonrpc":"2.0","id":0,"method":"initialize"}`)
		require.Nil(t, resp.Error)

		var res initializeResult
		require.NoError(t, json.Unmarshal(resp.Result, &res))
		assert.Equal(t, "ready", res.Status)
		require.NotNil(t, res.Database)
		assert.False(t, res.Database.Connected)
		assert.Contains(t, res.Database.Error, "connection refused")
	})

	t.Run("check disabled", func(t *testing.T) {
		gw := &recordingGateway{}
		d := newTestDispatcher(gw, false)

		resp := send(t, d, `{"jsonrpc":"2.0","id":0,"method":"initialize"}`)
		require.Nil(t, resp.Error)
		assert.NotContains(t, string(resp.Result), "database")
		assert.Zero(t, gw.calls)
	})
}

func TestPing(t *testing.T) {
	gw := &recordingGateway{}
	d := newTestDispatcher(gw, true)

	resp := send(t, d, `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{}`, string(resp.Result))
	assert.Zero(t, gw.calls)
}

func TestQueryResultShapes(t *testing.T) {
	gw := &recordingGateway{result: mcpdb.RowSet([]map[string]interface{}{{"id": 1, "name": "a"}})}
	d := newTestDispatcher(gw, false)

	resp := send(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"tool":"query","params":{"query":"SELECT * FROM t"}}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"rows":[{"id":1,"name":"a"}]}`, string(resp.Result))

	gw.result = mcpdb.MutationSummary(0)
	resp = send(t, d, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"tool":"query","params":{"query":"SELECT * FROM t WHERE 1=0"}}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"affectedRows":0}`, string(resp.Result))
}

type panickingRouter struct{ *tools.Registry }

func (panickingRouter) Call(context.Context, string, map[string]interface{}) (interface{}, error) {
	panic("router exploded")
}

func TestPanicBecomesInternalError(t *testing.T) {
	gw := &recordingGateway{}
	registry := tools.NewRegistry(gw, tools.Options{})
	d := NewDispatcher(panickingRouter{registry}, gw, Options{})

	resp := send(t, d, `{"jsonrpc":"2.0","id":"boom","method":"tools/call","params":{"tool":"echo","params":{"message":"x"}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeInternal, resp.Error.Code)
	assert.Equal(t, "router exploded", resp.Error.Message)
	assert.JSONEq(t, `"boom"`, string(resp.ID))
}

func TestUnencodableResult(t *testing.T) {
	gw := &recordingGateway{result: mcpdb.RowSet([]map[string]interface{}{{"bad": make(chan int)}})}
	d := newTestDispatcher(gw, false)

	resp := send(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"tool":"query","params":{"query":"SELECT 1"}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpdb.CodeInternal, resp.Error.Code)
	assert.JSONEq(t, "1", string(resp.ID))
}
