package server

import (
	"bytes"
	"encoding/json"

	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

// parseEnvelope checks the outer shape of a frame. The returned request
// carries whatever id could be recovered, even when validation fails.
func parseEnvelope(raw []byte) (mcpdb.Request, *mcpdb.Error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return mcpdb.Request{}, mcpdb.InvalidEnvelope("message must be a JSON object")
	}

	req := mcpdb.Request{
		ID:     fields["id"],
		Params: fields["params"],
	}

	version, ok := fields["jsonrpc"]
	if !ok {
		return req, mcpdb.InvalidEnvelope("missing jsonrpc version")
	}
	if err := json.Unmarshal(version, &req.JSONRPC); err != nil || req.JSONRPC != mcpdb.JSONRPCVersion {
		return req, mcpdb.InvalidEnvelope("jsonrpc must be \"" + mcpdb.JSONRPCVersion + "\"")
	}

	method, ok := fields["method"]
	if !ok {
		return req, mcpdb.InvalidEnvelope("missing method")
	}
	if err := json.Unmarshal(method, &req.Method); err != nil || req.Method == "" {
		return req, mcpdb.InvalidEnvelope("method must be a non-empty string")
	}

	return req, nil
}

// callParams decodes the params of a tools/call request. The tool name is
// left empty when params is not an object or tool is absent or not a
// string; the caller reports that as an unknown tool before looking at the
// returned error.
func callParams(raw json.RawMessage) (mcpdb.CallParams, *mcpdb.Error) {
	var out mcpdb.CallParams
	if isNull(raw) {
		return out, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, nil
	}
	if tool, ok := fields["tool"]; ok {
		_ = json.Unmarshal(tool, &out.Tool)
	}

	args, ok := fields["params"]
	if !ok || isNull(args) {
		out.Params = map[string]interface{}{}
		return out, nil
	}
	if err := json.Unmarshal(args, &out.Params); err != nil {
		return out, mcpdb.InvalidParams("params.params must be an object")
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
