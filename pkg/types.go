package mcpdb

import (
	"encoding/json"
)

// JSONRPCVersion is the only envelope version the server accepts.
const JSONRPCVersion = "2.0"

// Request is an inbound JSON-RPC envelope. ID is kept as raw bytes so it can be
// echoed back exactly as the caller sent it.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response carries exactly one of Result or Error. ID is always written,
// as null when the request had none.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success envelope.
func NewResult(id json.RawMessage, result interface{}) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: echoID(id), Result: result}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: echoID(id), Error: err}
}

func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// CallParams is the params object of a tools/call request.
type CallParams struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

// Result is the normalized outcome of one SQL statement: either a row set or
// a mutation summary, never both.
type Result struct {
	rows         []map[string]interface{}
	affectedRows int64
	rowSet       bool
}

// RowSet wraps rows returned by a statement.
func RowSet(rows []map[string]interface{}) Result {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return Result{rows: rows, rowSet: true}
}

// MutationSummary reports a statement that produced no rows.
func MutationSummary(affected int64) Result {
	return Result{affectedRows: affected}
}

func (r Result) IsRowSet() bool { return r.rowSet }

func (r Result) Rows() []map[string]interface{} { return r.rows }

func (r Result) AffectedRows() int64 { return r.affectedRows }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.rowSet {
		return json.Marshal(struct {
			Rows []map[string]interface{} `json:"rows"`
		}{r.rows})
	}
	return json.Marshal(struct {
		AffectedRows int64 `json:"affectedRows"`
	}{r.affectedRows})
}
