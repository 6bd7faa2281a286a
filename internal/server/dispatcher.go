package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	"github.com/aqaranewbiz/mysql-server/internal/logger"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Router resolves and runs tools. *tools.Registry implements it.
type Router interface {
	Listing() json.RawMessage
	Names() []string
	Has(name string) bool
	Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Prober checks database reachability for initialize.
type Prober interface {
	Ping(ctx context.Context, spec client.ConnectionSpec) error
}

type Options struct {
	Info              *mcp.Implementation
	Ambient           client.ConnectionSpec
	ProbeOnInitialize bool
}

// Dispatcher turns one inbound frame into exactly one response frame. It
// holds no per-connection state and is safe for concurrent use.
type Dispatcher struct {
	router Router
	prober Prober
	opts   Options
}

func NewDispatcher(router Router, prober Prober, opts Options) *Dispatcher {
	if opts.Info == nil {
		opts.Info = &mcp.Implementation{Name: "mysql-mcp-server", Version: "dev"}
	}
	return &Dispatcher{router: router, prober: prober, opts: opts}
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	ServerInfo      *mcp.Implementation    `json:"serverInfo"`
	Status          string                 `json:"status"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	Database        *databaseStatus        `json:"database,omitempty"`
}

type databaseStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Status is what the HTTP transport reports on /status.
type Status struct {
	Status  string   `json:"status"`
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Tools   []string `json:"tools"`
}

func (d *Dispatcher) Status() Status {
	return Status{
		Status:  "running",
		Name:    d.opts.Info.Name,
		Version: d.opts.Info.Version,
		Tools:   d.router.Names(),
	}
}

func (d *Dispatcher) HandleString(ctx context.Context, msg string) string {
	return string(d.Handle(ctx, []byte(msg)))
}

// Handle processes one frame. It never returns nil and never panics.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (out []byte) {
	requestID := uuid.NewString()
	var req mcpdb.Request

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			logger.Error("Recovered from panic in dispatcher", err, map[string]interface{}{
				"request_id": requestID,
				"method":     req.Method,
			})
			out = encode(mcpdb.NewErrorResponse(req.ID, mcpdb.InternalError(err.Error())))
		}
	}()

	req, envErr := parseEnvelope(raw)
	if envErr != nil {
		logger.Warn("Rejected message", map[string]interface{}{
			"request_id": requestID,
			"error":      envErr.Message,
		})
		return encode(mcpdb.NewErrorResponse(req.ID, envErr))
	}

	logger.Debug(fmt.Sprintf("Dispatching %s", req.Method), map[string]interface{}{
		"request_id": requestID,
	})

	result, err := d.dispatch(ctx, requestID, req)
	if err != nil {
		return encode(mcpdb.NewErrorResponse(req.ID, mcpdb.AsError(err)))
	}
	return encode(mcpdb.NewResult(req.ID, result))
}

func (d *Dispatcher) dispatch(ctx context.Context, requestID string, req mcpdb.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return d.initialize(ctx), nil
	case "tools/list":
		return d.router.Listing(), nil
	case "tools/call":
		return d.callTool(ctx, requestID, req.Params)
	case "ping":
		return struct{}{}, nil
	default:
		return nil, mcpdb.MethodNotFound(req.Method)
	}
}

func (d *Dispatcher) initialize(ctx context.Context) initializeResult {
	res := initializeResult{
		ProtocolVersion: mcpdb.JSONRPCVersion,
		ServerInfo:      d.opts.Info,
		Status:          "ready",
		Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
	}
	if !d.opts.ProbeOnInitialize || d.prober == nil || d.opts.Ambient == nil {
		return res
	}

	res.Database = &databaseStatus{Connected: true}
	if err := d.prober.Ping(ctx, d.opts.Ambient); err != nil {
		res.Database = &databaseStatus{Connected: false, Error: mcpdb.AsError(err).Message}
		logger.Warn("Database probe failed during initialize", map[string]interface{}{
			"target": d.opts.Ambient.String(),
			"error":  err.Error(),
		})
	}
	return res
}

func (d *Dispatcher) callTool(ctx context.Context, requestID string, raw json.RawMessage) (interface{}, error) {
	params, paramsErr := callParams(raw)
	if !d.router.Has(params.Tool) {
		name := params.Tool
		if name == "" {
			name = "(none)"
		}
		return nil, mcpdb.ToolNotFound(name)
	}
	if paramsErr != nil {
		return nil, paramsErr
	}

	start := time.Now()
	result, err := d.router.Call(ctx, params.Tool, params.Params)
	logger.LogToolCall(params.Tool, requestID, time.Since(start), err)
	return result, err
}

// encode never fails: a result that cannot be serialized is replaced by an
// InternalError response with the same id.
func encode(resp mcpdb.Response) []byte {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}
	logger.Error("Failed to encode response", err)
	fallback, _ := json.Marshal(mcpdb.NewErrorResponse(resp.ID, mcpdb.InternalError(err.Error())))
	return fallback
}
