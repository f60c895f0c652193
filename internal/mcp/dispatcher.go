package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freshmart/catalog-mcp/internal/models"
	"github.com/freshmart/catalog-mcp/internal/service"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is the JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is the JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ContentItem is one element of a tool-call result's content list.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result payload of tools/call. IsError marks a
// tool-execution failure inside a transport-successful response — the
// second tier of the error model.
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Dispatcher resolves JSON-RPC methods to handlers and formats responses.
// It is stateless across requests and safe for concurrent use.
type Dispatcher struct {
	catalog *service.CatalogService
	info    ServerInfo
}

// NewDispatcher constructs a Dispatcher over the catalog engine.
func NewDispatcher(catalog *service.CatalogService, info ServerInfo) *Dispatcher {
	return &Dispatcher{catalog: catalog, info: info}
}

// HandleRequest parses one raw JSON-RPC request and returns the encoded
// response. It always produces a valid response frame; it never panics past
// this boundary and never crashes the process.
func (d *Dispatcher) HandleRequest(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeResponse(errorResponse(nil, CodeParseError, "Parse error"))
	}
	return encodeResponse(d.Dispatch(ctx, req))
}

// Dispatch resolves the method and invokes its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("method", req.Method).Msg("handler panicked")
			resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, d.initializeResult())
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": ListTools()})
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (d *Dispatcher) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": d.info,
		"instructions": "Product catalog server. Use browse-products to search and filter " +
			"the catalog (category, free-text search, price range, stock) and " +
			"get-category-counts for a per-category breakdown of active products.",
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req Request) Response {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: missing tool name")
	}

	payload, rpcErr := d.ToolPayload(ctx, params.Name, params.Arguments)
	if rpcErr != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	// Tool-execution failures ride inside a successful envelope so clients
	// can render the message without treating it as a protocol fault.
	if failed, msg := payloadError(payload); failed {
		return resultResponse(req.ID, CallResult{
			Content: []ContentItem{{Type: "text", Text: "Error: " + msg}},
			IsError: true,
		})
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "failed to encode result: "+err.Error())
	}
	return resultResponse(req.ID, CallResult{
		Content: []ContentItem{{Type: "text", Text: string(text)}},
	})
}

// ToolPayload performs tool lookup, schema defaulting, typed decoding, and
// handler invocation, returning the raw tool payload. Shared by tools/call
// and the direct REST route so the two surfaces cannot drift.
func (d *Dispatcher) ToolPayload(ctx context.Context, name string, arguments map[string]any) (any, *Error) {
	tool, ok := LookupTool(name)
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: "Tool not found: " + name}
	}

	args := ApplyDefaults(tool.InputSchema, arguments)

	switch name {
	case ToolBrowseProducts:
		var browseArgs BrowseProductsArgs
		if err := decodeArgs(args, &browseArgs); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		return d.catalog.BrowseProducts(ctx, browseArgs.Request()), nil
	case ToolGetCategoryCounts:
		return d.catalog.GetCategoryCounts(ctx), nil
	default:
		// Registered but not dispatched: a wiring bug, not a client error.
		return nil, &Error{Code: CodeInternalError, Message: "no handler for tool: " + name}
	}
}

// payloadError inspects a tool payload for the engine's result-carried error.
func payloadError(payload any) (bool, string) {
	switch p := payload.(type) {
	case models.BrowseResult:
		return p.Status == models.StatusError, p.ErrorMessage
	case models.CategoryCountsResult:
		return p.Status == models.StatusError, p.ErrorMessage
	}
	return false, ""
}

func resultResponse(id any, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id any, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func encodeResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Last resort: keep the protocol framing alive.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
