package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freshmart/catalog-mcp/internal/mcp"
	"github.com/freshmart/catalog-mcp/internal/store"
)

var startTime = time.Now()

// MCPHandler exposes the MCP surface over HTTP: REST-style tool routes for
// broad client compatibility plus JSON-RPC-shaped endpoints, all backed by
// the same dispatcher so the two surfaces cannot drift.
type MCPHandler struct {
	dispatcher *mcp.Dispatcher
	store      store.Store
	info       mcp.ServerInfo
}

// NewMCPHandler constructs an MCPHandler.
func NewMCPHandler(dispatcher *mcp.Dispatcher, st store.Store, info mcp.ServerInfo) *MCPHandler {
	return &MCPHandler{dispatcher: dispatcher, store: st, info: info}
}

// GetRoot describes the server and its endpoints.
func (h *MCPHandler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":            h.info.Name,
		"version":         h.info.Version,
		"protocolVersion": mcp.ProtocolVersion,
		"endpoints": gin.H{
			"health":       "GET /health",
			"tools":        "GET /tools",
			"callTool":     "POST /tools/{name}",
			"rpcUnified":   "POST /mcp/request",
			"initialize":   "POST /mcp/server/initialize",
			"toolsList":    "POST /mcp/tools/list",
			"toolsCall":    "POST /mcp/tools/call",
			"notification": "POST /mcp/notification",
		},
	})
}

// GetHealth reports service and store status.
func (h *MCPHandler) GetHealth(c *gin.Context) {
	storeStatus := "connected"
	httpStatus := http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		storeStatus = "disconnected"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":  "healthy",
		"uptime":  int(time.Since(startTime).Seconds()),
		"store":   storeStatus,
		"version": h.info.Version,
	})
}

// ListTools returns the tool registry listing.
func (h *MCPHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": mcp.ListTools()})
}

// CallTool is the direct REST variant: a flat JSON body of tool arguments,
// default injection, and the bare payload back (no JSON-RPC envelope).
func (h *MCPHandler) CallTool(c *gin.Context) {
	name := c.Param("name")

	// Always attempt the bind so chunked bodies (unknown ContentLength) are
	// decoded too; an empty body reads as io.EOF and means no arguments.
	args := map[string]any{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	payload, rpcErr := h.dispatcher.ToolPayload(c.Request.Context(), name, args)
	if rpcErr != nil {
		c.JSON(restStatus(rpcErr.Code), gin.H{"error": rpcErr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":    payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RPCRequest is the unified JSON-RPC endpoint dispatching on the request's
// own method field.
func (h *MCPHandler) RPCRequest(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	c.Data(http.StatusOK, "application/json", h.dispatcher.HandleRequest(c.Request.Context(), raw))
}

// RPCInitialize handles POST /mcp/server/initialize.
func (h *MCPHandler) RPCInitialize(c *gin.Context) {
	h.pinnedMethod(c, "initialize")
}

// RPCToolsList handles POST /mcp/tools/list.
func (h *MCPHandler) RPCToolsList(c *gin.Context) {
	h.pinnedMethod(c, "tools/list")
}

// RPCToolsCall handles POST /mcp/tools/call.
func (h *MCPHandler) RPCToolsCall(c *gin.Context) {
	h.pinnedMethod(c, "tools/call")
}

// pinnedMethod decodes a JSON-RPC-shaped body and dispatches it with the
// method fixed by the route, so clients that route by URL instead of method
// field get identical semantics.
func (h *MCPHandler) pinnedMethod(c *gin.Context, method string) {
	var req mcp.Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusOK, mcp.Response{
			JSONRPC: "2.0",
			Error:   &mcp.Error{Code: mcp.CodeParseError, Message: "Parse error"},
		})
		return
	}
	req.JSONRPC = "2.0"
	req.Method = method
	c.JSON(http.StatusOK, h.dispatcher.Dispatch(c.Request.Context(), req))
}

// RPCNotification accepts fire-and-forget notifications: the request is
// dispatched but no response body is produced.
func (h *MCPHandler) RPCNotification(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	_ = h.dispatcher.HandleRequest(c.Request.Context(), raw)
	c.Status(http.StatusOK)
}

// restStatus maps JSON-RPC error codes onto HTTP statuses for the REST
// surface.
func restStatus(code int) int {
	switch code {
	case mcp.CodeMethodNotFound:
		return http.StatusNotFound
	case mcp.CodeInvalidParams, mcp.CodeParseError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
