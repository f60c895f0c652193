package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshmart/catalog-mcp/internal/mcp"
	"github.com/freshmart/catalog-mcp/internal/models"
	"github.com/freshmart/catalog-mcp/internal/repository"
	"github.com/freshmart/catalog-mcp/internal/service"
	"github.com/freshmart/catalog-mcp/internal/store"
)

type fakeStore struct {
	docs []store.Document
	err  error
}

func (f *fakeStore) QueryByCategory(_ context.Context, category string) ([]store.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Document
	for _, doc := range f.docs {
		if strings.EqualFold(doc.Category(), category) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) ScanAll(context.Context) ([]store.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeStore) Put(_ context.Context, doc store.Document) error {
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return f.err }
func (f *fakeStore) Close() error               { return nil }

func catalogDoc(name, category string, price float64) store.Document {
	return store.Document{
		"productId":   "id-" + name,
		"productCode": "CODE-" + name,
		"name":        name,
		"description": name + " description",
		"category":    category,
		"unit":        "kg",
		"status":      "active",
		"isActive":    true,
		"pricing":     map[string]any{"sellingPrice": price},
		"inventory":   map[string]any{"trackInventory": true, "maxStock": float64(100)},
		"hasVariants": false,
		"variants":    []any{},
	}
}

func newTestRouter(fs *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewCatalogService(repository.NewCatalogRepository(fs), 2*time.Second)
	info := mcp.ServerInfo{Name: "catalog-test", Version: "0.0.1"}
	h := NewMCPHandler(mcp.NewDispatcher(svc, info), fs, info)

	router := gin.New()
	router.GET("/", h.GetRoot)
	router.GET("/health", h.GetHealth)
	router.GET("/tools", h.ListTools)
	router.POST("/tools/:name", h.CallTool)
	router.POST("/mcp/server/initialize", h.RPCInitialize)
	router.POST("/mcp/tools/list", h.RPCToolsList)
	router.POST("/mcp/tools/call", h.RPCToolsCall)
	router.POST("/mcp/request", h.RPCRequest)
	router.POST("/mcp/notification", h.RPCNotification)
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetHealth(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["store"])
}

func TestGetHealthStoreDown(t *testing.T) {
	router := newTestRouter(&fakeStore{err: errors.New("down")})

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListToolsRoute(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	w := do(router, http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tools []mcp.Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tools, 2)
	assert.Equal(t, "browse-products", body.Tools[0].Name)
}

func TestCallToolDirect(t *testing.T) {
	router := newTestRouter(&fakeStore{docs: []store.Document{
		catalogDoc("Apple", "fruits", 150.5),
		catalogDoc("Potato", "vegetables", 45),
	}})

	w := do(router, http.MethodPost, "/tools/browse-products", `{"category":"fruits"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Flat surface: bare payload plus timestamp, no JSON-RPC envelope.
	var body struct {
		Result    models.BrowseResult `json:"result"`
		Timestamp string              `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Timestamp)
	assert.Equal(t, models.StatusSuccess, body.Result.Status)
	require.Equal(t, 1, body.Result.ReturnedCount)
	assert.Equal(t, "Apple", body.Result.Products[0].Name)
	// Default injection applies on this surface too.
	assert.Equal(t, 20, body.Result.SearchMetadata.MaxResults)
}

func TestCallToolDirectChunkedBody(t *testing.T) {
	router := newTestRouter(&fakeStore{docs: []store.Document{
		catalogDoc("Apple", "fruits", 150.5),
		catalogDoc("Potato", "vegetables", 45),
	}})

	// A plain io.Reader body leaves ContentLength at -1, as a chunked
	// request would; the arguments must still be decoded.
	body := struct{ io.Reader }{strings.NewReader(`{"category":"fruits"}`)}
	req := httptest.NewRequest(http.MethodPost, "/tools/browse-products", body)
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result models.BrowseResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Result.ReturnedCount)
	assert.Equal(t, "Apple", resp.Result.Products[0].Name)
}

func TestCallToolDirectEmptyBody(t *testing.T) {
	router := newTestRouter(&fakeStore{docs: []store.Document{
		catalogDoc("Apple", "fruits", 150.5),
	}})

	w := do(router, http.MethodPost, "/tools/get-category-counts", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Result models.CategoryCountsResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Result.TotalProducts)
}

func TestCallToolUnknown(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	w := do(router, http.MethodPost, "/tools/nonexistent-tool", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRPCRequestUnified(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	w := do(router, http.MethodPost, "/mcp/request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      any             `json:"id"`
		Result  json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func TestRPCPinnedMethodEndpoints(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	// The route pins the method regardless of the body's method field.
	w := do(router, http.MethodPost, "/mcp/tools/list", `{"jsonrpc":"2.0","id":2,"method":"something-else"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result struct {
			Tools []mcp.Tool `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Result.Tools, 2)

	w = do(router, http.MethodPost, "/mcp/server/initialize", `{"jsonrpc":"2.0","id":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "protocolVersion")
}

func TestRPCToolsCallEndpoint(t *testing.T) {
	router := newTestRouter(&fakeStore{docs: []store.Document{
		catalogDoc("Apple", "fruits", 150.5),
	}})

	w := do(router, http.MethodPost, "/mcp/tools/call",
		`{"jsonrpc":"2.0","id":4,"params":{"name":"browse-products","arguments":{}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result mcp.CallResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Content, 1)
	assert.False(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "Apple")
}

func TestRPCNotification(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	w := do(router, http.MethodPost, "/mcp/notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
