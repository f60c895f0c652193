// Package mcp implements the Model Context Protocol surface: the tool
// registry with schema-driven parameter defaulting and the JSON-RPC 2.0
// dispatcher. Both transports share this package, so the tool contract is
// defined exactly once.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/freshmart/catalog-mcp/internal/models"
)

// Tool names exposed via tools/list. The schemas below are a fixed client
// contract; changing them breaks deployed MCP clients.
const (
	ToolBrowseProducts    = "browse-products"
	ToolGetCategoryCounts = "get-category-counts"
)

// Property describes one JSON-schema property of a tool's input.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// InputSchema is the object schema for a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Tool pairs a name with its description and input schema.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// registry is the process-wide tool table: ordered for tools/list, read-only
// after package initialization.
var registry = []Tool{
	{
		Name:        ToolBrowseProducts,
		Description: "Browse the product catalog with optional category, search, price, and stock filters. Returns matching products sorted by name with category annotations.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"category": {
					Type:        "string",
					Description: "Filter by product category (case-insensitive exact match).",
				},
				"search_term": {
					Type:        "string",
					Description: "Match against product name, description, or product code.",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of products to return (1-100).",
					Default:     20,
				},
				"include_out_of_stock": {
					Type:        "boolean",
					Description: "Include products with no available stock.",
					Default:     true,
				},
				"min_price": {
					Type:        "number",
					Description: "Minimum price, inclusive.",
				},
				"max_price": {
					Type:        "number",
					Description: "Maximum price, inclusive.",
				},
			},
			Required: []string{},
		},
	},
	{
		Name:        ToolGetCategoryCounts,
		Description: "Count active products per category with percentage shares of the whole catalog.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
			Required:   []string{},
		},
	},
}

var registryIndex = func() map[string]Tool {
	idx := make(map[string]Tool, len(registry))
	for _, t := range registry {
		idx[t.Name] = t
	}
	return idx
}()

// ListTools returns the tools in declaration order.
func ListTools() []Tool {
	out := make([]Tool, len(registry))
	copy(out, registry)
	return out
}

// LookupTool returns the named tool. The registry itself never errors; an
// unknown name is the caller's contract violation to surface.
func LookupTool(name string) (Tool, bool) {
	t, ok := registryIndex[name]
	return t, ok
}

// ApplyDefaults returns a copy of args with every schema default injected for
// properties the caller did not supply. Properties absent from both input and
// schema defaults stay absent; handlers tolerate unset optionals.
func ApplyDefaults(schema InputSchema, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for name, prop := range schema.Properties {
		if prop.Default == nil {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = prop.Default
		}
	}
	return out
}

// BrowseProductsArgs is the typed argument set for browse-products.
type BrowseProductsArgs struct {
	Category          string   `json:"category"`
	SearchTerm        string   `json:"search_term"`
	MaxResults        int      `json:"max_results"`
	IncludeOutOfStock bool     `json:"include_out_of_stock"`
	MinPrice          *float64 `json:"min_price"`
	MaxPrice          *float64 `json:"max_price"`
}

// Request converts the arguments into an engine request.
func (a BrowseProductsArgs) Request() models.BrowseRequest {
	return models.BrowseRequest{
		Category:          a.Category,
		SearchTerm:        a.SearchTerm,
		MaxResults:        a.MaxResults,
		IncludeOutOfStock: a.IncludeOutOfStock,
		MinPrice:          a.MinPrice,
		MaxPrice:          a.MaxPrice,
	}
}

// CategoryCountsArgs is the (empty) typed argument set for
// get-category-counts.
type CategoryCountsArgs struct{}

// decodeArgs maps a defaulted argument map onto a typed argument struct via
// a JSON round-trip.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
