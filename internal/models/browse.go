package models

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BrowseRequest holds the query parameters for a catalog browse. Zero-valued
// optionals mean "unset"; MaxResults and IncludeOutOfStock are expected to
// arrive already defaulted by the tool schema (20 and true respectively).
type BrowseRequest struct {
	Category          string
	SearchTerm        string
	MaxResults        int
	IncludeOutOfStock bool
	MinPrice          *float64
	MaxPrice          *float64
}

// SearchMetadata echoes the filters that were applied to produce a result.
type SearchMetadata struct {
	Category          string   `json:"category,omitempty"`
	SearchTerm        string   `json:"search_term,omitempty"`
	MaxResults        int      `json:"max_results"`
	IncludeOutOfStock bool     `json:"include_out_of_stock"`
	MinPrice          *float64 `json:"min_price,omitempty"`
	MaxPrice          *float64 `json:"max_price,omitempty"`
}

// CategorySummary carries the category sets attached to a browse result.
type CategorySummary struct {
	// AvailableCategories is every category present on active products,
	// regardless of the current filters.
	AvailableCategories []string `json:"available_categories"`
	// CategoriesInResults is the distinct categories of the products that
	// survived filtering, computed before pagination truncation.
	CategoriesInResults []string `json:"categories_in_results"`
}

// BrowseResult is the outcome of one browse_products call.
type BrowseResult struct {
	Status         string          `json:"status"`
	Products       []Product       `json:"products"`
	TotalFound     int             `json:"total_found"`
	ReturnedCount  int             `json:"returned_count"`
	Categories     CategorySummary `json:"categories"`
	SearchMetadata SearchMetadata  `json:"search_metadata"`
	Timestamp      string          `json:"timestamp"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// CategoryInfo is one category's share of the active catalog.
type CategoryInfo struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // 0–100, two decimals
}

// CategoryCountsResult is the outcome of one get_category_counts call.
type CategoryCountsResult struct {
	Status          string         `json:"status"`
	Categories      []CategoryInfo `json:"categories"`
	TotalProducts   int            `json:"total_products"`
	TotalCategories int            `json:"total_categories"`
	Timestamp       string         `json:"timestamp"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}
