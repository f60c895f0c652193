package models

// Stock status values derived from availability.
const (
	StockStatusIn  = "In Stock"
	StockStatusOut = "Out of Stock"
)

// ProductVariant is one sellable variation of a product.
type ProductVariant struct {
	VariantID      string            `json:"variant_id"`
	Name           string            `json:"name"`
	Attributes     map[string]string `json:"attributes"`
	Price          float64           `json:"price"`
	StockAvailable int               `json:"stock_available"`
}

// Product is the normalized catalog read-model built fresh per request from
// a raw store document. Nothing here persists beyond a single call.
type Product struct {
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"` // title-cased for display
	Unit        string `json:"unit"`

	Price float64 `json:"price"`

	Available      int    `json:"available"`
	Status         string `json:"status"` // "In Stock" | "Out of Stock"
	TrackInventory bool   `json:"track_inventory"`

	HasVariants bool             `json:"has_variants"`
	Variants    []ProductVariant `json:"variants"`

	Perishable    bool   `json:"perishable"`
	ShelfLifeDays *int   `json:"shelf_life_days,omitempty"`
	QualityGrade  string `json:"quality_grade,omitempty"`
	Organic       bool   `json:"organic"`
	Brand         string `json:"brand,omitempty"`

	IsActive     bool `json:"is_active"`
	B2CAvailable bool `json:"b2c_available"`
}
