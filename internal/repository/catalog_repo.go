package repository

import (
	"context"
	"math"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/freshmart/catalog-mcp/internal/models"
	"github.com/freshmart/catalog-mcp/internal/store"
)

// CatalogRepository adapts raw store documents into normalized Product
// read-models. It performs field extraction and defaulting only; filtering
// beyond the activity gate and all query semantics live in the service layer.
type CatalogRepository struct {
	store store.Store
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(s store.Store) *CatalogRepository {
	return &CatalogRepository{store: s}
}

// ActiveByCategory returns normalized products for a category
// (case-insensitive exact match), limited to available ones.
func (r *CatalogRepository) ActiveByCategory(ctx context.Context, category string) ([]models.Product, error) {
	docs, err := r.store.QueryByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return normalizeActive(docs), nil
}

// ActiveAll returns every available product, normalized.
func (r *CatalogRepository) ActiveAll(ctx context.Context) ([]models.Product, error) {
	docs, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeActive(docs), nil
}

// DistinctActiveCategories returns the sorted distinct display categories of
// all available products.
func (r *CatalogRepository) DistinctActiveCategories(ctx context.Context) ([]string, error) {
	docs, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, doc := range docs {
		if !isAvailable(doc) {
			continue
		}
		if cat := titleCase(docString(doc, "category")); cat != "" {
			seen[cat] = true
		}
	}

	categories := make([]string, 0, len(seen))
	for cat := range seen {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	return categories, nil
}

// isAvailable reports whether a document passes the activity gate: lifecycle
// status "active" AND the isActive flag set. Both are independently required;
// a document missing either is excluded.
func isAvailable(doc store.Document) bool {
	return docString(doc, "status") == "active" && docBool(doc, "isActive")
}

func normalizeActive(docs []store.Document) []models.Product {
	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		if !isAvailable(doc) {
			continue
		}
		products = append(products, normalize(doc))
	}
	return products
}

// normalize maps one raw document onto the Product read-model, applying the
// derived-field rules:
//
//   - price: product-level selling price, falling back to the first variant's
//     selling price when the product-level one is absent or zero and variants
//     exist; otherwise 0.
//   - available: the "70%-of-max simulation" — when inventory is tracked and a
//     max-stock figure exists, floor(0.70 × maxStock); otherwise 0. This is a
//     stand-in for a live inventory feed, not a bug.
func normalize(doc store.Document) models.Product {
	pricing := docMap(doc, "pricing")
	inventory := docMap(doc, "inventory")
	attributes := docMap(doc, "attributes")

	variants := parseVariants(doc["variants"])
	hasVariants := docBool(doc, "hasVariants")
	if !hasVariants {
		// Invariant: products without variants carry an empty variant list.
		variants = []models.ProductVariant{}
	}

	price := mapFloat(pricing, "sellingPrice")
	if price <= 0 && hasVariants && len(variants) > 0 {
		price = variants[0].Price
	}
	if price < 0 {
		price = 0
	}

	trackInventory := mapBool(inventory, "trackInventory")
	available := 0
	if maxStock := mapFloat(inventory, "maxStock"); trackInventory && maxStock > 0 {
		available = int(math.Floor(0.70 * maxStock))
	}

	status := models.StockStatusOut
	if available > 0 {
		status = models.StockStatusIn
	}

	p := models.Product{
		ProductID:      docString(doc, "productId"),
		ProductCode:    docString(doc, "productCode"),
		Name:           docString(doc, "name"),
		Description:    docString(doc, "description"),
		Category:       titleCase(docString(doc, "category")),
		Unit:           docString(doc, "unit"),
		Price:          price,
		Available:      available,
		Status:         status,
		TrackInventory: trackInventory,
		HasVariants:    hasVariants,
		Variants:       variants,
		Perishable:     docBool(doc, "perishable"),
		QualityGrade:   docString(doc, "qualityGrade"),
		Organic:        mapBool(attributes, "organic"),
		Brand:          mapString(attributes, "brand"),
		IsActive:       docBool(doc, "isActive"),
		B2CAvailable:   docBool(doc, "isB2cAvailable"),
	}

	if v, ok := doc["shelfLifeDays"].(float64); ok {
		days := int(v)
		p.ShelfLifeDays = &days
	}

	return p
}

func parseVariants(raw any) []models.ProductVariant {
	items, ok := raw.([]any)
	if !ok {
		return []models.ProductVariant{}
	}

	variants := make([]models.ProductVariant, 0, len(items))
	for _, item := range items {
		vm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		v := models.ProductVariant{
			VariantID:      mapString(vm, "variantId"),
			Name:           mapString(vm, "name"),
			Attributes:     map[string]string{},
			Price:          mapFloat(mapMap(vm, "pricing"), "sellingPrice"),
			StockAvailable: int(mapFloat(vm, "stockAvailable")),
		}
		for key, val := range mapMap(vm, "attributes") {
			if s, ok := val.(string); ok {
				v.Attributes[key] = s
			}
		}
		variants = append(variants, v)
	}
	return variants
}

// titleCase renders a free-text category for display with a fixed,
// locale-independent caser so ordering and grouping stay deterministic.
func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

// Document field helpers. JSON-decoded documents carry numbers as float64.

func docString(doc store.Document, key string) string {
	v, _ := doc[key].(string)
	return v
}

func docBool(doc store.Document, key string) bool {
	v, _ := doc[key].(bool)
	return v
}

func docMap(doc store.Document, key string) map[string]any {
	v, _ := doc[key].(map[string]any)
	return v
}

func mapString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func mapBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func mapFloat(m map[string]any, key string) float64 {
	v, _ := m[key].(float64)
	return v
}

func mapMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}
