package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freshmart/catalog-mcp/internal/models"
	"github.com/freshmart/catalog-mcp/internal/repository"
)

// Bounds for max_results. Defaulting (absent → 20) happens at the tool-schema
// layer; the engine only clamps whatever value reaches it.
const (
	minMaxResults = 1
	maxMaxResults = 100
)

// CatalogService is the catalog query engine: it filters, prices, paginates,
// and aggregates products for the MCP tools. It is stateless and safe for
// concurrent use, and it never lets a store failure escape as an error —
// failures come back inside the result with status "error".
type CatalogService struct {
	repo         *repository.CatalogRepository
	storeTimeout time.Duration
}

// NewCatalogService constructs a CatalogService. storeTimeout bounds each
// store round-trip.
func NewCatalogService(repo *repository.CatalogRepository, storeTimeout time.Duration) *CatalogService {
	return &CatalogService{repo: repo, storeTimeout: storeTimeout}
}

// BrowseProducts retrieves candidate products (by category index when a
// category filter is set, otherwise a full scan), applies search, price, and
// stock filters, sorts by name ascending, paginates, and annotates the result
// with category sets.
func (s *CatalogService) BrowseProducts(ctx context.Context, req models.BrowseRequest) models.BrowseResult {
	if req.MaxResults < minMaxResults {
		req.MaxResults = minMaxResults
	}
	if req.MaxResults > maxMaxResults {
		req.MaxResults = maxMaxResults
	}

	meta := models.SearchMetadata{
		Category:          req.Category,
		SearchTerm:        req.SearchTerm,
		MaxResults:        req.MaxResults,
		IncludeOutOfStock: req.IncludeOutOfStock,
		MinPrice:          req.MinPrice,
		MaxPrice:          req.MaxPrice,
	}

	candidates, err := s.candidates(ctx, req.Category)
	if err != nil {
		log.Error().Err(err).Str("category", req.Category).Msg("catalog store lookup failed")
		return browseError(meta, err)
	}

	filtered := make([]models.Product, 0, len(candidates))
	for _, p := range candidates {
		if !matchesSearch(p, req.SearchTerm) {
			continue
		}
		if req.MinPrice != nil && p.Price < *req.MinPrice {
			continue
		}
		if req.MaxPrice != nil && p.Price > *req.MaxPrice {
			continue
		}
		if !req.IncludeOutOfStock && p.Available <= 0 {
			continue
		}
		filtered = append(filtered, p)
	}

	// Byte-wise name ordering keeps results deterministic across platforms.
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })

	totalFound := len(filtered)

	// Categories of the surviving set, taken before truncation so the client
	// sees what matched, not just what fit on the page.
	inResults := distinctCategories(filtered)

	page := filtered
	if len(page) > req.MaxResults {
		page = page[:req.MaxResults]
	}

	available, err := s.availableCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("category listing failed")
		return browseError(meta, err)
	}

	return models.BrowseResult{
		Status:        models.StatusSuccess,
		Products:      page,
		TotalFound:    totalFound,
		ReturnedCount: len(page),
		Categories: models.CategorySummary{
			AvailableCategories: available,
			CategoriesInResults: inResults,
		},
		SearchMetadata: meta,
		Timestamp:      now(),
	}
}

// uncategorizedBucket collects active products whose document carries no
// category, so every counted product belongs to a group and the percentage
// shares close to 100.
const uncategorizedBucket = "Uncategorized"

// GetCategoryCounts groups the active catalog by display category and
// reports per-category counts and percentage shares.
func (s *CatalogService) GetCategoryCounts(ctx context.Context) models.CategoryCountsResult {
	queryCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	products, err := s.repo.ActiveAll(queryCtx)
	if err != nil {
		log.Error().Err(err).Msg("catalog store scan failed")
		return models.CategoryCountsResult{
			Status:       models.StatusError,
			Categories:   []models.CategoryInfo{},
			Timestamp:    now(),
			ErrorMessage: err.Error(),
		}
	}

	counts := map[string]int{}
	for _, p := range products {
		name := p.Category
		if name == "" {
			name = uncategorizedBucket
		}
		counts[name]++
	}

	total := len(products)
	categories := make([]models.CategoryInfo, 0, len(counts))
	for name, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(count)/float64(total)*100*100) / 100
		}
		categories = append(categories, models.CategoryInfo{Name: name, Count: count, Percentage: pct})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	return models.CategoryCountsResult{
		Status:          models.StatusSuccess,
		Categories:      categories,
		TotalProducts:   total,
		TotalCategories: len(categories),
		Timestamp:       now(),
	}
}

// candidates picks the retrieval path: category index when a category filter
// is present, full scan otherwise. Each path runs under the store timeout.
func (s *CatalogService) candidates(ctx context.Context, category string) ([]models.Product, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if category != "" {
		return s.repo.ActiveByCategory(queryCtx, category)
	}
	return s.repo.ActiveAll(queryCtx)
}

func (s *CatalogService) availableCategories(ctx context.Context) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.repo.DistinctActiveCategories(queryCtx)
}

// matchesSearch reports whether the term matches the product's name,
// description, or product code, case-insensitively. An empty term matches
// everything.
func matchesSearch(p models.Product, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.ProductCode), needle)
}

func distinctCategories(products []models.Product) []string {
	seen := map[string]bool{}
	for _, p := range products {
		if p.Category != "" {
			seen[p.Category] = true
		}
	}
	categories := make([]string, 0, len(seen))
	for cat := range seen {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	return categories
}

func browseError(meta models.SearchMetadata, err error) models.BrowseResult {
	return models.BrowseResult{
		Status:   models.StatusError,
		Products: []models.Product{},
		Categories: models.CategorySummary{
			AvailableCategories: []string{},
			CategoriesInResults: []string{},
		},
		SearchMetadata: meta,
		Timestamp:      now(),
		ErrorMessage:   err.Error(),
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
