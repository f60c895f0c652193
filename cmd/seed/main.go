// Command seed loads a demo catalog into the configured document store so
// the MCP server can be exercised end-to-end without a production data feed.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freshmart/catalog-mcp/internal/config"
	"github.com/freshmart/catalog-mcp/internal/database"
	"github.com/freshmart/catalog-mcp/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	st, err := newStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("store connection failed")
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs := demoCatalog()
	for _, doc := range docs {
		if err := st.Put(ctx, doc); err != nil {
			log.Error().Err(err).Str("name", fmt.Sprint(doc["name"])).Msg("seed write failed")
			os.Exit(1)
		}
	}

	log.Info().Int("products", len(docs)).Str("backend", cfg.StoreBackend).Msg("demo catalog seeded")
}

// newStore opens the configured backend. The postgres path expects the
// server to have run its migrations at least once.
func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == config.StoreBackendPostgres {
		db, err := database.Connect(&cfg.DB)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	}
	return store.NewRedisStore(&cfg.Redis)
}

// product builds one raw catalog document in the store's row format.
func product(name, category, code, description, unit string, price float64, maxStock int, extra map[string]any) store.Document {
	doc := store.Document{
		"productId":   uuid.New().String(),
		"productCode": code,
		"name":        name,
		"description": description,
		"category":    category,
		"unit":        unit,
		"status":      "active",
		"isActive":    true,
		"pricing": map[string]any{
			"sellingPrice": price,
		},
		"inventory": map[string]any{
			"trackInventory": true,
			"minStock":       float64(5),
			"maxStock":       float64(maxStock),
		},
		"hasVariants":    false,
		"variants":       []any{},
		"attributes":     map[string]any{"organic": false, "brand": ""},
		"perishable":     false,
		"isB2cAvailable": true,
	}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

func demoCatalog() []store.Document {
	return []store.Document{
		product("Apple", "fruits", "FRT-001", "Crisp red apples from local orchards", "kg", 150.5, 120, map[string]any{
			"perishable":    true,
			"shelfLifeDays": float64(14),
			"qualityGrade":  "A",
			"attributes":    map[string]any{"organic": true, "brand": "Orchard Fresh"},
		}),
		product("Banana", "fruits", "FRT-002", "Sweet ripe bananas", "kg", 80, 200, map[string]any{
			"perishable":    true,
			"shelfLifeDays": float64(7),
		}),
		product("Mango", "fruits", "FRT-003", "Seasonal alphonso mangoes", "kg", 200, 80, map[string]any{
			"perishable":    true,
			"shelfLifeDays": float64(10),
			"qualityGrade":  "A",
		}),
		product("Spinach", "vegetables", "VEG-001", "Fresh leafy spinach bunches", "bunch", 35, 60, map[string]any{
			"perishable":    true,
			"shelfLifeDays": float64(4),
			"attributes":    map[string]any{"organic": true, "brand": ""},
		}),
		product("Potato", "vegetables", "VEG-002", "All-purpose potatoes", "kg", 45, 500, nil),
		product("Milk", "dairy", "DRY-001", "Full-cream pasteurized milk", "liter", 0, 150, map[string]any{
			"perishable":    true,
			"shelfLifeDays": float64(5),
			"hasVariants":   true,
			"variants": []any{
				map[string]any{
					"variantId":      uuid.New().String(),
					"name":           "Milk 500ml",
					"attributes":     map[string]any{"size": "500ml"},
					"pricing":        map[string]any{"sellingPrice": float64(30)},
					"stockAvailable": float64(80),
				},
				map[string]any{
					"variantId":      uuid.New().String(),
					"name":           "Milk 1L",
					"attributes":     map[string]any{"size": "1L"},
					"pricing":        map[string]any{"sellingPrice": float64(55)},
					"stockAvailable": float64(70),
				},
			},
		}),
		product("Cheddar Cheese", "dairy", "DRY-002", "Aged cheddar block", "piece", 320, 40, map[string]any{
			"attributes": map[string]any{"organic": false, "brand": "Hillside Dairy"},
		}),
		// Discontinued item: present in the store, excluded from every result.
		product("Guava", "fruits", "FRT-099", "Out-of-season guavas", "kg", 90, 0, map[string]any{
			"status":   "discontinued",
			"isActive": false,
		}),
	}
}
