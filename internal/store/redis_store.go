package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshmart/catalog-mcp/internal/config"
)

// Redis key scheme:
//
//	catalog:product:<id>       product document as a JSON string
//	catalog:products           set of all product IDs
//	catalog:category:<lower>   set of product IDs per lower-cased category
const (
	productKeyPrefix  = "catalog:product:"
	productIndexKey   = "catalog:products"
	categoryKeyPrefix = "catalog:category:"
)

// RedisStore implements Store on top of Redis, holding each product as a
// JSON document plus set-based indexes for scan and category lookup.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from config and verifies connectivity.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func productKey(id string) string {
	return productKeyPrefix + id
}

func categoryKey(category string) string {
	return categoryKeyPrefix + strings.ToLower(strings.TrimSpace(category))
}

// QueryByCategory resolves the category index set, then bulk-fetches the
// member documents.
func (s *RedisStore) QueryByCategory(ctx context.Context, category string) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, categoryKey(category)).Result()
	if err != nil {
		return nil, fmt.Errorf("category index lookup failed: %w", err)
	}
	return s.fetch(ctx, ids)
}

// ScanAll resolves the full ID index set, then bulk-fetches every document.
func (s *RedisStore) ScanAll(ctx context.Context) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, productIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("product index lookup failed: %w", err)
	}
	return s.fetch(ctx, ids)
}

// fetch MGETs the documents for the given IDs and decodes them. IDs whose
// document has expired or been removed are skipped; the indexes are repaired
// lazily by the seed tooling, not here.
func (s *RedisStore) fetch(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("product fetch failed: %w", err)
	}

	docs := make([]Document, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("corrupt product document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Put stores the document and maintains both index sets.
func (s *RedisStore) Put(ctx context.Context, doc Document) error {
	id := doc.ID()
	if id == "" {
		return errors.New("document has no productId")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, productKey(id), string(raw), 0)
	pipe.SAdd(ctx, productIndexKey, id)
	if cat := doc.Category(); cat != "" {
		pipe.SAdd(ctx, categoryKey(cat), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store document %s: %w", id, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
