package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// CatalogCache implements domain.CatalogCache using one Redis string per
// catalog partition, so a restarted process can serve targeted scans before
// its first live refresh.
//
// Key schema:
//
//	catalog:{partition} - JSON array of markets
type CatalogCache struct {
	rdb *redis.Client
}

// NewCatalogCache creates a CatalogCache backed by the given Client.
func NewCatalogCache(c *Client) *CatalogCache {
	return &CatalogCache{rdb: c.rdb}
}

func catalogKey(partition string) string { return "catalog:" + partition }

// SaveMarkets stores the partition's market list. Snapshots have no TTL;
// stale markets are preferable to none when every upstream is down.
func (cc *CatalogCache) SaveMarkets(ctx context.Context, key string, markets []domain.Market) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal catalog %s: %w", key, err)
	}
	if err := cc.rdb.Set(ctx, catalogKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save catalog %s: %w", key, err)
	}
	return nil
}

// LoadMarkets retrieves the partition's snapshot. A missing key returns
// domain.ErrNotFound.
func (cc *CatalogCache) LoadMarkets(ctx context.Context, key string) ([]domain.Market, error) {
	data, err := cc.rdb.Get(ctx, catalogKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: load catalog %s: %w", key, err)
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal catalog %s: %w", key, err)
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.CatalogCache = (*CatalogCache)(nil)
