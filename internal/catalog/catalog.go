// Package catalog maintains the freshest known list of lending markets per
// protocol. Lists are replaced wholesale on refresh; a failed or empty fetch
// never clears a previously good cache.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// MarketSource fetches the full market list for one catalog partition. The
// Kamino catalog is a single partition; the Aave catalog has one partition
// per network so a fetch failure on one chain never blocks the others.
type MarketSource interface {
	// Key identifies the partition, e.g. "kamino" or "aave:Ethereum".
	Key() string
	// Fetch returns the complete market list from the canonical source.
	Fetch(ctx context.Context) ([]domain.Market, error)
}

// KaminoKey is the partition key of the Kamino market list.
const KaminoKey = "kamino"

// AaveKey returns the partition key for one Aave network.
func AaveKey(network string) string {
	return "aave:" + network
}

// Catalog owns the cached market lists. Reads and the replace-on-write
// refresh are safe to interleave from concurrent goroutines.
type Catalog struct {
	sources map[string]MarketSource
	order   []string

	mu     sync.RWMutex
	lists  map[string][]domain.Market
	snap   domain.CatalogCache
	logger *slog.Logger
}

// New creates a Catalog over the given sources. snap may be nil; when set,
// successful refreshes are mirrored to it and WarmStart can restore them.
func New(sources []MarketSource, snap domain.CatalogCache, logger *slog.Logger) *Catalog {
	byKey := make(map[string]MarketSource, len(sources))
	order := make([]string, 0, len(sources))
	for _, s := range sources {
		byKey[s.Key()] = s
		order = append(order, s.Key())
	}
	return &Catalog{
		sources: byKey,
		order:   order,
		lists:   make(map[string][]domain.Market),
		snap:    snap,
		logger:  logger.With(slog.String("component", "catalog")),
	}
}

// Keys returns the partition keys in registration order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// WarmStart restores previously persisted snapshots so targeted scans can run
// before the first live refresh. Missing or failed snapshots are skipped.
func (c *Catalog) WarmStart(ctx context.Context) {
	if c.snap == nil {
		return
	}
	for _, key := range c.order {
		markets, err := c.snap.LoadMarkets(ctx, key)
		if err != nil || len(markets) == 0 {
			continue
		}
		c.mu.Lock()
		c.lists[key] = markets
		c.mu.Unlock()
		c.logger.Info("restored catalog snapshot",
			slog.String("key", key),
			slog.Int("markets", len(markets)),
		)
	}
}

// Refresh fetches the full market list for one partition and atomically
// replaces the cached copy. Failures and empty responses leave the existing
// cache untouched and are non-fatal to the caller.
func (c *Catalog) Refresh(ctx context.Context, key string) error {
	src, ok := c.sources[key]
	if !ok {
		return fmt.Errorf("catalog: unknown partition %q", key)
	}

	markets, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("catalog: refresh %s: %w", key, err)
	}
	if len(markets) == 0 {
		// An empty fetch never clears a previously good cache.
		c.logger.Warn("catalog refresh returned no markets, keeping stale list",
			slog.String("key", key),
		)
		return nil
	}

	c.mu.Lock()
	c.lists[key] = markets
	c.mu.Unlock()

	if c.snap != nil {
		if err := c.snap.SaveMarkets(ctx, key, markets); err != nil {
			c.logger.Warn("catalog snapshot save failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("catalog refreshed",
		slog.String("key", key),
		slog.Int("markets", len(markets)),
	)
	return nil
}

// RefreshAll refreshes every partition independently. One partition's
// failure is logged and does not block the rest.
func (c *Catalog) RefreshAll(ctx context.Context) {
	for _, key := range c.order {
		if ctx.Err() != nil {
			return
		}
		if err := c.Refresh(ctx, key); err != nil {
			c.logger.Warn("catalog refresh failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Get returns the cached list for a partition without fetching. The returned
// slice must be treated as read-only.
func (c *Catalog) Get(key string) []domain.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[key]
}

// GetOrFetch returns the cached list, falling back to one synchronous fetch
// when the cache is empty. "Markets not loaded" is recoverable by fetching
// once, not an immediate failure bubbled to the user.
func (c *Catalog) GetOrFetch(ctx context.Context, key string) ([]domain.Market, error) {
	if markets := c.Get(key); len(markets) > 0 {
		return markets, nil
	}
	if err := c.Refresh(ctx, key); err != nil {
		return nil, err
	}
	markets := c.Get(key)
	if len(markets) == 0 {
		return nil, domain.ErrNoMarkets
	}
	return markets, nil
}

// Loop refreshes all partitions immediately and then on every tick until the
// context is cancelled. It runs on its own timer, decoupled from the user
// sweep, so catalog staleness and notification cadence can be tuned
// independently.
func (c *Catalog) Loop(ctx context.Context, interval time.Duration) error {
	c.RefreshAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("catalog refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.RefreshAll(ctx)
		}
	}
}
