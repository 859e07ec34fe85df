package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// DebouncePolicy implements domain.NotifyPolicy with a Redis SETNX marker:
// the first alert for a (chat, wallet) pair within the TTL window is allowed,
// repeats are suppressed until the marker expires.
//
// Key schema:
//
//	alert:{chatID}:{address} - marker with TTL
type DebouncePolicy struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDebouncePolicy creates a debounce policy with the given suppression
// window.
func NewDebouncePolicy(c *Client, ttl time.Duration) *DebouncePolicy {
	return &DebouncePolicy{rdb: c.rdb, ttl: ttl}
}

func alertKey(chatID int64, address string) string {
	return fmt.Sprintf("alert:%d:%s", chatID, address)
}

// Allow reports whether an alert may be sent now. The marker is set in the
// same round trip, so concurrent sweeps cannot both pass.
func (p *DebouncePolicy) Allow(ctx context.Context, chatID int64, address string) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, alertKey(chatID, address), 1, p.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: debounce check %d/%s: %w", chatID, address, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.NotifyPolicy = (*DebouncePolicy)(nil)
