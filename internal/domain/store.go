package domain

import (
	"context"
	"io"
	"time"
)

// UserStore is the persistence contract for registered users, keyed by chat
// identity. Implementations live in internal/store.
type UserStore interface {
	// GetUser returns the user for the given chat ID, or ErrNotFound.
	GetUser(ctx context.Context, chatID int64) (User, error)

	// ListUsers returns every registered user with their subscriptions and
	// thresholds loaded.
	ListUsers(ctx context.Context) ([]User, error)

	// AddWallet creates a subscription for (chatID, wallet.Address). The user
	// record is created on first wallet. Returns ErrAlreadyExists when the
	// pair is already subscribed.
	AddWallet(ctx context.Context, chatID int64, w WalletSubscription) error

	// RemoveWallet deletes the subscription; the user record is deleted when
	// it was the last wallet. Returns ErrNotFound if not subscribed.
	RemoveWallet(ctx context.Context, chatID int64, address string) error

	// UpdateWalletMarkets replaces the cached market-identifier list for a
	// subscription. Last write wins; the list carries no safety invariants.
	UpdateWalletMarkets(ctx context.Context, chatID int64, address string, markets []string) error

	// SetThresholds stores explicit threshold overrides for one protocol.
	SetThresholds(ctx context.Context, chatID int64, p Protocol, t ThresholdSettings) error
}

// CatalogCache persists market-catalog snapshots so a restarted process can
// serve targeted scans before the first live refresh completes.
type CatalogCache interface {
	SaveMarkets(ctx context.Context, key string, markets []Market) error
	LoadMarkets(ctx context.Context, key string) ([]Market, error)
}

// NotifyPolicy decides whether a risk notification for a wallet may be sent
// this cycle. The default policy always allows, preserving the re-notify
// every cycle behavior; a debounce policy suppresses repeats within a TTL.
type NotifyPolicy interface {
	Allow(ctx context.Context, chatID int64, address string) (bool, error)
}

// RateLimiter bounds request rates per key. The HTTP middleware uses it to
// throttle dashboard clients.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter stores an object in blob storage. Used by the sweep snapshot
// archiver.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RiskEvent is published to the dashboard event stream after each sweep
// evaluation of one wallet.
type RiskEvent struct {
	SweepID   string     `json:"sweep_id"`
	ChatID    int64      `json:"chat_id"`
	Address   string     `json:"address"`
	Protocol  Protocol   `json:"protocol"`
	Positions []RiskLine `json:"positions"`
	Alerted   bool       `json:"alerted"`
	Timestamp time.Time  `json:"timestamp"`
}

// RiskLine is one evaluated position inside a RiskEvent.
type RiskLine struct {
	Market         string  `json:"market"`
	LTV            string  `json:"ltv"`
	LiquidationLTV string  `json:"liquidation_ltv"`
	HealthFactor   float64 `json:"health_factor"`
	Tier           string  `json:"tier"`
}

// EventSink receives risk events. The WebSocket hub implements it; a nil-safe
// no-op is used when the dashboard feed is disabled.
type EventSink interface {
	Publish(ctx context.Context, ev RiskEvent)
}
