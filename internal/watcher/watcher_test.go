package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/scanner"
)

type fakeUsers struct {
	users []domain.User
	err   error
}

func (f *fakeUsers) GetUser(ctx context.Context, chatID int64) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUsers) ListUsers(ctx context.Context) ([]domain.User, error) {
	return f.users, f.err
}

func (f *fakeUsers) AddWallet(ctx context.Context, chatID int64, w domain.WalletSubscription) error {
	return nil
}

func (f *fakeUsers) RemoveWallet(ctx context.Context, chatID int64, address string) error {
	return nil
}

func (f *fakeUsers) UpdateWalletMarkets(ctx context.Context, chatID int64, address string, markets []string) error {
	return nil
}

func (f *fakeUsers) SetThresholds(ctx context.Context, chatID int64, p domain.Protocol, t domain.ThresholdSettings) error {
	return nil
}

type fakeScanner struct {
	protocol  domain.Protocol
	positions []domain.Position
	err       error
	targeted  [][]string
}

func (f *fakeScanner) Protocol() domain.Protocol { return f.protocol }

func (f *fakeScanner) FullScan(ctx context.Context, address string, progress domain.ProgressFunc) ([]domain.Position, error) {
	return f.positions, f.err
}

func (f *fakeScanner) TargetedScan(ctx context.Context, address string, markets []string) ([]domain.Position, error) {
	f.targeted = append(f.targeted, markets)
	return f.positions, f.err
}

type fakeAlerts struct {
	chatIDs  []int64
	messages []string
	err      error
}

func (f *fakeAlerts) Notify(ctx context.Context, chatID int64, title, message string) error {
	f.chatIDs = append(f.chatIDs, chatID)
	f.messages = append(f.messages, message)
	return f.err
}

type denyPolicy struct{}

func (denyPolicy) Allow(ctx context.Context, chatID int64, address string) (bool, error) {
	return false, nil
}

type captureSink struct {
	events []domain.RiskEvent
}

func (c *captureSink) Publish(ctx context.Context, ev domain.RiskEvent) {
	c.events = append(c.events, ev)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func position(market string, hf float64) domain.Position {
	return domain.Position{
		Market:         market,
		MarketID:       market,
		LTV:            decimal.NewFromInt(60),
		LiquidationLTV: decimal.NewFromInt(80),
		HealthFactor:   hf,
	}
}

func kaminoUser(chatID int64, markets ...string) domain.User {
	return domain.User{
		ChatID: chatID,
		Wallets: []domain.WalletSubscription{{
			Address:  "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			Protocol: domain.ProtocolKamino,
			Markets:  markets,
		}},
	}
}

func newTestWatcher(users *fakeUsers, sc *fakeScanner, alerts *fakeAlerts, policy domain.NotifyPolicy, sink domain.EventSink) *Watcher {
	return New(users, scanner.NewRegistry(sc), alerts, policy, sink, 0, testLogger())
}

func TestSweepAlertsAtRiskWallet(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7, "m1")}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Main Market", 1.33),
	}}
	alerts := &fakeAlerts{}
	sink := &captureSink{}

	w := newTestWatcher(users, sc, alerts, nil, sink)
	w.Sweep(context.Background())

	require.Equal(t, []int64{7}, alerts.chatIDs)
	assert.Contains(t, alerts.messages[0], "Main Market")
	assert.Contains(t, alerts.messages[0], "Health factor: 1.33")

	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].Alerted)
	assert.Equal(t, "warning", sink.events[0].Positions[0].Tier)
}

func TestSweepSkipsSafeWallet(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7, "m1")}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Main Market", 2.5),
	}}
	alerts := &fakeAlerts{}
	sink := &captureSink{}

	w := newTestWatcher(users, sc, alerts, nil, sink)
	w.Sweep(context.Background())

	assert.Empty(t, alerts.chatIDs)
	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Alerted)
}

func TestSweepGroupsAllPositionsInOneAlert(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7, "m1", "m2")}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Risky Market", 1.2),
		position("Calm Market", 3.0),
	}}
	alerts := &fakeAlerts{}

	w := newTestWatcher(users, sc, alerts, nil, nil)
	w.Sweep(context.Background())

	require.Len(t, alerts.messages, 1)
	assert.Contains(t, alerts.messages[0], "Risky Market")
	assert.Contains(t, alerts.messages[0], "Calm Market")
}

func TestSweepSkipsKaminoWalletWithoutCachedMarkets(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7)}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Main Market", 1.0),
	}}
	alerts := &fakeAlerts{}

	w := newTestWatcher(users, sc, alerts, nil, nil)
	w.Sweep(context.Background())

	assert.Empty(t, sc.targeted)
	assert.Empty(t, alerts.chatIDs)
}

func TestSweepUsesCachedMarketsForTargetedScan(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7, "m1", "m3")}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino}

	w := newTestWatcher(users, sc, &fakeAlerts{}, nil, nil)
	w.Sweep(context.Background())

	require.Len(t, sc.targeted, 1)
	assert.Equal(t, []string{"m1", "m3"}, sc.targeted[0])
}

func TestSweepSwallowsScanErrors(t *testing.T) {
	users := &fakeUsers{users: []domain.User{
		kaminoUser(1, "m1"),
		kaminoUser(2, "m1"),
	}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, err: errors.New("api down")}
	alerts := &fakeAlerts{}

	w := newTestWatcher(users, sc, alerts, nil, nil)
	w.Sweep(context.Background())

	// Both wallets are visited even though every scan fails.
	assert.Len(t, sc.targeted, 2)
	assert.Empty(t, alerts.chatIDs)
}

func TestSweepHonorsDenyPolicy(t *testing.T) {
	users := &fakeUsers{users: []domain.User{kaminoUser(7, "m1")}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Main Market", 1.0),
	}}
	alerts := &fakeAlerts{}
	sink := &captureSink{}

	w := newTestWatcher(users, sc, alerts, denyPolicy{}, sink)
	w.Sweep(context.Background())

	assert.Empty(t, alerts.chatIDs)
	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Alerted)
}

func TestSweepAppliesUserThresholds(t *testing.T) {
	user := kaminoUser(7, "m1")
	user.Thresholds = map[domain.Protocol]domain.ThresholdSettings{
		domain.ProtocolKamino: {Warning: 1.2, Danger: 1.1},
	}
	users := &fakeUsers{users: []domain.User{user}}
	sc := &fakeScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		position("Main Market", 1.33), // warning under defaults, safe here
	}}
	alerts := &fakeAlerts{}

	w := newTestWatcher(users, sc, alerts, nil, nil)
	w.Sweep(context.Background())

	assert.Empty(t, alerts.chatIDs)
}

func TestSweepNoUsersIsQuiet(t *testing.T) {
	sc := &fakeScanner{protocol: domain.ProtocolKamino}
	alerts := &fakeAlerts{}
	sink := &captureSink{}

	w := newTestWatcher(&fakeUsers{}, sc, alerts, nil, sink)
	w.Sweep(context.Background())

	assert.Empty(t, sc.targeted)
	assert.Empty(t, sink.events)
}

func TestTriggerSweepCoalesces(t *testing.T) {
	w := newTestWatcher(&fakeUsers{}, &fakeScanner{protocol: domain.ProtocolKamino}, &fakeAlerts{}, nil, nil)
	w.TriggerSweep()
	w.TriggerSweep() // second request coalesces, must not block
	assert.Len(t, w.trigger, 1)
}
