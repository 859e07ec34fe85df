package command

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

const (
	solAddr = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	evmAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
)

type memoryUsers struct {
	users map[int64]*domain.User

	addErr        error
	thresholdsSet []domain.ThresholdSettings
	marketUpdates map[string][]string
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		users:         make(map[int64]*domain.User),
		marketUpdates: make(map[string][]string),
	}
}

func (m *memoryUsers) GetUser(ctx context.Context, chatID int64) (domain.User, error) {
	u, ok := m.users[chatID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *u, nil
}

func (m *memoryUsers) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memoryUsers) AddWallet(ctx context.Context, chatID int64, w domain.WalletSubscription) error {
	if m.addErr != nil {
		return m.addErr
	}
	u, ok := m.users[chatID]
	if !ok {
		u = &domain.User{ChatID: chatID}
		m.users[chatID] = u
	}
	for _, existing := range u.Wallets {
		if existing.Address == w.Address {
			return domain.ErrAlreadyExists
		}
	}
	u.Wallets = append(u.Wallets, w)
	return nil
}

func (m *memoryUsers) RemoveWallet(ctx context.Context, chatID int64, address string) error {
	u, ok := m.users[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	for i, w := range u.Wallets {
		if w.Address == address {
			u.Wallets = append(u.Wallets[:i], u.Wallets[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memoryUsers) UpdateWalletMarkets(ctx context.Context, chatID int64, address string, markets []string) error {
	m.marketUpdates[address] = markets
	return nil
}

func (m *memoryUsers) SetThresholds(ctx context.Context, chatID int64, p domain.Protocol, t domain.ThresholdSettings) error {
	m.thresholdsSet = append(m.thresholdsSet, t)
	u, ok := m.users[chatID]
	if !ok {
		u = &domain.User{ChatID: chatID}
		m.users[chatID] = u
	}
	if u.Thresholds == nil {
		u.Thresholds = make(map[domain.Protocol]domain.ThresholdSettings)
	}
	u.Thresholds[p] = t
	return nil
}

type stubScanner struct {
	protocol  domain.Protocol
	positions []domain.Position
	err       error
	fullScans int
}

func (s *stubScanner) Protocol() domain.Protocol { return s.protocol }

func (s *stubScanner) FullScan(ctx context.Context, address string, progress domain.ProgressFunc) ([]domain.Position, error) {
	s.fullScans++
	return s.positions, s.err
}

func (s *stubScanner) TargetedScan(ctx context.Context, address string, markets []string) ([]domain.Position, error) {
	return s.positions, s.err
}

type stubCatalog struct {
	refreshed int
}

func (s *stubCatalog) RefreshAll(ctx context.Context) { s.refreshed++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(users domain.UserStore, scanners ...scanner.Scanner) (*Router, *stubCatalog) {
	cat := &stubCatalog{}
	return NewRouter(users, scanner.NewRegistry(scanners...), cat, testLogger()), cat
}

func kaminoPosition(market string, hf float64) domain.Position {
	return domain.Position{
		Market:         market,
		MarketID:       market,
		LTV:            decimal.NewFromInt(60),
		LiquidationLTV: decimal.NewFromInt(80),
		HealthFactor:   hf,
	}
}

func TestAddWalletDetectsProtocolAndScans(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		kaminoPosition("m1", 1.33),
	}}
	r, _ := newTestRouter(users, sc)

	reply := r.Handle(context.Background(), 7, "/add "+solAddr)
	assert.Contains(t, reply, "Now watching")
	assert.Contains(t, reply, "kamino")
	assert.Contains(t, reply, "Health factor: 1.33")
	assert.Equal(t, 1, sc.fullScans)
	assert.Equal(t, []string{"m1"}, users.marketUpdates[solAddr])
}

func TestAddRejectsMalformedAddress(t *testing.T) {
	users := newMemoryUsers()
	r, _ := newTestRouter(users)

	reply := r.Handle(context.Background(), 7, "/add 0xshort")
	assert.Contains(t, reply, "Unrecognized address")
	assert.Empty(t, users.users)
}

func TestAddDuplicateWallet(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino}
	r, _ := newTestRouter(users, sc)

	r.Handle(context.Background(), 7, "/add "+solAddr)
	reply := r.Handle(context.Background(), 7, "/add "+solAddr)
	assert.Contains(t, reply, "Already watching")
}

func TestAddSurvivesFailedInitialScan(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino, err: errors.New("api down")}
	r, _ := newTestRouter(users, sc)

	reply := r.Handle(context.Background(), 7, "/add "+solAddr)
	assert.Contains(t, reply, "Now watching")
	assert.Contains(t, reply, "Initial scan failed")
	require.Len(t, users.users[7].Wallets, 1)
}

func TestRemoveWallet(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino}
	r, _ := newTestRouter(users, sc)

	r.Handle(context.Background(), 7, "/add "+solAddr)
	reply := r.Handle(context.Background(), 7, "/remove "+solAddr)
	assert.Contains(t, reply, "Stopped watching")

	reply = r.Handle(context.Background(), 7, "/remove "+solAddr)
	assert.Contains(t, reply, "not watching")
}

func TestListShowsWalletsAndThresholds(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino}
	r, _ := newTestRouter(users, sc)

	r.Handle(context.Background(), 7, "/add "+solAddr)
	reply := r.Handle(context.Background(), 7, "/list")
	assert.Contains(t, reply, solAddr)
	assert.Contains(t, reply, "warning 1.50, danger 1.30")
}

func TestListEmpty(t *testing.T) {
	r, _ := newTestRouter(newMemoryUsers())
	reply := r.Handle(context.Background(), 7, "/list")
	assert.Contains(t, reply, "not watching any wallets")
}

func TestCheckScansUnsubscribedWallet(t *testing.T) {
	sc := &stubScanner{protocol: domain.ProtocolAave, positions: []domain.Position{
		{
			Market:         "Ethereum · WETH",
			MarketID:       "Ethereum",
			LTV:            decimal.NewFromInt(40),
			LiquidationLTV: decimal.RequireFromString("82.5"),
			HealthFactor:   1.8,
		},
	}}
	r, _ := newTestRouter(newMemoryUsers(), sc)

	reply := r.Handle(context.Background(), 7, "/check "+evmAddr)
	assert.Contains(t, reply, "Ethereum · WETH")
	assert.Contains(t, reply, "Health factor: 1.80")
}

func TestCheckReportsScanFailure(t *testing.T) {
	sc := &stubScanner{protocol: domain.ProtocolAave, err: errors.New("all endpoints failed")}
	r, _ := newTestRouter(newMemoryUsers(), sc)

	reply := r.Handle(context.Background(), 7, "/check "+evmAddr)
	assert.Contains(t, reply, "failed")
}

func TestRefreshReloadsCatalogAndRescans(t *testing.T) {
	users := newMemoryUsers()
	sc := &stubScanner{protocol: domain.ProtocolKamino, positions: []domain.Position{
		kaminoPosition("m2", 2.0),
	}}
	r, cat := newTestRouter(users, sc)

	r.Handle(context.Background(), 7, "/add "+solAddr)
	sc.fullScans = 0

	reply := r.Handle(context.Background(), 7, "/refresh")
	assert.Equal(t, 1, cat.refreshed)
	assert.Equal(t, 1, sc.fullScans)
	assert.Contains(t, reply, "Re-scanned 1 wallet(s)")
	assert.Equal(t, []string{"m2"}, users.marketUpdates[solAddr])
}

func TestThresholdsValidation(t *testing.T) {
	users := newMemoryUsers()
	r, _ := newTestRouter(users)

	for _, text := range []string{
		"/thresholds kamino abc 1.3",
		"/thresholds kamino 1.5 xyz",
		"/thresholds kamino -1 1.3",
		"/thresholds kamino 1.5 0",
		"/thresholds solend 1.5 1.3",
		"/thresholds kamino 1.5",
	} {
		reply := r.Handle(context.Background(), 7, text)
		assert.Contains(t, reply, "Usage:", "input %q", text)
	}
	assert.Empty(t, users.thresholdsSet)
}

func TestThresholdsInvertedStoredVerbatim(t *testing.T) {
	users := newMemoryUsers()
	r, _ := newTestRouter(users)

	reply := r.Handle(context.Background(), 7, "/thresholds kamino 1.5 2.0")
	assert.Contains(t, reply, "warning 1.50, danger 2.00")
	require.Len(t, users.thresholdsSet, 1)
	assert.Equal(t, domain.ThresholdSettings{Warning: 1.5, Danger: 2.0}, users.thresholdsSet[0])
}

func TestThresholdsPerProtocolIndependent(t *testing.T) {
	users := newMemoryUsers()
	r, _ := newTestRouter(users)

	r.Handle(context.Background(), 7, "/thresholds kamino 2.0 1.8")
	u, err := users.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.ThresholdsFor(domain.ProtocolKamino).Warning)
	assert.Equal(t, domain.DefaultThresholds(), u.ThresholdsFor(domain.ProtocolAave))
}

func TestUnknownCommandGetsHelp(t *testing.T) {
	r, _ := newTestRouter(newMemoryUsers())
	assert.Contains(t, r.Handle(context.Background(), 7, "/frobnicate"), "Commands:")
	assert.Contains(t, r.Handle(context.Background(), 7, "hello there"), "Commands:")
	assert.Contains(t, r.Handle(context.Background(), 7, "/help"), "Commands:")
}

func TestCommandWithBotSuffix(t *testing.T) {
	r, _ := newTestRouter(newMemoryUsers())
	reply := r.Handle(context.Background(), 7, "/list@defiwatch_bot")
	assert.Contains(t, reply, "not watching any wallets")
}
