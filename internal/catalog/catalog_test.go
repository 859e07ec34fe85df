package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

type fakeSource struct {
	key     string
	markets []domain.Market
	err     error
	calls   int
}

func (f *fakeSource) Key() string { return f.key }

func (f *fakeSource) Fetch(ctx context.Context) ([]domain.Market, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func kaminoMarkets(names ...string) []domain.Market {
	out := make([]domain.Market, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Market{Address: n + "-addr", Name: n, Protocol: domain.ProtocolKamino})
	}
	return out
}

func TestRefreshReplacesWholesale(t *testing.T) {
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main", "JLP")}
	c := New([]MarketSource{src}, nil, discardLogger())

	require.NoError(t, c.Refresh(context.Background(), KaminoKey))
	assert.Len(t, c.Get(KaminoKey), 2)

	src.markets = kaminoMarkets("Main")
	require.NoError(t, c.Refresh(context.Background(), KaminoKey))
	assert.Len(t, c.Get(KaminoKey), 1)
	assert.Equal(t, "Main", c.Get(KaminoKey)[0].Name)
}

func TestRefreshFailureKeepsStaleCache(t *testing.T) {
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main")}
	c := New([]MarketSource{src}, nil, discardLogger())

	require.NoError(t, c.Refresh(context.Background(), KaminoKey))
	require.Len(t, c.Get(KaminoKey), 1)

	src.err = errors.New("upstream down")
	err := c.Refresh(context.Background(), KaminoKey)
	assert.Error(t, err)
	assert.Len(t, c.Get(KaminoKey), 1, "failed refresh must not clear a good cache")
}

func TestRefreshEmptyKeepsStaleCache(t *testing.T) {
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main")}
	c := New([]MarketSource{src}, nil, discardLogger())

	require.NoError(t, c.Refresh(context.Background(), KaminoKey))

	src.markets = nil
	require.NoError(t, c.Refresh(context.Background(), KaminoKey))
	assert.Len(t, c.Get(KaminoKey), 1, "empty fetch must not clear a good cache")
}

func TestRefreshAllIsolatesPartitions(t *testing.T) {
	eth := &fakeSource{key: AaveKey("Ethereum"), err: errors.New("rpc exhausted")}
	arb := &fakeSource{key: AaveKey("Arbitrum"), markets: []domain.Market{
		{Address: "0xabc", Name: "WETH", Protocol: domain.ProtocolAave, Network: "Arbitrum"},
	}}
	base := &fakeSource{key: AaveKey("Base"), markets: []domain.Market{
		{Address: "0xdef", Name: "USDC", Protocol: domain.ProtocolAave, Network: "Base"},
	}}
	c := New([]MarketSource{eth, arb, base}, nil, discardLogger())

	c.RefreshAll(context.Background())

	assert.Empty(t, c.Get(AaveKey("Ethereum")))
	assert.Len(t, c.Get(AaveKey("Arbitrum")), 1)
	assert.Len(t, c.Get(AaveKey("Base")), 1)
	assert.Equal(t, 1, arb.calls)
	assert.Equal(t, 1, base.calls)
}

func TestGetDoesNotFetch(t *testing.T) {
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main")}
	c := New([]MarketSource{src}, nil, discardLogger())

	assert.Empty(t, c.Get(KaminoKey))
	assert.Zero(t, src.calls)
}

func TestGetOrFetchFallsBackOnce(t *testing.T) {
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main")}
	c := New([]MarketSource{src}, nil, discardLogger())

	markets, err := c.GetOrFetch(context.Background(), KaminoKey)
	require.NoError(t, err)
	assert.Len(t, markets, 1)
	assert.Equal(t, 1, src.calls)

	// Second call is served from cache.
	_, err = c.GetOrFetch(context.Background(), KaminoKey)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestGetOrFetchEmptyResult(t *testing.T) {
	src := &fakeSource{key: KaminoKey}
	c := New([]MarketSource{src}, nil, discardLogger())

	_, err := c.GetOrFetch(context.Background(), KaminoKey)
	assert.ErrorIs(t, err, domain.ErrNoMarkets)
}

type fakeSnap struct {
	saved map[string][]domain.Market
}

func (s *fakeSnap) SaveMarkets(ctx context.Context, key string, markets []domain.Market) error {
	if s.saved == nil {
		s.saved = make(map[string][]domain.Market)
	}
	s.saved[key] = markets
	return nil
}

func (s *fakeSnap) LoadMarkets(ctx context.Context, key string) ([]domain.Market, error) {
	return s.saved[key], nil
}

func TestWarmStartRestoresSnapshot(t *testing.T) {
	snap := &fakeSnap{}
	require.NoError(t, snap.SaveMarkets(context.Background(), KaminoKey, kaminoMarkets("Main")))

	src := &fakeSource{key: KaminoKey}
	c := New([]MarketSource{src}, snap, discardLogger())
	c.WarmStart(context.Background())

	assert.Len(t, c.Get(KaminoKey), 1)
	assert.Zero(t, src.calls)
}

func TestRefreshMirrorsSnapshot(t *testing.T) {
	snap := &fakeSnap{}
	src := &fakeSource{key: KaminoKey, markets: kaminoMarkets("Main", "Altcoin")}
	c := New([]MarketSource{src}, snap, discardLogger())

	require.NoError(t, c.Refresh(context.Background(), KaminoKey))
	assert.Len(t, snap.saved[KaminoKey], 2)
}
