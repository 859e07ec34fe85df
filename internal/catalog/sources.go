package catalog

import (
	"context"

	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/platform/aave"
	"github.com/defiwatchbot/defiwatch/internal/platform/kamino"
)

// kaminoLister is the slice of the Kamino client the catalog needs.
type kaminoLister interface {
	ListMarkets(ctx context.Context) ([]kamino.MarketEntry, error)
}

// aaveLister is the slice of the per-network Aave client the catalog needs.
type aaveLister interface {
	Network() string
	GetReserveTokens(ctx context.Context) ([]aave.ReserveToken, error)
}

// KaminoSource adapts the Kamino API client to a catalog partition.
type KaminoSource struct {
	client kaminoLister
}

// NewKaminoSource creates the Kamino catalog source.
func NewKaminoSource(client kaminoLister) *KaminoSource {
	return &KaminoSource{client: client}
}

// Key implements MarketSource.
func (s *KaminoSource) Key() string { return KaminoKey }

// Fetch implements MarketSource.
func (s *KaminoSource) Fetch(ctx context.Context) ([]domain.Market, error) {
	entries, err := s.client.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	markets := make([]domain.Market, 0, len(entries))
	for _, e := range entries {
		markets = append(markets, domain.Market{
			Address:  e.Address,
			Name:     e.Name,
			Protocol: domain.ProtocolKamino,
		})
	}
	return markets, nil
}

// AaveSource adapts one network's Aave client to a catalog partition. The
// "markets" of an Aave network are its reserve tokens, keyed by underlying
// asset address.
type AaveSource struct {
	client aaveLister
}

// NewAaveSource creates the catalog source for one Aave network.
func NewAaveSource(client aaveLister) *AaveSource {
	return &AaveSource{client: client}
}

// Key implements MarketSource.
func (s *AaveSource) Key() string { return AaveKey(s.client.Network()) }

// Fetch implements MarketSource.
func (s *AaveSource) Fetch(ctx context.Context) ([]domain.Market, error) {
	tokens, err := s.client.GetReserveTokens(ctx)
	if err != nil {
		return nil, err
	}
	network := s.client.Network()
	markets := make([]domain.Market, 0, len(tokens))
	for _, t := range tokens {
		markets = append(markets, domain.Market{
			Address:  t.TokenAddress.Hex(),
			Name:     t.Symbol,
			Protocol: domain.ProtocolAave,
			Network:  network,
		})
	}
	return markets, nil
}
