package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defiwatchbot/defiwatch/internal/catalog"
	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/platform/aave"
)

// aaveNetwork is the slice of the per-network client the scanner uses.
type aaveNetwork interface {
	Network() string
	FetchWalletSnapshot(ctx context.Context, wallet common.Address, reserves []aave.ReserveToken) (aave.Snapshot, error)
}

// AaveScanner reads Aave v3 account state across the configured networks. On
// this protocol a "market" is a network; failures are isolated per network
// the same way Kamino isolates per market.
type AaveScanner struct {
	networks []aaveNetwork
	catalog  marketCatalog
	logger   *slog.Logger
}

// NewAaveScanner creates an Aave position scanner over the given networks.
func NewAaveScanner(networks []*aave.Client, cat marketCatalog, logger *slog.Logger) *AaveScanner {
	wrapped := make([]aaveNetwork, len(networks))
	for i, n := range networks {
		wrapped[i] = n
	}
	return newAaveScanner(wrapped, cat, logger)
}

func newAaveScanner(networks []aaveNetwork, cat marketCatalog, logger *slog.Logger) *AaveScanner {
	return &AaveScanner{
		networks: networks,
		catalog:  cat,
		logger:   logger.With(slog.String("component", "scanner.aave")),
	}
}

var _ Scanner = (*AaveScanner)(nil)

// Protocol implements Scanner.
func (s *AaveScanner) Protocol() domain.Protocol { return domain.ProtocolAave }

// FullScan reads the wallet's account state on every configured network.
func (s *AaveScanner) FullScan(ctx context.Context, address string, progress domain.ProgressFunc) ([]domain.Position, error) {
	return s.scan(ctx, address, s.networks, progress)
}

// TargetedScan reads only the named networks. Names match case-insensitively
// against the configured network labels; unknown names are skipped.
func (s *AaveScanner) TargetedScan(ctx context.Context, address string, markets []string) ([]domain.Position, error) {
	if len(markets) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(markets))
	for _, m := range markets {
		wanted[strings.ToLower(m)] = true
	}
	var targets []aaveNetwork
	for _, n := range s.networks {
		if wanted[strings.ToLower(n.Network())] {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return s.scan(ctx, address, targets, nil)
}

func (s *AaveScanner) scan(ctx context.Context, address string, networks []aaveNetwork, progress domain.ProgressFunc) ([]domain.Position, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("scanner: aave: %q: %w", address, domain.ErrBadAddress)
	}
	wallet := common.HexToAddress(address)
	if len(networks) == 0 {
		return nil, nil
	}

	var positions []domain.Position
	failed := 0
	for i, n := range networks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		netPositions, err := s.scanNetwork(ctx, n, wallet)
		if err != nil {
			failed++
			s.logger.Warn("network scan failed, skipping",
				slog.String("network", n.Network()),
				slog.String("wallet", address),
				slog.String("error", err.Error()),
			)
		} else {
			positions = append(positions, netPositions...)
		}

		if progress != nil {
			progress(i+1, len(networks))
		}
	}

	if failed == len(networks) {
		return nil, fmt.Errorf("scanner: aave: all %d networks failed: %w", failed, domain.ErrScanFailed)
	}
	return positions, nil
}

// scanNetwork performs the full read on one network and converts the result.
// A wallet with no debt, no collateral, or a non-finite health factor yields
// no positions there.
func (s *AaveScanner) scanNetwork(ctx context.Context, n aaveNetwork, wallet common.Address) ([]domain.Position, error) {
	reserves, err := s.reserveTokens(ctx, n.Network())
	if err != nil {
		return nil, err
	}

	snap, err := n.FetchWalletSnapshot(ctx, wallet, reserves)
	if err != nil {
		return nil, err
	}

	account := snap.Account
	if account.TotalDebtBase == nil || account.TotalDebtBase.Sign() == 0 {
		return nil, nil
	}
	if account.TotalCollateralBase == nil || account.TotalCollateralBase.Sign() == 0 {
		return nil, nil
	}

	debt := aave.BaseToDecimal(account.TotalDebtBase)
	collateral := aave.BaseToDecimal(account.TotalCollateralBase)

	base := domain.Position{
		MarketID:       n.Network(),
		LTV:            aave.CurrentLTVPercent(debt, collateral),
		LiquidationLTV: aave.BpsToPercent(account.CurrentLiquidationThreshold),
		HealthFactor:   aave.WadToFloat(account.HealthFactor),
	}
	if !base.HealthFactorValid() {
		// Indexing lag or an unbacked position; treat as no exposure.
		return nil, nil
	}

	if len(snap.Reserves) == 0 {
		// Aggregate-only fallback when no reserve carries itemized debt.
		base.Market = n.Network()
		base.Borrowed = debt
		base.Deposited = collateral
		return []domain.Position{base}, nil
	}

	positions := make([]domain.Position, 0, len(snap.Reserves))
	for _, r := range snap.Reserves {
		p := base
		if r.Symbol == "" {
			p.Market = n.Network()
		} else {
			p.Market = fmt.Sprintf("%s · %s", n.Network(), r.Symbol)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// reserveTokens rebuilds the data-provider reserve list from the catalog
// partition for the network.
func (s *AaveScanner) reserveTokens(ctx context.Context, network string) ([]aave.ReserveToken, error) {
	markets, err := s.catalog.GetOrFetch(ctx, catalog.AaveKey(network))
	if err != nil {
		return nil, fmt.Errorf("reserve catalog: %w", err)
	}
	tokens := make([]aave.ReserveToken, 0, len(markets))
	for _, m := range markets {
		if !common.IsHexAddress(m.Address) {
			continue
		}
		tokens = append(tokens, aave.ReserveToken{
			Symbol:       m.Name,
			TokenAddress: common.HexToAddress(m.Address),
		})
	}
	return tokens, nil
}
