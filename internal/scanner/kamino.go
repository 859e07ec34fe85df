package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/defiwatchbot/defiwatch/internal/catalog"
	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/platform/kamino"
)

// obligationClient is the slice of the Kamino API client the scanner uses.
type obligationClient interface {
	GetObligations(ctx context.Context, market, wallet string) ([]kamino.Obligation, error)
}

// KaminoScanner walks the Kamino market catalog and queries obligations per
// market. A market that fails to respond is skipped so one flaky market
// cannot hide positions in the others.
type KaminoScanner struct {
	client  obligationClient
	catalog marketCatalog
	logger  *slog.Logger
}

// NewKaminoScanner creates a Kamino position scanner.
func NewKaminoScanner(client obligationClient, cat marketCatalog, logger *slog.Logger) *KaminoScanner {
	return &KaminoScanner{
		client:  client,
		catalog: cat,
		logger:  logger.With(slog.String("component", "scanner.kamino")),
	}
}

var _ Scanner = (*KaminoScanner)(nil)

// Protocol implements Scanner.
func (s *KaminoScanner) Protocol() domain.Protocol { return domain.ProtocolKamino }

// FullScan queries every catalogued market for the wallet's obligations.
func (s *KaminoScanner) FullScan(ctx context.Context, address string, progress domain.ProgressFunc) ([]domain.Position, error) {
	markets, err := s.catalog.GetOrFetch(ctx, catalog.KaminoKey)
	if err != nil {
		return nil, fmt.Errorf("scanner: kamino markets: %w", err)
	}
	return s.scan(ctx, address, markets, progress)
}

// TargetedScan queries only the given market addresses, typically the
// markets where a prior full scan found positions.
func (s *KaminoScanner) TargetedScan(ctx context.Context, address string, markets []string) ([]domain.Position, error) {
	if len(markets) == 0 {
		return nil, nil
	}

	catalogued, err := s.catalog.GetOrFetch(ctx, catalog.KaminoKey)
	if err != nil {
		return nil, fmt.Errorf("scanner: kamino markets: %w", err)
	}
	byAddress := make(map[string]domain.Market, len(catalogued))
	for _, m := range catalogued {
		byAddress[m.Address] = m
	}

	targets := make([]domain.Market, 0, len(markets))
	for _, addr := range markets {
		if m, ok := byAddress[addr]; ok {
			targets = append(targets, m)
			continue
		}
		// Still queryable even if the catalog no longer lists it.
		targets = append(targets, domain.Market{Address: addr, Name: addr, Protocol: domain.ProtocolKamino})
	}
	return s.scan(ctx, address, targets, nil)
}

// scan queries each market in turn. Individual market failures are logged
// and skipped; only a scan where every market failed is reported as an error.
func (s *KaminoScanner) scan(ctx context.Context, address string, markets []domain.Market, progress domain.ProgressFunc) ([]domain.Position, error) {
	if len(markets) == 0 {
		return nil, domain.ErrNoMarkets
	}

	var positions []domain.Position
	failed := 0
	for i, market := range markets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obligations, err := s.client.GetObligations(ctx, market.Address, address)
		if err != nil {
			failed++
			s.logger.Warn("market query failed, skipping",
				slog.String("market", market.Address),
				slog.String("wallet", address),
				slog.String("error", err.Error()),
			)
		} else {
			for _, o := range obligations {
				if !o.HasDebt() {
					continue
				}
				positions = append(positions, kaminoPosition(market, o))
			}
		}

		if progress != nil {
			progress(i+1, len(markets))
		}
	}

	if failed == len(markets) {
		return nil, fmt.Errorf("scanner: kamino: all %d markets failed: %w", failed, domain.ErrScanFailed)
	}
	return positions, nil
}

// kaminoPosition converts one obligation into a position. The API reports
// loanToValue and liquidationLtv as fractions, so 0.60 becomes 60%. The
// health factor is the headroom ratio liquidationLtv / loanToValue.
func kaminoPosition(market domain.Market, o kamino.Obligation) domain.Position {
	hundred := decimal.NewFromInt(100)
	hf := math.Inf(1)
	if o.LoanToValue.IsPositive() {
		hf, _ = o.LiquidationLtv.Div(o.LoanToValue).Float64()
	}
	return domain.Position{
		Market:         market.Name,
		MarketID:       market.Address,
		LTV:            o.LoanToValue.Mul(hundred).Round(2),
		LiquidationLTV: o.LiquidationLtv.Mul(hundred).Round(2),
		HealthFactor:   hf,
		Borrowed:       o.Stats.UserTotalBorrow,
		Deposited:      o.Stats.UserTotalDeposit,
		NetValue:       o.Stats.NetAccountValue,
		Tag:            o.Tag,
	}
}
