// Package aave reads Aave v3 account and reserve state from EVM chains via
// JSON-RPC, with prioritized fallback across multiple endpoints per network.
package aave

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// defaultCallTimeout bounds one endpoint attempt so a dead RPC node cannot
// stall an entire scan.
const defaultCallTimeout = 20 * time.Second

// NetworkConfig describes one supported EVM network.
type NetworkConfig struct {
	// Name is the display label, e.g. "Ethereum".
	Name string
	// Pool is the Aave v3 Pool contract address.
	Pool string
	// DataProvider is the AaveProtocolDataProvider contract address.
	DataProvider string
	// Endpoints is the prioritized JSON-RPC endpoint list. Duplicates are
	// removed, order preserved.
	Endpoints []string
	// CallTimeout bounds a single endpoint attempt; zero means the default.
	CallTimeout time.Duration
}

// AccountData mirrors Pool.getUserAccountData. All values are raw on-chain
// integers: base-currency amounts with 8 decimals, thresholds in basis
// points, health factor as an 18-decimal wad.
type AccountData struct {
	TotalCollateralBase         *big.Int
	TotalDebtBase               *big.Int
	AvailableBorrowsBase        *big.Int
	CurrentLiquidationThreshold *big.Int
	LTV                         *big.Int
	HealthFactor                *big.Int
}

// ReserveToken is one reserve listed by the data provider.
type ReserveToken struct {
	Symbol       string
	TokenAddress common.Address
}

// ReserveDebt is one reserve where the wallet holds nonzero variable debt.
type ReserveDebt struct {
	Symbol       string
	Asset        common.Address
	VariableDebt *big.Int
}

// Snapshot is the result of one full wallet read on one network.
type Snapshot struct {
	Account  AccountData
	Reserves []ReserveDebt
}

// Client reads Aave state for a single network.
type Client struct {
	network      string
	pool         common.Address
	dataProvider common.Address
	endpoints    []string
	callTimeout  time.Duration
	logger       *slog.Logger
}

// NewClient creates a per-network client. It validates addresses and
// de-duplicates the endpoint list while preserving priority order.
func NewClient(cfg NetworkConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("aave: network name is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return nil, fmt.Errorf("aave: %s: invalid pool address %q", cfg.Name, cfg.Pool)
	}
	if !common.IsHexAddress(cfg.DataProvider) {
		return nil, fmt.Errorf("aave: %s: invalid data provider address %q", cfg.Name, cfg.DataProvider)
	}

	endpoints := dedupe(cfg.Endpoints)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("aave: %s: at least one rpc endpoint is required", cfg.Name)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Client{
		network:      cfg.Name,
		pool:         common.HexToAddress(cfg.Pool),
		dataProvider: common.HexToAddress(cfg.DataProvider),
		endpoints:    endpoints,
		callTimeout:  timeout,
		logger:       logger.With(slog.String("component", "aave"), slog.String("network", cfg.Name)),
	}, nil
}

// Network returns the display label of this client's network.
func (c *Client) Network() string { return c.network }

// GetReserveTokens returns the full reserve list for catalog refresh.
func (c *Client) GetReserveTokens(ctx context.Context) ([]ReserveToken, error) {
	var tokens []ReserveToken
	err := c.withFallback(ctx, func(ctx context.Context, ec *ethclient.Client) error {
		var inner error
		tokens, inner = c.reserveTokens(ctx, ec)
		return inner
	})
	if err != nil {
		return nil, fmt.Errorf("aave: %s: reserve tokens: %w", c.network, err)
	}
	return tokens, nil
}

// FetchWalletSnapshot performs the full multi-call read for one wallet: the
// account aggregates plus, when the wallet has debt, one data-provider call
// per reserve. The whole sequence must succeed on a single endpoint; any
// failure moves on to the next endpoint, and the last error is surfaced when
// every endpoint fails.
func (c *Client) FetchWalletSnapshot(ctx context.Context, wallet common.Address, reserves []ReserveToken) (Snapshot, error) {
	var snap Snapshot
	err := c.withFallback(ctx, func(ctx context.Context, ec *ethclient.Client) error {
		account, err := c.userAccountData(ctx, ec, wallet)
		if err != nil {
			return err
		}
		snap = Snapshot{Account: account}

		// No debt or no collateral: nothing to itemize.
		if account.TotalDebtBase.Sign() == 0 || account.TotalCollateralBase.Sign() == 0 {
			return nil
		}

		snap.Reserves = snap.Reserves[:0]
		for _, r := range reserves {
			debt, err := c.userVariableDebt(ctx, ec, r.TokenAddress, wallet)
			if err != nil {
				return fmt.Errorf("reserve %s: %w", r.Symbol, err)
			}
			if debt.Sign() > 0 {
				snap.Reserves = append(snap.Reserves, ReserveDebt{
					Symbol:       r.Symbol,
					Asset:        r.TokenAddress,
					VariableDebt: debt,
				})
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("aave: %s: wallet snapshot: %w", c.network, err)
	}
	return snap, nil
}

// withFallback dials each endpoint in priority order and runs fn against it.
// The first endpoint on which fn completes without error wins. If every
// endpoint fails, the last error is returned.
func (c *Client) withFallback(ctx context.Context, fn func(context.Context, *ethclient.Client) error) error {
	var lastErr error
	for _, endpoint := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := c.tryEndpoint(attemptCtx, endpoint, fn)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warn("rpc endpoint failed, trying next",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
	}
	return lastErr
}

func (c *Client) tryEndpoint(ctx context.Context, endpoint string, fn func(context.Context, *ethclient.Client) error) error {
	ec, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer ec.Close()
	return fn(ctx, ec)
}

func (c *Client) userAccountData(ctx context.Context, ec *ethclient.Client, wallet common.Address) (AccountData, error) {
	out, err := c.call(ctx, ec, poolABI, c.pool, "getUserAccountData", wallet)
	if err != nil {
		return AccountData{}, err
	}
	if len(out) != 6 {
		return AccountData{}, fmt.Errorf("getUserAccountData: unexpected output length %d", len(out))
	}
	return AccountData{
		TotalCollateralBase:         out[0].(*big.Int),
		TotalDebtBase:               out[1].(*big.Int),
		AvailableBorrowsBase:        out[2].(*big.Int),
		CurrentLiquidationThreshold: out[3].(*big.Int),
		LTV:                         out[4].(*big.Int),
		HealthFactor:                out[5].(*big.Int),
	}, nil
}

func (c *Client) reserveTokens(ctx context.Context, ec *ethclient.Client) ([]ReserveToken, error) {
	out, err := c.call(ctx, ec, dataProviderABI, c.dataProvider, "getAllReservesTokens")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllReservesTokens: unexpected output length %d", len(out))
	}
	tokens := *abi.ConvertType(out[0], new([]ReserveToken)).(*[]ReserveToken)
	return tokens, nil
}

func (c *Client) userVariableDebt(ctx context.Context, ec *ethclient.Client, asset, wallet common.Address) (*big.Int, error) {
	out, err := c.call(ctx, ec, dataProviderABI, c.dataProvider, "getUserReserveData", asset, wallet)
	if err != nil {
		return nil, err
	}
	if len(out) < 3 {
		return nil, fmt.Errorf("getUserReserveData: unexpected output length %d", len(out))
	}
	return out[2].(*big.Int), nil
}

// call packs, executes, and unpacks a single view call.
func (c *Client) call(ctx context.Context, ec *ethclient.Client, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	res, err := ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func dedupe(endpoints []string) []string {
	seen := make(map[string]bool, len(endpoints))
	var out []string
	for _, e := range endpoints {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
