package aave

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the two Aave v3 contracts the monitor reads:
// the Pool (account aggregates) and the ProtocolDataProvider (reserve list
// and per-reserve user data). Read-only views, no transactions.

const poolABIJSON = `[
  {
    "name": "getUserAccountData",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{"name": "user", "type": "address"}],
    "outputs": [
      {"name": "totalCollateralBase", "type": "uint256"},
      {"name": "totalDebtBase", "type": "uint256"},
      {"name": "availableBorrowsBase", "type": "uint256"},
      {"name": "currentLiquidationThreshold", "type": "uint256"},
      {"name": "ltv", "type": "uint256"},
      {"name": "healthFactor", "type": "uint256"}
    ]
  }
]`

const dataProviderABIJSON = `[
  {
    "name": "getAllReservesTokens",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "symbol", "type": "string"},
          {"name": "tokenAddress", "type": "address"}
        ]
      }
    ]
  },
  {
    "name": "getUserReserveData",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      {"name": "asset", "type": "address"},
      {"name": "user", "type": "address"}
    ],
    "outputs": [
      {"name": "currentATokenBalance", "type": "uint256"},
      {"name": "currentStableDebt", "type": "uint256"},
      {"name": "currentVariableDebt", "type": "uint256"},
      {"name": "principalStableDebt", "type": "uint256"},
      {"name": "scaledVariableDebt", "type": "uint256"},
      {"name": "stableBorrowRate", "type": "uint256"},
      {"name": "liquidityRate", "type": "uint256"},
      {"name": "stableRateLastUpdated", "type": "uint40"},
      {"name": "usageAsCollateralEnabled", "type": "bool"}
    ]
  }
]`

var (
	poolABI         = mustABI(poolABIJSON)
	dataProviderABI = mustABI(dataProviderABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("aave: parse ABI: " + err.Error())
	}
	return parsed
}
