package kamino

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kamino-market", r.URL.Path)
		w.Write([]byte(`[
			{"lendingMarket": "7u3HeHxYDLhnCoErrtycNokbQYbWGzLs6JSDqGAv5PfF", "name": "Main Market", "isPrimary": true},
			{"lendingMarket": "DxXdAyU3kCjnyggvHmY5nAwg5cRbbmdyX3npP9zmrxwh", "name": "JLP Market", "isPrimary": false},
			{"lendingMarket": "", "name": "ghost"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	entries, err := c.ListMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Main Market", entries[0].Name)
	assert.Equal(t, "7u3HeHxYDLhnCoErrtycNokbQYbWGzLs6JSDqGAv5PfF", entries[0].Address)
}

func TestListMarketsFallsBackToAddressName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lendingMarket": "DxXdAyU3kCjnyggvHmY5nAwg5cRbbmdyX3npP9zmrxwh"}]`))
	}))
	defer srv.Close()

	entries, err := NewClient(srv.URL).ListMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entries[0].Address, entries[0].Name)
}

func TestGetObligationsNotFoundMeansEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	obligations, err := NewClient(srv.URL).GetObligations(context.Background(), "market", "wallet")
	require.NoError(t, err)
	assert.Empty(t, obligations)
}

func TestGetObligationsDecodesStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wallet123", r.URL.Query().Get("wallet"))
		w.Write([]byte(`[{
			"loanToValue": "0.60",
			"liquidationLtv": "0.80",
			"tag": "leverage",
			"refreshedStats": {
				"userTotalBorrow": "1500.25",
				"userTotalDeposit": "2500.75",
				"netAccountValue": "1000.50"
			}
		}]`))
	}))
	defer srv.Close()

	obligations, err := NewClient(srv.URL).GetObligations(context.Background(), "m", "wallet123")
	require.NoError(t, err)
	require.Len(t, obligations, 1)

	o := obligations[0]
	assert.True(t, o.HasDebt())
	assert.Equal(t, "0.6", o.LoanToValue.String())
	assert.Equal(t, "0.8", o.LiquidationLtv.String())
	assert.Equal(t, "leverage", o.Tag)
	assert.Equal(t, "1500.25", o.Stats.UserTotalBorrow.String())
}

func TestGetObligationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetObligations(context.Background(), "m", "w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHasDebtFiltersZeroBorrow(t *testing.T) {
	var o Obligation
	assert.False(t, o.HasDebt())
}
