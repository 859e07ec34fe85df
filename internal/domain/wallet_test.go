package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    Protocol
		wantErr bool
	}{
		{
			name:    "evm address routes to aave",
			address: "0x1a2B3c4D5e6F7a8B9c0D1e2F3a4B5c6D7e8F9a0B",
			want:    ProtocolAave,
		},
		{
			name:    "solana base58 34 chars routes to kamino",
			address: "7VHUFJHWu2CuExkJcJrzhQPJ2oygupTWkL2A2For4BmE"[:34],
			want:    ProtocolKamino,
		},
		{
			name:    "solana base58 44 chars routes to kamino",
			address: "7VHUFJHWu2CuExkJcJrzhQPJ2oygupTWkL2A2For4BmE",
			want:    ProtocolKamino,
		},
		{
			name:    "too short is rejected",
			address: "abc",
			wantErr: true,
		},
		{
			name:    "evm address with bad hex is rejected",
			address: "0x1a2B3c4D5e6F7a8B9c0D1e2F3a4B5c6D7e8Fzzzz",
			wantErr: true,
		},
		{
			name:    "base58 forbids zero and uppercase O",
			address: strings.Repeat("O0", 17),
			wantErr: true,
		},
		{
			name:    "45 chars is too long for solana",
			address: strings.Repeat("a", 45),
			wantErr: true,
		},
		{
			name:    "empty is rejected",
			address: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectProtocol(tt.address)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholdsFor(t *testing.T) {
	u := User{
		Thresholds: map[Protocol]ThresholdSettings{
			ProtocolKamino: {Warning: 2.0, Danger: 1.8},
		},
	}

	kamino := u.ThresholdsFor(ProtocolKamino)
	assert.Equal(t, 2.0, kamino.Warning)
	assert.Equal(t, 1.8, kamino.Danger)

	// Aave falls back to defaults; settings never merge across protocols.
	aave := u.ThresholdsFor(ProtocolAave)
	assert.Equal(t, DefaultThresholds(), aave)
}

func TestHealthFactorValid(t *testing.T) {
	valid := Position{HealthFactor: 1.33}
	assert.True(t, valid.HealthFactorValid())

	for _, hf := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		p := Position{HealthFactor: hf}
		assert.False(t, p.HealthFactorValid(), "hf=%v", hf)
	}
}
