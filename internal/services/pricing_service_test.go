package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

func newPricing(o PriceOracle) *PricingService {
	return NewPricingService(o, &config.Config{FiatMultiplier: 1500, RateMaxAge: time.Minute}, zap.NewNop())
}

func TestToDisplayCurrency(t *testing.T) {
	rate := models.ConversionRate{PricePerUnit: 3000, FiatMultiplier: 1500}

	tests := []struct {
		name string
		wei  string
		want models.DisplayAmount
	}{
		{"half unit", "500000000000000000", 2_250_000},
		{"one unit", "1000000000000000000", 4_500_000},
		{"zero", "0", 0},
		{"one wei", "1", 0.0000000000045},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := models.ParseBaseUnits(tt.wei)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(ToDisplayCurrency(amount, rate)), 1e-12)
		})
	}
}

func TestGetRate_UsesOracleDecimals(t *testing.T) {
	tests := []struct {
		name     string
		answer   *big.Int
		decimals uint8
	}{
		{"8 decimals", big.NewInt(300_000_000_000), 8},
		{"18 decimals", new(big.Int).Mul(big.NewInt(3000), big.NewInt(1e18)), 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPricing(&fakeOracle{answer: &chain.PriceAnswer{Answer: tt.answer, Decimals: tt.decimals}})

			rate, err := s.GetRate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3000.0, rate.PricePerUnit)
			assert.Equal(t, 1500.0, rate.FiatMultiplier)
		})
	}
}

func TestGetRate_OracleFailure(t *testing.T) {
	s := newPricing(&fakeOracle{err: errors.New("execution reverted")})
	_, err := s.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrOracleUnavailable)

	_, ok := s.Cached()
	assert.False(t, ok)

	s = newPricing(&fakeOracle{answer: &chain.PriceAnswer{Answer: big.NewInt(-1), Decimals: 8}})
	_, err = s.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrOracleUnavailable)

	s = newPricing(nil)
	_, err = s.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrOracleUnavailable)
}

func TestRate_CachesUntilMaxAge(t *testing.T) {
	oracle := &fakeOracle{answer: &chain.PriceAnswer{Answer: big.NewInt(300_000_000_000), Decimals: 8}}
	s := newPricing(oracle)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := s.Rate(ctx)
	require.NoError(t, err)
	_, err = s.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.calls)

	now = now.Add(2 * time.Minute)
	_, err = s.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls)
}
