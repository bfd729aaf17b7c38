package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

// PriceOracle returns the latest native asset price. *chain.PriceFeed
// satisfies it.
type PriceOracle interface {
	Latest(ctx context.Context) (*chain.PriceAnswer, error)
}

// PricingService converts base-unit amounts for display. It keeps the last
// fetched rate; refreshing on a cadence is the caller's job, there is no
// retry here.
type PricingService struct {
	oracle     PriceOracle
	multiplier float64
	maxAge     time.Duration
	now        func() time.Time
	log        *zap.Logger

	mu   sync.RWMutex
	last *models.ConversionRate
}

func NewPricingService(oracle PriceOracle, cfg *config.Config, log *zap.Logger) *PricingService {
	return &PricingService{
		oracle:     oracle,
		multiplier: cfg.FiatMultiplier,
		maxAge:     cfg.RateMaxAge,
		now:        time.Now,
		log:        log,
	}
}

// GetRate always asks the oracle. The scale comes from the oracle's own
// decimals, never an assumed 1e8.
func (s *PricingService) GetRate(ctx context.Context) (models.ConversionRate, error) {
	if s.oracle == nil {
		return models.ConversionRate{}, models.ErrOracleUnavailable
	}

	answer, err := s.oracle.Latest(ctx)
	if err != nil {
		s.log.Warn("price oracle call failed", zap.Error(err))
		return models.ConversionRate{}, fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	if answer == nil || answer.Answer == nil || answer.Answer.Sign() <= 0 {
		return models.ConversionRate{}, fmt.Errorf("%w: non-positive answer", models.ErrOracleUnavailable)
	}

	price := decimal.NewFromBigInt(answer.Answer, -int32(answer.Decimals))
	rate := models.ConversionRate{
		PricePerUnit:   price.InexactFloat64(),
		FiatMultiplier: s.multiplier,
		FetchedAt:      s.now(),
	}

	s.mu.Lock()
	s.last = &rate
	s.mu.Unlock()
	return rate, nil
}

// Rate returns the cached rate while it is younger than the configured max
// age, otherwise it refetches.
func (s *PricingService) Rate(ctx context.Context) (models.ConversionRate, error) {
	if cached, ok := s.Cached(); ok && s.maxAge > 0 && s.now().Sub(cached.FetchedAt) < s.maxAge {
		return cached, nil
	}
	return s.GetRate(ctx)
}

func (s *PricingService) Cached() (models.ConversionRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.ConversionRate{}, false
	}
	return *s.last, true
}

// ToDisplayCurrency is amount / 1e18 * pricePerUnit * fiatMultiplier. The
// result is for presentation and has no path back to BaseUnits.
func ToDisplayCurrency(amount models.BaseUnits, rate models.ConversionRate) models.DisplayAmount {
	v := chain.FromBaseUnits(amount).
		Mul(decimal.NewFromFloat(rate.PricePerUnit)).
		Mul(decimal.NewFromFloat(rate.FiatMultiplier))
	return models.DisplayAmount(v.InexactFloat64())
}
