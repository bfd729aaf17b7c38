package services

import (
	"context"
	"errors"

	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CatalogService layers display prices over contract listings.
type CatalogService struct {
	market  *MarketplaceService
	pricing *PricingService
	log     *zap.Logger
}

func NewCatalogService(market *MarketplaceService, pricing *PricingService, log *zap.Logger) *CatalogService {
	return &CatalogService{
		market:  market,
		pricing: pricing,
		log:     log,
	}
}

// ListPriced fetches listings and the rate concurrently. A rate failure only
// marks prices as pending, the listings still come back.
func (s *CatalogService) ListPriced(ctx context.Context, w Wallet) ([]models.PricedListing, error) {
	var (
		listings []models.Listing
		rate     models.ConversionRate
		rateErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listings, err = s.market.ListAllListings(gctx, w)
		return err
	})
	g.Go(func() error {
		rate, rateErr = s.pricing.Rate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logRateFailure(rateErr)
	out := make([]models.PricedListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, priced(l, rate, rateErr))
	}
	return out, nil
}

// GetPriced is ListPriced for a single listing.
func (s *CatalogService) GetPriced(ctx context.Context, w Wallet, id uint64) (models.PricedListing, error) {
	var (
		listing models.Listing
		rate    models.ConversionRate
		rateErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = s.market.GetListing(gctx, w, id)
		return err
	})
	g.Go(func() error {
		rate, rateErr = s.pricing.Rate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.PricedListing{}, err
	}

	s.logRateFailure(rateErr)
	return priced(listing, rate, rateErr), nil
}

func (s *CatalogService) logRateFailure(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.log.Warn("conversion rate unavailable, prices pending", zap.Error(err))
}

func priced(l models.Listing, rate models.ConversionRate, rateErr error) models.PricedListing {
	if rateErr != nil {
		return models.PricedListing{Listing: l, PricePending: true}
	}
	display := ToDisplayCurrency(l.Price, rate)
	return models.PricedListing{Listing: l, DisplayPrice: &display}
}
