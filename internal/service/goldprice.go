package service

import (
	"context"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var goldTracer = otel.Tracer("service/goldprice")

const goldSpotCacheKey = "gold:spot"

// GoldPriceService serves the spot price, caching feed responses so
// every payment in a busy minute does not hit the upstream feed.
type GoldPriceService struct {
	fetcher port.GoldPriceFetcher
	cache   port.Cache[*domain.GoldPrice]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewGoldPriceService creates a new gold price service.
func NewGoldPriceService(fetcher port.GoldPriceFetcher, cache port.Cache[*domain.GoldPrice], metrics *observability.Metrics, logger *zap.Logger) *GoldPriceService {
	return &GoldPriceService{fetcher: fetcher, cache: cache, metrics: metrics, logger: logger}
}

// GetSpot returns the current per-gram spot price, from cache when fresh.
func (s *GoldPriceService) GetSpot(ctx context.Context) (*domain.GoldPrice, error) {
	ctx, span := goldTracer.Start(ctx, "GoldPriceService.GetSpot")
	defer span.End()

	if cached, ok := s.cache.Get(goldSpotCacheKey); ok {
		s.metrics.IncrCacheHit("gold_spot")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	s.metrics.IncrCacheMiss("gold_spot")

	price, err := s.fetcher.FetchSpot(ctx)
	if err != nil {
		s.metrics.IncrExternalError("goldfeed")
		s.logger.Error("failed to fetch gold spot price", zap.Error(err))
		return nil, err
	}

	s.cache.Set(goldSpotCacheKey, price)
	s.logger.Debug("gold spot price fetched",
		zap.Int64("price_per_gram", price.PricePerGram),
		zap.String("source", price.Source),
	)

	return price, nil
}
