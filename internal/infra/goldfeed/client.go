// Package goldfeed fetches the spot gold price from the upstream
// market-data feed. Gold invoices are settled at this price on the
// payment date.
package goldfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/resilience"
)

var tracer = otel.Tracer("goldfeed")

// Client fetches spot prices from the gold feed API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a new gold feed client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// feedResponse maps the upstream payload.
type feedResponse struct {
	PricePerGram int64  `json:"price_per_gram"`
	Currency     string `json:"currency"`
	Source       string `json:"source"`
}

// FetchSpot fetches the current per-gram spot price with retry,
// circuit breaker, and tracing.
func (c *Client) FetchSpot(ctx context.Context) (*domain.GoldPrice, error) {
	ctx, span := tracer.Start(ctx, "GoldFeed.FetchSpot")
	defer span.End()

	var price domain.GoldPrice

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/spot/gold", c.baseURL)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gold feed returned status %d", resp.StatusCode)
			}

			var fr feedResponse
			if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
				return err
			}
			if fr.PricePerGram <= 0 {
				return fmt.Errorf("gold feed returned non-positive price %d", fr.PricePerGram)
			}

			price = domain.GoldPrice{
				PricePerGram: fr.PricePerGram,
				Currency:     fr.Currency,
				Source:       fr.Source,
				FetchedAt:    time.Now(),
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &price, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "goldfeed", Err: err}
	}

	span.SetAttributes(attribute.Int64("gold.price_per_gram", price.PricePerGram))
	return result.(*domain.GoldPrice), nil
}
