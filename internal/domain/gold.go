package domain

import "time"

// GoldPrice is the spot price of gold per gram in IRR minor units,
// as reported by the upstream price feed.
type GoldPrice struct {
	PricePerGram int64     `json:"price_per_gram"`
	Currency     string    `json:"currency"`
	Source       string    `json:"source,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}
