package model

import "time"

// Price is a spot price quote for one unit of a crypto asset.
type Price struct {
	Base      string  // e.g. "BTC"
	Currency  string  // e.g. "USD"
	Amount    float64
	Source    string
	FetchedAt time.Time
}
