package model

// Quota holds the remaining lookups per service category for one identity.
type Quota struct {
	Weather int `json:"weather_count"`
	BTC     int `json:"btc_count"`
}

// Default per-identity budgets for one refresh cycle.
const (
	DefaultWeatherQuota = 22
	DefaultBTCQuota     = 12
)

// DefaultQuota returns the allocation given to every subscriber on reset.
func DefaultQuota() Quota {
	return Quota{Weather: DefaultWeatherQuota, BTC: DefaultBTCQuota}
}

// Category identifies a quota-gated service.
type Category string

const (
	CategoryWeather Category = "weather"
	CategoryBTC     Category = "btc"
)
