package collector

import (
	"context"

	"KievAlerts/internal/model"
)

// WeatherFetcher fetches a daily forecast for a location.
type WeatherFetcher interface {
	FetchForecast(ctx context.Context, lat, lon float64) (*model.Forecast, error)
	Name() string
}

// PriceFetcher fetches the current spot price. Results are never cached.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (*model.Price, error)
	Name() string
}
