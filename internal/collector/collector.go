package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"KievAlerts/internal/model"
)

// MockWeatherFetcher returns a fixed forecast for development and testing.
type MockWeatherFetcher struct {
	mu       sync.Mutex
	Forecast *model.Forecast
	Err      error
	Calls    int
}

func (m *MockWeatherFetcher) Name() string { return "mock" }

func (m *MockWeatherFetcher) FetchForecast(_ context.Context, lat, lon float64) (*model.Forecast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Forecast == nil {
		return generateMockForecast(lat, lon, time.Now()), nil
	}
	fc := *m.Forecast
	return &fc, nil
}

// MockPriceFetcher returns a fixed price.
type MockPriceFetcher struct {
	mu     sync.Mutex
	Amount float64
	Err    error
	Calls  int
}

func (m *MockPriceFetcher) Name() string { return "mock" }

func (m *MockPriceFetcher) FetchPrice(_ context.Context) (*model.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return &model.Price{Base: "BTC", Currency: "USD", Amount: m.Amount, Source: "mock", FetchedAt: time.Now()}, nil
}

func generateMockForecast(lat, lon float64, now time.Time) *model.Forecast {
	days := make([]model.DayPoint, 3)
	for i := range days {
		low, high := 10.0+float64(i), 18.0+float64(i)
		days[i] = model.DayPoint{
			Time:              now.AddDate(0, 0, i),
			Summary:           "Partly cloudy",
			TemperatureLow:    &low,
			TemperatureHigh:   &high,
			PrecipType:        model.PrecipRain,
			PrecipProbability: 0.1 * float64(i),
		}
	}
	return &model.Forecast{Latitude: lat, Longitude: lon, Days: days, FetchedAt: now}
}

// Collector caches the forecast for the home location and decides when it
// has gone stale.
type Collector struct {
	Weather   WeatherFetcher
	Price     PriceFetcher
	Latitude  float64
	Longitude float64

	loc    *time.Location
	logger *zap.Logger

	mu   sync.RWMutex
	last *model.Forecast
}

// NewCollector creates a new Collector. Dates are compared in loc.
func NewCollector(weather WeatherFetcher, price PriceFetcher, lat, lon float64, loc *time.Location, logger *zap.Logger) *Collector {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		Weather:   weather,
		Price:     price,
		Latitude:  lat,
		Longitude: lon,
		loc:       loc,
		logger:    logger.With(zap.String("component", "collector")),
	}
}

// Latest returns the cached forecast, or nil if none is held.
func (c *Collector) Latest() *model.Forecast {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// IsOutdated reports whether the cached forecast is not for today. An absent
// forecast is outdated; a malformed one returns an error.
func (c *Collector) IsOutdated(now time.Time) (bool, error) {
	fc := c.Latest()
	if fc == nil {
		return true, nil
	}
	today, err := fc.Today()
	if err != nil {
		return true, err
	}
	y1, m1, d1 := today.Time.In(c.loc).Date()
	y2, m2, d2 := now.In(c.loc).Date()
	return y1 != y2 || m1 != m2 || d1 != d2, nil
}

// RefreshIfNeeded fetches a new forecast when the cached one is outdated and
// reports whether a refresh was attempted. A failed fetch clears the cache so
// the next tick tries again.
func (c *Collector) RefreshIfNeeded(ctx context.Context, now time.Time) bool {
	outdated, err := c.IsOutdated(now)
	if err != nil {
		var missing *model.MissingFieldError
		if errors.As(err, &missing) {
			c.logger.Warn("cached forecast is missing a field", zap.String("field", missing.Field))
		} else {
			c.logger.Warn("cached forecast unusable", zap.Error(err))
		}
	}
	if !outdated {
		return false
	}

	c.logger.Info("requesting weather forecast", zap.String("source", c.Weather.Name()))
	fc, err := c.Weather.FetchForecast(ctx, c.Latitude, c.Longitude)
	if err != nil {
		c.logger.Error("error while requesting forecast", zap.Error(err))
		fc = nil
	}
	c.mu.Lock()
	c.last = fc
	c.mu.Unlock()
	return true
}

// ForecastAt fetches an uncached forecast for arbitrary coordinates.
func (c *Collector) ForecastAt(ctx context.Context, lat, lon float64) (*model.Forecast, error) {
	return c.Weather.FetchForecast(ctx, lat, lon)
}

// CurrentPrice fetches the spot price.
func (c *Collector) CurrentPrice(ctx context.Context) (*model.Price, error) {
	return c.Price.FetchPrice(ctx)
}

// Set replaces the cached forecast.
func (c *Collector) Set(fc *model.Forecast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = fc
}
