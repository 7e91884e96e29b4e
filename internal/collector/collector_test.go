package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KievAlerts/internal/model"
)

var utc2 = time.FixedZone("UTC+2", 2*3600)

func forecastFor(day time.Time) *model.Forecast {
	return &model.Forecast{Days: []model.DayPoint{{Time: day}, {Time: day.AddDate(0, 0, 1)}}}
}

func TestIsOutdated(t *testing.T) {
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, utc2)
	c := NewCollector(&MockWeatherFetcher{}, &MockPriceFetcher{}, 0, 0, utc2, nil)

	outdated, err := c.IsOutdated(now)
	require.NoError(t, err)
	assert.True(t, outdated, "no forecast cached")

	c.Set(forecastFor(time.Date(2024, time.May, 10, 0, 0, 0, 0, utc2)))
	outdated, err = c.IsOutdated(now)
	require.NoError(t, err)
	assert.False(t, outdated)

	c.Set(forecastFor(time.Date(2024, time.May, 9, 0, 0, 0, 0, utc2)))
	outdated, err = c.IsOutdated(now)
	require.NoError(t, err)
	assert.True(t, outdated)

	c.Set(&model.Forecast{})
	outdated, err = c.IsOutdated(now)
	var missing *model.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "daily", missing.Field)
	assert.True(t, outdated)
}

func TestIsOutdated_ComparesDatesInConfiguredZone(t *testing.T) {
	// 23:30 UTC on May 9 is already May 10 in UTC+2.
	now := time.Date(2024, time.May, 9, 23, 30, 0, 0, time.UTC)
	c := NewCollector(&MockWeatherFetcher{}, &MockPriceFetcher{}, 0, 0, utc2, nil)
	c.Set(forecastFor(time.Date(2024, time.May, 10, 0, 0, 0, 0, utc2)))

	outdated, err := c.IsOutdated(now)
	require.NoError(t, err)
	assert.False(t, outdated)
}

func TestRefreshIfNeeded(t *testing.T) {
	now := time.Now()
	weather := &MockWeatherFetcher{}
	c := NewCollector(weather, &MockPriceFetcher{}, 50.45, 30.52, time.Local, nil)

	assert.True(t, c.RefreshIfNeeded(context.Background(), now))
	assert.Equal(t, 1, weather.Calls)
	require.NotNil(t, c.Latest())

	assert.False(t, c.RefreshIfNeeded(context.Background(), now), "fresh forecast is kept")
	assert.Equal(t, 1, weather.Calls)
}

func TestRefreshIfNeeded_FailureClearsCache(t *testing.T) {
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, utc2)
	weather := &MockWeatherFetcher{Err: errors.New("boom")}
	c := NewCollector(weather, &MockPriceFetcher{}, 0, 0, utc2, nil)
	c.Set(forecastFor(now.AddDate(0, 0, -1)))

	assert.True(t, c.RefreshIfNeeded(context.Background(), now))
	assert.Nil(t, c.Latest())

	assert.True(t, c.RefreshIfNeeded(context.Background(), now), "retries on next tick")
	assert.Equal(t, 2, weather.Calls)
}

func TestOpenMeteoFetcher_FetchForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "50.4501", r.URL.Query().Get("latitude"))
		assert.Equal(t, "iso8601", r.URL.Query().Get("timeformat"))
		w.Write([]byte(`{
			"latitude": 50.45, "longitude": 30.52,
			"daily": {
				"time": ["2024-05-10", "2024-05-11"],
				"weather_code": [3, 73],
				"temperature_2m_max": [21.5, null],
				"temperature_2m_min": [11.0, 2.5],
				"precipitation_probability_max": [0, 80]
			}
		}`))
	}))
	defer srv.Close()

	f := NewOpenMeteoFetcher(srv.URL, "", utc2)
	fc, err := f.FetchForecast(context.Background(), 50.4501, 30.5234)
	require.NoError(t, err)
	require.Len(t, fc.Days, 2)

	today, err := fc.Today()
	require.NoError(t, err)
	assert.Equal(t, "Overcast", today.Summary)
	assert.Equal(t, model.PrecipNone, today.PrecipType)
	require.NotNil(t, today.TemperatureHigh)
	assert.Equal(t, 21.5, *today.TemperatureHigh)

	tomorrow, err := fc.Tomorrow()
	require.NoError(t, err)
	assert.Equal(t, model.PrecipSnow, tomorrow.PrecipType)
	assert.InDelta(t, 0.8, tomorrow.PrecipProbability, 1e-9)
	assert.Nil(t, tomorrow.TemperatureHigh)
	assert.Equal(t, time.Date(2024, time.May, 11, 0, 0, 0, 0, utc2), tomorrow.Time)
}

func TestOpenMeteoFetcher_BadDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily": {"time": ["10.05.2024"]}}`))
	}))
	defer srv.Close()

	_, err := NewOpenMeteoFetcher(srv.URL, "", utc2).FetchForecast(context.Background(), 1, 2)
	assert.ErrorContains(t, err, "parse forecast date")
}

func TestRefreshIfNeeded_OpenMeteoOncePerLocalDay(t *testing.T) {
	// Kyiv in summer is UTC+3; local midnight is 21:00 UTC the day before.
	eest := time.FixedZone("EEST", 3*3600)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "auto", r.URL.Query().Get("timezone"))
		w.Write([]byte(`{
			"utc_offset_seconds": 10800,
			"daily": {
				"time": ["2024-05-10", "2024-05-11", "2024-05-12"],
				"weather_code": [0, 61, 3]
			}
		}`))
	}))
	defer srv.Close()

	c := NewCollector(NewOpenMeteoFetcher(srv.URL, "", utc2), &MockPriceFetcher{}, 50.45, 30.52, utc2, nil)

	start := time.Date(2024, time.May, 10, 9, 0, 0, 0, utc2)
	for i := 0; i < 5; i++ {
		c.RefreshIfNeeded(context.Background(), start.Add(time.Duration(i)*2*time.Hour))
	}
	assert.Equal(t, int32(1), hits.Load())

	outdated, err := c.IsOutdated(start.Add(12 * time.Hour))
	require.NoError(t, err)
	assert.False(t, outdated)

	tomorrow, err := c.Latest().Tomorrow()
	require.NoError(t, err)
	y, m, d := tomorrow.Time.In(utc2).Date()
	assert.Equal(t, []int{2024, 5, 11}, []int{y, int(m), d})
	y, m, d = tomorrow.Time.In(eest).Date()
	assert.Equal(t, []int{2024, 5, 11}, []int{y, int(m), d})

	c.RefreshIfNeeded(context.Background(), time.Date(2024, time.May, 11, 0, 30, 0, 0, utc2))
	assert.Equal(t, int32(2), hits.Load(), "next local day refetches")
}

func TestOpenMeteoFetcher_MissingDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
	}))
	defer srv.Close()

	fc, err := NewOpenMeteoFetcher(srv.URL, "", nil).FetchForecast(context.Background(), 1, 2)
	require.NoError(t, err)

	_, err = fc.Tomorrow()
	var missing *model.MissingFieldError
	assert.ErrorAs(t, err, &missing)
}

func TestOpenMeteoFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": true, "reason": "bad latitude"}`))
	}))
	defer srv.Close()

	_, err := NewOpenMeteoFetcher(srv.URL, "", nil).FetchForecast(context.Background(), 100, 2)
	assert.ErrorContains(t, err, "status 400")
}

func TestCoinbaseFetcher_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/prices/BTC-USD/spot", r.URL.Path)
		w.Write([]byte(`{"data": {"amount": "64123.45", "base": "BTC", "currency": "USD"}}`))
	}))
	defer srv.Close()

	p, err := NewCoinbaseFetcher(srv.URL, "BTC-USD", "").FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64123.45, p.Amount)
	assert.Equal(t, "BTC", p.Base)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "coinbase", p.Source)
}

func TestCoinbaseFetcher_BadAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"amount": "n/a"}}`))
	}))
	defer srv.Close()

	_, err := NewCoinbaseFetcher(srv.URL, "BTC-USD", "").FetchPrice(context.Background())
	assert.ErrorContains(t, err, "parse price amount")
}

func TestPrecipFromCode(t *testing.T) {
	tests := []struct {
		code int
		want model.PrecipType
	}{
		{0, model.PrecipNone},
		{3, model.PrecipNone},
		{45, model.PrecipNone},
		{53, model.PrecipRain},
		{57, model.PrecipSleet},
		{63, model.PrecipRain},
		{67, model.PrecipSleet},
		{75, model.PrecipSnow},
		{81, model.PrecipRain},
		{86, model.PrecipSnow},
		{99, model.PrecipRain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, precipFromCode(tt.code), "code %d", tt.code)
	}
}
