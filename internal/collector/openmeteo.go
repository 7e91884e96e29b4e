package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"KievAlerts/internal/model"
)

// OpenMeteoFetcher implements WeatherFetcher using the Open-Meteo forecast API.
// Daily dates are local to the requested point and land at midnight in Location.
type OpenMeteoFetcher struct {
	BaseURL  string
	Days     int
	Location *time.Location
	Client   *http.Client
}

// NewOpenMeteoFetcher creates a fetcher with optional proxy support.
func NewOpenMeteoFetcher(baseURL, proxyURL string, loc *time.Location) *OpenMeteoFetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &OpenMeteoFetcher{
		BaseURL:  baseURL,
		Days:     3,
		Location: loc,
		Client:   newHTTPClient(proxyURL),
	}
}

func (f *OpenMeteoFetcher) Name() string { return "open-meteo" }

// omResponse is the subset of the Open-Meteo response we use.
type omResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     *struct {
		Time         []string   `json:"time"`
		WeatherCode  []*int     `json:"weather_code"`
		TempMax      []*float64 `json:"temperature_2m_max"`
		TempMin      []*float64 `json:"temperature_2m_min"`
		PrecipChance []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (f *OpenMeteoFetcher) FetchForecast(ctx context.Context, lat, lon float64) (*model.Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	q.Set("timezone", "auto")
	q.Set("timeformat", "iso8601")
	q.Set("forecast_days", strconv.Itoa(f.Days))
	endpoint := fmt.Sprintf("%s/v1/forecast?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read forecast body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch forecast: status %d, body: %s", resp.StatusCode, string(body))
	}

	var om omResponse
	if err := json.Unmarshal(body, &om); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	if om.Error {
		return nil, fmt.Errorf("open-meteo error: %s", om.Reason)
	}
	return om.toForecast(f.Location)
}

func (om *omResponse) toForecast(loc *time.Location) (*model.Forecast, error) {
	fc := &model.Forecast{
		Latitude:  om.Latitude,
		Longitude: om.Longitude,
		FetchedAt: time.Now(),
	}
	if om.Daily == nil {
		return fc, nil
	}
	d := om.Daily
	fc.Days = make([]model.DayPoint, 0, len(d.Time))
	for i, date := range d.Time {
		t, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return nil, fmt.Errorf("parse forecast date %q: %w", date, err)
		}
		day := model.DayPoint{
			Time:            t,
			TemperatureLow:  at(d.TempMin, i),
			TemperatureHigh: at(d.TempMax, i),
		}
		if code := at(d.WeatherCode, i); code != nil {
			day.Summary = describeWeatherCode(*code)
			day.PrecipType = precipFromCode(*code)
		}
		if p := at(d.PrecipChance, i); p != nil {
			day.PrecipProbability = *p / 100
		}
		fc.Days = append(fc.Days, day)
	}
	return fc, nil
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// precipFromCode maps a WMO weather code to a precipitation type.
func precipFromCode(code int) model.PrecipType {
	switch {
	case code == 56 || code == 57 || code == 66 || code == 67:
		return model.PrecipSleet
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return model.PrecipSnow
	case (code >= 51 && code <= 65) || (code >= 80 && code <= 82) || code >= 95:
		return model.PrecipRain
	default:
		return model.PrecipNone
	}
}

var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	56: "Freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snowfall",
	73: "Snowfall",
	75: "Heavy snowfall",
	77: "Snow grains",
	80: "Rain showers",
	81: "Heavy rain showers",
	82: "Violent rain showers",
	85: "Snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

func describeWeatherCode(code int) string {
	if s, ok := weatherCodes[code]; ok {
		return s
	}
	return ""
}
