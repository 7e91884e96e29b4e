package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoForecast is returned when no forecast has been fetched yet.
var ErrNoForecast = errors.New("forecast data is not present")

// ErrDayOutOfRange is returned when the forecast has fewer days than requested.
var ErrDayOutOfRange = errors.New("forecast day index out of range")

// MissingFieldError reports a field absent from a forecast payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field is missing: %s", e.Field)
}

// PrecipType classifies expected precipitation.
type PrecipType string

const (
	PrecipNone  PrecipType = ""
	PrecipRain  PrecipType = "rain"
	PrecipSnow  PrecipType = "snow"
	PrecipSleet PrecipType = "sleet"
)

// DayPoint is a single day of a daily forecast.
type DayPoint struct {
	Time              time.Time
	Summary           string
	TemperatureLow    *float64
	TemperatureHigh   *float64
	PrecipType        PrecipType
	PrecipProbability float64 // 0.0 ~ 1.0
}

// Forecast holds a daily forecast for one location. Days[0] is the current day.
type Forecast struct {
	Latitude  float64
	Longitude float64
	Days      []DayPoint
	FetchedAt time.Time
}

// Day returns the forecast for the given offset from today.
func (f *Forecast) Day(offset int) (*DayPoint, error) {
	if f == nil {
		return nil, ErrNoForecast
	}
	if f.Days == nil {
		return nil, &MissingFieldError{Field: "daily"}
	}
	if offset < 0 || offset >= len(f.Days) {
		return nil, fmt.Errorf("day %d of %d: %w", offset, len(f.Days), ErrDayOutOfRange)
	}
	return &f.Days[offset], nil
}

// Today returns the entry for the current day.
func (f *Forecast) Today() (*DayPoint, error) { return f.Day(0) }

// Tomorrow returns the entry for the next day.
func (f *Forecast) Tomorrow() (*DayPoint, error) { return f.Day(1) }
