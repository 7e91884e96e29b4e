package notifier

import (
	"fmt"
	"strings"
	"time"

	"KievAlerts/internal/model"
)

// Fixed user-facing texts.
const (
	QuotaExceededText = "Max request count exceeded."
	WelcomeText       = "Welcome to Kiev Alerts"
	HelpText          = "Available commands:\n• Bitcoin Price\n• Tomorrow's forecast\n• share a location for a local forecast"
	NoForecastText    = "Forecast is not available right now, try again later."
	NoPriceText       = "Could not get bitcoin price."
)

// Button labels of the default keyboard.
const (
	ButtonBitcoin  = "Bitcoin Price"
	ButtonForecast = "Tomorrow's forecast"
	ButtonLocation = "Forecast for my location"
)

// DefaultKeyboard is attached to every reply sent to a user.
func DefaultKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]KeyboardButton{
		{{Text: ButtonBitcoin}, {Text: ButtonForecast}},
		{{Text: ButtonLocation, RequestLocation: true}},
	}}
}

// FormatForecast renders one forecast day. Dates are shown in loc.
func FormatForecast(day *model.DayPoint, loc *time.Location) (string, error) {
	if day.TemperatureLow == nil {
		return "", &model.MissingFieldError{Field: "temperature_low"}
	}
	if day.TemperatureHigh == nil {
		return "", &model.MissingFieldError{Field: "temperature_high"}
	}

	var b strings.Builder
	dt := day.Time.In(loc)
	b.WriteString(fmt.Sprintf("Forecast for tomorrow %d.%d:\n", dt.Day(), int(dt.Month())))
	if day.Summary != "" {
		b.WriteString(day.Summary + "\n")
	}
	b.WriteString(fmt.Sprintf("Temperature: from %.1f\u2103 to %.1f\u2103\n", *day.TemperatureLow, *day.TemperatureHigh))

	if day.PrecipType == model.PrecipNone || day.PrecipProbability < 0.01 {
		b.WriteString("No precipitation")
	} else {
		b.WriteString(fmt.Sprintf("Precipitation: %s with probability %.2f%%", precipLabel(day.PrecipType), day.PrecipProbability*100))
	}
	return b.String(), nil
}

func precipLabel(p model.PrecipType) string {
	switch p {
	case model.PrecipRain:
		return "Rain"
	case model.PrecipSnow:
		return "Snow"
	case model.PrecipSleet:
		return "Rain and snow"
	default:
		return "-"
	}
}

// FormatPrice renders a spot price quote.
func FormatPrice(p *model.Price, loc *time.Location) string {
	return fmt.Sprintf("%s \n1 %s = %.2f %s", p.FetchedAt.In(loc).Format("Jan 2, 2006 15:04 MST"), p.Base, p.Amount, p.Currency)
}

// FormatLocationHeader prefixes an immediate forecast with the requested point.
func FormatLocationHeader(lat, lon float64) string {
	return fmt.Sprintf("lat: %.4f, lon: %.4f\n", lat, lon)
}

// WindowStatus describes one daily window for the status report.
type WindowStatus struct {
	Name        string
	StartHour   int
	EndHour     int
	LastSuccess time.Time
}

// BroadcastSummary is the latest delivery attempt shown in the status report.
type BroadcastSummary struct {
	Window  string
	At      time.Time
	Success bool
}

// StatusReport is rendered by FormatStatus for the admin.
type StatusReport struct {
	Windows       []WindowStatus
	Subscribers   int
	AdminQuota    model.Quota
	LastBroadcast *BroadcastSummary
}

// FormatStatus renders the admin status report.
func FormatStatus(r StatusReport, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Status\n\n")
	for _, w := range r.Windows {
		last := "never"
		if !w.LastSuccess.IsZero() {
			last = w.LastSuccess.In(loc).Format(time.RFC1123Z)
		}
		b.WriteString(fmt.Sprintf("%s (%02d-%02d): last success %s\n", w.Name, w.StartHour, w.EndHour, last))
	}
	if lb := r.LastBroadcast; lb != nil {
		result := "ok"
		if !lb.Success {
			result = "failed"
		}
		b.WriteString(fmt.Sprintf("Last broadcast: %s %s (%s)\n", lb.Window, lb.At.In(loc).Format(time.RFC1123Z), result))
	}
	b.WriteString(fmt.Sprintf("Subscribers: %d\n", r.Subscribers))
	b.WriteString(fmt.Sprintf("Admin quota: weather %d, btc %d", r.AdminQuota.Weather, r.AdminQuota.BTC))
	return b.String()
}
