package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"KievAlerts/internal/notifier"
	"KievAlerts/internal/scheduler"
)

// Inbound commands.
const (
	cmdStart    = "start"
	cmdBitcoin  = "bitcoin"
	cmdForecast = "forecast"
	cmdLocation = "location"
	cmdStatus   = "status"
	cmdHelp     = "help"
)

// HandleMessage answers one inbound chat message. It matches
// notifier.MessageHandler.
func (s *Service) HandleMessage(ctx context.Context, msg notifier.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message handler panicked",
				zap.String("chat_id", msg.ChatID), zap.Any("panic", r), zap.Stack("stack"))
			if s.metrics != nil {
				s.metrics.HandlerPanics.Inc()
			}
		}
	}()

	if _, err := s.subscribers.Add(ctx, msg.ChatID); err != nil {
		s.logger.Warn("could not register subscriber", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}

	cmd := parseCommand(msg)
	if s.metrics != nil {
		s.metrics.Commands.WithLabelValues(cmd).Inc()
	}

	kb := notifier.DefaultKeyboard()
	var (
		text     string
		err      error
		fallback string
	)
	switch cmd {
	case cmdStart:
		text = notifier.WelcomeText
	case cmdBitcoin:
		text, err = s.priceQuote(ctx, msg.ChatID)
		fallback = notifier.NoPriceText
		s.persistQuotas()
	case cmdForecast:
		text, err = s.forecastForTomorrow(ctx, msg.ChatID)
		fallback = notifier.NoForecastText
		s.persistQuotas()
	case cmdLocation:
		text, err = s.forecastAt(ctx, msg.ChatID, msg.Location.Latitude, msg.Location.Longitude)
		fallback = notifier.NoForecastText
		s.persistQuotas()
	case cmdStatus:
		if s.subscribers.IsAdmin(msg.ChatID) {
			text = s.status(ctx)
		} else {
			text = notifier.HelpText
		}
	default:
		text = notifier.HelpText
	}

	if err != nil {
		s.logger.Warn("request failed", zap.String("chat_id", msg.ChatID), zap.String("command", cmd), zap.Error(err))
		text = fallback
	}
	if sendErr := s.sender.SendTo(ctx, msg.ChatID, text, kb); sendErr != nil {
		s.logger.Error("reply failed", zap.String("chat_id", msg.ChatID), zap.Error(sendErr))
	}
}

// parseCommand maps a message to a command. Slash commands may carry a
// "@botname" suffix and arguments.
func parseCommand(msg notifier.IncomingMessage) string {
	if msg.Location != nil {
		return cmdLocation
	}
	text := strings.ToLower(strings.TrimSpace(msg.Text))
	switch text {
	case strings.ToLower(notifier.ButtonBitcoin):
		return cmdBitcoin
	case strings.ToLower(notifier.ButtonForecast):
		return cmdForecast
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return cmdHelp
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	switch word {
	case "start":
		return cmdStart
	case "bitcoin", "btc":
		return cmdBitcoin
	case "forecast", "forecast_kiev_tomorrow":
		return cmdForecast
	case "status":
		if strings.HasPrefix(fields[0], "/") {
			return cmdStatus
		}
	}
	return cmdHelp
}

func (s *Service) status(ctx context.Context) string {
	windows := make([]notifier.WindowStatus, 0, 2)
	for _, w := range []*scheduler.DailyWindow{s.forecastWindow, s.priceWindow} {
		start, end := w.Hours()
		windows = append(windows, notifier.WindowStatus{
			Name:        w.Name,
			StartHour:   start,
			EndHour:     end,
			LastSuccess: w.LastSuccess(),
		})
	}
	report := notifier.StatusReport{
		Windows:     windows,
		Subscribers: s.subscribers.Count(),
		AdminQuota:  s.tracker.Get(s.subscribers.Admin()),
	}
	if events, err := s.store.RecentBroadcasts(ctx, 1); err != nil {
		s.logger.Warn("load broadcast history failed", zap.Error(err))
	} else if len(events) > 0 {
		report.LastBroadcast = &notifier.BroadcastSummary{
			Window:  events[0].Window,
			At:      events[0].Timestamp,
			Success: events[0].Success,
		}
	}
	return notifier.FormatStatus(report, s.loc)
}
