package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"KievAlerts/internal/collector"
	"KievAlerts/internal/model"
	"KievAlerts/internal/notifier"
	"KievAlerts/internal/quota"
	"KievAlerts/internal/scheduler"
	"KievAlerts/internal/store"
	"KievAlerts/internal/subscriber"
)

// Window names, also used as persistence keys.
const (
	ForecastWindow = "forecast"
	PriceWindow    = "price"
)

// Sender delivers chat messages.
type Sender interface {
	SendTo(ctx context.Context, chatID, text string, kb *notifier.Keyboard) error
	SendWithRetry(ctx context.Context, chatID, text string, kb *notifier.Keyboard, maxRetries int) error
}

// Hours is an hour-of-day window, both bounds excluded.
type Hours struct {
	Start int
	End   int
}

// Settings holds the tunables of a Service.
type Settings struct {
	Broadcast    Hours
	PriceCheck   Hours
	Location     *time.Location
	DefaultQuota model.Quota
	SendRetries  int
}

// Deps are the collaborators of a Service.
type Deps struct {
	Collector   *collector.Collector
	Tracker     *quota.Tracker
	Subscribers *subscriber.Registry
	Sender      Sender
	Store       store.StateStore
	Metrics     *Metrics
	Logger      *zap.Logger
}

// Service ties the forecast cache, quota tracker and daily windows together.
// It is shared by the tick driver and the inbound message loop.
type Service struct {
	ctx context.Context

	collector   *collector.Collector
	tracker     *quota.Tracker
	subscribers *subscriber.Registry
	sender      Sender
	store       store.StateStore
	metrics     *Metrics
	logger      *zap.Logger

	forecastWindow *scheduler.DailyWindow
	priceWindow    *scheduler.DailyWindow

	loc      *time.Location
	defQuota model.Quota
	retries  int
	now      func() time.Time
}

// NewService builds a Service. ctx bounds every outbound call it makes.
func NewService(ctx context.Context, set Settings, d Deps) (*Service, error) {
	if d.Collector == nil || d.Tracker == nil || d.Subscribers == nil || d.Sender == nil {
		return nil, errors.New("collector, tracker, subscribers and sender are required")
	}
	if set.Location == nil {
		set.Location = time.UTC
	}
	if d.Store == nil {
		d.Store = store.NewNoopStore()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	forecast, err := scheduler.NewDailyWindow(ForecastWindow, set.Broadcast.Start, set.Broadcast.End, set.Location, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("forecast window: %w", err)
	}
	price, err := scheduler.NewDailyWindow(PriceWindow, set.PriceCheck.Start, set.PriceCheck.End, set.Location, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("price window: %w", err)
	}

	return &Service{
		ctx:            ctx,
		collector:      d.Collector,
		tracker:        d.Tracker,
		subscribers:    d.Subscribers,
		sender:         d.Sender,
		store:          d.Store,
		metrics:        d.Metrics,
		logger:         d.Logger.With(zap.String("component", "bot")),
		forecastWindow: forecast,
		priceWindow:    price,
		loc:            set.Location,
		defQuota:       set.DefaultQuota,
		retries:        set.SendRetries,
		now:            time.Now,
	}, nil
}

// Restore loads persisted window timestamps, quotas and subscribers so a
// restart does not repeat a broadcast that already went out today.
func (s *Service) Restore(ctx context.Context) error {
	for _, w := range []*scheduler.DailyWindow{s.forecastWindow, s.priceWindow} {
		ts, err := s.store.LoadLastSuccess(ctx, w.Name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("restore window %s: %w", w.Name, err)
		}
		w.Restore(ts)
		s.logger.Info("window restored", zap.String("window", w.Name), zap.Time("last_success", w.LastSuccess()))
	}

	quotas, err := s.store.LoadQuotas(ctx)
	if err != nil {
		return fmt.Errorf("restore quotas: %w", err)
	}
	if len(quotas) > 0 {
		s.tracker.Restore(quotas)
	}

	if _, err := s.subscribers.List(ctx); err != nil {
		return fmt.Errorf("restore subscribers: %w", err)
	}
	return nil
}

// Tick is called by the periodic driver. It never panics.
func (s *Service) Tick() {
	s.TickAt(s.now())
}

// TickAt runs one orchestration step as if the current time were now.
func (s *Service) TickAt(now time.Time) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", zap.Any("panic", r), zap.Stack("stack"))
			if s.metrics != nil {
				s.metrics.Panics.Inc()
			}
		}
		if s.metrics != nil {
			s.metrics.Ticks.Inc()
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if s.collector.RefreshIfNeeded(s.ctx, now) {
		s.refreshQuotas()
	}

	s.forecastWindow.EvaluateAndMaybeRun(now, scheduler.ActionFunc(func() bool {
		return s.broadcast(now, ForecastWindow, s.forecastForTomorrow)
	}))
	s.priceWindow.EvaluateAndMaybeRun(now, scheduler.ActionFunc(func() bool {
		return s.broadcast(now, PriceWindow, s.priceQuote)
	}))

	s.persist()
}

func (s *Service) refreshQuotas() {
	ids, err := s.subscribers.List(s.ctx)
	if err != nil {
		s.logger.Warn("subscriber refresh failed, using cached list", zap.Error(err))
	}
	s.tracker.ResetAll(ids, s.defQuota)
	s.logger.Info("quotas reset", zap.Int("subscribers", len(ids)))
}

// broadcast sends one window's message to the admin and records the attempt.
func (s *Service) broadcast(now time.Time, window string, compose func(ctx context.Context, chatID string) (string, error)) bool {
	admin := s.subscribers.Admin()
	text, err := compose(s.ctx, admin)
	if err == nil {
		err = s.sender.SendWithRetry(s.ctx, admin, text, nil, s.retries)
	}

	evt := store.BroadcastEvent{Window: window, Recipient: admin, Success: err == nil, Timestamp: now}
	result := "ok"
	if err != nil {
		result = "failed"
		evt.Note = err.Error()
		var missing *model.MissingFieldError
		if errors.As(err, &missing) {
			s.logger.Warn("forecast is missing a field", zap.String("window", window), zap.String("field", missing.Field))
		} else {
			s.logger.Error("broadcast failed", zap.String("window", window), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.Broadcasts.WithLabelValues(window, result).Inc()
	}
	if recErr := s.store.RecordBroadcast(s.ctx, evt); recErr != nil {
		s.logger.Warn("record broadcast failed", zap.Error(recErr))
	}
	return err == nil
}

// forecastForTomorrow spends one weather unit of chatID and renders the
// cached forecast for tomorrow. An exhausted quota yields the fixed notice
// and is not an error.
func (s *Service) forecastForTomorrow(_ context.Context, chatID string) (string, error) {
	if _, ok := s.tracker.TryConsume(chatID, model.CategoryWeather); !ok {
		return notifier.QuotaExceededText, nil
	}
	fc := s.collector.Latest()
	if fc == nil {
		return "", model.ErrNoForecast
	}
	day, err := fc.Tomorrow()
	if err != nil {
		return "", fmt.Errorf("tomorrow's forecast: %w", err)
	}
	return notifier.FormatForecast(day, s.loc)
}

// forecastAt spends one weather unit and renders a fresh forecast for the
// given point.
func (s *Service) forecastAt(ctx context.Context, chatID string, lat, lon float64) (string, error) {
	if _, ok := s.tracker.TryConsume(chatID, model.CategoryWeather); !ok {
		return notifier.QuotaExceededText, nil
	}
	fc, err := s.collector.ForecastAt(ctx, lat, lon)
	if err != nil {
		return "", fmt.Errorf("forecast at location: %w", err)
	}
	day, err := fc.Tomorrow()
	if err != nil {
		return "", fmt.Errorf("tomorrow's forecast: %w", err)
	}
	text, err := notifier.FormatForecast(day, s.loc)
	if err != nil {
		return "", err
	}
	return notifier.FormatLocationHeader(lat, lon) + text, nil
}

// priceQuote spends one btc unit of chatID and renders the spot price.
func (s *Service) priceQuote(ctx context.Context, chatID string) (string, error) {
	if _, ok := s.tracker.TryConsume(chatID, model.CategoryBTC); !ok {
		return notifier.QuotaExceededText, nil
	}
	p, err := s.collector.CurrentPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch price: %w", err)
	}
	return notifier.FormatPrice(p, s.loc), nil
}

func (s *Service) persist() {
	for _, w := range []*scheduler.DailyWindow{s.forecastWindow, s.priceWindow} {
		ts := w.LastSuccessUnix()
		if ts == 0 {
			continue
		}
		if err := s.store.SaveLastSuccess(s.ctx, w.Name, ts); err != nil {
			s.logger.Warn("save window state failed", zap.String("window", w.Name), zap.Error(err))
		}
	}
	s.persistQuotas()
}

func (s *Service) persistQuotas() {
	if err := s.store.SaveQuotas(s.ctx, s.tracker.Snapshot()); err != nil {
		s.logger.Warn("save quotas failed", zap.Error(err))
	}
}

// Windows returns the forecast and price windows.
func (s *Service) Windows() (forecast, price *scheduler.DailyWindow) {
	return s.forecastWindow, s.priceWindow
}
