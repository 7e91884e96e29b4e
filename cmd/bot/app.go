package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"KievAlerts/internal/bot"
	"KievAlerts/internal/collector"
	"KievAlerts/internal/config"
	"KievAlerts/internal/notifier"
	"KievAlerts/internal/quota"
	"KievAlerts/internal/store"
	"KievAlerts/internal/subscriber"
)

const sendRetries = 2

// app holds the wired components shared by the tick driver and polling.
type app struct {
	svc      *bot.Service
	telegram *notifier.TelegramNotifier
	store    store.StateStore
}

func newApp(ctx context.Context, cfg *config.Config, lg *zap.Logger, reg prometheus.Registerer) (*app, error) {
	st := openStore(ctx, cfg, lg)

	var (
		weather collector.WeatherFetcher
		price   collector.PriceFetcher
	)
	if mockFeeds {
		weather = &collector.MockWeatherFetcher{}
		price = &collector.MockPriceFetcher{Amount: 65000}
	} else {
		weather = collector.NewOpenMeteoFetcher(cfg.Weather.BaseURL, cfg.Proxy, cfg.Location())
		price = collector.NewCoinbaseFetcher(cfg.Price.BaseURL, cfg.Price.Pair, cfg.Proxy)
	}
	lg.Info("data sources", zap.String("weather", weather.Name()), zap.String("price", price.Name()))
	col := collector.NewCollector(weather, price, cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Location(), lg)

	qm, err := quota.NewMetrics(reg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("quota metrics: %w", err)
	}
	opts := []quota.Option{quota.WithMetrics(qm), quota.WithLogger(lg)}
	if cfg.Quota.DefaultForUnknown {
		opts = append(opts, quota.WithDefaultForUnknown(cfg.DefaultQuota()))
	}
	tracker := quota.NewTracker(opts...)

	bm, err := bot.NewMetrics(reg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("bot metrics: %w", err)
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Proxy, lg)
	registry := subscriber.NewRegistry(st, cfg.Telegram.AdminChatID, lg)

	svc, err := bot.NewService(ctx, bot.Settings{
		Broadcast:    bot.Hours{Start: cfg.Schedule.Broadcast.StartHour, End: cfg.Schedule.Broadcast.EndHour},
		PriceCheck:   bot.Hours{Start: cfg.Schedule.PriceCheck.StartHour, End: cfg.Schedule.PriceCheck.EndHour},
		Location:     cfg.Location(),
		DefaultQuota: cfg.DefaultQuota(),
		SendRetries:  sendRetries,
	}, bot.Deps{
		Collector:   col,
		Tracker:     tracker,
		Subscribers: registry,
		Sender:      tn,
		Store:       st,
		Metrics:     bm,
		Logger:      lg,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}
	if err := svc.Restore(ctx); err != nil {
		lg.Warn("restore state failed, starting fresh", zap.Error(err))
	}

	return &app{svc: svc, telegram: tn, store: st}, nil
}

// openStore picks Redis when an address is configured, then SQLite, and
// falls back to a no-op store.
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) store.StateStore {
	if cfg.Redis.Addr != "" {
		client := red.NewClient(&red.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			lg.Warn("redis unavailable, trying sqlite", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = client.Close()
		} else {
			lg.Info("redis store connected", zap.String("addr", cfg.Redis.Addr))
			return store.NewRedisStore(client, cfg.Redis.Prefix)
		}
	}
	if cfg.Database.SQLitePath != "" {
		st, err := store.NewSQLiteStore(cfg.Database.SQLitePath, lg)
		if err == nil {
			return st
		}
		lg.Warn("init sqlite store failed, using noop", zap.Error(err))
	}
	return store.NewNoopStore()
}

func (a *app) Close() {
	_ = a.store.Close()
}
