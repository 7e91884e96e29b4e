package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"KievAlerts/internal/model"
)

// Window is an hour-of-day range [start, end) with both edges excluded from
// eligibility.
type Window struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// Config holds all application configuration.
type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		AdminChatID string `yaml:"admin_chat_id"`
	} `yaml:"telegram"`
	Weather struct {
		BaseURL   string  `yaml:"base_url"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"weather"`
	Price struct {
		BaseURL string `yaml:"base_url"`
		Pair    string `yaml:"pair"`
	} `yaml:"price"`
	Schedule struct {
		TickInterval      time.Duration `yaml:"tick_interval"`
		DebugTickInterval time.Duration `yaml:"debug_tick_interval"`
		UTCOffsetHours    *int          `yaml:"utc_offset_hours"`
		Broadcast         Window        `yaml:"broadcast"`
		PriceCheck        Window        `yaml:"price_check"`
	} `yaml:"schedule"`
	Quota struct {
		Weather           *int `yaml:"weather"`
		BTC               *int `yaml:"btc"`
		DefaultForUnknown bool `yaml:"default_for_unknown"`
	} `yaml:"quota"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		cfg.Telegram.AdminChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("QUOTA_DEFAULT_FOR_UNKNOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Quota.DefaultForUnknown = b
		}
	}

	// Defaults
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = "https://api.open-meteo.com"
	}
	if cfg.Weather.Latitude == 0 && cfg.Weather.Longitude == 0 {
		cfg.Weather.Latitude = 50.4501
		cfg.Weather.Longitude = 30.5234
	}
	if cfg.Price.BaseURL == "" {
		cfg.Price.BaseURL = "https://api.coinbase.com"
	}
	if cfg.Price.Pair == "" {
		cfg.Price.Pair = "BTC-USD"
	}
	if cfg.Schedule.TickInterval == 0 {
		cfg.Schedule.TickInterval = 60 * time.Second
	}
	if cfg.Schedule.DebugTickInterval == 0 {
		cfg.Schedule.DebugTickInterval = 6 * time.Second
	}
	if cfg.Schedule.UTCOffsetHours == nil {
		offset := 2
		cfg.Schedule.UTCOffsetHours = &offset
	}
	if cfg.Schedule.Broadcast == (Window{}) {
		cfg.Schedule.Broadcast = Window{StartHour: 14, EndHour: 20}
	}
	if cfg.Schedule.PriceCheck == (Window{}) {
		cfg.Schedule.PriceCheck = Window{StartHour: 3, EndHour: 6}
	}
	if cfg.Quota.Weather == nil {
		n := model.DefaultWeatherQuota
		cfg.Quota.Weather = &n
	}
	if cfg.Quota.BTC == nil {
		n := model.DefaultBTCQuota
		cfg.Quota.BTC = &n
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/kievalerts.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "kievalerts"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.AdminChatID == "" {
		return fmt.Errorf("telegram.admin_chat_id is required")
	}
	if err := c.Schedule.Broadcast.validate("schedule.broadcast"); err != nil {
		return err
	}
	if err := c.Schedule.PriceCheck.validate("schedule.price_check"); err != nil {
		return err
	}
	if off := c.offset(); off < -12 || off > 14 {
		return fmt.Errorf("schedule.utc_offset_hours must be within [-12, 14]")
	}
	if c.Schedule.TickInterval < time.Second {
		return fmt.Errorf("schedule.tick_interval must be at least 1s")
	}
	if q := c.DefaultQuota(); q.Weather < 0 || q.BTC < 0 {
		return fmt.Errorf("quota values must not be negative")
	}
	return nil
}

func (w Window) validate(name string) error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("%s: need 0 <= start_hour < end_hour <= 24, got %d-%d", name, w.StartHour, w.EndHour)
	}
	return nil
}

// Location returns the fixed-offset zone used for hour-of-day arithmetic.
func (c *Config) Location() *time.Location {
	off := c.offset()
	return time.FixedZone(fmt.Sprintf("UTC%+d", off), off*3600)
}

func (c *Config) offset() int {
	if c.Schedule.UTCOffsetHours == nil {
		return 0
	}
	return *c.Schedule.UTCOffsetHours
}

// DefaultQuota returns the per-subscriber allocation for a reset cycle.
func (c *Config) DefaultQuota() model.Quota {
	q := model.DefaultQuota()
	if c.Quota.Weather != nil {
		q.Weather = *c.Quota.Weather
	}
	if c.Quota.BTC != nil {
		q.BTC = *c.Quota.BTC
	}
	return q
}

// Interval returns the tick interval, shortened in debug mode.
func (c *Config) Interval(debug bool) time.Duration {
	if debug {
		return c.Schedule.DebugTickInterval
	}
	return c.Schedule.TickInterval
}
