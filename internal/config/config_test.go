package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KievAlerts/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Schedule.TickInterval)
	assert.Equal(t, 6*time.Second, cfg.Schedule.DebugTickInterval)
	assert.Equal(t, Window{StartHour: 14, EndHour: 20}, cfg.Schedule.Broadcast)
	assert.Equal(t, Window{StartHour: 3, EndHour: 6}, cfg.Schedule.PriceCheck)
	assert.Equal(t, model.DefaultQuota(), cfg.DefaultQuota())
	assert.False(t, cfg.Quota.DefaultForUnknown)
	assert.Equal(t, "data/kievalerts.db", cfg.Database.SQLitePath)

	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, 2*3600, offset)
}

func TestLoad_YAMLValues(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: "tok"
  admin_chat_id: "42"
schedule:
  tick_interval: 30s
  utc_offset_hours: 0
  broadcast:
    start_hour: 14
    end_hour: 24
quota:
  weather: 5
  btc: 1
  default_for_unknown: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tok", cfg.Telegram.BotToken)
	assert.Equal(t, 30*time.Second, cfg.Interval(false))
	assert.Equal(t, 6*time.Second, cfg.Interval(true))
	assert.Equal(t, Window{StartHour: 14, EndHour: 24}, cfg.Schedule.Broadcast)
	assert.Equal(t, model.Quota{Weather: 5, BTC: 1}, cfg.DefaultQuota())
	assert.True(t, cfg.Quota.DefaultForUnknown)

	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, 0, offset, "explicit zero offset is kept")
}

func TestLoad_ZeroQuotaIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "quota:\n  weather: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, model.Quota{Weather: 0, BTC: model.DefaultBTCQuota}, cfg.DefaultQuota())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "7")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("QUOTA_DEFAULT_FOR_UNKNOWN", "true")

	cfg, err := Load(writeConfig(t, "telegram:\n  bot_token: file-token\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "7", cfg.Telegram.AdminChatID)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Quota.DefaultForUnknown)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "schedule: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		cfg.Telegram.BotToken = "tok"
		cfg.Telegram.AdminChatID = "1"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"ok", func(*Config) {}, ""},
		{"no token", func(c *Config) { c.Telegram.BotToken = "" }, "bot_token"},
		{"no admin", func(c *Config) { c.Telegram.AdminChatID = "" }, "admin_chat_id"},
		{"inverted window", func(c *Config) { c.Schedule.Broadcast = Window{StartHour: 20, EndHour: 14} }, "schedule.broadcast"},
		{"window past midnight", func(c *Config) { c.Schedule.PriceCheck = Window{StartHour: 3, EndHour: 25} }, "schedule.price_check"},
		{"offset out of range", func(c *Config) { off := 20; c.Schedule.UTCOffsetHours = &off }, "utc_offset_hours"},
		{"fast tick", func(c *Config) { c.Schedule.TickInterval = time.Millisecond }, "tick_interval"},
		{"negative quota", func(c *Config) { n := -1; c.Quota.BTC = &n }, "quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
