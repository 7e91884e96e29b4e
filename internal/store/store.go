package store

import (
	"context"
	"errors"
	"time"

	"KievAlerts/internal/model"
)

// ErrNotFound is returned when a requested value has never been stored.
var ErrNotFound = errors.New("not found")

// BroadcastEvent is one delivery attempt made from a daily window.
type BroadcastEvent struct {
	ID        string    `json:"id"`
	Window    string    `json:"window"`
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateStore persists the bot state that must survive a restart.
type StateStore interface {
	// LoadLastSuccess returns ErrNotFound for a window that never succeeded.
	LoadLastSuccess(ctx context.Context, window string) (int64, error)
	// SaveLastSuccess never moves a stored timestamp backward.
	SaveLastSuccess(ctx context.Context, window string, ts int64) error

	LoadQuotas(ctx context.Context) (map[string]model.Quota, error)
	// SaveQuotas replaces the whole stored quota set.
	SaveQuotas(ctx context.Context, quotas map[string]model.Quota) error

	LoadSubscribers(ctx context.Context) ([]string, error)
	AddSubscriber(ctx context.Context, chatID string) error

	RecordBroadcast(ctx context.Context, evt BroadcastEvent) error
	// RecentBroadcasts returns up to limit events, newest first.
	RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastEvent, error)

	Close() error
}
