package store

import (
	"context"

	"KievAlerts/internal/model"
)

// NoopStore keeps nothing. Used when no backend is configured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) LoadLastSuccess(_ context.Context, _ string) (int64, error) {
	return 0, ErrNotFound
}
func (n *NoopStore) SaveLastSuccess(_ context.Context, _ string, _ int64) error { return nil }
func (n *NoopStore) LoadQuotas(_ context.Context) (map[string]model.Quota, error) {
	return map[string]model.Quota{}, nil
}
func (n *NoopStore) SaveQuotas(_ context.Context, _ map[string]model.Quota) error { return nil }
func (n *NoopStore) LoadSubscribers(_ context.Context) ([]string, error)          { return nil, nil }
func (n *NoopStore) AddSubscriber(_ context.Context, _ string) error              { return nil }
func (n *NoopStore) RecordBroadcast(_ context.Context, _ BroadcastEvent) error    { return nil }
func (n *NoopStore) RecentBroadcasts(_ context.Context, _ int) ([]BroadcastEvent, error) {
	return nil, nil
}
func (n *NoopStore) Close() error { return nil }
