package subscriber

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"KievAlerts/internal/store"
)

// Registry tracks the chats that have talked to the bot. The admin chat is
// always a member.
type Registry struct {
	store  store.StateStore
	admin  string
	logger *zap.Logger

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewRegistry creates a Registry backed by s.
func NewRegistry(s store.StateStore, adminChatID string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		store:  s,
		admin:  adminChatID,
		logger: logger.With(zap.String("component", "subscribers")),
		known:  make(map[string]struct{}),
	}
	if adminChatID != "" {
		r.known[adminChatID] = struct{}{}
	}
	return r
}

// Admin returns the admin chat id.
func (r *Registry) Admin() string { return r.admin }

// IsAdmin reports whether chatID is the admin chat.
func (r *Registry) IsAdmin(chatID string) bool {
	return r.admin != "" && chatID == r.admin
}

// Add records chatID. Returns true when the chat was not known before.
func (r *Registry) Add(ctx context.Context, chatID string) (bool, error) {
	r.mu.RLock()
	_, ok := r.known[chatID]
	r.mu.RUnlock()
	if ok {
		return false, nil
	}

	if err := r.store.AddSubscriber(ctx, chatID); err != nil {
		return false, fmt.Errorf("persist subscriber: %w", err)
	}

	r.mu.Lock()
	r.known[chatID] = struct{}{}
	r.mu.Unlock()
	r.logger.Info("new subscriber", zap.String("chat_id", chatID))
	return true, nil
}

// List reloads the subscriber set from the store and returns it with the
// admin first. On a store error the cached set is returned with the error.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	ids, err := r.store.LoadSubscribers(ctx)

	r.mu.Lock()
	for _, id := range ids {
		r.known[id] = struct{}{}
	}
	out := make([]string, 0, len(r.known))
	for id := range r.known {
		if id != r.admin {
			out = append(out, id)
		}
	}
	r.mu.Unlock()

	sort.Strings(out)
	if r.admin != "" {
		out = append([]string{r.admin}, out...)
	}
	if err != nil {
		return out, fmt.Errorf("load subscribers: %w", err)
	}
	return out, nil
}

// Count returns the number of cached subscribers, admin included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}
