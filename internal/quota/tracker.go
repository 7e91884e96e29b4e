package quota

import (
	"sync"

	"go.uber.org/zap"

	"KievAlerts/internal/model"
)

// Tracker holds per-identity quota records shared by the tick path and
// inbound message handling.
type Tracker struct {
	mu     sync.RWMutex
	quotas map[string]model.Quota

	// defaultForUnknown makes lookups of identities that were never reset
	// return def instead of a zero record.
	defaultForUnknown bool
	def               model.Quota

	metrics *Metrics
	logger  *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDefaultForUnknown hands out def to identities missing from the map
// instead of locking them out until the next reset.
func WithDefaultForUnknown(def model.Quota) Option {
	return func(t *Tracker) {
		t.defaultForUnknown = true
		t.def = def
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		quotas: make(map[string]model.Quota),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("component", "quota"))
	return t
}

// Get returns the stored record for identity. Unknown identities get a zero
// record unless the tracker was built WithDefaultForUnknown.
func (t *Tracker) Get(identity string) model.Quota {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, _ := t.lookup(identity)
	return q
}

// lookup must be called with mu held.
func (t *Tracker) lookup(identity string) (model.Quota, bool) {
	if q, ok := t.quotas[identity]; ok {
		return q, true
	}
	if t.defaultForUnknown {
		return t.def, false
	}
	t.logger.Warn("no quota for identity", zap.String("identity", identity))
	return model.Quota{}, false
}

// Set overwrites the record for identity.
func (t *Tracker) Set(identity string, q model.Quota) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quotas[identity] = clamp(q)
}

// ResetAll replaces the whole mapping with one def record per identity.
// Readers observe either the old or the new map.
func (t *Tracker) ResetAll(identities []string, def model.Quota) {
	fresh := make(map[string]model.Quota, len(identities))
	for _, id := range identities {
		fresh[id] = clamp(def)
	}

	t.mu.Lock()
	t.quotas = fresh
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.Resets.Inc()
	}
	t.logger.Info("quota reset", zap.Int("identities", len(identities)))
}

// TryConsume takes one unit of category from identity's record. It reports
// the remaining count and whether the unit was granted. A zero count is never
// decremented.
func (t *Tracker) TryConsume(identity string, category model.Category) (remaining int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, known := t.lookup(identity)
	count := pick(&q, category)
	if count == nil || *count <= 0 {
		if t.metrics != nil {
			t.metrics.Denied.WithLabelValues(string(category)).Inc()
		}
		return 0, false
	}

	*count--
	t.quotas[identity] = q
	if !known {
		t.logger.Debug("allocated default quota", zap.String("identity", identity))
	}
	if t.metrics != nil {
		t.metrics.Consumed.WithLabelValues(string(category)).Inc()
	}
	return *count, true
}

// Snapshot returns a copy of all records.
func (t *Tracker) Snapshot() map[string]model.Quota {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]model.Quota, len(t.quotas))
	for k, v := range t.quotas {
		out[k] = v
	}
	return out
}

// Restore replaces the mapping with a previously saved snapshot.
func (t *Tracker) Restore(snapshot map[string]model.Quota) {
	fresh := make(map[string]model.Quota, len(snapshot))
	for k, v := range snapshot {
		fresh[k] = clamp(v)
	}
	t.mu.Lock()
	t.quotas = fresh
	t.mu.Unlock()
}

// Len returns the number of tracked identities.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.quotas)
}

func pick(q *model.Quota, category model.Category) *int {
	switch category {
	case model.CategoryWeather:
		return &q.Weather
	case model.CategoryBTC:
		return &q.BTC
	default:
		return nil
	}
}

func clamp(q model.Quota) model.Quota {
	if q.Weather < 0 {
		q.Weather = 0
	}
	if q.BTC < 0 {
		q.BTC = 0
	}
	return q
}
