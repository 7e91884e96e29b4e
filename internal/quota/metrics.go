package quota

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"KievAlerts/internal/metrics"
)

// Metrics exposes quota consumption counters.
type Metrics struct {
	Consumed *prometheus.CounterVec
	Denied   *prometheus.CounterVec
	Resets   prometheus.Counter
}

// NewMetrics constructs the quota collectors and registers them with reg.
// A nil reg falls back to the default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "quota",
			Name:      "consumed_total",
			Help:      "Quota units granted, partitioned by category.",
		}, []string{"category"}),
		Denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "quota",
			Name:      "denied_total",
			Help:      "Requests refused because the quota was exhausted, partitioned by category.",
		}, []string{"category"}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "quota",
			Name:      "resets_total",
			Help:      "Number of bulk quota resets.",
		}),
	}

	var err error
	if m.Consumed, err = metrics.Register(reg, m.Consumed); err != nil {
		return nil, fmt.Errorf("consumed: %w", err)
	}
	if m.Denied, err = metrics.Register(reg, m.Denied); err != nil {
		return nil, fmt.Errorf("denied: %w", err)
	}
	if m.Resets, err = metrics.Register(reg, m.Resets); err != nil {
		return nil, fmt.Errorf("resets: %w", err)
	}
	return m, nil
}
