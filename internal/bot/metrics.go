package bot

import (
	"github.com/prometheus/client_golang/prometheus"

	"KievAlerts/internal/metrics"
)

// Metrics exposes tick and broadcast collectors.
type Metrics struct {
	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	Panics        prometheus.Counter
	HandlerPanics prometheus.Counter
	Broadcasts    *prometheus.CounterVec
	Commands      *prometheus.CounterVec
}

// NewMetrics constructs the service collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "ticks_total",
			Help:      "Number of completed ticks.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a tick.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "tick_panics_total",
			Help:      "Panics recovered inside a tick.",
		}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "message_panics_total",
			Help:      "Panics recovered while handling an inbound message.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "broadcasts_total",
			Help:      "Broadcast attempts, partitioned by window and result.",
		}, []string{"window", "result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kievalerts",
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Inbound messages, partitioned by command.",
		}, []string{"command"}),
	}

	var err error
	if m.Ticks, err = metrics.Register(reg, m.Ticks); err != nil {
		return nil, err
	}
	if m.TickDuration, err = metrics.Register(reg, m.TickDuration); err != nil {
		return nil, err
	}
	if m.Panics, err = metrics.Register(reg, m.Panics); err != nil {
		return nil, err
	}
	if m.HandlerPanics, err = metrics.Register(reg, m.HandlerPanics); err != nil {
		return nil, err
	}
	if m.Broadcasts, err = metrics.Register(reg, m.Broadcasts); err != nil {
		return nil, err
	}
	if m.Commands, err = metrics.Register(reg, m.Commands); err != nil {
		return nil, err
	}
	return m, nil
}
