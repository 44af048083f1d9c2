package runtime

import (
	"errors"
	"time"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the command collectors.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the command collectors on reg.
// Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_commands_total",
				Help: "Total number of dispatched commands",
			},
			[]string{"query_type", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "workflow_command_duration_seconds",
				Help: "Duration of command executions",
			},
			[]string{"query_type"},
		),
	}
	m.commands = register(reg, m.commands)
	m.duration = register(reg, m.duration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observe(qt domain.QueryType, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.commands.WithLabelValues(string(qt), status).Inc()
	m.duration.WithLabelValues(string(qt)).Observe(elapsed.Seconds())
}
