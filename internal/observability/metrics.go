package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the report service.
type Metrics struct {
	SessionsActive prometheus.Gauge
	StepAdvances   *prometheus.CounterVec // labels: outcome={advanced,blocked,confirmation_required,generate}

	// Report generation.
	Generations        *prometheus.CounterVec // labels: outcome={success,missing_credential,failure,empty}
	GenerationDuration prometheus.Histogram
	AlertsRaised       *prometheus.CounterVec // labels: alert

	RemindersSent prometheus.Counter
	PublishErrors prometheus.Counter
	RateLimited   prometheus.Counter
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.SessionsActive,
		m.StepAdvances,
		m.Generations,
		m.GenerationDuration,
		m.AlertsRaised,
		m.RemindersSent,
		m.PublishErrors,
		m.RateLimited,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patrol_report",
			Name:      "sessions_active",
			Help:      "Wizard sessions currently held in memory.",
		}),
		StepAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "step_advances_total",
			Help:      "Attempts to move forward in the wizard by outcome.",
		}, []string{"outcome"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "generations_total",
			Help:      "Report generation attempts by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patrol_report",
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting on the text generator.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "alerts_raised_total",
			Help:      "Alerts included in generated reports.",
		}, []string{"alert"}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "reminders_sent_total",
			Help:      "Reminder notifications delivered.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "publish_errors_total",
			Help:      "Generated reports that could not be published.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patrol_report",
			Name:      "generation_rate_limited_total",
			Help:      "Generation requests refused by the rate limiter.",
		}),
	}
}
