package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the classifier. A nil *Metrics records
// nothing.
type Metrics struct {
	registry              *prometheus.Registry
	ClassificationsTotal  *prometheus.CounterVec
	ClassificationLatency *prometheus.HistogramVec
	ModifiersTotal        *prometheus.CounterVec
	RuleReloadsTotal      *prometheus.CounterVec
	RulesLoaded           *prometheus.GaugeVec
	CacheRequestsTotal    *prometheus.CounterVec
	HTTPRequestsTotal     *prometheus.CounterVec
	TasksTotal            *prometheus.CounterVec
}

// New creates the collectors on their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_classifications_total",
				Help: "Concepts classified, by configuration and outcome.",
			},
			[]string{"config", "outcome"},
		),
		ClassificationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fastcontext_classification_seconds",
				Help:    "Time to classify the context of one concept.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"config"},
		),
		ModifiersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_modifiers_total",
				Help: "Modifiers asserted on concepts.",
			},
			[]string{"config", "modifier"},
		),
		RuleReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_rule_reloads_total",
				Help: "Rule set reloads by status.",
			},
			[]string{"config", "status"},
		),
		RulesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fastcontext_rules_loaded",
				Help: "Rules in the active rule set.",
			},
			[]string{"config"},
		),
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_cache_requests_total",
				Help: "Result cache lookups by status (hit, miss, error).",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_http_requests_total",
				Help: "API requests by path and status.",
			},
			[]string{"path", "status"},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastcontext_tasks_total",
				Help: "Worker tasks by final status.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.ClassificationsTotal,
		m.ClassificationLatency,
		m.ModifiersTotal,
		m.RuleReloadsTotal,
		m.RulesLoaded,
		m.CacheRequestsTotal,
		m.HTTPRequestsTotal,
		m.TasksTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics of m for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveClassification(config string, outcome string, modifiers []string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(config, outcome).Inc()
	m.ClassificationLatency.WithLabelValues(config).Observe(elapsed.Seconds())
	for _, modifier := range modifiers {
		m.ModifiersTotal.WithLabelValues(config, modifier).Inc()
	}
}

func (m *Metrics) ObserveReload(config string, status string, rules int) {
	if m == nil {
		return
	}
	m.RuleReloadsTotal.WithLabelValues(config, status).Inc()
	if status == StatusSuccess {
		m.RulesLoaded.WithLabelValues(config).Set(float64(rules))
	}
}

func (m *Metrics) ObserveCache(status string) {
	if m == nil {
		return
	}
	m.CacheRequestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveHTTP(path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, http.StatusText(status)).Inc()
}

func (m *Metrics) ObserveTask(status string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
	StatusHit     = "hit"
	StatusMiss    = "miss"
	StatusSkipped = "skipped"
)
