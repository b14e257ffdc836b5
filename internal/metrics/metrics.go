// Package metrics holds the Prometheus collectors of the deployment backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cloud_deploy"

type Metrics struct {
	registry *prometheus.Registry

	deploymentsStarted  *prometheus.CounterVec
	deploymentsFinished *prometheus.CounterVec
	activeDeployments   prometheus.Gauge
	progressRequests    *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deploymentsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_started_total",
				Help:      "Total number of deployments started by provider",
			},
			[]string{"provider"},
		),
		deploymentsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_finished_total",
				Help:      "Total number of deployments finished by provider and result",
			},
			[]string{"provider", "result"},
		),
		activeDeployments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_deployments",
				Help:      "Number of deployments currently running",
			},
		),
		progressRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_requests_total",
				Help:      "Total number of progress requests by result",
			},
			[]string{"result"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of simulated deployment steps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"provider", "step"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deploymentsStarted,
		m.deploymentsFinished,
		m.activeDeployments,
		m.progressRequests,
		m.stepDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DeploymentStarted(provider string) {
	m.deploymentsStarted.WithLabelValues(provider).Inc()
	m.activeDeployments.Inc()
}

// DeploymentFinished records a terminal result: "success", "failed" or "cancelled".
func (m *Metrics) DeploymentFinished(provider, result string) {
	m.deploymentsFinished.WithLabelValues(provider, result).Inc()
	m.activeDeployments.Dec()
}

func (m *Metrics) ProgressRequest(result string) {
	m.progressRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStep(provider, step string, seconds float64) {
	m.stepDuration.WithLabelValues(provider, step).Observe(seconds)
}
