package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	orchestrationsSubmitted *prometheus.CounterVec
	deploys                 *prometheus.CounterVec
	deployDuration          *prometheus.HistogramVec
	componentsProvisioned   *prometheus.CounterVec
	provisionDuration       *prometheus.HistogramVec
	probes                  *prometheus.CounterVec
	probeLatency            prometheus.Histogram
	scaleActions            *prometheus.CounterVec
	activeWorkflows         prometheus.Gauge
	activeProbeTasks        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		orchestrationsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackd_orchestrations_submitted_total",
				Help: "Total number of orchestrations submitted",
			},
			[]string{"status"},
		),
		deploys: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackd_deploys_total",
				Help: "Total number of deployment workflows finished",
			},
			[]string{"status"},
		),
		deployDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stackd_deploy_duration_seconds",
				Help:    "Deployment workflow duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		componentsProvisioned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackd_components_provisioned_total",
				Help: "Total number of components provisioned",
			},
			[]string{"component_type", "status"},
		),
		provisionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stackd_component_provision_duration_seconds",
				Help:    "Component provisioning duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"component_type"},
		),
		probes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackd_probes_total",
				Help: "Total number of health probes executed",
			},
			[]string{"result"},
		),
		probeLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stackd_probe_latency_seconds",
				Help:    "Health probe latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
		),
		scaleActions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackd_scale_actions_total",
				Help: "Total number of scale actions applied",
			},
			[]string{"direction"},
		),
		activeWorkflows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stackd_active_workflows",
				Help: "Number of deployment workflows currently in flight",
			},
		),
		activeProbeTasks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stackd_active_probe_tasks",
				Help: "Number of health probe tasks currently running",
			},
		),
	}
}

// RecordOrchestrationSubmitted records an orchestration submission
func (c *Collector) RecordOrchestrationSubmitted(status string) {
	c.orchestrationsSubmitted.WithLabelValues(status).Inc()
}

// RecordDeploy records a finished deployment workflow
func (c *Collector) RecordDeploy(status string, duration time.Duration) {
	c.deploys.WithLabelValues(status).Inc()
	c.deployDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordComponentProvisioned records one component provisioning attempt
func (c *Collector) RecordComponentProvisioned(componentType string, status string, duration time.Duration) {
	c.componentsProvisioned.WithLabelValues(componentType, status).Inc()
	c.provisionDuration.WithLabelValues(componentType).Observe(duration.Seconds())
}

// RecordProbe records one health probe result
func (c *Collector) RecordProbe(ok bool, latency time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.probes.WithLabelValues(result).Inc()
	c.probeLatency.Observe(latency.Seconds())
}

// RecordScaleAction records one applied scale action
func (c *Collector) RecordScaleAction(direction string) {
	c.scaleActions.WithLabelValues(direction).Inc()
}

// SetActiveWorkflows sets the number of in-flight deployment workflows
func (c *Collector) SetActiveWorkflows(count int) {
	c.activeWorkflows.Set(float64(count))
}

// SetActiveProbeTasks sets the number of running probe tasks
func (c *Collector) SetActiveProbeTasks(count int) {
	c.activeProbeTasks.Set(float64(count))
}
