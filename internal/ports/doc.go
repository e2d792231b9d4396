// Package ports defines the boundary interfaces consumed by the control
// plane: Repository (durable orchestration storage), Provisioner (runtime
// unit lifecycle), ProbeExecutor (health checks), MetricSource (utilization
// samples), EventBus (lifecycle events) and MetricsCollector.
//
// Adapters under pkg/adapters implement these interfaces; the application
// layer depends only on this package.
package ports
