// Package supervisor implements the background supervision layer: periodic
// health probing of running components and reactive replica scaling driven
// by utilization metrics. Both run independently of the request path and
// survive deploys on unrelated orchestrations.
package supervisor
