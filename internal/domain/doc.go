// Package domain defines the orchestration data model.
//
// Core types:
//   - Orchestration: a stack of interdependent components managed as one unit
//   - Component: one deployable unit, a closed union of five typed configs
//   - Revision: an immutable configuration snapshot taken after each deploy
//   - HealthCheckState / ScalingState: supervision bookkeeping
//
// The package also defines the typed error taxonomy shared by all layers.
// Types here carry no behavior beyond invariant helpers; all coordination
// lives in the application layer.
package domain
