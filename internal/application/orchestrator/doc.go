// Package orchestrator implements the orchestration control plane: spec
// validation, dependency-ordered deployment, lifecycle actions, manual
// scaling and revision rollback. The Manager is the single entry point for
// mutating operations and enforces one active workflow per orchestration.
package orchestrator
