package domain

import (
	"time"
)

// HealthStatus represents the probed health of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusStarting  HealthStatus = "starting"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ProbeRingCapacity bounds the number of recent probe results retained per
// component for diagnostics.
const ProbeRingCapacity = 10

// ProbeResult is the outcome of a single health probe
type ProbeResult struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Output  string        `json:"output,omitempty"`
	At      time.Time     `json:"at"`
}

// HealthCheckState tracks the health of one component. Probe tasks read and
// write this state without holding the orchestration lock; it is not part of
// the deploy/scale/rollback invariant.
type HealthCheckState struct {
	Enabled  bool          `json:"enabled"`
	Endpoint string        `json:"endpoint,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`

	Status HealthStatus `json:"status"`

	// FailureCount is the number of consecutive failed probes. Any
	// successful probe resets it to zero.
	FailureCount int       `json:"failure_count"`
	LastCheck    time.Time `json:"last_check,omitzero"`

	// Recent holds the latest probe results, oldest first, bounded at
	// ProbeRingCapacity.
	Recent []ProbeResult `json:"recent,omitempty"`
}

// RecordProbe appends a probe result and updates status and failure
// tracking accordingly.
func (h *HealthCheckState) RecordProbe(result ProbeResult) {
	if result.OK {
		h.Status = HealthStatusHealthy
		h.FailureCount = 0
	} else {
		h.Status = HealthStatusUnhealthy
		h.FailureCount++
	}
	h.LastCheck = result.At

	h.Recent = append(h.Recent, result)
	if len(h.Recent) > ProbeRingCapacity {
		h.Recent = h.Recent[len(h.Recent)-ProbeRingCapacity:]
	}
}

// MergeObservations adopts probe observations from other when they are newer
// than the ones recorded here. Deploy workflows persist from a working copy
// taken at workflow start; probe tasks write concurrently, and their results
// must survive the workflow's writes. Configuration fields (Enabled,
// Endpoint, Interval) are left untouched.
func (h *HealthCheckState) MergeObservations(other HealthCheckState) {
	if !other.LastCheck.After(h.LastCheck) {
		return
	}
	h.Status = other.Status
	h.FailureCount = other.FailureCount
	h.LastCheck = other.LastCheck
	h.Recent = append([]ProbeResult(nil), other.Recent...)
}

// ScalingState tracks replica bounds and scaler bookkeeping for a component.
// The invariant MinReplicas <= CurrentReplicas <= MaxReplicas holds whenever
// scaling is enabled.
type ScalingState struct {
	Enabled bool `json:"enabled"`

	MinReplicas     int `json:"min_replicas"`
	CurrentReplicas int `json:"current_replicas"`
	MaxReplicas     int `json:"max_replicas"`

	// TargetUtilization is the utilization percent the scaler steers
	// toward; zero disables metric evaluation.
	TargetUtilization int `json:"target_utilization,omitempty"`

	// Cooldown must elapse between consecutive scale actions on the same
	// component.
	Cooldown        time.Duration `json:"cooldown,omitempty"`
	LastScaleAction time.Time     `json:"last_scale_action,omitzero"`
}

// InCooldown reports whether a scale action at 'now' would violate the
// cooldown window.
func (s *ScalingState) InCooldown(now time.Time) bool {
	if s.Cooldown <= 0 || s.LastScaleAction.IsZero() {
		return false
	}
	return now.Sub(s.LastScaleAction) < s.Cooldown
}
