package orchestrator

import (
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
)

// RollbackController restores an orchestration's component configuration to
// a previously snapshotted revision. The restored configuration then
// re-enters the normal deploy workflow.
type RollbackController struct {
	logger *zap.Logger
}

// NewRollbackController creates a new rollback controller
func NewRollbackController(logger *zap.Logger) *RollbackController {
	return &RollbackController{logger: logger}
}

// Restore replaces the orchestration's components with the snapshot of the
// target revision. When target is zero, the revision before the current one
// is used. If no snapshot exists for the requested revision the
// orchestration is left untouched and a RollbackError is returned.
func (r *RollbackController) Restore(o *domain.Orchestration, target int) error {
	if target == 0 {
		target = o.Revision - 1
	}
	if target < 1 {
		return &domain.RollbackError{Revision: target, Msg: "no earlier revision exists"}
	}

	rev := o.FindRevision(target)
	if rev == nil {
		return &domain.RollbackError{Revision: target, Msg: "no snapshot stored for revision"}
	}

	restored := make([]*domain.Component, len(rev.Components))
	for i, spec := range rev.Components {
		restored[i] = domain.NewComponent(spec)
	}
	o.Components = restored

	r.logger.Info("restored component configuration",
		zap.String("orchestration_id", o.ID),
		zap.Int("from_revision", o.Revision),
		zap.Int("target_revision", target))

	return nil
}
