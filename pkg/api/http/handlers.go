package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/application/orchestrator"
	"github.com/stackd-io/stackd/internal/domain"
)

// ActionRequest represents a lifecycle action request
type ActionRequest struct {
	Action string                      `json:"action" binding:"required"`
	Params orchestrator.ActionParams   `json:"params"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": gin.H{
			"manager": "ok",
		},
	})
}

// handleCreateOrchestration handles orchestration creation
func (s *Server) handleCreateOrchestration(c *gin.Context) {
	var spec domain.OrchestrationSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	o, _, err := s.manager.Create(c.Request.Context(), &spec)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

// handleListOrchestrations handles orchestration listing
func (s *Server) handleListOrchestrations(c *gin.Context) {
	var filter domain.OrchestrationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	orchestrations, total, err := s.manager.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orchestrations": orchestrations,
		"total":          total,
		"limit":          filter.Limit,
		"offset":         filter.Offset,
	})
}

// handleGetOrchestration handles getting orchestration details
func (s *Server) handleGetOrchestration(c *gin.Context) {
	o, err := s.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// handleUpdateOrchestration handles partial updates
func (s *Server) handleUpdateOrchestration(c *gin.Context) {
	var patch domain.OrchestrationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	o, err := s.manager.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// handleDeleteOrchestration handles orchestration deletion
func (s *Server) handleDeleteOrchestration(c *gin.Context) {
	id := c.Param("id")

	if err := s.manager.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orchestration_id": id,
		"status":           "deleted",
	})
}

// handleAction dispatches a lifecycle action. The action outcome is always
// a structured result; HTTP errors are reserved for malformed requests and
// unknown orchestrations.
func (s *Server) handleAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	result, err := s.manager.Act(c.Request.Context(), c.Param("id"), domain.Action(req.Action), req.Params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleListRevisions handles listing an orchestration's revision snapshots
func (s *Server) handleListRevisions(c *gin.Context) {
	o, err := s.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orchestration_id": o.ID,
		"revision":         o.Revision,
		"revisions":        o.Revisions,
	})
}

// writeError maps domain errors to HTTP status codes
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		circularErr   *domain.CircularDependencyError
		notFoundErr   *domain.NotFoundError
		conflictErr   *domain.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{Code: "VALIDATION_FAILED", Message: err.Error()},
		})
	case errors.As(err, &circularErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{Code: "CIRCULAR_DEPENDENCY", Message: err.Error()},
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "CONFLICT", Message: err.Error()},
		})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()},
		})
	}
}
