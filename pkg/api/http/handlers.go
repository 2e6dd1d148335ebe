package http

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/aescanero/synapse/internal/application/workers"
	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/graphfile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunSubmitResponse represents an asynchronous run submission response
type RunSubmitResponse struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// RunSummary is one entry of the run listing
type RunSummary struct {
	ID          string           `json:"id"`
	Status      domain.RunStatus `json:"status"`
	Nodes       int              `json:"nodes"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
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
	status := "healthy"
	code := http.StatusOK
	checks := gin.H{"orchestrator": "ok"}

	if s.workers != nil {
		if s.workers.Health().IsHealthy() {
			checks["workers"] = "ok"
		} else {
			checks["workers"] = "degraded"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleGreet is a connection test for clients
func (s *Server) handleGreet(c *gin.Context) {
	name := c.DefaultQuery("name", "World")
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Hello, %s! Synapse backend is online.", name),
	})
}

// handleSystemInfo reports the host platform and server version
func (s *Server) handleSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
		"version": s.version,
	})
}

// handleListWorkers reports worker pool status
func (s *Server) handleListWorkers(c *gin.Context) {
	if s.workers == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "WORKERS_NOT_AVAILABLE",
				Message: "Worker pool is not configured",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    s.workers.GetStatus(),
		"summary": s.workers.Health().GetStatus(),
	})
}

// handleValidateGraph validates a graph without running it
func (s *Server) handleValidateGraph(c *gin.Context) {
	graph, ok := s.bindGraph(c)
	if !ok {
		return
	}

	if err := s.orchestrator.Validate(graph); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// handlePlanGraph returns the execution stages of a graph
func (s *Server) handlePlanGraph(c *gin.Context) {
	graph, ok := s.bindGraph(c)
	if !ok {
		return
	}

	plan, err := s.orchestrator.Plan(graph)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stages":     plan.Stages,
		"node_count": plan.NodeCount(),
	})
}

// handleRunGraph runs a graph and waits for its report
func (s *Server) handleRunGraph(c *gin.Context) {
	graph, ok := s.bindGraph(c)
	if !ok {
		return
	}

	report, err := s.orchestrator.Run(c.Request.Context(), graph)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleSubmitRun queues a graph for asynchronous execution
func (s *Server) handleSubmitRun(c *gin.Context) {
	graph, ok := s.bindGraph(c)
	if !ok {
		return
	}

	runID, err := s.orchestrator.Submit(c.Request.Context(), graph)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, RunSubmitResponse{
		RunID:       runID,
		Status:      string(domain.RunStatusSubmitted),
		SubmittedAt: time.Now().UTC(),
	})
}

// handleListRuns lists stored runs, newest first
func (s *Server) handleListRuns(c *gin.Context) {
	records, err := s.orchestrator.ListRuns(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: "limit must be a non-negative integer",
				},
			})
			return
		}
	}
	statusFilter := domain.RunStatus(c.Query("status"))

	runs := make([]RunSummary, 0, len(records))
	for _, r := range records {
		if statusFilter != "" && r.Status != statusFilter {
			continue
		}
		summary := RunSummary{
			ID:          r.ID,
			Status:      r.Status,
			Error:       r.Error,
			SubmittedAt: r.SubmittedAt,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		}
		if r.Graph != nil {
			summary.Nodes = len(r.Graph.Nodes)
		}
		runs = append(runs, summary)
		if limit > 0 && len(runs) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns a run record
func (s *Server) handleGetRun(c *gin.Context) {
	record, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleDeleteRun removes a finished run
func (s *Server) handleDeleteRun(c *gin.Context) {
	if err := s.orchestrator.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleGetReport returns the report of a finished run
func (s *Server) handleGetReport(c *gin.Context) {
	record, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	if record.Report == nil {
		detail := ErrorDetail{
			Code:    "NOT_COMPLETED",
			Message: "Run execution not yet completed",
			Details: gin.H{"status": record.Status},
		}
		if record.Status.IsTerminal() {
			detail.Code = "NO_REPORT"
			detail.Message = "Run finished without executing"
			detail.Details = gin.H{"status": record.Status, "error": record.Error}
		}
		c.JSON(http.StatusConflict, ErrorResponse{Error: detail})
		return
	}

	c.JSON(http.StatusOK, record.Report)
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.orchestrator.Cancel(c.Request.Context(), runID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC(),
	})
}

// bindGraph decodes the request body as a graph object or bare node array
func (s *Server) bindGraph(c *gin.Context) (*domain.Graph, bool) {
	body, err := c.GetRawData()
	if err == nil {
		var graph *domain.Graph
		graph, err = graphfile.DecodeJSON(body)
		if err == nil {
			return graph, true
		}
	}

	s.logger.Warn("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	})
	return nil, false
}

// writeError maps an orchestrator error to a status code and error envelope
func (s *Server) writeError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "VALIDATION_FAILED",
				Message: validation.Error(),
				Details: validation,
			},
		})
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
	case errors.Is(err, domain.ErrRunTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
	case errors.Is(err, domain.ErrRunActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "RUN_ACTIVE",
				Message: err.Error(),
			},
		})
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "QUEUE_UNAVAILABLE",
				Message: err.Error(),
			},
		})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INTERNAL",
				Message: err.Error(),
			},
		})
	}
}
