package orchestrator

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jcarter/tradepilot/pkg/response"
)

// GinHandlers exposes worker start/stop and status endpoints.
type GinHandlers struct {
	orch *Orchestrator
}

func NewGinHandlers(orch *Orchestrator) *GinHandlers {
	return &GinHandlers{orch: orch}
}

type workerStateResponse struct {
	GoalID  string `json:"goal_id"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type startTradingRequest struct {
	Context string `json:"context"`
}

// StartTradingHandler handles POST requests to start the persistent trading
// worker for a goal. Starting an already running goal reports its current
// state instead of spawning a second worker.
func (h *GinHandlers) StartTradingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		goalID := c.Param("goal_id")
		if goalID == "" {
			response.BadRequest(c, "Goal ID is required")
			return
		}

		// The body is optional; an empty or absent body starts the
		// worker with no extra operator context.
		var req startTradingRequest
		_ = c.ShouldBindJSON(&req)

		state, err := h.orch.Start(goalID, req.Context)
		if errors.Is(err, ErrAlreadyRunning) {
			response.Success(c, workerStateResponse{
				GoalID:  goalID,
				State:   state,
				Message: "Trading already running for this goal",
			})
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, workerStateResponse{
			GoalID:  goalID,
			State:   state,
			Message: "Persistent trading started",
		})
	}
}

// StopTradingHandler handles POST requests to stop a goal's worker. The stop
// is cooperative and always pauses the goal in the store.
func (h *GinHandlers) StopTradingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		goalID := c.Param("goal_id")
		if goalID == "" {
			response.BadRequest(c, "Goal ID is required")
			return
		}

		msg, err := h.orch.Stop(goalID)
		if errors.Is(err, ErrNotRunning) {
			response.NotFound(c, err.Error())
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, workerStateResponse{
			GoalID:  goalID,
			State:   StateStopped,
			Message: msg,
		})
	}
}

// WorkersHandler handles GET requests for the state of all trading workers.
func (h *GinHandlers) WorkersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.orch.ActiveWorkers())
	}
}
