package goals

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jcarter/tradepilot/pkg/response"
)

// GinHandlers exposes the goal CRUD and summary endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type createGoalRequest struct {
	Type                string            `json:"type" binding:"required"`
	TargetValue         float64           `json:"target_value" binding:"required"`
	Description         string            `json:"description"`
	Deadline            *time.Time        `json:"deadline,omitempty"`
	DailyTradingEnabled bool              `json:"daily_trading_enabled"`
	Priority            int               `json:"priority"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// CreateGoalHandler handles POST requests to create a goal directly, without
// going through the command recognizer.
func (h *GinHandlers) CreateGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createGoalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		goalID, err := h.service.Create(CreateParams{
			Type:                req.Type,
			TargetValue:         req.TargetValue,
			Description:         req.Description,
			Deadline:            req.Deadline,
			DailyTradingEnabled: req.DailyTradingEnabled,
			Priority:            req.Priority,
			Metadata:            req.Metadata,
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		goal, err := h.service.Get(goalID)
		response.Handle(c, goal, err)
	}
}

// GetGoalHandler handles GET requests for a single goal by id.
func (h *GinHandlers) GetGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		goalID := c.Param("goal_id")
		if goalID == "" {
			response.BadRequest(c, "Goal ID is required")
			return
		}

		goal, err := h.service.Get(goalID)
		response.Handle(c, goal, err)
	}
}

// ListGoalsHandler handles GET requests for all goals, optionally filtered
// to active ones with ?status=active.
func (h *GinHandlers) ListGoalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			list []Goal
			err  error
		)
		if c.Query("status") == "active" {
			list, err = h.service.ListActive()
		} else {
			list, err = h.service.ListAll()
		}
		response.Handle(c, list, err)
	}
}

// SummaryHandler handles GET requests for the aggregated goals dashboard.
func (h *GinHandlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.Summarize()
		response.Handle(c, summary, err)
	}
}
