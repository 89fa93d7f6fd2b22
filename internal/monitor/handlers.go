package monitor

import (
	"github.com/gin-gonic/gin"

	"github.com/jcarter/tradepilot/pkg/response"
)

// GinHandlers exposes progress reports and the goal leaderboard.
type GinHandlers struct {
	monitor *Monitor
}

func NewGinHandlers(monitor *Monitor) *GinHandlers {
	return &GinHandlers{monitor: monitor}
}

// ReportHandler handles GET requests for a goal's full progress report.
func (h *GinHandlers) ReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		goalID := c.Param("goal_id")
		if goalID == "" {
			response.BadRequest(c, "Goal ID is required")
			return
		}

		report, err := h.monitor.Report(goalID)
		response.Handle(c, report, err)
	}
}

// LeaderboardHandler handles GET requests for active goals ranked by
// progress.
func (h *GinHandlers) LeaderboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		board, err := h.monitor.Leaderboard()
		response.Handle(c, board, err)
	}
}
