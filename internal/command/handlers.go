package command

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/goals"
	"github.com/jcarter/tradepilot/internal/orchestrator"
	"github.com/jcarter/tradepilot/pkg/response"
)

// GinHandlers turns operator text into running trading goals.
type GinHandlers struct {
	recognizer *Recognizer
	store      *goals.Service
	orch       *orchestrator.Orchestrator
}

func NewGinHandlers(recognizer *Recognizer, store *goals.Service, orch *orchestrator.Orchestrator) *GinHandlers {
	return &GinHandlers{
		recognizer: recognizer,
		store:      store,
		orch:       orch,
	}
}

type submitCommandRequest struct {
	Text string `json:"text" binding:"required"`
}

type submitCommandResponse struct {
	GoalID      string `json:"goal_id"`
	Description string `json:"description"`
	WorkerState string `json:"worker_state"`
	Message     string `json:"message"`
}

// SubmitCommandHandler handles POST requests carrying free-form operator
// text. A recognized instruction creates a goal and starts its trading
// worker; unrecognized or unauthorized text is rejected without side
// effects.
func (h *GinHandlers) SubmitCommandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitCommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		if !h.recognizer.IsAuthorized(req.Text) {
			response.BadRequest(c, "Command not recognized as an authorized instruction")
			return
		}

		def := h.recognizer.Parse(req.Text)
		if def == nil {
			response.BadRequest(c, "No actionable goal found in command")
			return
		}

		deadline := def.Deadline
		goalID, err := h.store.Create(goals.CreateParams{
			Type:                def.Type,
			TargetValue:         def.TargetValue,
			Description:         def.Description,
			Deadline:            &deadline,
			DailyTradingEnabled: true,
			Priority:            def.Priority,
			Metadata: map[string]string{
				"raw_text":   def.RawText,
				"time_frame": def.TimeFrame,
			},
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		state, err := h.orch.Start(goalID, def.RawText)
		if err != nil {
			// The goal exists either way; report the worker problem
			// without rolling back the goal.
			log.Error().Err(err).Str("goal_id", goalID).Msg("failed to start trading worker")
		}

		log.Info().
			Str("goal_id", goalID).
			Str("type", def.Type).
			Float64("target", def.TargetValue).
			Msg("operator command accepted")

		response.Success(c, submitCommandResponse{
			GoalID:      goalID,
			Description: def.Description,
			WorkerState: state,
			Message:     fmt.Sprintf("Goal created: %s", def.Description),
		})
	}
}
