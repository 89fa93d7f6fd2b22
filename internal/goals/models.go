package goals

import (
	"time"

	"gorm.io/gorm"
)

// Goal statuses. Transitions are monotonic except ACTIVE<->PAUSED, which is
// reversible through Pause/Activate.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusPaused    = "PAUSED"
	StatusFailed    = "FAILED"
)

// Goal types. The type determines the unit of the goal's current value:
// ratio-based types track percentage points, the rest track dollars.
const (
	TypePortfolioGain  = "portfolio_gain"
	TypePortfolioValue = "portfolio_value"
	TypeDailyProfit    = "daily_profit"
	TypeMonthlyProfit  = "monthly_profit"
	TypeRiskReduction  = "risk_reduction"
	TypeCustom         = "custom"
)

// UnitFor returns the measurement unit for a goal type, making the unit part
// of the type rather than something callers infer per call site.
func UnitFor(goalType string) string {
	switch goalType {
	case TypePortfolioGain, TypeRiskReduction:
		return "percent"
	default:
		return "usd"
	}
}

// Goal is the single source of truth for a trading objective. Progress is
// always derived from CurrentValue/TargetValue on update and never settable
// on its own.
type Goal struct {
	gorm.Model          `json:"-"`
	GoalID              string     `gorm:"uniqueIndex" json:"goal_id"`
	Type                string     `json:"type"`
	TargetValue         float64    `json:"target_value"`
	CurrentValue        float64    `json:"current_value"`
	Description         string     `json:"description"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	Status              string     `json:"status"`
	Progress            float64    `json:"progress_percentage"`
	DailyTradingEnabled bool       `json:"daily_trading_enabled"`
	Priority            int        `json:"priority"`
	Metadata            string     `json:"metadata,omitempty"` // JSON-encoded map
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsCompleted reports whether the current value has reached the target.
func (g *Goal) IsCompleted() bool {
	return g.CurrentValue >= g.TargetValue
}

// Unit returns the measurement unit of this goal's values.
func (g *Goal) Unit() string {
	return UnitFor(g.Type)
}

// DaysRemaining returns the whole days until the deadline, or nil when the
// goal has none. Never negative.
func (g *Goal) DaysRemaining() *int {
	if g.Deadline == nil {
		return nil
	}
	days := int(time.Until(*g.Deadline).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// ProgressSample is one immutable point in a goal's progress history,
// appended on every UpdateProgress call.
type ProgressSample struct {
	gorm.Model `json:"-"`
	GoalID     string    `gorm:"index" json:"goal_id"`
	Value      float64   `json:"value"`
	Progress   float64   `json:"progress_percentage"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DailySession is the append-only record of one executed trading session.
type DailySession struct {
	gorm.Model     `json:"-"`
	GoalID         string    `gorm:"index" json:"goal_id"`
	SessionDate    string    `json:"session_date"` // YYYY-MM-DD
	TradesExecuted int       `json:"trades_executed"`
	ProfitLoss     float64   `json:"profit_loss"`
	ProgressDelta  float64   `json:"progress_delta"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary aggregates the state of all goals for the operator dashboard.
type Summary struct {
	TotalGoals          int     `json:"total_goals"`
	ActiveGoals         int     `json:"active_goals"`
	CompletedGoals      int     `json:"completed_goals"`
	DailyTradingGoals   int     `json:"daily_trading_goals"`
	AverageProgress     float64 `json:"average_progress"`
	GoalsNearCompletion int     `json:"goals_near_completion"`
}
