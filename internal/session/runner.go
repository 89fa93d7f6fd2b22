// Package session executes one trading session for a goal: build a
// goal-aware prompt, ask the analysis collaborator for recommendations,
// parse them into trade actions and hand those to the executor.
package session

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/broker"
	"github.com/jcarter/tradepilot/internal/goals"
	"github.com/jcarter/tradepilot/internal/recommend"
)

// Analyzer produces free-text trading recommendations for a prompt. It may
// be slow or fail; the runner absorbs both.
type Analyzer interface {
	Analyze(prompt string) (string, error)
}

// Executor turns parsed trade actions into fills. Partial failures are
// reported inside the ExecutionReport, never as an error.
type Executor interface {
	Execute(actions []recommend.TradeAction) (*broker.ExecutionReport, error)
}

// Result carries the metrics of one session. A session that could not run
// yields the zero Result, which callers count as a no-trade session.
type Result struct {
	TradesExecuted int     `json:"trades_executed"`
	ProfitLoss     float64 `json:"profit_loss"`
	ProgressDelta  float64 `json:"progress_delta"`
	Notes          string  `json:"notes"`
}

// Runner wires the analysis and execution collaborators together for a goal.
type Runner struct {
	store    *goals.Service
	analyzer Analyzer
	executor Executor
}

func NewRunner(store *goals.Service, analyzer Analyzer, executor Executor) *Runner {
	return &Runner{store: store, analyzer: analyzer, executor: executor}
}

// Run executes one session for the goal. Collaborator failures are absorbed
// into a zero-effect Result so the calling loop applies one uniform
// retry/backoff policy; Run never returns an error for them.
func (r *Runner) Run(goal *goals.Goal, contextText string) Result {
	logger := log.With().Str("component", "session_runner").Str("goal_id", goal.GoalID).Logger()

	prompt := r.buildPrompt(goal, contextText)

	analysisText, err := r.analyzer.Analyze(prompt)
	if err != nil {
		logger.Warn().Err(err).Msg("analysis collaborator failed, recording no-op session")
		return Result{Notes: "analysis unavailable: " + err.Error()}
	}
	if strings.TrimSpace(analysisText) == "" {
		logger.Info().Msg("analysis returned no content")
		return Result{Notes: "analysis returned no content"}
	}

	actions := recommend.Parse(analysisText)
	if len(actions) == 0 {
		// A parse miss is a normal outcome, not a failure.
		logger.Info().Msg("no actionable recommendations in analysis output")
		return Result{Notes: "no actionable recommendations. " + summarize(analysisText)}
	}

	report, err := r.executor.Execute(actions)
	if err != nil {
		logger.Warn().Err(err).Msg("execution collaborator failed, recording no-op session")
		return Result{Notes: "execution unavailable: " + err.Error()}
	}

	pnl, _ := report.RealizedPnL.Float64()
	totalValue := report.TotalValueTraded.StringFixed(2)

	result := Result{
		TradesExecuted: report.ExecutedTrades,
		ProfitLoss:     pnl,
		ProgressDelta:  progressDelta(goal, pnl),
		Notes: fmt.Sprintf("executed %d/%d trades, total value $%s, P&L $%.2f. %s",
			report.ExecutedTrades, len(actions), totalValue, pnl, summarize(analysisText)),
	}

	logger.Info().
		Int("trades", result.TradesExecuted).
		Float64("pnl", result.ProfitLoss).
		Float64("progress_delta", result.ProgressDelta).
		Msg("session complete")

	return result
}

// progressDelta converts realized P&L into goal units: dollar goals advance
// by the P&L itself, percentage goals by the P&L as a share of the target.
func progressDelta(goal *goals.Goal, pnl float64) float64 {
	if goal.Unit() == "usd" {
		return pnl
	}
	if goal.TargetValue == 0 {
		return 0
	}
	return (pnl / goal.TargetValue) * 100
}

// buildPrompt assembles the goal description, current standing, operator
// context and recent session history into the analysis prompt.
func (r *Runner) buildPrompt(goal *goals.Goal, contextText string) string {
	var sb strings.Builder

	unit := "$"
	if goal.Unit() == "percent" {
		unit = "%"
	}

	fmt.Fprintf(&sb, "ACTIVE TRADING GOAL\n")
	fmt.Fprintf(&sb, "Goal: %s\n", goal.Description)
	fmt.Fprintf(&sb, "Target: %.2f%s\n", goal.TargetValue, unit)
	fmt.Fprintf(&sb, "Current: %.2f%s (%.1f%% complete)\n", goal.CurrentValue, unit, goal.Progress)
	fmt.Fprintf(&sb, "Remaining: %.2f%s\n", goal.TargetValue-goal.CurrentValue, unit)
	if days := goal.DaysRemaining(); days != nil {
		fmt.Fprintf(&sb, "Days remaining: %d\n", *days)
	}
	if contextText = strings.TrimSpace(contextText); contextText != "" {
		fmt.Fprintf(&sb, "Operator context: %s\n", contextText)
	}

	if sessions, err := r.store.DailySessions(goal.GoalID, 7); err == nil && len(sessions) > 0 {
		sb.WriteString("\nRecent trading sessions:\n")
		for i, s := range sessions {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "- %s: %d trades, P&L $%.2f\n", s.SessionDate, s.TradesExecuted, s.ProfitLoss)
		}
	}

	sb.WriteString(`
Today's objective: recommend specific trades that move the portfolio toward
the goal above. State each recommendation in the form
"BUY <qty> shares of <SYMBOL> at $<price>" or
"SELL <qty> shares of <SYMBOL>", with a short reason per trade.
Manage risk while pursuing consistent daily gains.
`)

	return sb.String()
}

func summarize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 150 {
		return "Analysis: " + text[:150] + "..."
	}
	return "Analysis: " + text
}
