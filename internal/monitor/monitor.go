// Package monitor watches active goals independently of their trading
// workers: it snapshots progress on a fixed interval, fires one-shot
// milestone notifications, classifies short-term trends and composes
// progress reports and a leaderboard.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/goals"
)

// milestones are the progress percentages that trigger a one-time
// notification per goal.
var milestones = []int{25, 50, 75, 90, 95, 100}

const (
	// historyCap bounds the in-memory snapshot history per goal. Oldest
	// entries are dropped past the cap.
	historyCap = 1000
	// trendWindow is how many recent snapshots feed trend classification.
	trendWindow = 10
)

// Trend classifications, from the per-hour rate of value change across the
// trend window.
const (
	TrendAccelerating     = "accelerating"
	TrendSteady           = "steady"
	TrendStable           = "stable"
	TrendDeclining        = "declining"
	TrendInsufficientData = "insufficient_data"
)

type snapshot struct {
	At       time.Time
	Value    float64
	Progress float64
}

// Notification is delivered to registered callbacks when a goal crosses a
// milestone.
type Notification struct {
	Type        string    `json:"type"`
	GoalID      string    `json:"goal_id"`
	Milestone   int       `json:"milestone"`
	Description string    `json:"goal_description"`
	Message     string    `json:"message"`
	At          time.Time `json:"timestamp"`
}

// TrendAnalysis describes the recent direction of a goal's value.
type TrendAnalysis struct {
	Trend       string  `json:"trend"`
	RatePerHour float64 `json:"rate_per_hour"`
	Confidence  float64 `json:"confidence"`
}

// SessionMetrics aggregates the goal's daily sessions over the report window.
type SessionMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinRate       float64 `json:"win_rate"`
	AverageProfit float64 `json:"average_profit"`
	TotalProfit   float64 `json:"total_profit"`
	TradingDays   int     `json:"trading_days"`
}

// Report is the full progress report for one goal.
type Report struct {
	GoalID                  string               `json:"goal_id"`
	Description             string               `json:"goal_description"`
	TargetValue             float64              `json:"target_value"`
	CurrentValue            float64              `json:"current_value"`
	Progress                float64              `json:"progress_percentage"`
	Status                  string               `json:"status"`
	DaysActive              int                  `json:"days_active"`
	DailyAverage            float64              `json:"daily_average_progress"`
	EstimatedCompletionDays *int                 `json:"estimated_completion_days,omitempty"`
	RecentSessions          []goals.DailySession `json:"recent_sessions"`
	Trend                   TrendAnalysis        `json:"trend_analysis"`
	Metrics                 SessionMetrics       `json:"performance_metrics"`
	Recommendations         []string             `json:"recommendations"`
}

// LeaderboardEntry ranks one active goal by progress.
type LeaderboardEntry struct {
	GoalID      string  `json:"goal_id"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress_percentage"`
	Current     float64 `json:"current_value"`
	Target      float64 `json:"target_value"`
	DaysActive  int     `json:"days_active"`
	WinRate     float64 `json:"win_rate"`
	TotalProfit float64 `json:"total_profit"`
}

// Monitor is the single progress monitoring worker. There is exactly one per
// process; it shares only the goal store with the trading workers.
type Monitor struct {
	store    *goals.Service
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	history   map[string][]snapshot
	fired     map[string]map[int]bool
	callbacks []func(Notification)
}

func New(store *goals.Service, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{
		store:    store,
		interval: interval,
		now:      time.Now,
		history:  make(map[string][]snapshot),
		fired:    make(map[string]map[int]bool),
	}
}

// OnNotification registers a callback for milestone notifications. A panic
// inside one callback is recovered and logged so it cannot stop the monitor
// loop or starve the other callbacks.
func (m *Monitor) OnNotification(cb func(Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start runs the monitoring loop until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	logger := log.With().Str("component", "progress_monitor").Logger()
	logger.Info().Dur("interval", m.interval).Msg("progress monitoring started")

	for {
		if err := m.observe(); err != nil {
			logger.Error().Err(err).Msg("observation pass failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("progress monitoring stopped")
			return
		case <-time.After(m.interval):
		}
	}
}

// observe performs one monitoring pass: snapshot every active goal and fire
// any newly crossed milestones. Completed goals are still checked for
// milestones so the 100% notification fires on the pass after completion;
// the fired set keeps it to exactly once.
func (m *Monitor) observe() error {
	all, err := m.store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}

	for i := range all {
		goal := &all[i]
		switch goal.Status {
		case goals.StatusActive:
			m.record(goal)
			m.checkMilestones(goal)
		case goals.StatusCompleted:
			m.checkMilestones(goal)
		}
	}
	return nil
}

// record appends a snapshot of the goal's current standing, dropping the
// oldest entry past the history cap.
func (m *Monitor) record(goal *goals.Goal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[goal.GoalID], snapshot{
		At:       m.now(),
		Value:    goal.CurrentValue,
		Progress: goal.Progress,
	})
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	m.history[goal.GoalID] = h
}

// checkMilestones fires a notification for each threshold the goal has
// crossed that has not fired before. The fired set is remembered per goal so
// an unchanged re-sample never re-fires.
func (m *Monitor) checkMilestones(goal *goals.Goal) {
	m.mu.Lock()
	fired, ok := m.fired[goal.GoalID]
	if !ok {
		fired = make(map[int]bool)
		m.fired[goal.GoalID] = fired
	}
	var due []int
	for _, milestone := range milestones {
		if goal.Progress >= float64(milestone) && !fired[milestone] {
			fired[milestone] = true
			due = append(due, milestone)
		}
	}
	callbacks := make([]func(Notification), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, milestone := range due {
		n := Notification{
			Type:        "milestone",
			GoalID:      goal.GoalID,
			Milestone:   milestone,
			Description: goal.Description,
			Message:     fmt.Sprintf("%s is %d%% complete", goal.Description, milestone),
			At:          m.now(),
		}
		log.Info().
			Str("component", "progress_monitor").
			Str("goal_id", goal.GoalID).
			Int("milestone", milestone).
			Msg("milestone reached")
		for _, cb := range callbacks {
			m.deliver(cb, n)
		}
	}
}

func (m *Monitor) deliver(cb func(Notification), n Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("component", "progress_monitor").
				Str("goal_id", n.GoalID).
				Interface("panic", r).
				Msg("notification callback panicked")
		}
	}()
	cb(n)
}

// trendFor classifies the goal's recent direction from the earliest and
// latest of its last snapshots.
func (m *Monitor) trendFor(goalID string) TrendAnalysis {
	m.mu.Lock()
	h := m.history[goalID]
	if len(h) > trendWindow {
		h = h[len(h)-trendWindow:]
	}
	recent := make([]snapshot, len(h))
	copy(recent, h)
	m.mu.Unlock()

	if len(recent) < 2 {
		return TrendAnalysis{Trend: TrendInsufficientData}
	}

	first, last := recent[0], recent[len(recent)-1]
	elapsed := last.At.Sub(first.At)
	if elapsed <= 0 {
		return TrendAnalysis{Trend: TrendStable, Confidence: 0.5}
	}

	rate := (last.Value - first.Value) / elapsed.Hours()
	trend := TrendDeclining
	switch {
	case rate > 0.1:
		trend = TrendAccelerating
	case rate > 0.01:
		trend = TrendSteady
	case rate > -0.01:
		trend = TrendStable
	}

	confidence := float64(len(recent)) / float64(trendWindow)
	if confidence > 1 {
		confidence = 1
	}
	return TrendAnalysis{Trend: trend, RatePerHour: rate, Confidence: confidence}
}

// Report composes the full progress report for one goal.
func (m *Monitor) Report(goalID string) (*Report, error) {
	goal, err := m.store.Get(goalID)
	if err != nil {
		return nil, err
	}

	daysActive := int(m.now().Sub(goal.CreatedAt).Hours() / 24)
	if daysActive < 1 {
		daysActive = 1
	}
	dailyAverage := goal.CurrentValue / float64(daysActive)

	var estimated *int
	if dailyAverage > 0 {
		days := int((goal.TargetValue - goal.CurrentValue) / dailyAverage)
		if days < 1 {
			days = 1
		}
		estimated = &days
	}

	sessions, err := m.store.DailySessions(goalID, 7)
	if err != nil {
		return nil, err
	}
	metrics := sessionMetrics(sessions)
	trend := m.trendFor(goalID)

	return &Report{
		GoalID:                  goal.GoalID,
		Description:             goal.Description,
		TargetValue:             goal.TargetValue,
		CurrentValue:            goal.CurrentValue,
		Progress:                goal.Progress,
		Status:                  goal.Status,
		DaysActive:              daysActive,
		DailyAverage:            dailyAverage,
		EstimatedCompletionDays: estimated,
		RecentSessions:          sessions,
		Trend:                   trend,
		Metrics:                 metrics,
		Recommendations:         recommendations(goal, metrics, trend),
	}, nil
}

// Leaderboard ranks all active goals by progress percentage, highest first.
func (m *Monitor) Leaderboard() ([]LeaderboardEntry, error) {
	active, err := m.store.ListActive()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(active))
	for i := range active {
		goal := &active[i]
		sessions, err := m.store.DailySessions(goal.GoalID, 7)
		if err != nil {
			return nil, err
		}
		metrics := sessionMetrics(sessions)

		daysActive := int(m.now().Sub(goal.CreatedAt).Hours() / 24)
		if daysActive < 0 {
			daysActive = 0
		}
		entries = append(entries, LeaderboardEntry{
			GoalID:      goal.GoalID,
			Description: goal.Description,
			Progress:    goal.Progress,
			Current:     goal.CurrentValue,
			Target:      goal.TargetValue,
			DaysActive:  daysActive,
			WinRate:     metrics.WinRate,
			TotalProfit: metrics.TotalProfit,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Progress > entries[j].Progress
	})
	return entries, nil
}

func sessionMetrics(sessions []goals.DailySession) SessionMetrics {
	if len(sessions) == 0 {
		return SessionMetrics{}
	}

	m := SessionMetrics{TradingDays: len(sessions)}
	profitable := 0
	for _, s := range sessions {
		m.TotalTrades += s.TradesExecuted
		m.TotalProfit += s.ProfitLoss
		if s.ProfitLoss > 0 {
			profitable++
		}
	}
	m.WinRate = float64(profitable) / float64(len(sessions))
	m.AverageProfit = m.TotalProfit / float64(len(sessions))
	return m
}

// recommendations derives short textual guidance from the goal's progress
// bracket, win rate, trend and time remaining.
func recommendations(goal *goals.Goal, metrics SessionMetrics, trend TrendAnalysis) []string {
	var recs []string

	switch {
	case goal.Progress < 20:
		recs = append(recs, "Focus on establishing a consistent daily trading routine")
	case goal.Progress < 50:
		recs = append(recs, "Maintain the current trading pace and strategy")
	case goal.Progress < 80:
		recs = append(recs, "Good progress, stay focused on the goal")
	default:
		recs = append(recs, "Almost there, maintain momentum for the final push")
	}

	if metrics.TradingDays > 0 {
		if metrics.WinRate < 0.4 {
			recs = append(recs, "Win rate below 40%, review the trading strategy")
		} else if metrics.WinRate > 0.7 {
			recs = append(recs, "Strong win rate, consider increasing position sizes")
		}
	}

	switch trend.Trend {
	case TrendDeclining:
		recs = append(recs, "Progress is declining, consider a strategy adjustment")
	case TrendAccelerating:
		recs = append(recs, "Progress is accelerating, keep the momentum")
	case TrendStable:
		recs = append(recs, "Progress is stable, consistent performance")
	}

	if days := goal.DaysRemaining(); days != nil && *days < 7 {
		recs = append(recs, "Less than 7 days remaining, increase trading frequency")
	}

	return recs
}
