// Package goals owns the trading goal entity: its persistence, its state
// machine and its derived progress history. All mutation goes through the
// Service so concurrent workers can never produce a lost update.
package goals

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jcarter/tradepilot/pkg/apperrors"
)

// Sentinel errors alias pkg/apperrors so the HTTP layer can map them to
// status codes without importing this package.
var (
	// ErrNotFound is returned for operations on an unknown goal id.
	ErrNotFound = apperrors.ErrNotFound
	// ErrValidation is returned when goal parameters are rejected at
	// creation. Nothing is partially applied.
	ErrValidation = apperrors.ErrValidation
	// ErrTerminal is returned for status changes on COMPLETED or FAILED
	// goals.
	ErrTerminal = apperrors.ErrTerminalState
)

// Service handles goal lifecycle and progress tracking. Read-modify-write
// sequences are serialized per goal id, so updates to different goals never
// block each other.
type Service struct {
	db *Database

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing updates for one goal id.
func (s *Service) lockFor(goalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[goalID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[goalID] = l
	}
	return l
}

// CreateParams carries everything needed to create a goal.
type CreateParams struct {
	Type                string
	TargetValue         float64
	Description         string
	Deadline            *time.Time
	DailyTradingEnabled bool
	Priority            int
	Metadata            map[string]string
}

// Create inserts a new PENDING goal and returns its id. The goal must be
// explicitly activated before any worker runs for it.
func (s *Service) Create(params CreateParams) (string, error) {
	switch params.Type {
	case TypePortfolioGain, TypePortfolioValue, TypeDailyProfit, TypeMonthlyProfit, TypeRiskReduction, TypeCustom:
	default:
		return "", fmt.Errorf("%w: unknown goal type %q", ErrValidation, params.Type)
	}
	if math.IsNaN(params.TargetValue) || math.IsInf(params.TargetValue, 0) {
		return "", fmt.Errorf("%w: target value must be finite", ErrValidation)
	}
	if UnitFor(params.Type) == "percent" && params.TargetValue <= 0 {
		return "", fmt.Errorf("%w: percentage target must be positive", ErrValidation)
	}

	metadata := ""
	if len(params.Metadata) > 0 {
		raw, err := json.Marshal(params.Metadata)
		if err != nil {
			return "", fmt.Errorf("%w: metadata not serializable", ErrValidation)
		}
		metadata = string(raw)
	}

	goal := &Goal{
		GoalID:              "goal_" + uuid.New().String(),
		Type:                params.Type,
		TargetValue:         params.TargetValue,
		CurrentValue:        0,
		Description:         params.Description,
		Deadline:            params.Deadline,
		Status:              StatusPending,
		Progress:            0,
		DailyTradingEnabled: params.DailyTradingEnabled,
		Priority:            params.Priority,
		Metadata:            metadata,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	if err := s.db.CreateGoal(goal); err != nil {
		return "", fmt.Errorf("failed to create goal: %w", err)
	}

	log.Info().
		Str("goal_id", goal.GoalID).
		Str("type", goal.Type).
		Float64("target", goal.TargetValue).
		Msg("goal created")

	return goal.GoalID, nil
}

// Get returns a goal by id.
func (s *Service) Get(goalID string) (*Goal, error) {
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, fmt.Errorf("%w: goal %s", ErrNotFound, goalID)
	}
	return goal, nil
}

// ListActive returns all ACTIVE goals ordered by priority.
func (s *Service) ListActive() ([]Goal, error) {
	return s.db.ListGoalsByStatus(StatusActive)
}

// ListAll returns every goal regardless of status.
func (s *Service) ListAll() ([]Goal, error) {
	return s.db.ListGoals()
}

// Activate transitions a goal to ACTIVE. Re-activating an active goal is a
// no-op; activating a COMPLETED or FAILED goal fails with ErrTerminal.
func (s *Service) Activate(goalID string) error {
	return s.transition(goalID, StatusActive)
}

// Pause transitions a goal to PAUSED. A paused goal is resumable through
// Activate. Re-pausing is a no-op.
func (s *Service) Pause(goalID string) error {
	return s.transition(goalID, StatusPaused)
}

// Complete marks a goal COMPLETED. COMPLETED is terminal and idempotent.
func (s *Service) Complete(goalID string) error {
	return s.transition(goalID, StatusCompleted)
}

// Fail marks a goal FAILED, used when a deadline expires with the goal
// incomplete. FAILED is terminal.
func (s *Service) Fail(goalID string) error {
	return s.transition(goalID, StatusFailed)
}

func (s *Service) transition(goalID, status string) error {
	l := s.lockFor(goalID)
	l.Lock()
	defer l.Unlock()

	goal, err := s.Get(goalID)
	if err != nil {
		return err
	}
	if goal.Status == status {
		return nil
	}
	// Terminal states stay terminal; callers must not be told the change
	// succeeded.
	if goal.Status == StatusCompleted || goal.Status == StatusFailed {
		return fmt.Errorf("%w: goal %s is %s", ErrTerminal, goalID, goal.Status)
	}

	goal.Status = status
	goal.UpdatedAt = time.Now()
	if err := s.db.UpdateGoal(goal); err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}

	log.Info().Str("goal_id", goalID).Str("status", status).Msg("goal status changed")
	return nil
}

// UpdateProgress overwrites the goal's current value, recomputes the derived
// progress percentage, appends a progress sample, and returns the new
// percentage. This is the single place completion is decided: when the new
// value reaches the target and the goal is ACTIVE it transitions to
// COMPLETED inside the same serialized update.
func (s *Service) UpdateProgress(goalID string, newValue float64, notes string) (float64, error) {
	l := s.lockFor(goalID)
	l.Lock()
	defer l.Unlock()

	goal, err := s.Get(goalID)
	if err != nil {
		return 0, err
	}
	return s.applyProgress(goal, newValue, notes)
}

// applyProgress is the single completion decision point. Callers must hold
// the goal's lock.
func (s *Service) applyProgress(goal *Goal, newValue float64, notes string) (float64, error) {
	goal.CurrentValue = newValue
	if goal.TargetValue != 0 {
		goal.Progress = (newValue / goal.TargetValue) * 100
	} else {
		goal.Progress = 0
	}

	completed := false
	if goal.IsCompleted() && goal.Status == StatusActive {
		goal.Status = StatusCompleted
		completed = true
	}
	goal.UpdatedAt = time.Now()

	sample := &ProgressSample{
		GoalID:    goal.GoalID,
		Value:     newValue,
		Progress:  goal.Progress,
		Notes:     notes,
		CreatedAt: time.Now(),
	}

	if err := s.db.UpdateGoalWithSample(goal, sample); err != nil {
		return 0, fmt.Errorf("failed to persist progress update: %w", err)
	}

	if completed {
		log.Info().
			Str("goal_id", goal.GoalID).
			Float64("target", goal.TargetValue).
			Float64("current", goal.CurrentValue).
			Msg("goal completed")
	}

	return goal.Progress, nil
}

// AddProgress applies a relative increment to the goal's current value. The
// read and the write happen under the goal's lock, so two concurrent
// increments can never lose one another.
func (s *Service) AddProgress(goalID string, delta float64, notes string) (float64, error) {
	l := s.lockFor(goalID)
	l.Lock()
	defer l.Unlock()

	goal, err := s.Get(goalID)
	if err != nil {
		return 0, err
	}
	return s.applyProgress(goal, goal.CurrentValue+delta, notes)
}

// RecordDailySession appends one daily session record for the goal.
// Independent of UpdateProgress: a session caller typically does both.
func (s *Service) RecordDailySession(goalID string, trades int, pnl, progressDelta float64, notes string) error {
	goal, err := s.Get(goalID)
	if err != nil {
		return err
	}

	session := &DailySession{
		GoalID:         goal.GoalID,
		SessionDate:    time.Now().Format("2006-01-02"),
		TradesExecuted: trades,
		ProfitLoss:     pnl,
		ProgressDelta:  progressDelta,
		Notes:          notes,
		CreatedAt:      time.Now(),
	}

	if err := s.db.CreateDailySession(session); err != nil {
		return fmt.Errorf("failed to record daily session: %w", err)
	}
	return nil
}

// DailySessions returns the goal's session records within the window.
func (s *Service) DailySessions(goalID string, windowDays int) ([]DailySession, error) {
	if _, err := s.Get(goalID); err != nil {
		return nil, err
	}
	since := time.Now().AddDate(0, 0, -windowDays)
	return s.db.GetDailySessions(goalID, since)
}

// ProgressHistory returns the goal's progress samples within the window,
// newest first.
func (s *Service) ProgressHistory(goalID string, windowDays int) ([]ProgressSample, error) {
	if _, err := s.Get(goalID); err != nil {
		return nil, err
	}
	since := time.Now().AddDate(0, 0, -windowDays)
	return s.db.GetProgressHistory(goalID, since)
}

// Summarize aggregates all goals into dashboard totals.
func (s *Service) Summarize() (*Summary, error) {
	all, err := s.db.ListGoals()
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalGoals: len(all)}
	var activeProgress float64
	for _, g := range all {
		switch g.Status {
		case StatusActive:
			summary.ActiveGoals++
			activeProgress += g.Progress
			if g.DailyTradingEnabled {
				summary.DailyTradingGoals++
			}
			if g.Progress >= 80 {
				summary.GoalsNearCompletion++
			}
		case StatusCompleted:
			summary.CompletedGoals++
		}
	}
	if summary.ActiveGoals > 0 {
		summary.AverageProgress = activeProgress / float64(summary.ActiveGoals)
	}

	return summary, nil
}
