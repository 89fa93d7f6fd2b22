// Package orchestrator runs one independent worker per active goal. Workers
// poll the market clock, execute at most one trading session per calendar
// day, feed the results back into the goal store and stop themselves on
// completion, deadline expiry or a no-trade streak.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/goals"
	"github.com/jcarter/tradepilot/internal/session"
)

// Worker states reported through Status.
const (
	StateStarting       = "starting"
	StateActive         = "active"
	StateStopped        = "stopped"
	StateCompleted      = "completed"
	StateFailed         = "failed"
	StatePausedByPolicy = "paused_by_policy"
)

// maxNoTradeStreak bounds wasted polling: after this many consecutive
// sessions without a single executed trade the goal is paused.
const maxNoTradeStreak = 5

var (
	// ErrAlreadyRunning is returned when a worker for the goal already exists.
	ErrAlreadyRunning = errors.New("trading loop already running for goal")
	// ErrNotRunning is returned when stopping a goal with no worker.
	ErrNotRunning = errors.New("no active trading loop for goal")
)

// SessionRunner executes one trading session for a goal. The context text is
// the operator's free-form instruction, forwarded verbatim into the analysis
// prompt.
type SessionRunner interface {
	Run(goal *goals.Goal, contextText string) session.Result
}

// MarketClock reports whether the market is open for trading.
type MarketClock interface {
	IsOpen() bool
}

type worker struct {
	cancel context.CancelFunc
	state  string
}

// Orchestrator owns the goal-id -> worker map. It is constructed once at
// process start and passed by reference, so there is no hidden process-wide
// registry.
type Orchestrator struct {
	store  *goals.Service
	runner SessionRunner
	clock  MarketClock

	pollInterval  time.Duration
	extendedHours bool

	mu      sync.Mutex
	workers map[string]*worker
}

func New(store *goals.Service, runner SessionRunner, clock MarketClock, pollInterval time.Duration) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &Orchestrator{
		store:        store,
		runner:       runner,
		clock:        clock,
		pollInterval: pollInterval,
		workers:      make(map[string]*worker),
	}
}

// EnableExtendedHours lets sessions run while the market clock reports
// closed. Must be called before any worker starts.
func (o *Orchestrator) EnableExtendedHours() {
	o.extendedHours = true
}

// Start spawns the persistent trading worker for a goal, activating the goal
// first when needed. Calling Start while a worker for the id is already
// running is a no-op that reports the existing state.
func (o *Orchestrator) Start(goalID, contextText string) (string, error) {
	goal, err := o.store.Get(goalID)
	if err != nil {
		return "", err
	}

	if goal.Status != goals.StatusActive {
		if err := o.store.Activate(goalID); err != nil {
			return "", err
		}
	}

	o.mu.Lock()
	if w, ok := o.workers[goalID]; ok {
		state := w.state
		o.mu.Unlock()
		return state, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, state: StateStarting}
	o.workers[goalID] = w
	o.mu.Unlock()

	go o.run(ctx, goalID, contextText)

	log.Info().Str("goal_id", goalID).Msg("persistent trading loop started")
	return StateStarting, nil
}

// Stop signals the goal's worker to exit at its next check point and pauses
// the goal, so restarting requires an explicit reactivation. Cancellation is
// cooperative; an in-flight session is never killed.
func (o *Orchestrator) Stop(goalID string) (string, error) {
	o.mu.Lock()
	w, ok := o.workers[goalID]
	o.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRunning, goalID)
	}

	w.cancel()
	if err := o.store.Pause(goalID); err != nil {
		return "", err
	}

	log.Info().Str("goal_id", goalID).Msg("persistent trading loop stop requested")
	return "trading stopped, goal paused", nil
}

// Status returns the worker state for a goal, or "inactive" when no worker
// exists.
func (o *Orchestrator) Status(goalID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if w, ok := o.workers[goalID]; ok {
		return w.state
	}
	return "inactive"
}

// ActiveWorkers snapshots the state of every running worker.
func (o *Orchestrator) ActiveWorkers() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]string, len(o.workers))
	for id, w := range o.workers {
		out[id] = w.state
	}
	return out
}

func (o *Orchestrator) setState(goalID, state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if w, ok := o.workers[goalID]; ok {
		w.state = state
	}
}

func (o *Orchestrator) removeWorker(goalID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.workers, goalID)
}

// run is the worker loop for one goal. Errors from this goal's store access
// are fatal to this worker only and leave the goal ACTIVE for a later
// restart; nothing here can affect another goal's worker.
func (o *Orchestrator) run(ctx context.Context, goalID, contextText string) {
	logger := log.With().Str("component", "trading_loop").Str("goal_id", goalID).Logger()
	defer o.removeWorker(goalID)

	o.setState(goalID, StateActive)

	lastTradingDate := ""
	noTradeStreak := 0

	for {
		if ctx.Err() != nil {
			o.setState(goalID, StateStopped)
			logger.Info().Msg("loop cancelled")
			return
		}

		goal, err := o.store.Get(goalID)
		if err != nil {
			o.setState(goalID, StateStopped)
			logger.Error().Err(err).Msg("store unavailable, abandoning loop")
			return
		}

		if goal.Status != goals.StatusActive {
			o.setState(goalID, StateStopped)
			logger.Info().Str("status", goal.Status).Msg("goal no longer active, stopping loop")
			return
		}

		if goal.IsCompleted() {
			if err := o.store.Complete(goalID); err != nil {
				logger.Error().Err(err).Msg("failed to mark goal completed")
			}
			o.setState(goalID, StateCompleted)
			logger.Info().Msg("goal target reached, loop finished")
			return
		}

		if goal.Deadline != nil && time.Now().After(*goal.Deadline) {
			if err := o.store.Fail(goalID); err != nil {
				logger.Error().Err(err).Msg("failed to mark goal failed")
			}
			o.setState(goalID, StateFailed)
			logger.Warn().Time("deadline", *goal.Deadline).Msg("deadline expired before completion")
			return
		}

		today := time.Now().Format("2006-01-02")
		if lastTradingDate != today && o.marketAvailable() && !o.tradedToday(goalID, today) {
			result := o.runner.Run(goal, contextText)

			if err := o.recordSession(goal, result); err != nil {
				o.setState(goalID, StateStopped)
				logger.Error().Err(err).Msg("store unavailable while recording session, abandoning loop")
				return
			}

			if result.TradesExecuted > 0 {
				lastTradingDate = today
				noTradeStreak = 0
				// Re-check completion immediately after a productive
				// session rather than sleeping through it.
				continue
			}

			noTradeStreak++
			logger.Info().Int("streak", noTradeStreak).Msg("session executed no trades")

			if noTradeStreak >= maxNoTradeStreak {
				if err := o.store.Pause(goalID); err != nil {
					logger.Error().Err(err).Msg("failed to pause goal after no-trade streak")
				}
				o.setState(goalID, StatePausedByPolicy)
				logger.Warn().Msg("no progress after consecutive no-trade sessions, goal paused")
				return
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(o.pollInterval):
		}
	}
}

// recordSession appends the daily session record and then applies the
// progress update. The append always happens-before the update, and both
// complete before the next poll iteration.
func (o *Orchestrator) recordSession(goal *goals.Goal, result session.Result) error {
	if err := o.store.RecordDailySession(goal.GoalID, result.TradesExecuted, result.ProfitLoss, result.ProgressDelta, result.Notes); err != nil {
		return err
	}

	if result.ProgressDelta != 0 {
		if _, err := o.store.AddProgress(goal.GoalID, result.ProgressDelta, result.Notes); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) marketAvailable() bool {
	return o.clock.IsOpen() || o.extendedHours
}

// tradedToday guards against a restarted worker running a second session on
// the same calendar day.
func (o *Orchestrator) tradedToday(goalID, today string) bool {
	sessions, err := o.store.DailySessions(goalID, 1)
	if err != nil {
		return false
	}
	for _, s := range sessions {
		if s.SessionDate == today && s.TradesExecuted > 0 {
			return true
		}
	}
	return false
}
