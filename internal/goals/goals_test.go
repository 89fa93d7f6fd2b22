package goals

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Goal{}, &ProgressSample{}, &DailySession{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewService(db)
}

func mustCreate(t *testing.T, s *Service, params CreateParams) string {
	t.Helper()
	id, err := s.Create(params)
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	return id
}

func TestCreateStartsPending(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{
		Type:        TypeDailyProfit,
		TargetValue: 1000,
		Description: "Make $1000 per day",
		Priority:    10,
	})

	goal, err := s.Get(id)
	if err != nil {
		t.Fatalf("failed to get goal: %v", err)
	}
	if goal.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, goal.Status)
	}
	if goal.Progress != 0 || goal.CurrentValue != 0 {
		t.Errorf("expected zero progress on creation, got value=%v progress=%v", goal.CurrentValue, goal.Progress)
	}
	if goal.Unit() != "usd" {
		t.Errorf("expected usd unit for daily profit, got %s", goal.Unit())
	}
}

func TestCreateRejectsInvalidTargets(t *testing.T) {
	s := testService(t)

	if _, err := s.Create(CreateParams{Type: TypePortfolioGain, TargetValue: -5}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for negative percentage target, got %v", err)
	}
	if _, err := s.Create(CreateParams{Type: TypePortfolioGain, TargetValue: 0}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for zero percentage target, got %v", err)
	}
	if _, err := s.Create(CreateParams{Type: "bogus", TargetValue: 100}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for unknown goal type, got %v", err)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatalf("failed to list goals: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected creations must not persist anything, found %d goals", len(all))
	}
}

func TestGetUnknownGoal(t *testing.T) {
	s := testService(t)
	if _, err := s.Get("goal_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressIsDerived(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 500, Description: "weekly target"})
	if err := s.Activate(id); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}

	pct, err := s.UpdateProgress(id, 125, "first session")
	if err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	if pct != 25 {
		t.Errorf("expected 25%% progress, got %v", pct)
	}

	goal, err := s.Get(id)
	if err != nil {
		t.Fatalf("failed to get goal: %v", err)
	}
	if goal.Progress != 25 {
		t.Errorf("expected persisted progress 25, got %v", goal.Progress)
	}
	if goal.Status != StatusActive {
		t.Errorf("goal below target must stay active, got %s", goal.Status)
	}

	history, err := s.ProgressHistory(id, 7)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one progress sample, got %d", len(history))
	}
	if history[0].Value != 125 || history[0].Notes != "first session" {
		t.Errorf("unexpected sample: %+v", history[0])
	}
}

func TestCompletionDecidedOnUpdate(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 100})
	if err := s.Activate(id); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}

	if _, err := s.UpdateProgress(id, 100, "target hit"); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}

	goal, err := s.Get(id)
	if err != nil {
		t.Fatalf("failed to get goal: %v", err)
	}
	if goal.Status != StatusCompleted {
		t.Errorf("expected COMPLETED at target, got %s", goal.Status)
	}

	// Terminal states stay terminal and the caller is told so.
	if err := s.Pause(id); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal pausing a completed goal, got %v", err)
	}
	goal, _ = s.Get(id)
	if goal.Status != StatusCompleted {
		t.Errorf("completed goal must stay completed, got %s", goal.Status)
	}

	// Re-applying the terminal status itself stays an idempotent no-op.
	if err := s.Complete(id); err != nil {
		t.Errorf("re-completing a completed goal returned error: %v", err)
	}
}

func TestCompletionRequiresActiveGoal(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 100})

	// Pending goal reaching its target records the value but does not flip
	// to COMPLETED; only active goals complete.
	if _, err := s.UpdateProgress(id, 150, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	goal, _ := s.Get(id)
	if goal.Status != StatusPending {
		t.Errorf("pending goal must not auto-complete, got %s", goal.Status)
	}
}

func TestPauseAndResume(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 100})

	if err := s.Activate(id); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}
	if err := s.Pause(id); err != nil {
		t.Fatalf("failed to pause: %v", err)
	}
	goal, _ := s.Get(id)
	if goal.Status != StatusPaused {
		t.Fatalf("expected PAUSED, got %s", goal.Status)
	}
	if err := s.Activate(id); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	goal, _ = s.Get(id)
	if goal.Status != StatusActive {
		t.Errorf("expected ACTIVE after resume, got %s", goal.Status)
	}
}

func TestConcurrentAddProgressLosesNothing(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 1e9})
	if err := s.Activate(id); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.AddProgress(id, 1, ""); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	goal, err := s.Get(id)
	if err != nil {
		t.Fatalf("failed to get goal: %v", err)
	}
	if goal.CurrentValue != workers*perWorker {
		t.Errorf("expected %d after %d increments, got %v", workers*perWorker, workers*perWorker, goal.CurrentValue)
	}
}

func TestDailySessionsWindow(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateParams{Type: TypeDailyProfit, TargetValue: 1000})

	if err := s.RecordDailySession(id, 3, 120.50, 120.50, "productive day"); err != nil {
		t.Fatalf("failed to record session: %v", err)
	}
	if err := s.RecordDailySession(id, 0, 0, 0, "no signals"); err != nil {
		t.Fatalf("failed to record session: %v", err)
	}

	sessions, err := s.DailySessions(id, 7)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	today := time.Now().Format("2006-01-02")
	for _, sess := range sessions {
		if sess.SessionDate != today {
			t.Errorf("expected session date %s, got %s", today, sess.SessionDate)
		}
	}

	if _, err := s.DailySessions("goal_missing", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown goal, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := testService(t)

	active := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 100, DailyTradingEnabled: true})
	if err := s.Activate(active); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}
	if _, err := s.UpdateProgress(active, 90, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}

	done := mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 50})
	if err := s.Activate(done); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}
	if _, err := s.UpdateProgress(done, 50, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}

	mustCreate(t, s, CreateParams{Type: TypeCustom, TargetValue: 200})

	summary, err := s.Summarize()
	if err != nil {
		t.Fatalf("failed to summarize: %v", err)
	}
	if summary.TotalGoals != 3 {
		t.Errorf("expected 3 total goals, got %d", summary.TotalGoals)
	}
	if summary.ActiveGoals != 1 {
		t.Errorf("expected 1 active goal, got %d", summary.ActiveGoals)
	}
	if summary.CompletedGoals != 1 {
		t.Errorf("expected 1 completed goal, got %d", summary.CompletedGoals)
	}
	if summary.DailyTradingGoals != 1 {
		t.Errorf("expected 1 daily trading goal, got %d", summary.DailyTradingGoals)
	}
	if summary.GoalsNearCompletion != 1 {
		t.Errorf("expected 1 goal near completion, got %d", summary.GoalsNearCompletion)
	}
	if summary.AverageProgress != 90 {
		t.Errorf("expected average progress 90, got %v", summary.AverageProgress)
	}
}
