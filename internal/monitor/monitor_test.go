package monitor

import (
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jcarter/tradepilot/internal/goals"
)

func testStore(t *testing.T) *goals.Service {
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
	if err := db.AutoMigrate(&goals.Goal{}, &goals.ProgressSample{}, &goals.DailySession{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return goals.NewService(db)
}

func activeGoal(t *testing.T, store *goals.Service, target float64) string {
	t.Helper()
	id, err := store.Create(goals.CreateParams{
		Type:        goals.TypeCustom,
		TargetValue: target,
		Description: "Generate trading profit",
	})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	if err := store.Activate(id); err != nil {
		t.Fatalf("failed to activate goal: %v", err)
	}
	return id
}

type notificationLog struct {
	mu    sync.Mutex
	seen  []Notification
	panic bool
}

func (l *notificationLog) callback(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panic {
		panic("callback blew up")
	}
	l.seen = append(l.seen, n)
}

func (l *notificationLog) milestones() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.seen))
	for i, n := range l.seen {
		out[i] = n.Milestone
	}
	return out
}

func TestMilestonesFireExactlyOnce(t *testing.T) {
	store := testStore(t)
	id := activeGoal(t, store, 100)

	m := New(store, time.Minute)
	rec := &notificationLog{}
	m.OnNotification(rec.callback)

	steps := []float64{10, 30, 30, 55, 80, 92, 96, 100}
	for _, value := range steps {
		if _, err := store.UpdateProgress(id, value, ""); err != nil {
			t.Fatalf("failed to update progress: %v", err)
		}
		if err := m.observe(); err != nil {
			t.Fatalf("observation pass failed: %v", err)
		}
	}

	want := []int{25, 50, 75, 90, 95, 100}
	got := rec.milestones()
	if len(got) != len(want) {
		t.Fatalf("expected milestones %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected milestones %v, got %v", want, got)
		}
	}

	// Re-observing at an unchanged value must fire nothing further. The
	// goal completed at 100, so re-activate is a no-op and the goal is no
	// longer active; observe a fresh pass to be sure.
	if err := m.observe(); err != nil {
		t.Fatalf("observation pass failed: %v", err)
	}
	if extra := rec.milestones(); len(extra) != len(want) {
		t.Errorf("unchanged re-sample re-fired milestones: %v", extra)
	}
}

func TestMilestoneSkipsNothingOnBigJump(t *testing.T) {
	store := testStore(t)
	id := activeGoal(t, store, 100)

	m := New(store, time.Minute)
	rec := &notificationLog{}
	m.OnNotification(rec.callback)

	// A single jump from 0 to 93 crosses 25, 50, 75 and 90 at once.
	if _, err := store.UpdateProgress(id, 93, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	if err := m.observe(); err != nil {
		t.Fatalf("observation pass failed: %v", err)
	}

	got := rec.milestones()
	want := []int{25, 50, 75, 90}
	if len(got) != len(want) {
		t.Fatalf("expected milestones %v, got %v", want, got)
	}
}

func TestCallbackPanicDoesNotStopDelivery(t *testing.T) {
	store := testStore(t)
	id := activeGoal(t, store, 100)

	m := New(store, time.Minute)
	bad := &notificationLog{panic: true}
	good := &notificationLog{}
	m.OnNotification(bad.callback)
	m.OnNotification(good.callback)

	if _, err := store.UpdateProgress(id, 30, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	if err := m.observe(); err != nil {
		t.Fatalf("observation pass must survive a panicking callback: %v", err)
	}

	if got := good.milestones(); len(got) != 1 || got[0] != 25 {
		t.Errorf("expected later callback to still receive milestone 25, got %v", got)
	}
}

func TestTrendClassification(t *testing.T) {
	store := testStore(t)
	id := activeGoal(t, store, 1000)

	m := New(store, time.Minute)

	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		values []float64
		want   string
	}{
		{"accelerating", []float64{0, 50, 120}, TrendAccelerating},
		{"steady", []float64{0, 0.05, 0.1}, TrendSteady},
		{"stable", []float64{10, 10, 10}, TrendStable},
		{"declining", []float64{100, 60, 20}, TrendDeclining},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m.mu.Lock()
			m.history[id] = nil
			m.mu.Unlock()

			for i, v := range tc.values {
				at := base.Add(time.Duration(i) * time.Hour)
				m.now = func() time.Time { return at }
				m.record(&goals.Goal{GoalID: id, CurrentValue: v})
			}

			trend := m.trendFor(id)
			if trend.Trend != tc.want {
				t.Errorf("expected trend %s, got %s (rate %v)", tc.want, trend.Trend, trend.RatePerHour)
			}
		})
	}
}

func TestTrendInsufficientData(t *testing.T) {
	store := testStore(t)
	m := New(store, time.Minute)

	if trend := m.trendFor("goal_unknown"); trend.Trend != TrendInsufficientData {
		t.Errorf("expected insufficient_data for empty history, got %s", trend.Trend)
	}
}

func TestReportEstimates(t *testing.T) {
	store := testStore(t)
	id := activeGoal(t, store, 100)

	m := New(store, time.Minute)

	// No progress yet: daily average 0, estimate undefined.
	report, err := m.Report(id)
	if err != nil {
		t.Fatalf("failed to generate report: %v", err)
	}
	if report.EstimatedCompletionDays != nil {
		t.Errorf("expected no estimate with zero daily average, got %d", *report.EstimatedCompletionDays)
	}
	if report.DaysActive != 1 {
		t.Errorf("days active never below 1, got %d", report.DaysActive)
	}

	// 50 units on day one: remaining 50 / average 50 = 1 day.
	if _, err := store.UpdateProgress(id, 50, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	if err := store.RecordDailySession(id, 2, 50, 50, ""); err != nil {
		t.Fatalf("failed to record session: %v", err)
	}

	report, err = m.Report(id)
	if err != nil {
		t.Fatalf("failed to generate report: %v", err)
	}
	if report.EstimatedCompletionDays == nil || *report.EstimatedCompletionDays != 1 {
		t.Errorf("expected 1 day estimate, got %v", report.EstimatedCompletionDays)
	}
	if report.Metrics.TradingDays != 1 || report.Metrics.WinRate != 1 {
		t.Errorf("unexpected session metrics: %+v", report.Metrics)
	}
	if len(report.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}
}

func TestReportUnknownGoal(t *testing.T) {
	store := testStore(t)
	m := New(store, time.Minute)
	if _, err := m.Report("goal_missing"); err == nil {
		t.Error("expected error for unknown goal")
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	store := testStore(t)
	m := New(store, time.Minute)

	behind := activeGoal(t, store, 100)
	ahead := activeGoal(t, store, 100)
	if _, err := store.UpdateProgress(behind, 10, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}
	if _, err := store.UpdateProgress(ahead, 70, ""); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}

	board, err := m.Leaderboard()
	if err != nil {
		t.Fatalf("failed to build leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board))
	}
	if board[0].GoalID != ahead || board[1].GoalID != behind {
		t.Errorf("expected progress-descending order, got %s then %s", board[0].GoalID, board[1].GoalID)
	}
}
