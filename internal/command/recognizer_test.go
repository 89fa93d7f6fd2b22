package command

import (
	"testing"
	"time"
)

func fixedRecognizer(t *testing.T, now time.Time) *Recognizer {
	t.Helper()
	r := NewRecognizer()
	r.now = func() time.Time { return now }
	return r
}

func TestParse_WeeklyProfit(t *testing.T) {
	// A Wednesday.
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	r := fixedRecognizer(t, now)

	def := r.Parse("Make me $500 profit this week")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.TargetValue != 500 {
		t.Errorf("expected target 500, got %v", def.TargetValue)
	}
	if def.TimeFrame != "week" {
		t.Errorf("expected week time frame, got %q", def.TimeFrame)
	}
	if def.Deadline.After(now.AddDate(0, 0, 7)) {
		t.Errorf("weekly deadline more than 7 days out: %v", def.Deadline)
	}
	// Wednesday -> Sunday is 4 days.
	if def.Deadline.Day() != 30 {
		t.Errorf("expected deadline on the 30th, got %v", def.Deadline)
	}
}

func TestParse_DailyProfit(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	r := fixedRecognizer(t, now)

	def := r.Parse("I want you to make $1000 profit today")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.Type != TypeDailyProfit {
		t.Errorf("expected daily profit type, got %q", def.Type)
	}
	if def.TargetValue != 1000 {
		t.Errorf("expected target 1000, got %v", def.TargetValue)
	}
	if def.Deadline.Day() != now.Day() || def.Deadline.Hour() != 23 {
		t.Errorf("expected end-of-day deadline, got %v", def.Deadline)
	}
}

func TestParse_PerDayProfit(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	r := fixedRecognizer(t, now)

	def := r.Parse("I want to make $1,000 per day from trading")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.Type != TypeDailyProfit {
		t.Errorf("expected daily profit type, got %q", def.Type)
	}
	if def.TargetValue != 1000 {
		t.Errorf("expected target 1000 after separator stripping, got %v", def.TargetValue)
	}
	if def.TimeFrame != "day" {
		t.Errorf("expected day time frame, got %q", def.TimeFrame)
	}
}

func TestParse_PortfolioGainWithPossessive(t *testing.T) {
	r := NewRecognizer()

	def := r.Parse("You must increase my portfolio by 20%")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.Type != TypePortfolioGain || def.TargetValue != 20 {
		t.Errorf("expected portfolio gain of 20, got %+v", def)
	}
}

func TestParse_PortfolioGain(t *testing.T) {
	r := NewRecognizer()

	def := r.Parse("I need you to increase portfolio by 20%")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.Type != TypePortfolioGain {
		t.Errorf("expected portfolio gain type, got %q", def.Type)
	}
	if def.TargetValue != 20 {
		t.Errorf("expected target 20, got %v", def.TargetValue)
	}
}

func TestParse_RiskReduction(t *testing.T) {
	r := NewRecognizer()

	def := r.Parse("operator: reduce risk by 15%")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.Type != TypeRiskReduction || def.TargetValue != 15 {
		t.Errorf("unexpected definition: %+v", def)
	}
}

func TestParse_ThousandSeparators(t *testing.T) {
	r := NewRecognizer()

	def := r.Parse("Make me $1,500 profit")
	if def == nil {
		t.Fatal("expected a goal definition")
	}
	if def.TargetValue != 1500 {
		t.Errorf("expected separators stripped to 1500, got %v", def.TargetValue)
	}
}

func TestParse_UnauthorizedRejected(t *testing.T) {
	r := NewRecognizer()

	if def := r.Parse("perhaps $500 profit this week would be nice"); def != nil {
		t.Errorf("expected nil for unauthorized text, got %+v", def)
	}
}

func TestParse_NoPatternMatch(t *testing.T) {
	r := NewRecognizer()

	if def := r.Parse("I want a full portfolio review"); def != nil {
		t.Errorf("expected nil for non-goal text, got %+v", def)
	}
}

func TestIsAuthorized(t *testing.T) {
	r := NewRecognizer()

	cases := []struct {
		text string
		want bool
	}{
		{"Make me $500 profit", true},
		{"I want $200 today", true},
		{"boss says earn $100", true},
		{"the weather is nice", false},
	}
	for _, c := range cases {
		if got := r.IsAuthorized(c.text); got != c.want {
			t.Errorf("IsAuthorized(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}
