// Package command turns free-text operator instructions into goal
// definitions. Recognition is a fixed, ordered list of regular patterns so
// that overlapping phrasings always resolve the same way.
package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GoalDefinition is the structured result of recognizing a trading
// instruction. It carries everything the goal store needs to create the goal
// plus the originating text for the metadata trail.
type GoalDefinition struct {
	Type        string
	TargetValue float64
	Description string
	Deadline    time.Time
	TimeFrame   string // "week", "day", "month" or "default"
	Priority    int
	RawText     string
}

// Goal types produced by the recognizer. They mirror the goal store's type
// enum so definitions can be handed over without translation.
const (
	TypeWeeklyProfit  = "custom"
	TypeDailyProfit   = "daily_profit"
	TypeProfitTarget  = "custom"
	TypePortfolioGain = "portfolio_gain"
	TypeRiskReduction = "risk_reduction"
)

// operatorPriority is assigned to every recognized instruction: operator
// orders outrank programmatically created goals.
const operatorPriority = 10

type pattern struct {
	re       *regexp.Regexp
	goalType string
	describe func(target float64) string
}

// patterns are evaluated top to bottom and the first match wins. Weekly and
// daily phrasings must come before the generic profit forms, which would
// otherwise swallow them.
var patterns = []pattern{
	// Weekly profit
	{regexp.MustCompile(`(?:this\s+)?week\s+make\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)\s*(?:profit|gain)?`), TypeWeeklyProfit, describeProfit},
	{regexp.MustCompile(`make\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)\s+(?:profit\s+)?this\s+week`), TypeWeeklyProfit, describeProfit},
	{regexp.MustCompile(`generate\s+\$?([\d,]+(?:\.\d+)?)\s+(?:in\s+)?(?:profit\s+)?(?:this\s+)?week`), TypeWeeklyProfit, describeProfit},

	// Daily profit
	{regexp.MustCompile(`(?:today|daily)\s+make\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)\s*(?:profit|gain)?`), TypeDailyProfit, describeProfit},
	{regexp.MustCompile(`make\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)\s+(?:profit\s+)?(?:today|daily|per\s+day|a\s+day|each\s+day)`), TypeDailyProfit, describeProfit},
	{regexp.MustCompile(`generate\s+\$?([\d,]+(?:\.\d+)?)\s+daily\s+profit`), TypeDailyProfit, describeProfit},

	// Generic profit targets
	{regexp.MustCompile(`make\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)\s+profit`), TypeProfitTarget, describeProfit},
	{regexp.MustCompile(`earn\s+(?:me\s+)?\$?([\d,]+(?:\.\d+)?)`), TypeProfitTarget, describeProfit},
	{regexp.MustCompile(`generate\s+\$?([\d,]+(?:\.\d+)?)\s+(?:in\s+)?profit`), TypeProfitTarget, describeProfit},

	// Portfolio gain percentage
	{regexp.MustCompile(`increase\s+(?:my\s+|the\s+)?portfolio\s+(?:by\s+)?(\d+(?:\.\d+)?)\s*%`), TypePortfolioGain, describeGain},
	{regexp.MustCompile(`grow\s+(?:my\s+|the\s+)?portfolio\s+(?:by\s+)?(\d+(?:\.\d+)?)\s*%`), TypePortfolioGain, describeGain},

	// Risk reduction percentage
	{regexp.MustCompile(`reduce\s+risk\s+(?:by\s+)?(\d+(?:\.\d+)?)\s*%`), TypeRiskReduction, describeRisk},
}

var principalMarkers = []string{"operator", "boss", "sir", "master"}

var imperativePhrases = []string{"you must", "i want", "make me", "get me", "i need"}

// Recognizer parses natural-language trading instructions into goal
// definitions. now is injectable for deterministic deadline tests.
type Recognizer struct {
	now func() time.Time
}

func NewRecognizer() *Recognizer {
	return &Recognizer{now: time.Now}
}

// IsAuthorized reports whether the text carries an authority marker: either
// a named principal or imperative phrasing. Unauthorized text must never
// materialize a goal.
func (r *Recognizer) IsAuthorized(text string) bool {
	lower := strings.ToLower(text)

	for _, marker := range principalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, phrase := range imperativePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Parse matches the text against the ordered pattern list and returns a goal
// definition for the first hit, or nil when nothing matches or the text is
// not authorized. A nil result is the normal "no actionable command" outcome,
// not an error.
func (r *Recognizer) Parse(text string) *GoalDefinition {
	if !r.IsAuthorized(text) {
		return nil
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		target, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}

		timeFrame, deadline := r.deadlineFor(lower)

		return &GoalDefinition{
			Type:        p.goalType,
			TargetValue: target,
			Description: p.describe(target),
			Deadline:    deadline,
			TimeFrame:   timeFrame,
			Priority:    operatorPriority,
			RawText:     strings.TrimSpace(text),
		}
	}

	return nil
}

// deadlineFor derives a deadline from time-frame keywords: "week" runs to the
// end of the current calendar week, day-scoped phrasings ("today", "daily",
// "per day") to end of day, "month" 30 days out, anything else 7 days out.
func (r *Recognizer) deadlineFor(lower string) (string, time.Time) {
	now := r.now()

	switch {
	case strings.Contains(lower, "week"):
		// Days until Sunday, treating Monday as the first day of the week.
		daysUntilSunday := (7 - int(now.Weekday())) % 7
		end := now.AddDate(0, 0, daysUntilSunday)
		return "week", time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	case strings.Contains(lower, "today"), strings.Contains(lower, "daily"),
		strings.Contains(lower, "per day"), strings.Contains(lower, "each day"):
		return "day", time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	case strings.Contains(lower, "month"):
		return "month", now.AddDate(0, 0, 30)
	default:
		return "default", now.AddDate(0, 0, 7)
	}
}

func describeProfit(target float64) string {
	return "Generate $" + formatAmount(target) + " trading profit"
}

func describeGain(target float64) string {
	return "Increase portfolio by " + formatAmount(target) + "%"
}

func describeRisk(target float64) string {
	return "Reduce portfolio risk by " + formatAmount(target) + "%"
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return s
}
