package recommend

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TradeAction is a single structured trading instruction extracted from
// free-text analysis output. Actions are ephemeral: they are built here,
// handed to the executor, and never persisted on their own.
type TradeAction struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"` // "buy" or "sell"
	Quantity   int      `json:"quantity"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
}

// rule pairs a compiled pattern with an extractor that maps its capture
// groups onto a TradeAction. Rules are evaluated in declaration order and
// the first (symbol, side) pair seen wins, so ordering is part of the
// parser's contract.
type rule struct {
	re      *regexp.Regexp
	extract func(groups []string) (TradeAction, bool)
}

const parsedConfidence = 0.8

var rules = []rule{
	// "BUY 100 shares of AAPL at $150.50"
	{
		re: regexp.MustCompile(`(?i)\b(BUY|SELL)\s+(\d+)\s+shares?\s+of\s+([A-Za-z]{1,5})\b\s*(?:at\s*\$?(\d+(?:\.\d+)?))?`),
		extract: func(g []string) (TradeAction, bool) {
			a := TradeAction{
				Symbol:   strings.ToUpper(g[3]),
				Side:     sideOf(g[1]),
				Quantity: coerceQuantity(g[2]),
			}
			if g[4] != "" {
				if p, err := strconv.ParseFloat(g[4], 64); err == nil {
					a.LimitPrice = &p
				}
			}
			return a, true
		},
	},
	// "AAPL: BUY 100 shares"
	{
		re: regexp.MustCompile(`(?i)\b([A-Za-z]{1,5}):\s*(BUY|SELL)\s+(\d+)\s+shares?`),
		extract: func(g []string) (TradeAction, bool) {
			return TradeAction{
				Symbol:   strings.ToUpper(g[1]),
				Side:     sideOf(g[2]),
				Quantity: coerceQuantity(g[3]),
			}, true
		},
	},
	// "recommend buying 50 TSLA" / "suggest selling 20 NVDA"
	{
		re: regexp.MustCompile(`(?i)\b(?:recommend|suggest)\s+(buying|selling)\s+(\d+)\s+([A-Za-z]{1,5})\b`),
		extract: func(g []string) (TradeAction, bool) {
			return TradeAction{
				Symbol:   strings.ToUpper(g[3]),
				Side:     sideOf(g[1]),
				Quantity: coerceQuantity(g[2]),
			}, true
		},
	},
	// "Action: BUY, Symbol: AAPL, Quantity: 100"
	{
		re: regexp.MustCompile(`(?i)Action:\s*(BUY|SELL)[^\n]*?Symbol:\s*([A-Za-z]{1,5})[^\n]*?Quantity:\s*(\d+)`),
		extract: func(g []string) (TradeAction, bool) {
			return TradeAction{
				Symbol:   strings.ToUpper(g[2]),
				Side:     sideOf(g[1]),
				Quantity: coerceQuantity(g[3]),
			}, true
		},
	},
}

// Parse extracts trade actions from free-text analysis output.
//
// It is a pure function: no matches yields an empty slice, never an error,
// so callers can distinguish "nothing actionable" from a real failure.
// Duplicate (symbol, side) pairs collapse to the first occurrence.
func Parse(text string) []TradeAction {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var actions []TradeAction
	seen := make(map[string]bool)

	for _, r := range rules {
		for _, groups := range r.re.FindAllStringSubmatch(text, -1) {
			action, ok := r.extract(groups)
			if !ok {
				continue
			}
			action.Reason = "parsed from analysis recommendation"
			action.Confidence = parsedConfidence

			key := action.Symbol + "_" + action.Side
			if seen[key] {
				continue
			}
			seen[key] = true
			actions = append(actions, action)
		}
	}

	return actions
}

func sideOf(s string) string {
	switch strings.ToUpper(s) {
	case "BUY", "BUYING":
		return "buy"
	default:
		return "sell"
	}
}

// coerceQuantity clamps a parsed quantity to a strictly positive whole
// number of shares. "BUY 0 shares" becomes 1, never 0.
func coerceQuantity(s string) int {
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1
	}
	n := int(math.Round(math.Abs(q)))
	if n < 1 {
		return 1
	}
	return n
}
