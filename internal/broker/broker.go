// Package broker provides the market-facing collaborators: a simulated
// multi-venue trade executor, quote and account lookups, and the exchange
// calendar clock. The rest of the system only sees its interfaces.
package broker

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jcarter/tradepilot/internal/recommend"
)

// ActionResult reports the outcome of one submitted trade action. Partial
// failures are reported per action, never raised as an error.
type ActionResult struct {
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Quantity    int             `json:"quantity"`
	FilledPrice decimal.Decimal `json:"filled_price"`
	TradeValue  decimal.Decimal `json:"trade_value"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
}

// ExecutionReport aggregates an execution batch.
type ExecutionReport struct {
	Results          []ActionResult  `json:"results"`
	ExecutedTrades   int             `json:"executed_trades"`
	FailedTrades     int             `json:"failed_trades"`
	TotalValueTraded decimal.Decimal `json:"total_value_traded"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
}

// venue models one simulated execution destination, weighted by liquidity
// and fill probability the way a smart order router would see it.
type venue struct {
	ID          string
	Name        string
	MinLatency  int // milliseconds
	MaxLatency  int
	SuccessRate float64
	FeeRate     decimal.Decimal
}

var venues = []venue{
	{ID: "VEN1", Name: "Primary Exchange", MinLatency: 5, MaxLatency: 30, SuccessRate: 0.95, FeeRate: decimal.NewFromFloat(0.001)},
	{ID: "VEN2", Name: "Secondary Exchange", MinLatency: 10, MaxLatency: 50, SuccessRate: 0.90, FeeRate: decimal.NewFromFloat(0.0008)},
	{ID: "VEN3", Name: "Dark Pool", MinLatency: 20, MaxLatency: 100, SuccessRate: 0.75, FeeRate: decimal.NewFromFloat(0.0003)},
}

// Executor routes parsed trade actions to the simulated venues and keeps
// the running account state.
type Executor struct {
	quotes *QuoteService
	rng    *rand.Rand
	// simulated drift applied to sells to produce realized P&L
	pnlSpread float64

	mu       sync.Mutex
	equity   decimal.Decimal
	realized decimal.Decimal
}

func NewExecutor(quotes *QuoteService) *Executor {
	return &Executor{
		quotes:    quotes,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pnlSpread: 0.02,
		equity:    decimal.NewFromInt(100000),
	}
}

// Account returns a snapshot of the simulated trading account.
func (e *Executor) Account() Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Account{
		Equity:      e.equity,
		BuyingPower: e.equity.Mul(decimal.NewFromInt(2)),
		RealizedPnL: e.realized,
	}
}

// Execute submits every action and reports per-action outcomes. It returns
// an error only when the batch as a whole could not be attempted; individual
// failures land in the report.
func (e *Executor) Execute(actions []recommend.TradeAction) (*ExecutionReport, error) {
	report := &ExecutionReport{
		TotalValueTraded: decimal.Zero,
		RealizedPnL:      decimal.Zero,
	}

	for _, action := range actions {
		result := e.executeOne(action)
		report.Results = append(report.Results, result)

		if result.Success {
			report.ExecutedTrades++
			report.TotalValueTraded = report.TotalValueTraded.Add(result.TradeValue)
			report.RealizedPnL = report.RealizedPnL.Add(result.RealizedPnL)
		} else {
			report.FailedTrades++
		}
	}

	e.mu.Lock()
	e.realized = e.realized.Add(report.RealizedPnL)
	e.equity = e.equity.Add(report.RealizedPnL)
	e.mu.Unlock()

	log.Info().
		Int("executed", report.ExecutedTrades).
		Int("failed", report.FailedTrades).
		Str("total_value", report.TotalValueTraded.StringFixed(2)).
		Str("realized_pnl", report.RealizedPnL.StringFixed(2)).
		Msg("execution batch complete")

	return report, nil
}

func (e *Executor) executeOne(action recommend.TradeAction) ActionResult {
	result := ActionResult{
		Symbol:      action.Symbol,
		Side:        action.Side,
		Quantity:    action.Quantity,
		FilledPrice: decimal.Zero,
		TradeValue:  decimal.Zero,
		RealizedPnL: decimal.Zero,
	}

	quote, err := e.quotes.Quote(action.Symbol)
	if err != nil {
		result.Error = fmt.Sprintf("quote unavailable: %v", err)
		return result
	}

	v := e.pickVenue()
	logger := log.With().
		Str("venue", v.ID).
		Str("symbol", action.Symbol).
		Str("side", action.Side).
		Int("quantity", action.Quantity).
		Logger()

	// Simulated wire latency.
	latency := e.rng.Intn(v.MaxLatency-v.MinLatency+1) + v.MinLatency
	time.Sleep(time.Duration(latency) * time.Millisecond)

	if e.rng.Float64() > v.SuccessRate {
		result.Error = fmt.Sprintf("execution rejected by venue %s", v.ID)
		logger.Warn().Msg("venue rejected order")
		return result
	}

	// Fill at the quote with a small variance, or at the limit when given.
	price := quote.Price
	if action.LimitPrice != nil {
		price = decimal.NewFromFloat(*action.LimitPrice)
	} else {
		variance := decimal.NewFromFloat(1 + (e.rng.Float64()*0.02 - 0.01))
		price = price.Mul(variance)
	}

	qty := decimal.NewFromInt(int64(action.Quantity))
	value := price.Mul(qty)
	fee := value.Mul(v.FeeRate)

	result.FilledPrice = price
	result.TradeValue = value
	result.Success = true

	// Sells realize the position's drift since entry; buys only pay the fee.
	if action.Side == "sell" {
		drift := decimal.NewFromFloat(e.rng.Float64()*2*e.pnlSpread - e.pnlSpread)
		result.RealizedPnL = value.Mul(drift).Sub(fee)
	} else {
		result.RealizedPnL = fee.Neg()
	}

	logger.Info().
		Str("filled_price", price.StringFixed(2)).
		Str("trade_value", value.StringFixed(2)).
		Msg("order filled")

	return result
}

// pickVenue selects a venue weighted by fill probability.
func (e *Executor) pickVenue() venue {
	total := 0.0
	for _, v := range venues {
		total += v.SuccessRate
	}
	choice := e.rng.Float64() * total

	acc := 0.0
	for _, v := range venues {
		acc += v.SuccessRate
		if acc >= choice {
			return v
		}
	}
	return venues[0]
}
