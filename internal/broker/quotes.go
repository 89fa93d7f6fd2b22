package broker

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Account is a snapshot of the simulated trading account.
type Account struct {
	Equity      decimal.Decimal `json:"equity"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// QuoteService serves simulated quotes: each symbol gets a seeded base price
// that random-walks on every lookup. Unknown symbols outside the plausible
// ticker shape are rejected.
type QuoteService struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	rng    *rand.Rand
}

func NewQuoteService() *QuoteService {
	return &QuoteService{
		prices: make(map[string]decimal.Decimal),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Quote returns the current simulated price for a symbol.
func (q *QuoteService) Quote(symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(symbol) == 0 || len(symbol) > 5 {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	price, ok := q.prices[symbol]
	if !ok {
		// Seed between $10 and $510.
		price = decimal.NewFromFloat(10 + q.rng.Float64()*500)
	}

	// Random walk within +-0.5% per observation.
	step := decimal.NewFromFloat(1 + (q.rng.Float64()*0.01 - 0.005))
	price = price.Mul(step).Round(2)
	q.prices[symbol] = price

	return &Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}
