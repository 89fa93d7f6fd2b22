package recommend

import "testing"

func TestParse_SharesOfForm(t *testing.T) {
	actions := Parse("After review we should BUY 100 shares of AAPL at $150.50 today.")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}

	a := actions[0]
	if a.Symbol != "AAPL" || a.Side != "buy" || a.Quantity != 100 {
		t.Errorf("unexpected action: %+v", a)
	}
	if a.LimitPrice == nil || *a.LimitPrice != 150.50 {
		t.Errorf("expected limit price 150.50, got %v", a.LimitPrice)
	}
}

func TestParse_PrefixedSymbolForm(t *testing.T) {
	actions := Parse("MSFT: SELL 25 shares before close")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Symbol != "MSFT" || actions[0].Side != "sell" || actions[0].Quantity != 25 {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}

func TestParse_RecommendForm(t *testing.T) {
	actions := Parse("We recommend buying 50 TSLA on the dip.")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Symbol != "TSLA" || actions[0].Side != "buy" || actions[0].Quantity != 50 {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}

func TestParse_LabeledForm(t *testing.T) {
	actions := Parse("Action: SELL, Symbol: NVDA, Quantity: 10")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Symbol != "NVDA" || actions[0].Side != "sell" || actions[0].Quantity != 10 {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}

func TestParse_QuantityNeverZero(t *testing.T) {
	actions := Parse("BUY 0 shares of AAPL")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Quantity != 1 {
		t.Errorf("expected quantity coerced to 1, got %d", actions[0].Quantity)
	}
}

func TestParse_DeduplicatesSymbolSide(t *testing.T) {
	text := "BUY 10 shares of AAPL. Also AAPL: BUY 50 shares for momentum."
	actions := Parse(text)
	if len(actions) != 1 {
		t.Fatalf("expected 1 deduplicated action, got %d", len(actions))
	}
	// First occurrence wins.
	if actions[0].Quantity != 10 {
		t.Errorf("expected first match quantity 10, got %d", actions[0].Quantity)
	}
}

func TestParse_BuyAndSellSameSymbolKept(t *testing.T) {
	text := "BUY 10 shares of AAPL now, then SELL 10 shares of AAPL at $200"
	actions := Parse(text)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions for distinct sides, got %d", len(actions))
	}
}

func TestParse_NoMatchesReturnsEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "hold everything, markets look choppy"} {
		if actions := Parse(text); len(actions) != 0 {
			t.Errorf("expected no actions for %q, got %v", text, actions)
		}
	}
}

func TestParse_CaseInsensitive(t *testing.T) {
	actions := Parse("sell 5 shares of amd")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Symbol != "AMD" || actions[0].Side != "sell" {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}
