package engine

import "testing"

func TestSideBookAddOrdersLevelsBestFirstBuy(t *testing.T) {
	sb := newSideBook(true)
	lo := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	hi := NewOrder(2, "BTCUSD", Buy, 10, Limit, GTC, 110, 0, NoConditions, now0())

	if err := sb.Add(lo); err != nil {
		t.Fatalf("add lo: %v", err)
	}
	if err := sb.Add(hi); err != nil {
		t.Fatalf("add hi: %v", err)
	}

	best, ok := sb.BestPrice()
	if !ok || best != 110 {
		t.Fatalf("expected best bid 110, got %d ok=%v", best, ok)
	}
}

func TestSideBookAddOrdersLevelsBestFirstSell(t *testing.T) {
	sb := newSideBook(false)
	lo := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 100, 0, NoConditions, now0())
	hi := NewOrder(2, "BTCUSD", Sell, 10, Limit, GTC, 110, 0, NoConditions, now0())

	_ = sb.Add(lo)
	_ = sb.Add(hi)

	best, ok := sb.BestPrice()
	if !ok || best != 100 {
		t.Fatalf("expected best ask 100, got %d ok=%v", best, ok)
	}
}

func TestSideBookAddDuplicateIDIsIntegrityViolation(t *testing.T) {
	sb := newSideBook(true)
	o := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	_ = sb.Add(o)

	if err := sb.Add(o); err == nil {
		t.Fatalf("expected an error re-adding the same order id")
	}
}

func TestSideBookRemoveUnknownOrder(t *testing.T) {
	sb := newSideBook(true)
	if err := sb.Remove(999); err != ErrUnknownOrder {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestSideBookRemoveErasesEmptyLevel(t *testing.T) {
	sb := newSideBook(true)
	o := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	_ = sb.Add(o)

	if err := sb.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(sb.Levels()) != 0 {
		t.Fatalf("expected no empty levels to persist, got %d", len(sb.Levels()))
	}
	if _, ok := sb.BestPrice(); ok {
		t.Fatalf("expected no best price on an empty side")
	}
}

func TestSideBookMatchRespectsLimitEligibility(t *testing.T) {
	sb := newSideBook(false) // ask side
	a1 := NewOrder(1, "BTCUSD", Sell, 50, Limit, GTC, 14950, 0, NoConditions, now0())
	a2 := NewOrder(2, "BTCUSD", Sell, 50, Limit, GTC, 15000, 0, NoConditions, now0())
	a3 := NewOrder(3, "BTCUSD", Sell, 50, Limit, GTC, 15100, 0, NoConditions, now0())
	_ = sb.Add(a1)
	_ = sb.Add(a2)
	_ = sb.Add(a3)

	plan := sb.Match(15010, false, 1000)
	if len(plan) != 2 {
		t.Fatalf("expected two eligible levels at or below 15010, got %d", len(plan))
	}
	if plan[0].level.Price() != 14950 || plan[1].level.Price() != 15000 {
		t.Fatalf("expected plan ordered best-first, got %+v", plan)
	}
}

func TestSideBookMatchCapsAtRemainingBudget(t *testing.T) {
	sb := newSideBook(false)
	a1 := NewOrder(1, "BTCUSD", Sell, 50, Limit, GTC, 100, 0, NoConditions, now0())
	_ = sb.Add(a1)

	plan := sb.Match(100, false, 30)
	if len(plan) != 1 || plan[0].qty != 30 {
		t.Fatalf("expected plan capped at the inbound budget of 30, got %+v", plan)
	}
}

func TestSideBookMatchNoLimitAcceptsEveryLevel(t *testing.T) {
	sb := newSideBook(false)
	a1 := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 100, 0, NoConditions, now0())
	a2 := NewOrder(2, "BTCUSD", Sell, 10, Limit, GTC, 99999, 0, NoConditions, now0())
	_ = sb.Add(a1)
	_ = sb.Add(a2)

	plan := sb.Match(0, true, 1000)
	if len(plan) != 2 {
		t.Fatalf("expected a market order to see every level regardless of price, got %d", len(plan))
	}
}

func TestSideBookAmendQty(t *testing.T) {
	sb := newSideBook(true)
	o := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	_ = sb.Add(o)

	if err := sb.AmendQty(o, 10, 4); err != nil {
		t.Fatalf("amend: %v", err)
	}
	if sb.BestLevel().TotalQty() != 4 {
		t.Fatalf("expected level total_qty reduced to 4, got %d", sb.BestLevel().TotalQty())
	}
}
