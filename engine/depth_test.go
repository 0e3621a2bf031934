package engine

import "testing"

func TestDepthTrackerUpdateFromCapturesBestLevels(t *testing.T) {
	bid := newSideBook(true)
	ask := newSideBook(false)
	_ = bid.Add(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))
	_ = bid.Add(NewOrder(2, "BTCUSD", Buy, 5, Limit, GTC, 99, 0, NoConditions, now0()))
	_ = ask.Add(NewOrder(3, "BTCUSD", Sell, 7, Limit, GTC, 101, 0, NoConditions, now0()))

	dt := NewDepthTracker(5)
	changes := dt.UpdateFrom(bid, ask)
	if len(changes) == 0 {
		t.Fatalf("expected changes on the first capture")
	}

	bestBid, ok := dt.BestBid()
	if !ok || bestBid != 100 {
		t.Fatalf("expected best bid 100, got %d ok=%v", bestBid, ok)
	}
	bestAsk, ok := dt.BestAsk()
	if !ok || bestAsk != 101 {
		t.Fatalf("expected best ask 101, got %d ok=%v", bestAsk, ok)
	}
	if spread, ok := dt.Spread(); !ok || spread != 1 {
		t.Fatalf("expected spread 1, got %d ok=%v", spread, ok)
	}
}

func TestDepthTrackerUpdateFromIsIdempotentWithoutMutation(t *testing.T) {
	bid := newSideBook(true)
	ask := newSideBook(false)
	_ = bid.Add(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))

	dt := NewDepthTracker(5)
	dt.UpdateFrom(bid, ask)

	changes := dt.UpdateFrom(bid, ask)
	if len(changes) != 0 {
		t.Fatalf("expected no changes on a second capture without intervening mutation, got %+v", changes)
	}
}

func TestDepthTrackerMidPriceFallsBackToSingleSide(t *testing.T) {
	bid := newSideBook(true)
	ask := newSideBook(false)
	_ = bid.Add(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))

	dt := NewDepthTracker(5)
	dt.UpdateFrom(bid, ask)

	if mid := dt.MidPrice(); mid != 100 {
		t.Fatalf("expected mid price to fall back to the lone bid, got %d", mid)
	}
}
