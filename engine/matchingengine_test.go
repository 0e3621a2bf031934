package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *MatchingEngine {
	t.Helper()
	return NewMatchingEngine("BTCUSD", 10, nil)
}

// --- literal scenarios from the property spec -------------------------------

func TestScenarioA_SimpleCross(t *testing.T) {
	e := newTestEngine(t)

	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))

	ask1 := NewOrder(1, "BTCUSD", Sell, 100, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask1)

	buy2 := NewOrder(2, "BTCUSD", Buy, 40, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(buy2)

	require.Len(t, trades, 1)
	assert.Equal(t, OrderID(2), trades[0].InboundID)
	assert.Equal(t, OrderID(1), trades[0].RestingID)
	assert.Equal(t, Quantity(40), trades[0].Quantity)
	assert.Equal(t, Price(15000), trades[0].Price)

	assert.Equal(t, PartiallyFilled, ask1.Status())
	assert.Equal(t, Quantity(60), ask1.OpenQty())
	assert.Equal(t, Filled, buy2.Status())
	assert.Equal(t, Quantity(0), buy2.OpenQty())
	assert.Equal(t, Price(15000), e.Stats().MarketPrice)
}

func TestScenarioB_FIFOPriority(t *testing.T) {
	e := newTestEngine(t)
	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))

	bid1 := NewOrder(1, "BTCUSD", Buy, 50, Limit, GTC, 14900, 0, NoConditions, now0())
	e.AddOrder(bid1)
	bid2 := NewOrder(2, "BTCUSD", Buy, 50, Limit, GTC, 14900, 0, NoConditions, now0())
	e.AddOrder(bid2)

	sell3 := NewOrder(3, "BTCUSD", Sell, 60, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(sell3)

	require.Len(t, trades, 2)
	assert.Equal(t, OrderID(1), trades[0].RestingID)
	assert.Equal(t, Quantity(50), trades[0].Quantity)
	assert.Equal(t, OrderID(2), trades[1].RestingID)
	assert.Equal(t, Quantity(10), trades[1].Quantity)

	assert.Equal(t, Filled, bid1.Status())
	assert.Equal(t, PartiallyFilled, bid2.Status())
	assert.Equal(t, Quantity(40), bid2.OpenQty())
}

func TestScenarioC_PriceImprovement(t *testing.T) {
	e := newTestEngine(t)
	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))

	ask1 := NewOrder(1, "BTCUSD", Sell, 50, Limit, GTC, 14950, 0, NoConditions, now0())
	e.AddOrder(ask1)
	ask2 := NewOrder(2, "BTCUSD", Sell, 50, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask2)

	buy3 := NewOrder(3, "BTCUSD", Buy, 80, Limit, GTC, 15010, 0, NoConditions, now0())
	e.AddOrder(buy3)

	require.Len(t, trades, 2)
	assert.Equal(t, Price(14950), trades[0].Price)
	assert.Equal(t, Quantity(50), trades[0].Quantity)
	assert.Equal(t, Price(15000), trades[1].Price)
	assert.Equal(t, Quantity(30), trades[1].Quantity)

	assert.Equal(t, Quantity(20), ask2.OpenQty())
	assert.Equal(t, Filled, buy3.Status())
}

func TestScenarioD_FOKInfeasible(t *testing.T) {
	e := newTestEngine(t)
	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))

	ask1 := NewOrder(1, "BTCUSD", Sell, 30, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask1)

	buy2 := NewOrder(2, "BTCUSD", Buy, 50, Limit, FOK, 15000, 0, NoConditions, now0())
	e.AddOrder(buy2)

	assert.Empty(t, trades)
	assert.Equal(t, Rejected, buy2.Status())
	assert.EqualValues(t, 1, e.Stats().OrdersRejected)
	assert.Equal(t, Quantity(30), ask1.OpenQty(), "resting ask must be untouched")
}

func TestScenarioE_IOCRemainderCancelled(t *testing.T) {
	e := newTestEngine(t)
	var trades []Trade
	var cancelledQty Quantity
	e.AddTradeListener(tradeCollector(&trades))
	e.AddOrderListener(cancelWatcher(func(o *Order, qty Quantity) { cancelledQty = qty }))

	ask1 := NewOrder(1, "BTCUSD", Sell, 20, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask1)

	buy2 := NewOrder(2, "BTCUSD", Buy, 50, Limit, IOC, 15000, 0, NoConditions, now0())
	e.AddOrder(buy2)

	require.Len(t, trades, 1)
	assert.Equal(t, Quantity(20), trades[0].Quantity)
	assert.Equal(t, Price(15000), trades[0].Price)
	assert.Equal(t, Cancelled, buy2.Status())
	assert.Equal(t, Quantity(30), cancelledQty)
}

func TestScenarioF_StopCascade(t *testing.T) {
	e := newTestEngine(t)
	e.SetMarketPrice(14000)

	stop1 := NewOrder(1, "BTCUSD", Buy, 10, Stop, GTC, 14100, 14100, NoConditions, now0())
	e.AddOrder(stop1)
	stop2 := NewOrder(2, "BTCUSD", Buy, 10, Stop, GTC, 14150, 14150, NoConditions, now0())
	e.AddOrder(stop2)

	ask1 := NewOrder(3, "BTCUSD", Sell, 10, Limit, GTC, 14100, 0, NoConditions, now0())
	e.AddOrder(ask1)
	ask2 := NewOrder(4, "BTCUSD", Sell, 10, Limit, GTC, 14200, 0, NoConditions, now0())
	e.AddOrder(ask2)

	e.SetMarketPrice(14100)
	assert.Equal(t, Price(14100), e.Stats().MarketPrice)
	assert.Equal(t, Filled, stop1.Status())
	assert.Equal(t, Accepted, stop2.Status(), "id 2 must not trigger until price reaches 14150")

	e.SetMarketPrice(14150)
	assert.Equal(t, Price(14200), e.Stats().MarketPrice)
	assert.Equal(t, Filled, stop2.Status())
}

// --- invariants --------------------------------------------------------------

func TestInvariant_QuantityConservation(t *testing.T) {
	e := newTestEngine(t)
	ask1 := NewOrder(1, "BTCUSD", Sell, 100, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(ask1)

	var filled Quantity
	e.AddTradeListener(tradeCollector2(func(tr Trade) { filled += tr.Quantity }))

	buy2 := NewOrder(2, "BTCUSD", Buy, 40, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(buy2)

	assert.EqualValues(t, ask1.OriginalQty(), uint64(ask1.OpenQty())+uint64(filled))
}

func TestInvariant_NoEmptyLevelsPersist(t *testing.T) {
	e := newTestEngine(t)
	ask1 := NewOrder(1, "BTCUSD", Sell, 40, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(ask1)

	buy2 := NewOrder(2, "BTCUSD", Buy, 40, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(buy2)

	_, ok := e.BestAsk()
	assert.False(t, ok, "the fully-drained ask level must not be observable")
}

func TestInvariant_StatusCoherenceFilled(t *testing.T) {
	e := newTestEngine(t)
	ask1 := NewOrder(1, "BTCUSD", Sell, 40, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(ask1)
	buy2 := NewOrder(2, "BTCUSD", Buy, 40, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(buy2)

	assert.Equal(t, Filled, ask1.Status())
	assert.Equal(t, Quantity(0), ask1.OpenQty())
}

func TestInvariant_RejectedOrdersNeverIndexed(t *testing.T) {
	e := newTestEngine(t)
	bad := NewOrder(1, "WRONGSYM", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(bad)

	assert.Equal(t, Rejected, bad.Status())
	_, ok := e.OrderByID(1)
	assert.False(t, ok)
}

func TestInvariant_BookNeverSelfCrossingAfterAddOrder(t *testing.T) {
	e := newTestEngine(t)
	e.AddOrder(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))
	e.AddOrder(NewOrder(2, "BTCUSD", Sell, 10, Limit, GTC, 105, 0, NoConditions, now0()))

	bid, okBid := e.BestBid()
	ask, okAsk := e.BestAsk()
	require.True(t, okBid)
	require.True(t, okAsk)
	assert.Greater(t, int64(ask), int64(bid))
}

// --- round-trip / idempotence laws ------------------------------------------

func TestRoundTrip_CancelTwiceSecondFails(t *testing.T) {
	e := newTestEngine(t)
	e.AddOrder(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))

	assert.True(t, e.CancelOrder(1))
	assert.False(t, e.CancelOrder(1))
}

func TestRoundTrip_IOCAgainstEmptyBookCancelledImmediately(t *testing.T) {
	e := newTestEngine(t)
	order := NewOrder(1, "BTCUSD", Buy, 10, Limit, IOC, 100, 0, NoConditions, now0())
	e.AddOrder(order)

	assert.Equal(t, Cancelled, order.Status())
	assert.Equal(t, Quantity(0), order.OpenQty())
}

func TestRoundTrip_DepthUpdateWithoutMutationIsEmpty(t *testing.T) {
	e := newTestEngine(t)
	e.AddOrder(NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0()))

	dt := e.Depth()
	changes := dt.UpdateFrom(e.bid, e.ask)
	assert.Empty(t, changes)
}

// --- boundary behaviors ------------------------------------------------------

func TestBoundary_MarketOrderAgainstEmptyBookCancelled(t *testing.T) {
	e := newTestEngine(t)
	var cancelledQty Quantity
	e.AddOrderListener(cancelWatcher(func(o *Order, qty Quantity) { cancelledQty = qty }))

	order := NewOrder(1, "BTCUSD", Buy, 10, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(order)

	assert.Equal(t, Cancelled, order.Status())
	assert.Equal(t, Quantity(10), cancelledQty)
}

func TestBoundary_AmendQtyToZeroEqualsCancel(t *testing.T) {
	e := newTestEngine(t)
	old := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(old)

	replacement := NewOrder(2, "BTCUSD", Buy, 0, Limit, GTC, 100, 0, NoConditions, now0())
	ok := e.ReplaceOrder(1, replacement)
	require.True(t, ok, "amending to zero quantity must behave like cancelling the original order")
	assert.Equal(t, Cancelled, old.Status())
	_, stillResting := e.OrderByID(1)
	assert.False(t, stillResting)
}

// --- CancelOrder / ReplaceOrder ----------------------------------------------

func TestCancelOrder_UnknownIDReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.CancelOrder(42))
}

func TestReplaceOrder_QuantityDecreasePreservesPriority(t *testing.T) {
	e := newTestEngine(t)
	first := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(first)
	second := NewOrder(2, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(second)

	shrunk := NewOrder(3, "BTCUSD", Buy, 4, Limit, GTC, 100, 0, NoConditions, now0())
	require.True(t, e.ReplaceOrder(1, shrunk))

	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))
	sell := NewOrder(4, "BTCUSD", Sell, 5, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(sell)

	require.Len(t, trades, 2)
	assert.Equal(t, OrderID(1), trades[0].RestingID, "quantity-decrease amend must retain time priority")
	assert.Equal(t, Quantity(4), trades[0].Quantity)
	assert.Equal(t, OrderID(2), trades[1].RestingID)
	assert.Equal(t, Quantity(1), trades[1].Quantity)
}

func TestReplaceOrder_QuantityIncreaseForfeitsPriority(t *testing.T) {
	e := newTestEngine(t)
	first := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(first)
	second := NewOrder(2, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(second)

	grown := NewOrder(3, "BTCUSD", Buy, 15, Limit, GTC, 100, 0, NoConditions, now0())
	require.True(t, e.ReplaceOrder(1, grown))

	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))
	sell := NewOrder(4, "BTCUSD", Sell, 5, Market, GTC, MarketPrice, 0, NoConditions, now0())
	e.AddOrder(sell)

	require.Len(t, trades, 1)
	assert.Equal(t, OrderID(2), trades[0].RestingID, "a quantity increase forfeits priority: the re-added order is appended behind the order that was resting second")
}

func TestReplaceOrder_UnknownIDReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	replacement := NewOrder(2, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, now0())
	assert.False(t, e.ReplaceOrder(999, replacement))
}

// --- CancelAllDay ------------------------------------------------------------

func TestCancelAllDay_CancelsOnlyExpiredDayOrders(t *testing.T) {
	e := newTestEngine(t)

	dayOrder := NewOrder(1, "BTCUSD", Buy, 10, Limit, DAY, 100, 0, NoConditions, time.Unix(0, 0))
	e.AddOrder(dayOrder)
	gtcOrder := NewOrder(2, "BTCUSD", Buy, 10, Limit, GTC, 99, 0, NoConditions, time.Unix(0, 0))
	e.AddOrder(gtcOrder)

	cancelled := e.CancelAllDay(time.Unix(50, 0))
	require.Len(t, cancelled, 1)
	assert.Equal(t, OrderID(1), cancelled[0])
	assert.Equal(t, Cancelled, dayOrder.Status())
	assert.NotEqual(t, Cancelled, gtcOrder.Status())
}

// --- FillOrKill feasibility check --------------------------------------------

func TestFOK_ExactFillSucceeds(t *testing.T) {
	e := newTestEngine(t)
	e.AddOrder(NewOrder(1, "BTCUSD", Sell, 50, Limit, GTC, 100, 0, NoConditions, now0()))

	fok := NewOrder(2, "BTCUSD", Buy, 50, Limit, FOK, 100, 0, NoConditions, now0())
	e.AddOrder(fok)

	assert.Equal(t, Filled, fok.Status())
}

func TestAllOrNone_SkipsTooSmallRestingOrderWithinSameLevel(t *testing.T) {
	e := newTestEngine(t)
	ask1 := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask1)
	ask2 := NewOrder(2, "BTCUSD", Sell, 200, Limit, GTC, 15000, 0, NoConditions, now0())
	e.AddOrder(ask2)

	var trades []Trade
	e.AddTradeListener(tradeCollector(&trades))

	buy := NewOrder(3, "BTCUSD", Buy, 100, Limit, GTC, 15000, 0, AllOrNone, now0())
	e.AddOrder(buy)

	require.Len(t, trades, 1, "the AON walk must skip id=1 (qty 10 < 100) and fill against id=2, not abandon the level")
	assert.Equal(t, OrderID(2), trades[0].RestingID)
	assert.Equal(t, Quantity(100), trades[0].Quantity)
	assert.Equal(t, Quantity(10), ask1.OpenQty(), "id=1 must be untouched, only skipped")
	assert.Equal(t, Filled, buy.Status())
}

func TestConditionsBitmask_ImmediateOrCancelCancelsRemainderUnderGTC(t *testing.T) {
	e := newTestEngine(t)
	ask := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(ask)

	buy := NewOrder(2, "BTCUSD", Buy, 30, Limit, GTC, 100, 0, ImmediateOrCancel, now0())
	e.AddOrder(buy)

	assert.Equal(t, Cancelled, buy.Status(), "ImmediateOrCancel bit must cancel the unfilled remainder even under TIF=GTC")
	assert.Equal(t, Quantity(0), buy.OpenQty())
}

func TestConditionsBitmask_FillOrKillRejectsWhenInfeasibleUnderGTC(t *testing.T) {
	e := newTestEngine(t)
	ask := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 100, 0, NoConditions, now0())
	e.AddOrder(ask)

	var rejected []RejectReason
	e.AddOrderListener(rejectCollector(&rejected))

	buy := NewOrder(2, "BTCUSD", Buy, 30, Limit, GTC, 100, 0, FillOrKill, now0())
	e.AddOrder(buy)

	assert.Equal(t, Rejected, buy.Status(), "FillOrKill bit must reject under TIF=GTC when the book can't fill it completely")
	require.Len(t, rejected, 1)
	assert.Equal(t, ReasonFOKInfeasible, rejected[0])
	assert.Equal(t, Quantity(10), ask.OpenQty(), "the resting order must be untouched by the infeasible FOK attempt")
}

// --- test helpers implementing the listener interfaces -----------------------

type funcTradeListener struct {
	fn func(Trade)
}

func (f funcTradeListener) OnTrade(t Trade) { f.fn(t) }

func tradeCollector(out *[]Trade) TradeListener {
	return funcTradeListener{fn: func(t Trade) { *out = append(*out, t) }}
}

func tradeCollector2(fn func(Trade)) TradeListener {
	return funcTradeListener{fn: fn}
}

type funcOrderListener struct {
	onCancel func(*Order, Quantity)
	onReject func(*Order, RejectReason)
}

func (f funcOrderListener) OnAccept(*Order) {}
func (f funcOrderListener) OnReject(o *Order, reason RejectReason) {
	if f.onReject != nil {
		f.onReject(o, reason)
	}
}
func (f funcOrderListener) OnFill(*Order, OrderID, Quantity, Price) {}
func (f funcOrderListener) OnCancel(o *Order, qty Quantity) {
	if f.onCancel != nil {
		f.onCancel(o, qty)
	}
}
func (f funcOrderListener) OnReplace(*Order, *Order)              {}
func (f funcOrderListener) OnReplaceReject(*Order, RejectReason) {}

func cancelWatcher(fn func(*Order, Quantity)) OrderListener {
	return funcOrderListener{onCancel: fn}
}

func rejectCollector(out *[]RejectReason) OrderListener {
	return funcOrderListener{onReject: func(_ *Order, reason RejectReason) {
		*out = append(*out, reason)
	}}
}
