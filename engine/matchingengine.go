package engine

import (
	"sync"
	"time"

	"matchbook/internal/logging"
)

// MatchingEngine owns exactly one instrument: validation, order-type
// dispatch, the crossing algorithm, stop activation, depth aggregation,
// and event fan-out. All mutating operations serialize behind mu; events
// are staged while the lock is held and dispatched to listeners only
// after it is released (see SPEC_FULL.md §2 for why this replaces a
// recursive lock).
type MatchingEngine struct {
	mu sync.Mutex

	symbol string
	log    *logging.Logger

	bid, ask         *SideBook
	stopBid, stopAsk *SideBook
	depth            *DepthTracker

	stats Stats

	nextSeq uint64

	orderListeners     listenerRegistry[OrderListener]
	tradeListeners     listenerRegistry[TradeListener]
	orderBookListeners listenerRegistry[OrderBookListener]
	depthListeners     listenerRegistry[DepthListener]

	lastBid, lastAsk     Price
	haveLastBid, haveLastAsk bool

	now func() time.Time
}

// NewMatchingEngine builds an engine for symbol with depth tracked to
// maxDepthLevels. log may be nil.
func NewMatchingEngine(symbol string, maxDepthLevels int, log *logging.Logger) *MatchingEngine {
	return &MatchingEngine{
		symbol:  symbol,
		log:     log,
		bid:     newSideBook(true),
		ask:     newSideBook(false),
		stopBid: newSideBook(true),
		stopAsk: newSideBook(false),
		depth:   NewDepthTracker(maxDepthLevels),
		now:     time.Now,
	}
}

func (e *MatchingEngine) Symbol() string { return e.symbol }

// Stats returns a copy of the engine's counters. It does not take mu: each
// field is read atomically on its own, so a copy taken while a mutation is
// in progress may mix values from before and after it.
func (e *MatchingEngine) Stats() StatsSnapshot { return e.stats.snapshot() }

// --- listener registration -------------------------------------------------

func (e *MatchingEngine) AddOrderListener(l OrderListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderListeners.register(l)
}

func (e *MatchingEngine) RemoveOrderListener(l OrderListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderListeners.deregister(l)
}

func (e *MatchingEngine) AddTradeListener(l TradeListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tradeListeners.register(l)
}

func (e *MatchingEngine) RemoveTradeListener(l TradeListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tradeListeners.deregister(l)
}

func (e *MatchingEngine) AddOrderBookListener(l OrderBookListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderBookListeners.register(l)
}

func (e *MatchingEngine) RemoveOrderBookListener(l OrderBookListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderBookListeners.deregister(l)
}

func (e *MatchingEngine) AddDepthListener(l DepthListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.depthListeners.register(l)
}

func (e *MatchingEngine) RemoveDepthListener(l DepthListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.depthListeners.deregister(l)
}

// --- read-only accessors ----------------------------------------------------

// BestBid/BestAsk may be called re-entrantly from a listener callback:
// by the time listeners run, the mutation lock has already been released.
func (e *MatchingEngine) BestBid() (Price, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bid.BestPrice()
}

func (e *MatchingEngine) BestAsk() (Price, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ask.BestPrice()
}

func (e *MatchingEngine) Depth() *DepthTracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depth
}

// OrderByID returns the live order indexed under id, if any, across all
// four internal books. The returned pointer is the shared order the engine
// mutates in place, not a copy; callers must not mutate it.
func (e *MatchingEngine) OrderByID(id OrderID) (*Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book := e.bookHolding(id)
	if book == nil {
		return nil, false
	}
	return book.locations[id].element.Value.(*Order), true
}

// pendingEvent is a deferred callback captured while mu is held and run
// once it has been released.
type pendingEvent func()

// dispatch runs every queued event after the caller has unlocked mu.
func dispatch(events []pendingEvent) {
	for _, ev := range events {
		ev()
	}
}

func (e *MatchingEngine) effectiveLimit(order *Order) (price Price, noLimit bool) {
	if order.IsMarket() {
		return 0, true
	}
	return order.price, false
}

// AddOrder validates, dispatches by type, matches, and applies TIF rules
// for a new order. Events fire after mu is released.
func (e *MatchingEngine) AddOrder(order *Order) {
	e.mu.Lock()
	var events []pendingEvent

	if reason, ok := e.validate(order); !ok {
		if order != nil {
			order.setStatus(Rejected)
		}
		e.stats.ordersRejected.Inc()
		events = append(events, e.emitReject(order, reason))
		e.mu.Unlock()
		dispatch(events)
		return
	}

	events = e.processAccepted(order)
	e.mu.Unlock()
	dispatch(events)
}

func (e *MatchingEngine) validate(order *Order) (RejectReason, bool) {
	if order == nil {
		return ReasonNilOrder, false
	}
	if order.symbol != e.symbol {
		return ReasonSymbolMismatch, false
	}
	if order.originalQty == 0 {
		return ReasonNonPositiveQty, false
	}
	if order.openQty > order.originalQty {
		return ReasonOpenExceedsOrig, false
	}
	if !order.IsMarket() && order.price <= 0 {
		return ReasonNonPositivePrice, false
	}
	if order.IsStop() && order.stopPrice <= 0 {
		return ReasonNonPositiveStop, false
	}
	if _, exists := e.bid.locations[order.id]; exists {
		return ReasonDuplicateOrderID, false
	}
	if _, exists := e.ask.locations[order.id]; exists {
		return ReasonDuplicateOrderID, false
	}
	return "", true
}

// processAccepted runs the accepted order through dispatch/matching/TIF,
// assuming validation already passed and mu is held. It returns the
// ordered event queue to dispatch after unlock.
func (e *MatchingEngine) processAccepted(order *Order) []pendingEvent {
	order.setStatus(Accepted)
	e.stats.ordersAdded.Inc()
	events := []pendingEvent{e.emitAccept(order)}

	if order.IsStop() {
		e.restStop(order)
		events = append(events, e.bookChangeEvents()...)
		return events
	}

	trades, fillEvents, fokInfeasible := e.match(order)
	if fokInfeasible {
		order.setStatus(Rejected)
		e.stats.ordersRejected.Inc()
		events = append(events, e.emitReject(order, ReasonFOKInfeasible))
		return events
	}
	events = append(events, fillEvents...)

	if order.openQty == 0 {
		order.setStatus(Filled)
	} else if order.IsIOC() || order.IsFOK() || order.conditions.IsImmediateOrCancel() {
		cancelledQty := order.openQty
		order.setOpenQty(0)
		order.setStatus(Cancelled)
		events = append(events, e.emitCancel(order, cancelledQty))
	} else if order.IsLimit() {
		order.setStatus(statusAfterRest(order))
		if err := e.sideBookFor(order).Add(order); err != nil && e.log != nil {
			e.log.Sugar().Errorw("failed to rest order", "order", order.id, "err", err)
		}
	} else {
		// unmatched market remainder: nothing to rest against.
		cancelledQty := order.openQty
		order.setOpenQty(0)
		order.setStatus(Cancelled)
		events = append(events, e.emitCancel(order, cancelledQty))
	}

	_ = trades
	events = append(events, e.postMutationEvents()...)
	e.drainStops(&events)
	return events
}

func statusAfterRest(order *Order) OrderStatus {
	if order.openQty < order.originalQty {
		return PartiallyFilled
	}
	return Accepted
}

func (e *MatchingEngine) sideBookFor(order *Order) *SideBook {
	if order.IsBuy() {
		return e.bid
	}
	return e.ask
}

func (e *MatchingEngine) oppositeBook(order *Order) *SideBook {
	if order.IsBuy() {
		return e.ask
	}
	return e.bid
}

func (e *MatchingEngine) restStop(order *Order) {
	if order.IsBuy() {
		_ = e.stopBid.Add(order)
	} else {
		_ = e.stopAsk.Add(order)
	}
}

// match runs the normative matching algorithm (spec §4.4) for a single
// inbound order against the opposite side. It returns any committed
// trades and the pendingEvents they generated (on_trade/on_fill).
func (e *MatchingEngine) match(inbound *Order) ([]Trade, []pendingEvent, bool) {
	opposite := e.oppositeBook(inbound)
	limit, noLimit := e.effectiveLimit(inbound)

	plan := opposite.Match(limit, noLimit, inbound.openQty)

	if inbound.IsFOK() || inbound.conditions.IsFillOrKill() {
		var total Quantity
		for _, c := range plan {
			total += c.qty
		}
		if total < inbound.openQty {
			return nil, nil, true
		}
	}

	var trades []Trade
	var events []pendingEvent

	for _, cand := range plan {
		if inbound.openQty == 0 {
			break
		}
		level := cand.level
		el := level.Front()
		for el != nil && inbound.openQty > 0 {
			resting := el.Value.(*Order)
			next := el.Next()

			if inbound.conditions.IsAllOrNone() && resting.openQty < inbound.openQty {
				el = next
				continue
			}

			fillQty := resting.openQty
			if fillQty > inbound.openQty {
				fillQty = inbound.openQty
			}
			fillPrice := resting.price

			restingBeforeVisible := resting.VisibleQty()
			inbound.setOpenQty(inbound.openQty - fillQty)
			resting.setOpenQty(resting.openQty - fillQty)
			restingAfterVisible := resting.VisibleQty()
			level.totalQty = level.totalQty - restingBeforeVisible + restingAfterVisible

			ts := e.now()
			trade := Trade{
				InboundID: inbound.id, RestingID: resting.id,
				Price: fillPrice, Quantity: fillQty, Timestamp: ts,
				InboundFlags: FillAggressive, RestingFlags: FillPassive,
			}
			if inbound.openQty == 0 {
				trade.InboundFlags |= FillComplete
			} else {
				trade.InboundFlags |= FillPartial
			}
			if resting.openQty == 0 {
				trade.RestingFlags |= FillComplete
				resting.setStatus(Filled)
			} else {
				trade.RestingFlags |= FillPartial
				resting.setStatus(PartiallyFilled)
			}

			trades = append(trades, trade)
			e.stats.recordTrade(fillPrice, fillQty)

			events = append(events, e.emitTrade(trade))
			events = append(events, e.emitFill(inbound, resting.id, fillQty, fillPrice))
			events = append(events, e.emitFill(resting, inbound.id, fillQty, fillPrice))

			if resting.openQty == 0 {
				level.orders.Remove(el)
				level.orderCount--
				delete(e.oppositeBook(inbound).locations, resting.id)
			}
			el = next
		}
		if level.Empty() {
			e.oppositeBook(inbound).eraseLevel(level.price)
		}
	}

	return trades, events, false
}

// CancelOrder removes id from whichever SideBook holds it. Returns false
// if the id is unknown, without firing any event, per spec §7.
func (e *MatchingEngine) CancelOrder(id OrderID) bool {
	e.mu.Lock()
	var order *Order
	var cancelledQty Quantity
	found := false

	for _, book := range []*SideBook{e.bid, e.ask, e.stopBid, e.stopAsk} {
		loc, ok := book.locations[id]
		if !ok {
			continue
		}
		order = loc.element.Value.(*Order)
		cancelledQty = order.openQty
		_ = book.Remove(id)
		found = true
		break
	}

	if !found {
		e.mu.Unlock()
		return false
	}

	order.setStatus(Cancelled)
	e.stats.ordersCancelled.Inc()
	events := []pendingEvent{e.emitCancel(order, cancelledQty)}
	events = append(events, e.postMutationEvents()...)
	e.mu.Unlock()
	dispatch(events)
	return true
}

// ReplaceOrder cancels oldID and inserts newOrder, which must carry a
// fresh id. A quantity decrease with an unchanged price preserves time
// priority (in-place amend): the old order keeps its id, place and status
// and takes newOrder's quantity, and newOrder itself is not inserted. Any
// price change or quantity increase forfeits priority (cancel + re-add),
// per spec §9 Q3.
func (e *MatchingEngine) ReplaceOrder(oldID OrderID, newOrder *Order) bool {
	e.mu.Lock()

	book := e.bookHolding(oldID)
	if book == nil {
		e.mu.Unlock()
		return false
	}
	loc := book.locations[oldID]
	oldOrder := loc.element.Value.(*Order)

	if newOrder.originalQty == 0 {
		// Amending to zero quantity is a cancel, per spec's boundary
		// behavior, not a validation failure.
		e.mu.Unlock()
		return e.CancelOrder(oldID)
	}

	if reason, ok := e.validate(newOrder); !ok {
		events := []pendingEvent{e.emitReplaceReject(oldOrder, reason)}
		e.mu.Unlock()
		dispatch(events)
		return false
	}

	priceUnchanged := newOrder.price == oldOrder.price
	qtyDecreased := newOrder.openQty <= oldOrder.openQty

	var events []pendingEvent
	if priceUnchanged && qtyDecreased {
		oldVisible := oldOrder.VisibleQty()
		oldOrder.setOpenQty(newOrder.openQty)
		newVisible := oldOrder.VisibleQty()
		_ = book.AmendQty(oldOrder, oldVisible, newVisible)
		events = append(events, e.emitReplace(oldOrder, oldOrder))
		e.stats.ordersReplaced.Inc()
		events = append(events, e.postMutationEvents()...)
		e.mu.Unlock()
		dispatch(events)
		return true
	}

	_ = book.Remove(oldID)
	oldOrder.setStatus(Replaced)
	e.stats.ordersReplaced.Inc()
	events = append(events, e.emitReplace(oldOrder, newOrder))
	events = append(events, e.processAccepted(newOrder)...)
	e.mu.Unlock()
	dispatch(events)
	return true
}

func (e *MatchingEngine) bookHolding(id OrderID) *SideBook {
	for _, book := range []*SideBook{e.bid, e.ask, e.stopBid, e.stopAsk} {
		if _, ok := book.locations[id]; ok {
			return book
		}
	}
	return nil
}

// CancelAllDay is the bulk primitive DAY TIF eviction is built from
// upstream: it cancels every resting order with TIF == DAY whose
// creation_timestamp is at or before cutoff. DAY session lifecycle
// itself is out of core scope (spec §9 Q4).
func (e *MatchingEngine) CancelAllDay(cutoff time.Time) []OrderID {
	e.mu.Lock()
	var toCancel []OrderID
	for _, book := range []*SideBook{e.bid, e.ask} {
		for id, loc := range book.locations {
			order := loc.element.Value.(*Order)
			if order.tif == DAY && !order.creationTimestamp.After(cutoff) {
				toCancel = append(toCancel, id)
			}
		}
	}
	e.mu.Unlock()

	cancelled := make([]OrderID, 0, len(toCancel))
	for _, id := range toCancel {
		if e.CancelOrder(id) {
			cancelled = append(cancelled, id)
		}
	}
	return cancelled
}

// SetMarketPrice updates the reference market price and drains any stop
// orders it activates, cascading until a fixed point per spec §4.4.
func (e *MatchingEngine) SetMarketPrice(p Price) {
	e.mu.Lock()
	e.stats.marketPrice.Store(int64(p))
	var events []pendingEvent
	e.drainStops(&events)
	e.mu.Unlock()
	dispatch(events)
}

// drainStops repeatedly activates every stop order whose trigger the
// current market price has crossed, until none remain eligible. Each
// activation re-enters AddOrder-equivalent processing via processAccepted,
// which may itself move the market price and trigger further stops.
func (e *MatchingEngine) drainStops(events *[]pendingEvent) {
	for {
		mp := Price(e.stats.marketPrice.Load())
		activated := e.collectActivated(e.stopBid, mp, true)
		activated = append(activated, e.collectActivated(e.stopAsk, mp, false)...)
		if len(activated) == 0 {
			return
		}
		for _, order := range activated {
			book := e.stopBid
			if !order.IsBuy() {
				book = e.stopAsk
			}
			_ = book.Remove(order.id)
			if order.orderType == Stop {
				order.orderType = Market
			} else {
				order.orderType = Limit
			}
			*events = append(*events, e.processAccepted(order)...)
		}
	}
}

// collectActivated walks the stop book in price-time order so multiple
// simultaneously-eligible stops activate in a deterministic, priority-
// respecting sequence rather than in map iteration order.
func (e *MatchingEngine) collectActivated(book *SideBook, marketPrice Price, isBuy bool) []*Order {
	var activated []*Order
	for _, level := range book.Levels() {
		for el := level.Front(); el != nil; el = el.Next() {
			order := el.Value.(*Order)
			if isBuy && marketPrice >= order.stopPrice {
				activated = append(activated, order)
			} else if !isBuy && marketPrice <= order.stopPrice {
				activated = append(activated, order)
			}
		}
	}
	return activated
}

// postMutationEvents recomputes depth and produces order_book_change,
// bbo_change (if either best moved) and depth_change events, all queued
// for dispatch after mu is released.
func (e *MatchingEngine) postMutationEvents() []pendingEvent {
	events := e.bookChangeEvents()

	changes := e.depth.UpdateFrom(e.bid, e.ask)
	for _, c := range changes {
		c := c
		for _, l := range e.depthListeners.snapshot() {
			l := l
			events = append(events, func() { l.OnDepthChange(e, c) })
		}
	}
	return events
}

func (e *MatchingEngine) bookChangeEvents() []pendingEvent {
	var events []pendingEvent
	for _, l := range e.orderBookListeners.snapshot() {
		l := l
		events = append(events, func() { l.OnOrderBookChange(e) })
	}

	bid, okBid := e.bid.BestPrice()
	ask, okAsk := e.ask.BestPrice()
	bidChanged := !okBid && e.haveLastBid || (okBid && (!e.haveLastBid || bid != e.lastBid))
	askChanged := !okAsk && e.haveLastAsk || (okAsk && (!e.haveLastAsk || ask != e.lastAsk))
	if bidChanged || askChanged {
		e.lastBid, e.haveLastBid = bid, okBid
		e.lastAsk, e.haveLastAsk = ask, okAsk
		for _, l := range e.orderBookListeners.snapshot() {
			l := l
			events = append(events, func() { l.OnBBOChange(e, bid, ask) })
		}
	}
	return events
}

// --- event constructors: each captures its listener snapshot while mu is
// still held, and is safe to invoke only after mu is released. ---------

func (e *MatchingEngine) emitAccept(order *Order) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnAccept(order)
		}
	}
}

func (e *MatchingEngine) emitReject(order *Order, reason RejectReason) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnReject(order, reason)
		}
	}
}

func (e *MatchingEngine) emitFill(order *Order, counterparty OrderID, qty Quantity, price Price) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnFill(order, counterparty, qty, price)
		}
	}
}

func (e *MatchingEngine) emitCancel(order *Order, cancelledQty Quantity) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnCancel(order, cancelledQty)
		}
	}
}

func (e *MatchingEngine) emitReplace(oldOrder, newOrder *Order) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnReplace(oldOrder, newOrder)
		}
	}
}

func (e *MatchingEngine) emitReplaceReject(oldOrder *Order, reason RejectReason) pendingEvent {
	listeners := e.orderListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnReplaceReject(oldOrder, reason)
		}
	}
}

func (e *MatchingEngine) emitTrade(trade Trade) pendingEvent {
	listeners := e.tradeListeners.snapshot()
	return func() {
		for _, l := range listeners {
			l.OnTrade(trade)
		}
	}
}
