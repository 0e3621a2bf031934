package bots

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"matchbook/engine"
)

// ThrottledClient wraps a MatchingEngine with basic rate limiting and
// per-client order-ownership bookkeeping, the way the teacher's
// ThrottledClient wraps its channel-actor OrderBook. Submission here is
// synchronous: MatchingEngine.AddOrder dispatches every listener
// callback before returning, so the order's terminal-or-resting status
// is already settled by the time SubmitOrder returns.
type ThrottledClient struct {
	eng      *engine.MatchingEngine
	symbol   string
	tickSize engine.Price
	throttle <-chan time.Time

	idSeq uint64
	mu    sync.Mutex
	owned map[engine.OrderID]engine.Side
}

// NewThrottledClient wraps eng with rate limiting driven by throttle.
func NewThrottledClient(eng *engine.MatchingEngine, symbol string, tickSize engine.Price, throttle <-chan time.Time) *ThrottledClient {
	return &ThrottledClient{
		eng:      eng,
		symbol:   symbol,
		tickSize: tickSize,
		throttle: throttle,
		owned:    make(map[engine.OrderID]engine.Side),
	}
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// SubmitOrder throttles, then submits order and reports whether the
// engine rejected it (as engine.ErrInvalidOrder).
func (c *ThrottledClient) SubmitOrder(ctx context.Context, order *engine.Order) error {
	if err := c.waitThrottle(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.owned[order.ID()] = order.Side()
	c.mu.Unlock()

	c.eng.AddOrder(order)
	if order.Status() == engine.Rejected {
		return engine.ErrInvalidOrder
	}
	return nil
}

func (c *ThrottledClient) CancelOrder(ctx context.Context, orderID engine.OrderID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.eng.CancelOrder(orderID)
	return nil
}

// BestBidAsk reports the current top of book.
func (c *ThrottledClient) BestBidAsk() (bid, ask engine.Price, okBid, okAsk bool) {
	bid, okBid = c.eng.BestBid()
	ask, okAsk = c.eng.BestAsk()
	return
}

func (c *ThrottledClient) Symbol() string        { return c.symbol }
func (c *ThrottledClient) TickSize() engine.Price { return c.tickSize }

// NextID mints a fresh, monotonically increasing order id for this
// client's bots.
func (c *ThrottledClient) NextID() engine.OrderID {
	return engine.OrderID(atomic.AddUint64(&c.idSeq, 1))
}

func (c *ThrottledClient) OwnsOrder(id engine.OrderID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[id]
	return ok
}

// OwnedSide reports the side this client submitted orderID under, if it
// was submitted through this client.
func (c *ThrottledClient) OwnedSide(id engine.OrderID) (engine.Side, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	side, ok := c.owned[id]
	return side, ok
}

// Engine exposes the underlying engine for listener registration (e.g.
// the supervisor's PnL tracker registers directly as a TradeListener).
func (c *ThrottledClient) Engine() *engine.MatchingEngine { return c.eng }
