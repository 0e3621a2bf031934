package bots

import (
	"context"

	"matchbook/engine"
)

// Bot represents a trading agent that can be run under a supervisor.
type Bot interface {
	Start(ctx context.Context, client EngineClient)
}

// EngineClient abstracts the minimal surface bots need from the matching
// engine, so bots can be tested against a fake without a real engine.
type EngineClient interface {
	SubmitOrder(ctx context.Context, order *engine.Order) error
	CancelOrder(ctx context.Context, orderID engine.OrderID) error
	BestBidAsk() (bid, ask engine.Price, okBid, okAsk bool)
	Symbol() string
	TickSize() engine.Price
	NextID() engine.OrderID
	OwnsOrder(id engine.OrderID) bool
}
