package bots

import (
	"context"
	"time"

	"matchbook/engine"
)

// SpreadCaptureBot maintains paired bids/asks and re-prices when the mid
// price moves by ThresholdTicks or more, or the pair outlives Lifetime.
type SpreadCaptureBot struct {
	Interval       time.Duration
	Lifetime       time.Duration
	ThresholdTicks int64
	Quantity       engine.Quantity
}

type pairedOrders struct {
	buyID     engine.OrderID
	sellID    engine.OrderID
	anchorMid engine.Price
	placedAt  time.Time
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:       300 * time.Millisecond,
		Lifetime:       3 * time.Second,
		ThresholdTicks: 3,
		Quantity:       1,
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	var pair *pairedOrders
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pair = b.refreshPair(ctx, client, pair)
		}
	}
}

func (b *SpreadCaptureBot) refreshPair(ctx context.Context, client EngineClient, pair *pairedOrders) *pairedOrders {
	bid, ask, okBid, okAsk := client.BestBidAsk()
	if !okBid || !okAsk {
		return b.cancelPair(ctx, client, pair)
	}
	mid := (bid + ask) / 2
	threshold := engine.Price(b.ThresholdTicks) * client.TickSize()

	if pair != nil {
		if time.Since(pair.placedAt) > b.Lifetime {
			return b.cancelPair(ctx, client, pair)
		}
		if absPrice(mid-pair.anchorMid) >= threshold {
			pair = b.cancelPair(ctx, client, pair)
		}
	}

	if pair != nil {
		return pair
	}

	buyPrice := bid
	if mid-client.TickSize() > 0 {
		buyPrice = mid - client.TickSize()
	}
	sellPrice := ask
	if sellPrice <= buyPrice {
		sellPrice = buyPrice + client.TickSize()
	}

	buyID := client.NextID()
	sellID := client.NextID()

	buyOrder := engine.NewOrder(buyID, client.Symbol(), engine.Buy, b.Quantity, engine.Limit, engine.GTC, buyPrice, 0, engine.NoConditions, time.Now())
	sellOrder := engine.NewOrder(sellID, client.Symbol(), engine.Sell, b.Quantity, engine.Limit, engine.GTC, sellPrice, 0, engine.NoConditions, time.Now())

	if err := client.SubmitOrder(ctx, buyOrder); err != nil {
		return pair
	}
	if err := client.SubmitOrder(ctx, sellOrder); err != nil {
		_ = client.CancelOrder(ctx, buyID)
		return pair
	}

	return &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: time.Now()}
}

func (b *SpreadCaptureBot) cancelPair(ctx context.Context, client EngineClient, pair *pairedOrders) *pairedOrders {
	if pair == nil {
		return nil
	}
	_ = client.CancelOrder(ctx, pair.buyID)
	_ = client.CancelOrder(ctx, pair.sellID)
	return nil
}
