package bots

import (
	"context"
	"math/rand"
	"time"

	"matchbook/engine"
)

// RandomAskBot places short-lived limit asks around the mid price.
type RandomAskBot struct {
	Interval   time.Duration
	Lifetime   time.Duration
	Quantity   engine.Quantity
	RangeTicks int64
	rand       *rand.Rand
}

func NewRandomAskBot() *RandomAskBot {
	return &RandomAskBot{
		Interval:   200 * time.Millisecond,
		Lifetime:   2 * time.Second,
		Quantity:   1,
		RangeTicks: 5,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *RandomAskBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.placeAsk(ctx, client)
		}
	}
}

func (b *RandomAskBot) placeAsk(ctx context.Context, client EngineClient) {
	bid, ask, okBid, okAsk := client.BestBidAsk()
	mid := midPrice(bid, ask, okBid, okAsk)
	if mid <= 0 {
		return
	}

	delta := engine.Price(b.rand.Int63n(b.RangeTicks+1)) * client.TickSize()
	price := mid + delta

	id := client.NextID()
	order := engine.NewOrder(id, client.Symbol(), engine.Sell, b.Quantity, engine.Limit, engine.GTC, price, 0, engine.NoConditions, time.Now())
	if err := client.SubmitOrder(ctx, order); err != nil {
		return
	}

	go b.cancelAfter(ctx, client, id)
}

func (b *RandomAskBot) cancelAfter(ctx context.Context, client EngineClient, orderID engine.OrderID) {
	timer := time.NewTimer(b.Lifetime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		_ = client.CancelOrder(context.Background(), orderID)
	}
}
