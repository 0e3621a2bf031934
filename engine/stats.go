package engine

import "go.uber.org/atomic"

// Stats exposes lock-free readout of engine counters, per the
// concurrency contract that market_price/last_trade/counters may be
// atomics readable without acquiring the engine lock.
type Stats struct {
	ordersAdded     atomic.Uint64
	ordersCancelled atomic.Uint64
	ordersReplaced  atomic.Uint64
	ordersRejected  atomic.Uint64
	trades          atomic.Uint64
	volume          atomic.Uint64

	marketPrice    atomic.Int64
	lastTradePrice atomic.Int64
	lastTradeQty   atomic.Uint64
}

// StatsSnapshot is a plain-value copy of Stats. Its fields are loaded one
// atomic at a time, so they are not guaranteed to come from the same
// instant.
type StatsSnapshot struct {
	OrdersAdded     uint64
	OrdersCancelled uint64
	OrdersReplaced  uint64
	OrdersRejected  uint64
	Trades          uint64
	Volume          uint64
	MarketPrice     Price
	LastTradePrice  Price
	LastTradeQty    Quantity
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		OrdersAdded:     s.ordersAdded.Load(),
		OrdersCancelled: s.ordersCancelled.Load(),
		OrdersReplaced:  s.ordersReplaced.Load(),
		OrdersRejected:  s.ordersRejected.Load(),
		Trades:          s.trades.Load(),
		Volume:          s.volume.Load(),
		MarketPrice:     Price(s.marketPrice.Load()),
		LastTradePrice:  Price(s.lastTradePrice.Load()),
		LastTradeQty:    Quantity(s.lastTradeQty.Load()),
	}
}

func (s *Stats) recordTrade(price Price, qty Quantity) {
	s.trades.Inc()
	s.volume.Add(uint64(qty))
	s.lastTradePrice.Store(int64(price))
	s.lastTradeQty.Store(uint64(qty))
	s.marketPrice.Store(int64(price))
}
