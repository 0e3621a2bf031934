package bots

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"matchbook/engine"
	"matchbook/internal/logging"
)

// Supervisor orchestrates multiple bots with a shared client and PnL tracking.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
	log      *logging.Logger
}

// NewSupervisor builds a default swarm of bots and a throttled client.
func NewSupervisor(eng *engine.MatchingEngine, symbol string, tickSize engine.Price, orderInterval time.Duration, log *logging.Logger) *Supervisor {
	throttle := time.NewTicker(orderInterval)
	client := NewThrottledClient(eng, symbol, tickSize, throttle.C)
	bots := []Bot{
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewSpreadCaptureBot(),
	}
	pnl := &pnlTracker{client: client}
	eng.AddTradeListener(pnl)
	return &Supervisor{
		bots:     bots,
		client:   client,
		pnl:      pnl,
		throttle: throttle,
		log:      log.Named("supervisor"),
	}
}

// Start launches all bots and PnL monitoring until the context is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	for _, bot := range s.bots {
		b := bot
		go b.Start(ctx, s.client)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-logTicker.C:
			pos, cash := s.pnl.Snapshot()
			s.log.Info("pnl", zap.Int64("position", int64(pos)), zap.Int64("cash", cash))
		}
	}
}

// pnlTracker accumulates position and cash from trades involving orders the
// supervisor's client owns. It registers directly as a TradeListener, so no
// polling loop over a trade channel is needed.
type pnlTracker struct {
	mu       sync.Mutex
	position engine.Quantity
	cash     int64
	client   *ThrottledClient
}

func (p *pnlTracker) OnTrade(trade engine.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	notional := int64(trade.Price) * int64(trade.Quantity)
	if side, ok := p.client.OwnedSide(trade.InboundID); ok {
		p.apply(side, trade.Quantity, notional)
	}
	if side, ok := p.client.OwnedSide(trade.RestingID); ok {
		p.apply(side, trade.Quantity, notional)
	}
}

func (p *pnlTracker) apply(side engine.Side, qty engine.Quantity, notional int64) {
	if side == engine.Buy {
		p.position += qty
		p.cash -= notional
	} else {
		p.position -= qty
		p.cash += notional
	}
}

func (p *pnlTracker) Snapshot() (engine.Quantity, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}

// RunExampleSupervisor demonstrates spinning up the supervisor with a fresh engine.
func RunExampleSupervisor() {
	log := logging.New("dev")
	defer log.AtExit()

	eng := engine.NewMatchingEngine("SIM", 50, log.Named("engine"))
	sup := NewSupervisor(eng, "SIM", 1, 50*time.Millisecond, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.Start(ctx)
	pos, cash := sup.pnl.Snapshot()
	log.Info("final pnl", zap.Int64("position", int64(pos)), zap.Int64("cash", cash))
}
