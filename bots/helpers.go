package bots

import "matchbook/engine"

func midPrice(bid, ask engine.Price, okBid, okAsk bool) engine.Price {
	switch {
	case okBid && okAsk:
		return (bid + ask) / 2
	case okBid:
		return bid
	case okAsk:
		return ask
	default:
		return 0
	}
}

func absPrice(v engine.Price) engine.Price {
	if v < 0 {
		return -v
	}
	return v
}
