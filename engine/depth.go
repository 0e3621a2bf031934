package engine

// DepthTracker snapshots the top MAX_LEVELS resting price levels of each
// side and diffs successive snapshots into change records.
type DepthTracker struct {
	maxLevels int

	bid, ask         []DepthLevel
	prevBid, prevAsk []DepthLevel
}

// NewDepthTracker builds a tracker bounded to maxLevels per side.
func NewDepthTracker(maxLevels int) *DepthTracker {
	return &DepthTracker{
		maxLevels: maxLevels,
		bid:       make([]DepthLevel, maxLevels),
		ask:       make([]DepthLevel, maxLevels),
		prevBid:   make([]DepthLevel, maxLevels),
		prevAsk:   make([]DepthLevel, maxLevels),
	}
}

func captureSide(sb *SideBook, out []DepthLevel) {
	for i := range out {
		out[i] = DepthLevel{}
	}
	i := 0
	for _, level := range sb.Levels() {
		if i >= len(out) {
			break
		}
		if level.Empty() || level.totalQty == 0 {
			continue
		}
		out[i] = DepthLevel{Price: level.price, Quantity: level.totalQty, OrderCount: level.orderCount}
		i++
	}
}

// UpdateFrom recaptures both sides and returns the list of slots that
// differ from the previous capture.
func (dt *DepthTracker) UpdateFrom(bidSide, askSide *SideBook) []DepthChange {
	copy(dt.prevBid, dt.bid)
	copy(dt.prevAsk, dt.ask)

	captureSide(bidSide, dt.bid)
	captureSide(askSide, dt.ask)

	var changes []DepthChange
	for i := 0; i < dt.maxLevels; i++ {
		if dt.bid[i] != dt.prevBid[i] {
			changes = append(changes, DepthChange{
				IsBid: true, Level: i, Price: dt.bid[i].Price,
				OldQty: dt.prevBid[i].Quantity, NewQty: dt.bid[i].Quantity,
				OldCount: dt.prevBid[i].OrderCount, NewCount: dt.bid[i].OrderCount,
			})
		}
		if dt.ask[i] != dt.prevAsk[i] {
			changes = append(changes, DepthChange{
				IsBid: false, Level: i, Price: dt.ask[i].Price,
				OldQty: dt.prevAsk[i].Quantity, NewQty: dt.ask[i].Quantity,
				OldCount: dt.prevAsk[i].OrderCount, NewCount: dt.ask[i].OrderCount,
			})
		}
	}
	return changes
}

// BestBid returns the top bid level's price, and whether one exists.
func (dt *DepthTracker) BestBid() (Price, bool) {
	if len(dt.bid) == 0 || dt.bid[0].Empty() {
		return 0, false
	}
	return dt.bid[0].Price, true
}

// BestAsk returns the top ask level's price, and whether one exists.
func (dt *DepthTracker) BestAsk() (Price, bool) {
	if len(dt.ask) == 0 || dt.ask[0].Empty() {
		return 0, false
	}
	return dt.ask[0].Price, true
}

// Spread is best_ask - best_bid, only defined when both sides are present.
func (dt *DepthTracker) Spread() (Price, bool) {
	bid, okBid := dt.BestBid()
	ask, okAsk := dt.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice is the integer-division mean of both bests, falling back to
// whichever single side is populated, or zero if neither is.
func (dt *DepthTracker) MidPrice() Price {
	bid, okBid := dt.BestBid()
	ask, okAsk := dt.BestAsk()
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

// LiquidityScore weights each level's quantity by the inverse of its
// distance from best, summed across both sides.
func (dt *DepthTracker) LiquidityScore() float64 {
	var score float64
	for i, lvl := range dt.bid {
		if !lvl.Empty() {
			score += float64(lvl.Quantity) / float64(i+1)
		}
	}
	for i, lvl := range dt.ask {
		if !lvl.Empty() {
			score += float64(lvl.Quantity) / float64(i+1)
		}
	}
	return score
}

// SpreadPercentage is 100*(ask-bid)/bid when both sides are present, 0
// otherwise.
func (dt *DepthTracker) SpreadPercentage() float64 {
	bid, okBid := dt.BestBid()
	ask, okAsk := dt.BestAsk()
	if !okBid || !okAsk || bid == 0 {
		return 0
	}
	return 100 * float64(ask-bid) / float64(bid)
}

// BidLevels/AskLevels expose the current capture for read-only inspection
// (e.g. by transport when building a book snapshot response).
func (dt *DepthTracker) BidLevels() []DepthLevel { return dt.bid }
func (dt *DepthTracker) AskLevels() []DepthLevel { return dt.ask }
