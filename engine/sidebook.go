package engine

import (
	"container/list"
	"sort"

	"github.com/pkg/errors"
)

// orderLocation is the O(1) cancel-by-id index entry: which level an
// order sits in and its stable node within that level's FIFO.
type orderLocation struct {
	level   *PriceLevel
	element *list.Element
}

// SideBook indexes one side of the book (bids or asks) by price. levels
// is kept sorted best-first via binary search on insert, generalizing the
// price-ordered-map contract from the spec to a data structure with O(log P)
// lookup, O(1) best-price access, and inserts/erases of a new level that
// shift the slice (O(P)).
type SideBook struct {
	isBuy     bool
	levels    []*PriceLevel
	locations map[OrderID]*orderLocation
}

func newSideBook(isBuy bool) *SideBook {
	return &SideBook{
		isBuy:     isBuy,
		locations: make(map[OrderID]*orderLocation),
	}
}

// better reports whether price a ranks ahead of price b on this side.
func (sb *SideBook) better(a, b Price) bool {
	if sb.isBuy {
		return a > b
	}
	return a < b
}

// findLevel returns the index of the level at price, and whether it exists.
func (sb *SideBook) findLevel(price Price) (int, bool) {
	n := len(sb.levels)
	idx := sort.Search(n, func(i int) bool {
		return !sb.better(sb.levels[i].price, price)
	})
	if idx < n && sb.levels[idx].price == price {
		return idx, true
	}
	return idx, false
}

func (sb *SideBook) levelAt(price Price) *PriceLevel {
	if idx, ok := sb.findLevel(price); ok {
		return sb.levels[idx]
	}
	return nil
}

// Add inserts order at order.Price(), creating the level if absent.
// Precondition: order.ID() is not already indexed.
func (sb *SideBook) Add(order *Order) error {
	if _, exists := sb.locations[order.ID()]; exists {
		return errors.Wrapf(ErrIntegrityViolation, "order %d already indexed in side book", order.ID())
	}
	idx, ok := sb.findLevel(order.Price())
	var level *PriceLevel
	if ok {
		level = sb.levels[idx]
	} else {
		level = newPriceLevel(order.Price())
		sb.levels = append(sb.levels, nil)
		copy(sb.levels[idx+1:], sb.levels[idx:])
		sb.levels[idx] = level
	}
	el := level.add(order)
	sb.locations[order.ID()] = &orderLocation{level: level, element: el}
	return nil
}

// Remove drops order.ID() from the book. Returns ErrUnknownOrder if the
// id is not indexed - callers must treat that as a bug per spec §7.
func (sb *SideBook) Remove(id OrderID) error {
	loc, ok := sb.locations[id]
	if !ok {
		return ErrUnknownOrder
	}
	loc.level.remove(loc.element)
	if loc.level.Empty() {
		sb.eraseLevel(loc.level.price)
	}
	delete(sb.locations, id)
	return nil
}

func (sb *SideBook) eraseLevel(price Price) {
	idx, ok := sb.findLevel(price)
	if !ok {
		return
	}
	sb.levels = append(sb.levels[:idx], sb.levels[idx+1:]...)
}

// AmendQty adjusts order's visible quantity in place, delegating to the
// containing level's updateQty. new_qty == 0 must be handled by the
// caller as a Remove, not routed here.
func (sb *SideBook) AmendQty(order *Order, oldVisible, newVisible Quantity) error {
	loc, ok := sb.locations[order.ID()]
	if !ok {
		return ErrUnknownOrder
	}
	loc.level.updateQty(oldVisible, newVisible)
	return nil
}

// BestLevel returns the head of levels, or nil if the side is empty.
func (sb *SideBook) BestLevel() *PriceLevel {
	if len(sb.levels) == 0 {
		return nil
	}
	return sb.levels[0]
}

// BestPrice returns the best resting price, and whether one exists.
func (sb *SideBook) BestPrice() (Price, bool) {
	best := sb.BestLevel()
	if best == nil {
		return 0, false
	}
	return best.price, true
}

// candidateFill is one entry of a read-only match plan.
type candidateFill struct {
	level *PriceLevel
	qty   Quantity // matchable quantity at this level, capped by remaining budget
}

// Match walks levels best-first, producing a plan of candidate fills
// against noLimit or limitPrice, without mutating any level. Levels are
// eligible when (buy side: level.price >= limitPrice) or (sell side:
// level.price <= limitPrice); noLimit accepts every level (market order
// sentinel).
func (sb *SideBook) Match(limitPrice Price, noLimit bool, maxQty Quantity) []candidateFill {
	var plan []candidateFill
	remaining := maxQty
	for _, level := range sb.levels {
		if remaining == 0 {
			break
		}
		if !noLimit {
			if sb.isBuy && level.price < limitPrice {
				break
			}
			if !sb.isBuy && level.price > limitPrice {
				break
			}
		}
		// Sum open quantity rather than totalQty: totalQty counts only the
		// visible part, but hidden and iceberg size trades as well.
		var qty Quantity
		for el := level.Front(); el != nil; el = el.Next() {
			qty += el.Value.(*Order).openQty
		}
		if qty > remaining {
			qty = remaining
		}
		if qty == 0 {
			continue
		}
		plan = append(plan, candidateFill{level: level, qty: qty})
		remaining -= qty
	}
	return plan
}

// Levels exposes the sorted, best-first slice of resting price levels for
// DepthTracker iteration. Callers must not mutate the returned slice.
func (sb *SideBook) Levels() []*PriceLevel { return sb.levels }
