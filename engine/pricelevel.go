package engine

import "container/list"

// PriceLevel is a FIFO queue of orders resting at a single price, with
// incrementally maintained aggregates. The queue is a doubly-linked list
// so a cancel-by-id lookup can hold a stable *list.Element and remove it
// in O(1), unlike an index into a contiguous slice.
type PriceLevel struct {
	price      Price
	orders     *list.List // of *Order
	totalQty   Quantity
	orderCount int
}

func newPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{price: price, orders: list.New()}
}

func (pl *PriceLevel) Price() Price        { return pl.price }
func (pl *PriceLevel) TotalQty() Quantity  { return pl.totalQty }
func (pl *PriceLevel) OrderCount() int     { return pl.orderCount }
func (pl *PriceLevel) Empty() bool         { return pl.orderCount == 0 }
func (pl *PriceLevel) Front() *list.Element { return pl.orders.Front() }

// add appends order to the FIFO and folds its visible quantity into the
// aggregates, returning the stable position handle used for removal.
func (pl *PriceLevel) add(order *Order) *list.Element {
	el := pl.orders.PushBack(order)
	pl.totalQty += order.VisibleQty()
	pl.orderCount++
	return el
}

// remove drops the order at the given position. Aggregates are decremented
// by the order's current visible quantity, which must be reconciled by the
// caller before calling remove if the order still holds open quantity that
// should not count (e.g. it was fully filled by an outer routine).
func (pl *PriceLevel) remove(el *list.Element) {
	order := el.Value.(*Order)
	pl.totalQty -= order.VisibleQty()
	pl.orders.Remove(el)
	pl.orderCount--
}

// updateQty adjusts total_qty by new-old; the caller writes new back to
// the order itself. old/new are the order's *visible* quantities before
// and after the change, per spec.
func (pl *PriceLevel) updateQty(old, new Quantity) {
	pl.totalQty = pl.totalQty - old + new
}

// fill walks the FIFO from the front, charging each resting order with
// min(order.openQty, remaining), until maxQty is exhausted or the level
// empties. It returns the total quantity filled and the list of orders
// that were fully consumed (and therefore removed from the level).
//
// Iceberg replenishment: an iceberg order whose display clip is consumed
// but still carries open size is not removed; its next clip becomes
// visible and it keeps its position in the queue by convention of this
// implementation (its list node is left where it is, so unlike most
// venues it does NOT lose FIFO priority on replenish -
// callers wanting venue-realistic loss-of-priority on replenish should
// remove+reinsert at the tail themselves).
func (pl *PriceLevel) fill(maxQty Quantity) (filled Quantity, drained []*Order) {
	remaining := maxQty
	for remaining > 0 {
		front := pl.orders.Front()
		if front == nil {
			break
		}
		order := front.Value.(*Order)
		before := order.VisibleQty()
		charge := order.OpenQty()
		if charge > remaining {
			charge = remaining
		}
		order.setOpenQty(order.OpenQty() - charge)
		remaining -= charge
		filled += charge
		after := order.VisibleQty()
		pl.totalQty = pl.totalQty - before + after

		if order.OpenQty() == 0 {
			order.setStatus(Filled)
			pl.orders.Remove(front)
			pl.orderCount--
			drained = append(drained, order)
		} else {
			order.setStatus(PartiallyFilled)
			break
		}
	}
	return filled, drained
}
