package engine

import "time"

// Order is the shared-reference entity submitted to and mutated by a
// MatchingEngine. Callers retain a pointer to the value they submitted;
// the engine mutates it in place as it moves through its lifecycle.
type Order struct {
	id                OrderID
	symbol            string
	side              Side
	originalQty       Quantity
	orderType         OrderType
	tif               TimeInForce
	conditions        OrderConditions
	displayQty        Quantity
	creationTimestamp time.Time

	price      Price
	stopPrice  Price
	openQty    Quantity
	status     OrderStatus
}

// NewOrder builds a PENDING order. price and stopPrice are ignored where
// the order type makes them meaningless (price for MARKET, stopPrice for
// non-stop types).
func NewOrder(id OrderID, symbol string, side Side, qty Quantity, orderType OrderType, tif TimeInForce, price, stopPrice Price, conditions OrderConditions, now time.Time) *Order {
	o := &Order{
		id:                id,
		symbol:            symbol,
		side:              side,
		originalQty:       qty,
		orderType:         orderType,
		tif:               tif,
		conditions:        conditions,
		creationTimestamp: now,
		price:             price,
		stopPrice:         stopPrice,
		openQty:           qty,
		status:            Pending,
	}
	if conditions.IsIceberg() {
		o.displayQty = 0 // set by the caller via SetDisplayQty before submission
	}
	return o
}

func (o *Order) ID() OrderID                    { return o.id }
func (o *Order) Symbol() string                 { return o.symbol }
func (o *Order) Side() Side                     { return o.side }
func (o *Order) OriginalQty() Quantity          { return o.originalQty }
func (o *Order) Type() OrderType                { return o.orderType }
func (o *Order) TIF() TimeInForce               { return o.tif }
func (o *Order) Conditions() OrderConditions    { return o.conditions }
func (o *Order) CreationTimestamp() time.Time   { return o.creationTimestamp }
func (o *Order) Price() Price                   { return o.price }
func (o *Order) StopPrice() Price               { return o.stopPrice }
func (o *Order) OpenQty() Quantity              { return o.openQty }
func (o *Order) Status() OrderStatus            { return o.status }
func (o *Order) DisplayQty() Quantity           { return o.displayQty }

// SetDisplayQty configures the visible clip of an ICEBERG order. Callers
// must set this before submission; the engine never changes it.
func (o *Order) SetDisplayQty(q Quantity) { o.displayQty = q }

// VisibleQty is the quantity a DepthTracker should count for this order:
// the display clip for an iceberg, zero for a hidden order, open_qty
// otherwise.
func (o *Order) VisibleQty() Quantity {
	switch {
	case o.conditions.IsHidden():
		return 0
	case o.conditions.IsIceberg():
		if o.displayQty < o.openQty {
			return o.displayQty
		}
		return o.openQty
	default:
		return o.openQty
	}
}

func (o *Order) IsBuy() bool    { return o.side == Buy }
func (o *Order) IsMarket() bool { return o.orderType == Market }
func (o *Order) IsLimit() bool  { return o.orderType == Limit }
func (o *Order) IsStop() bool   { return o.orderType == Stop || o.orderType == StopLimit }
func (o *Order) IsIOC() bool    { return o.tif == IOC }
func (o *Order) IsFOK() bool    { return o.tif == FOK }

// setOpenQty is called only by PriceLevel/SideBook/MatchingEngine while
// the order is owned by them; it never touches the containing level's
// aggregates itself (that is the caller's job, per PriceLevel.updateQty).
func (o *Order) setOpenQty(q Quantity) { o.openQty = q }

func (o *Order) setStatus(s OrderStatus) { o.status = s }

// setPrice mutates the resting limit price. Callers must not invoke this
// while the order is indexed in a SideBook; amending price is always
// remove-mutate-reinsert.
func (o *Order) setPrice(p Price) { o.price = p }

func (o *Order) setStopPrice(p Price) { o.stopPrice = p }
