// Package engine implements a single-instrument, price-time priority
// limit order book: validation, order-type dispatch, the crossing
// algorithm, stop-order activation, depth aggregation, and an
// observer-pattern event fan-out.
package engine

import "time"

// Price is expressed in the smallest unit of the quoted currency.
type Price int64

// Quantity is an order size or remaining size.
type Quantity uint64

// OrderID uniquely identifies an order for the lifetime of an engine
// instance. Ids are never reused once an order has terminated.
type OrderID uint64

const (
	// MarketPrice is the sentinel limit price carried by pure market
	// orders, for whom price() is meaningless.
	MarketPrice Price = 0
	// UnchangedPrice is the "leave the price as-is" sentinel value.
	// MatchingEngine.ReplaceOrder does not interpret it: it takes a complete
	// replacement order, and a price of -1 there is rejected as non-positive.
	UnchangedPrice Price = -1
	// UnchangedQuantity is the "leave the quantity as-is" sentinel value.
	// MatchingEngine.ReplaceOrder does not interpret it either.
	UnchangedQuantity Quantity = ^Quantity(0)
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// OrderType selects how an order is priced and when it becomes eligible
// to match.
type OrderType int

const (
	Limit OrderType = iota
	Market
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce governs how long an order may rest once it stops matching.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
	FOK
	DAY
)

func (tif TimeInForce) String() string {
	switch tif {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case DAY:
		return "DAY"
	default:
		return "UNKNOWN"
	}
}

// OrderConditions is a bitmask of special execution constraints. Multiple
// conditions combine by OR.
type OrderConditions uint32

const (
	NoConditions OrderConditions = 0
	// AllOrNone makes the matching walk skip any resting order whose open
	// quantity is less than the inbound order's remaining quantity, moving
	// on to the next order in the same level rather than partially filling.
	AllOrNone OrderConditions = 1 << 0
	// ImmediateOrCancel cancels any unmatched remainder instead of resting it.
	ImmediateOrCancel OrderConditions = 1 << 1
	// FillOrKill combines AllOrNone and ImmediateOrCancel: fill completely
	// and immediately, or produce zero fills.
	FillOrKill = AllOrNone | ImmediateOrCancel
	// Hidden excludes the order's quantity from DepthTracker aggregation and
	// any public book-view projection, without affecting matching priority.
	// A level's order count still includes its hidden orders.
	Hidden OrderConditions = 1 << 2
	// Iceberg reveals only DisplayQuantity of the order's remaining
	// quantity to depth/book views; the rest fills invisibly in place.
	Iceberg OrderConditions = 1 << 3
)

func (c OrderConditions) has(flag OrderConditions) bool { return c&flag != 0 }

// IsAllOrNone reports whether the AllOrNone bit is set.
func (c OrderConditions) IsAllOrNone() bool { return c.has(AllOrNone) }

// IsImmediateOrCancel reports whether the ImmediateOrCancel bit is set.
func (c OrderConditions) IsImmediateOrCancel() bool { return c.has(ImmediateOrCancel) }

// IsFillOrKill reports whether both FillOrKill bits are set.
func (c OrderConditions) IsFillOrKill() bool { return c.has(AllOrNone) && c.has(ImmediateOrCancel) }

// IsHidden reports whether the Hidden bit is set.
func (c OrderConditions) IsHidden() bool { return c.has(Hidden) }

// IsIceberg reports whether the Iceberg bit is set.
func (c OrderConditions) IsIceberg() bool { return c.has(Iceberg) }

// OrderStatus is a lifecycle state. Terminal states never transition further.
type OrderStatus int

const (
	Pending OrderStatus = iota
	Accepted
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Replaced
)

func (s OrderStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Accepted:
		return "ACCEPTED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	case Replaced:
		return "REPLACED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether status can never transition again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Replaced:
		return true
	default:
		return false
	}
}

// FillFlags describes the execution role and completion state of a single
// fill, carried on every trade event.
type FillFlags uint32

const (
	FillNormal     FillFlags = 0
	FillAggressive FillFlags = 1 << 0
	FillPassive    FillFlags = 1 << 1
	FillPartial    FillFlags = 1 << 2
	FillComplete   FillFlags = 1 << 3
)

// Trade is the record of a single execution between an aggressor and a
// resting order.
type Trade struct {
	InboundID    OrderID
	RestingID    OrderID
	Price        Price
	Quantity     Quantity
	Timestamp    time.Time
	InboundFlags FillFlags
	RestingFlags FillFlags
}

// DepthLevel is one aggregated price point of market depth.
type DepthLevel struct {
	Price      Price
	Quantity   Quantity
	OrderCount int
}

// Empty reports whether the level carries no resting quantity.
func (d DepthLevel) Empty() bool { return d.Quantity == 0 }

// DepthChange records a single differing slot between two consecutive
// DepthTracker snapshots.
type DepthChange struct {
	IsBid    bool
	Level    int
	Price    Price
	OldQty   Quantity
	NewQty   Quantity
	OldCount int
	NewCount int
}

// Delta returns NewQty-OldQty as a signed difference.
func (c DepthChange) Delta() int64 {
	return int64(c.NewQty) - int64(c.OldQty)
}
