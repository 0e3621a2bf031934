package engine

import "github.com/pkg/errors"

// Sentinel error kinds, one per kind of the error-handling contract. Where
// one is returned wrapped, callers unwrap with errors.Cause / errors.Is.
var (
	// ErrInvalidOrder names a failed validation rule. AddOrder itself
	// returns nothing: it marks the order REJECTED and fires on_reject.
	ErrInvalidOrder = errors.New("engine: invalid order")

	// ErrUnknownOrder is returned by SideBook.Remove/AmendQty when an id
	// is not indexed; CancelOrder/ReplaceOrder report an unknown id by
	// returning false.
	ErrUnknownOrder = errors.New("engine: unknown order id")

	// ErrFOKInfeasible names a fill-or-kill order that cannot be filled
	// completely. AddOrder reports that case through on_reject with
	// ReasonFOKInfeasible, not by returning this error.
	ErrFOKInfeasible = errors.New("engine: fill-or-kill order infeasible")

	// ErrIntegrityViolation marks a state that should be structurally
	// impossible. SideBook.Add returns it wrapped when an id is already
	// indexed. There is no debug build that panics on it and no
	// recomputed-aggregate check; AddOrder only logs it (when a logger
	// is set) and carries on.
	ErrIntegrityViolation = errors.New("engine: integrity violation")
)

// RejectReason names why AddOrder rejected an order, carried to on_reject.
type RejectReason string

const (
	ReasonNilOrder          RejectReason = "nil order"
	ReasonSymbolMismatch    RejectReason = "symbol mismatch"
	ReasonNonPositiveQty    RejectReason = "original quantity must be positive"
	ReasonOpenExceedsOrig   RejectReason = "open quantity exceeds original"
	ReasonNonPositivePrice  RejectReason = "limit price must be positive"
	ReasonNonPositiveStop   RejectReason = "stop price must be positive"
	ReasonFOKInfeasible     RejectReason = "fill-or-kill infeasible at current liquidity"
	ReasonDuplicateOrderID  RejectReason = "order id already active"
)
