package engine

import (
	"testing"
	"time"
)

func TestNewOrderDefaults(t *testing.T) {
	now := time.Unix(0, 0)
	o := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 15000, 0, NoConditions, now)

	if o.ID() != 1 || o.Symbol() != "BTCUSD" || o.Side() != Buy {
		t.Fatalf("unexpected identity fields: %+v", o)
	}
	if o.OpenQty() != 10 || o.OriginalQty() != 10 {
		t.Fatalf("expected open_qty == original_qty == 10, got %d/%d", o.OpenQty(), o.OriginalQty())
	}
	if o.Status() != Pending {
		t.Fatalf("expected PENDING status, got %s", o.Status())
	}
	if !o.IsBuy() || !o.IsLimit() {
		t.Fatalf("expected buy/limit predicates true")
	}
}

func TestVisibleQtyHidden(t *testing.T) {
	o := NewOrder(1, "BTCUSD", Sell, 10, Limit, GTC, 100, 0, Hidden, time.Unix(0, 0))
	if got := o.VisibleQty(); got != 0 {
		t.Fatalf("expected hidden order to report zero visible qty, got %d", got)
	}
}

func TestVisibleQtyIceberg(t *testing.T) {
	o := NewOrder(1, "BTCUSD", Sell, 100, Limit, GTC, 100, 0, Iceberg, time.Unix(0, 0))
	o.SetDisplayQty(10)

	if got := o.VisibleQty(); got != 10 {
		t.Fatalf("expected iceberg visible qty capped at display clip, got %d", got)
	}

	o.setOpenQty(5)
	if got := o.VisibleQty(); got != 5 {
		t.Fatalf("expected visible qty to fall to remaining open qty once below the clip, got %d", got)
	}
}

func TestVisibleQtyPlain(t *testing.T) {
	o := NewOrder(1, "BTCUSD", Buy, 10, Limit, GTC, 100, 0, NoConditions, time.Unix(0, 0))
	if got := o.VisibleQty(); got != 10 {
		t.Fatalf("expected plain order visible qty == open qty, got %d", got)
	}
}

func TestOrderConditionsBitmask(t *testing.T) {
	c := AllOrNone | Hidden
	if !c.IsAllOrNone() {
		t.Fatalf("expected AllOrNone set")
	}
	if c.IsImmediateOrCancel() {
		t.Fatalf("did not expect ImmediateOrCancel set")
	}
	if !c.IsHidden() {
		t.Fatalf("expected Hidden set")
	}
	if c.IsIceberg() {
		t.Fatalf("did not expect Iceberg set")
	}
	if !FillOrKill.IsFillOrKill() {
		t.Fatalf("expected the FillOrKill alias to satisfy IsFillOrKill")
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{Filled, Cancelled, Rejected, Replaced}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	nonTerminal := []OrderStatus{Pending, Accepted, PartiallyFilled}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Fatalf("did not expect %s to be terminal", s)
		}
	}
}
