package transport

import (
	"time"

	"matchbook/engine"
)

type orderRequest struct {
	ID         uint64 `json:"id,omitempty"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	TIF        string `json:"tif,omitempty"`
	Price      int64  `json:"price,omitempty"`
	StopPrice  int64  `json:"stopPrice,omitempty"`
	Quantity   uint64 `json:"quantity"`
	DisplayQty uint64 `json:"displayQty,omitempty"`
	AllOrNone  bool   `json:"allOrNone,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
	Iceberg    bool   `json:"iceberg,omitempty"`
}

type orderResponse struct {
	ID      uint64 `json:"id"`
	Status  string `json:"status"`
	OpenQty uint64 `json:"openQty"`
	Reason  string `json:"reason,omitempty"`
}

type replaceRequest struct {
	NewID     uint64  `json:"newId"`
	NewPrice  *int64  `json:"newPrice,omitempty"`
	NewQty    *uint64 `json:"newQty,omitempty"`
}

type depthLevelDTO struct {
	Price      int64  `json:"price"`
	Quantity   uint64 `json:"quantity"`
	OrderCount int    `json:"orderCount"`
}

type bookSnapshot struct {
	Bid  []depthLevelDTO `json:"bid"`
	Ask  []depthLevelDTO `json:"ask"`
	Spread *int64        `json:"spread,omitempty"`
	Mid    int64         `json:"mid"`
}

type tradeDTO struct {
	InboundID OrderID `json:"inboundId"`
	RestingID OrderID `json:"restingId"`
	Price     int64   `json:"price"`
	Quantity  uint64  `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderID aliases engine.OrderID for JSON clarity in this package's DTOs.
type OrderID = engine.OrderID

type depthChangeDTO struct {
	IsBid    bool   `json:"isBid"`
	Level    int    `json:"level"`
	Price    int64  `json:"price"`
	OldQty   uint64 `json:"oldQty"`
	NewQty   uint64 `json:"newQty"`
	OldCount int    `json:"oldCount"`
	NewCount int    `json:"newCount"`
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func toTradeDTO(t engine.Trade) tradeDTO {
	return tradeDTO{
		InboundID: t.InboundID, RestingID: t.RestingID,
		Price: int64(t.Price), Quantity: uint64(t.Quantity), Timestamp: t.Timestamp,
	}
}

func toDepthChangeDTO(c engine.DepthChange) depthChangeDTO {
	return depthChangeDTO{
		IsBid: c.IsBid, Level: c.Level, Price: int64(c.Price),
		OldQty: uint64(c.OldQty), NewQty: uint64(c.NewQty),
		OldCount: c.OldCount, NewCount: c.NewCount,
	}
}

func toDepthLevelDTOs(levels []engine.DepthLevel) []depthLevelDTO {
	out := make([]depthLevelDTO, 0, len(levels))
	for _, l := range levels {
		if l.Empty() {
			continue
		}
		out = append(out, depthLevelDTO{Price: int64(l.Price), Quantity: uint64(l.Quantity), OrderCount: l.OrderCount})
	}
	return out
}
