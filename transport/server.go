// Package transport is the REST/WebSocket front door the core's listener
// contract assumes some outer layer provides. It turns wire JSON into
// engine.Order values and fans trade/depth/book events out to
// subscribers; it is deliberately kept outside the engine package.
package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"matchbook/engine"
	"matchbook/internal/logging"
	"matchbook/internal/metrics"
)

// Server wires one engine.MatchingEngine to HTTP. It implements every
// engine listener interface itself, fanning callbacks out over
// WebSocket hubs and into Prometheus metrics.
type Server struct {
	eng        *engine.MatchingEngine
	tradeHub   *hub[tradeDTO]
	depthHub   *hub[depthChangeDTO]
	bookHub    *hub[bookSnapshot]
	upgrader   websocket.Upgrader
	authToken  string
	corsOrigin string
	log        *logging.Logger
	metrics    *metrics.Metrics

	idSeq   uint64
	idSalt  uint64
}

// NewServer builds a Server and registers it against eng's four listener
// capabilities.
func NewServer(eng *engine.MatchingEngine, authToken, corsOrigin string, log *logging.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		eng:        eng,
		tradeHub:   newHub[tradeDTO](),
		depthHub:   newHub[depthChangeDTO](),
		bookHub:    newHub[bookSnapshot](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		authToken:  authToken,
		corsOrigin: corsOrigin,
		log:        log,
		metrics:    m,
		idSalt:     uuidSeed(),
	}
	eng.AddOrderListener(s)
	eng.AddTradeListener(s)
	eng.AddOrderBookListener(s)
	eng.AddDepthListener(s)
	return s
}

func uuidSeed() uint64 {
	id := uuid.New()
	var seed uint64
	for _, b := range id[:8] {
		seed = seed<<8 | uint64(b)
	}
	return seed
}

// mintID returns a fresh order id for a client that submitted without one.
func (s *Server) mintID() engine.OrderID {
	n := atomic.AddUint64(&s.idSeq, 1)
	return engine.OrderID(s.idSalt ^ n)
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware, s.authMiddleware)
	r.HandleFunc("/orders", s.handleNewOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}", s.handleCancel).Methods(http.MethodDelete)
	r.HandleFunc("/orders/{id}", s.handleReplace).Methods(http.MethodPatch)
	r.HandleFunc("/book", s.handleBook).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/ws/trades", s.handleTradeStream)
	r.HandleFunc("/ws/depth", s.handleDepthStream)
	r.HandleFunc("/ws/book", s.handleBookStream)
	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	order, err := buildOrder(req, s.mintID(), s.eng.Symbol())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.eng.AddOrder(order)

	writeJSON(w, http.StatusAccepted, orderResponse{
		ID: uint64(order.ID()), Status: order.Status().String(), OpenQty: uint64(order.OpenQty()),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.eng.CancelOrder(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("order %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{ID: uint64(id), Status: "CANCELLED"})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	old, ok := s.eng.OrderByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("order %d not found", id))
		return
	}

	newOrder, err := buildReplacement(old, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.eng.ReplaceOrder(id, newOrder) {
		writeError(w, http.StatusNotFound, fmt.Errorf("order %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		ID: uint64(newOrder.ID()), Status: newOrder.Status().String(), OpenQty: uint64(newOrder.OpenQty()),
	})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotBook())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) snapshotBook() bookSnapshot {
	depth := s.eng.Depth()
	snap := bookSnapshot{
		Bid: toDepthLevelDTOs(depth.BidLevels()),
		Ask: toDepthLevelDTOs(depth.AskLevels()),
		Mid: int64(depth.MidPrice()),
	}
	if spread, ok := depth.Spread(); ok {
		s := int64(spread)
		snap.Spread = &s
	}
	return snap
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)
	for trade := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
			return
		}
	}
}

func (s *Server) handleDepthStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := s.depthHub.Subscribe(64)
	defer s.depthHub.Unsubscribe(sub)
	for change := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "depth", Data: change}); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := s.bookHub.Subscribe(8)
	defer s.bookHub.Unsubscribe(sub)
	for snap := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "book", Data: snap}); err != nil {
			return
		}
	}
}

// --- engine.OrderListener -----------------------------------------------

func (s *Server) OnAccept(order *engine.Order) {
	if s.metrics != nil {
		s.metrics.OrdersTotal.Inc()
	}
}

func (s *Server) OnReject(order *engine.Order, reason engine.RejectReason) {
	if s.metrics != nil {
		s.metrics.OrdersTotal.Inc()
		s.metrics.RejectedTotal.Inc()
	}
	if s.log != nil {
		s.log.Sugar().Infow("order rejected", "order", order.ID(), "reason", reason)
	}
}

func (s *Server) OnFill(order *engine.Order, counterparty engine.OrderID, qty engine.Quantity, price engine.Price) {}

func (s *Server) OnCancel(order *engine.Order, cancelledQty engine.Quantity) {
	if s.metrics != nil {
		s.metrics.CancelsTotal.Inc()
	}
}

func (s *Server) OnReplace(oldOrder, newOrder *engine.Order) {}

func (s *Server) OnReplaceReject(oldOrder *engine.Order, reason engine.RejectReason) {}

// --- engine.TradeListener -------------------------------------------------

func (s *Server) OnTrade(trade engine.Trade) {
	if s.metrics != nil {
		s.metrics.TradesTotal.Inc()
	}
	s.tradeHub.Broadcast(toTradeDTO(trade))
}

// --- engine.OrderBookListener ----------------------------------------------

func (s *Server) OnOrderBookChange(e *engine.MatchingEngine) {
	s.bookHub.Broadcast(s.snapshotBook())
}

func (s *Server) OnBBOChange(e *engine.MatchingEngine, bid, ask engine.Price) {
	if s.metrics == nil {
		return
	}
	s.metrics.BestBid.Set(float64(bid))
	s.metrics.BestAsk.Set(float64(ask))
}

// --- engine.DepthListener -------------------------------------------------

func (s *Server) OnDepthChange(e *engine.MatchingEngine, change engine.DepthChange) {
	if s.metrics != nil {
		depth := e.Depth()
		populated := len(toDepthLevelDTOs(depth.BidLevels())) + len(toDepthLevelDTOs(depth.AskLevels()))
		s.metrics.DepthLevels.Set(float64(populated))
	}
	s.depthHub.Broadcast(toDepthChangeDTO(change))
}

// --- request parsing --------------------------------------------------------

func buildOrder(req orderRequest, mintedID engine.OrderID, symbol string) (*engine.Order, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := parseOrderType(req.Type)
	if err != nil {
		return nil, err
	}
	tif, err := parseTIF(req.TIF)
	if err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	id := engine.OrderID(req.ID)
	if id == 0 {
		id = mintedID
	}

	var conditions engine.OrderConditions
	if req.AllOrNone {
		conditions |= engine.AllOrNone
	}
	if req.Hidden {
		conditions |= engine.Hidden
	}
	if req.Iceberg {
		conditions |= engine.Iceberg
	}

	order := engine.NewOrder(id, symbol, side, engine.Quantity(req.Quantity), orderType, tif,
		engine.Price(req.Price), engine.Price(req.StopPrice), conditions, time.Now())
	if req.Iceberg {
		order.SetDisplayQty(engine.Quantity(req.DisplayQty))
	}
	return order, nil
}

func buildReplacement(old *engine.Order, req replaceRequest) (*engine.Order, error) {
	if req.NewID == 0 {
		return nil, fmt.Errorf("newId is required")
	}
	price := old.Price()
	if req.NewPrice != nil {
		price = engine.Price(*req.NewPrice)
	}
	qty := old.OpenQty()
	if req.NewQty != nil {
		qty = engine.Quantity(*req.NewQty)
	}
	return engine.NewOrder(engine.OrderID(req.NewID), old.Symbol(), old.Side(), qty, old.Type(), old.TIF(),
		price, old.StopPrice(), old.Conditions(), time.Now()), nil
}

func parseSide(value string) (engine.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return engine.Buy, nil
	case "sell", "ask", "s":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

func parseOrderType(value string) (engine.OrderType, error) {
	switch strings.ToLower(value) {
	case "limit", "lmt", "":
		return engine.Limit, nil
	case "market", "mkt":
		return engine.Market, nil
	case "stop":
		return engine.Stop, nil
	case "stop_limit", "stoplimit":
		return engine.StopLimit, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", value)
	}
}

func parseTIF(value string) (engine.TimeInForce, error) {
	switch strings.ToUpper(value) {
	case "", "GTC":
		return engine.GTC, nil
	case "IOC":
		return engine.IOC, nil
	case "FOK":
		return engine.FOK, nil
	case "DAY":
		return engine.DAY, nil
	default:
		return 0, fmt.Errorf("unknown tif %q", value)
	}
}

func parsePathID(value string) (engine.OrderID, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q", value)
	}
	return engine.OrderID(n), nil
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
