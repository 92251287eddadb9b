// Package websocket relays "data changed" notifications between
// isolated views. The hub lives in the long-lived server process every
// view can reach; views connect as WebSocket clients and receive
// refresh fan-outs with no delivery guarantee.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// How long the hub waits for one consumer's refresh ack before
	// counting the delivery as failed. Failed deliveries are not
	// retried; the consumer's own poll timer covers the gap.
	ackWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Views are served from the same host.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// DeliveryOutcome classifies a fan-out result. "Nobody was listening"
// is a typed outcome, not an ignored warning.
type DeliveryOutcome string

const (
	OutcomeDelivered  DeliveryOutcome = "delivered"
	OutcomeNoReceiver DeliveryOutcome = "no_receiver"
)

// DeliveryReport aggregates per-recipient results of one fan-out.
type DeliveryReport struct {
	Outcome   DeliveryOutcome
	Delivered int
	Failed    int
}

// Notifier is the fallback surface used when a refresh has no
// reachable recipients; the user still learns their clip was saved.
type Notifier interface {
	Notify(message string)
}

// Hub maintains the set of active view clients and fans refresh
// notifications out to them.
type Hub struct {
	// Registered view clients keyed by viewer ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Pending refresh acks keyed by message ID.
	pendingMu sync.Mutex
	pending   map[string]chan RefreshAck

	fallback Notifier
	logger   *zap.Logger

	// Invoked with the aggregated report after each fan-out.
	reportHook func(DeliveryReport)
}

// NewHub creates a new relay hub.
func NewHub(fallback Notifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pending:    make(map[string]chan RefreshAck),
		fallback:   fallback,
		logger:     logger,
	}
}

// SetReportHook registers a callback observing fan-out reports.
func (h *Hub) SetReportHook(hook func(DeliveryReport)) {
	h.reportHook = hook
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.viewerID] = client
			h.mu.Unlock()
			h.logger.Info("View registered", zap.String("viewerID", client.viewerID))

		case client := <-h.unregister:
			// The send channel is never closed: fan-out goroutines may
			// still hold a snapshot of this client. writePump exits via
			// the connection close instead.
			h.mu.Lock()
			delete(h.clients, client.viewerID)
			h.mu.Unlock()
			h.logger.Info("View unregistered", zap.String("viewerID", client.viewerID))
		}
	}
}

// ClientCount reports how many views are currently reachable.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RequestRefresh accepts a refresh request and returns the
// acknowledgment before any fan-out work happens. The fan-out runs in
// the background and never blocks the producer's primary task.
func (h *Hub) RequestRefresh(req RefreshRequest) RefreshAccepted {
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().UnixMilli()
	}
	go h.fanOut(req)
	return RefreshAccepted{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRefreshAccepted,
			MessageID: req.MessageID,
			Timestamp: time.Now().UnixMilli(),
		},
		Accepted: true,
	}
}

// fanOut sends a refresh to every registered view and aggregates
// per-recipient acks. The requester gets one too; rendering is
// idempotent so the extra re-query is harmless. Failed deliveries are
// not retried.
func (h *Hub) fanOut(req RefreshRequest) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	report := DeliveryReport{}
	if len(targets) == 0 {
		report.Outcome = OutcomeNoReceiver
		h.logger.Info("No views reachable for refresh, using fallback notification")
		if h.fallback != nil {
			h.fallback.Notify("Audio saved. Open the history view to see it.")
		}
		h.finishReport(report)
		return
	}

	var delivered, failed int
	var reportMu sync.Mutex
	var g errgroup.Group
	for _, target := range targets {
		target := target
		g.Go(func() error {
			ok := h.deliverRefresh(target, req)
			reportMu.Lock()
			if ok {
				delivered++
			} else {
				failed++
			}
			reportMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Outcome = OutcomeDelivered
	report.Delivered = delivered
	report.Failed = failed
	h.logger.Info("Refresh fan-out finished",
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))
	h.finishReport(report)
}

func (h *Hub) finishReport(report DeliveryReport) {
	if h.reportHook != nil {
		h.reportHook(report)
	}
}

// deliverRefresh sends one refresh and waits for the consumer's ack.
func (h *Hub) deliverRefresh(client *Client, req RefreshRequest) bool {
	messageID := uuid.NewString()
	msg := RefreshMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRefresh,
			MessageID: messageID,
			Timestamp: req.Timestamp,
		},
		Force: req.Force,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode refresh message", zap.Error(err))
		return false
	}

	ackChan := make(chan RefreshAck, 1)
	h.pendingMu.Lock()
	h.pending[messageID] = ackChan
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, messageID)
		h.pendingMu.Unlock()
	}()

	select {
	case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		h.logger.Warn("View send buffer full, dropping refresh",
			zap.String("viewerID", client.viewerID))
		return false
	}

	select {
	case ack := <-ackChan:
		if !ack.Refreshed {
			h.logger.Warn("View failed to refresh",
				zap.String("viewerID", client.viewerID),
				zap.String("error", ack.Error))
		}
		return ack.Refreshed
	case <-time.After(ackWait):
		h.logger.Warn("Timed out waiting for refresh ack",
			zap.String("viewerID", client.viewerID))
		return false
	}
}

// resolveAck routes a consumer's refresh ack to the waiting fan-out.
func (h *Hub) resolveAck(ack RefreshAck) {
	h.pendingMu.Lock()
	ackChan, ok := h.pending[ack.MessageID]
	h.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ackChan <- ack:
	default:
	}
}

type WriteData struct {
	// Type is the websocket message type, either
	// websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between one view's websocket connection and
// the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Viewer ID for this client
	viewerID string

	logger *zap.Logger
}

// HandleWebSocket upgrades an authenticated view connection and wires
// it into the hub.
func HandleWebSocket(hub *Hub, c echo.Context, viewerID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if viewerID == "" {
		viewerID = uuid.NewString()
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 64),
		viewerID: viewerID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches an incoming message from a view.
func (c *Client) processMessage(message []byte) {
	msgType, err := ParseMessageType(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch msgType {
	case MessageTypeRefreshRequested:
		var req RefreshRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.logger.Error("Failed to parse refresh request", zap.Error(err))
			return
		}
		ack := c.hub.RequestRefresh(req)
		c.reply(ack)

	case MessageTypeRefreshAck:
		var ack RefreshAck
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Error("Failed to parse refresh ack", zap.Error(err))
			return
		}
		c.hub.resolveAck(ack)

	case MessageTypePing:
		c.reply(BaseMessage{Type: MessageTypePong, Timestamp: time.Now().UnixMilli()})

	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(msgType)))
	}
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("View send buffer full, dropping reply",
			zap.String("viewerID", c.viewerID))
	}
}
