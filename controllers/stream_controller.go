package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/services/marketdata"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Constants for stream configuration
const (
	MaxStreamClients    = 100 // Maximum concurrent WebSocket clients
	StreamWriteTimeout  = 10 * time.Second
	StreamPongTimeout   = 60 * time.Second
	StreamPingInterval  = 30 * time.Second
	StreamSendBuffer    = 256
	StreamMaxMessageLen = 512
)

// StreamMessage represents a message sent to WebSocket clients
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// streamCommand is a client-to-server control message
type streamCommand struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// streamClient represents one WebSocket client. symbols is guarded by
// the controller mutex.
type streamClient struct {
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]bool
}

// symbolFeed tracks the single distribution-core subscription shared
// by all WebSocket clients interested in a symbol.
type symbolFeed struct {
	sub  *marketdata.Subscription
	refs int
}

// StreamController streams quotes to WebSocket clients. It is a
// consumer of the distribution core: per subscribed symbol it holds
// exactly one core subscription and fans quotes out to the interested
// clients.
type StreamController struct {
	service  *marketdata.Service
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]bool
	feeds   map[string]*symbolFeed
	closed  bool
}

// NewStreamController creates a new stream controller
func NewStreamController(service *marketdata.Service) *StreamController {
	return &StreamController{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*streamClient]bool),
		feeds:   make(map[string]*symbolFeed),
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps
// GET /ws/quotes
func (sc *StreamController) HandleWebSocket(c *gin.Context) {
	sc.mu.RLock()
	atCapacity := len(sc.clients) >= MaxStreamClients
	closed := sc.closed
	sc.mu.RUnlock()

	if closed || atCapacity {
		c.String(http.StatusServiceUnavailable, "Server at capacity")
		return
	}

	conn, err := sc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &streamClient{
		conn:    conn,
		send:    make(chan []byte, StreamSendBuffer),
		symbols: make(map[string]bool),
	}

	sc.mu.Lock()
	if len(sc.clients) >= MaxStreamClients {
		sc.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
		conn.Close()
		log.Printf("WebSocket client rejected: max clients reached (%d)", MaxStreamClients)
		return
	}
	sc.clients[client] = true
	clientCount := len(sc.clients)
	sc.mu.Unlock()
	log.Printf("WebSocket client connected. Total clients: %d", clientCount)

	go client.writePump()
	go client.readPump(sc)
}

// writePump writes messages to the WebSocket connection
func (c *streamClient) writePump() {
	ticker := time.NewTicker(StreamPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads subscription commands from the WebSocket connection
func (c *streamClient) readPump(sc *StreamController) {
	defer func() {
		sc.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(StreamMaxMessageLen)
	c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var cmd streamCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			sc.subscribe(c, cmd.Symbols)
		case "unsubscribe":
			sc.unsubscribe(c, cmd.Symbols)
		}
	}
}

// subscribe attaches a client to symbols, opening one core
// subscription per symbol on first interest. Core Subscribe calls run
// outside the controller lock: the core delivers cached quotes
// synchronously, and that delivery re-enters broadcastQuote.
func (sc *StreamController) subscribe(client *streamClient, symbols []string) {
	var accepted []string
	var pending []string

	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	for _, raw := range symbols {
		sym, err := marketdata.NormalizeSymbol(raw)
		if err != nil {
			continue
		}
		if client.symbols[sym] {
			continue
		}
		client.symbols[sym] = true
		accepted = append(accepted, sym)

		feed, ok := sc.feeds[sym]
		if !ok {
			feed = &symbolFeed{}
			sc.feeds[sym] = feed
			pending = append(pending, sym)
		}
		feed.refs++
	}
	sc.mu.Unlock()

	for _, sym := range pending {
		sub, err := sc.service.Subscribe(sym, sc.broadcastQuote)
		if err != nil {
			log.Printf("Stream subscribe %s failed: %v", sym, err)
			continue
		}

		sc.mu.Lock()
		feed, ok := sc.feeds[sym]
		if !ok || feed.refs <= 0 {
			// All interested clients left while we were subscribing
			delete(sc.feeds, sym)
			sc.mu.Unlock()
			sub.Unsubscribe()
			continue
		}
		feed.sub = sub
		sc.mu.Unlock()
	}

	if len(accepted) > 0 {
		sc.sendToClient(client, StreamMessage{Type: "subscribed", Data: accepted})
	}
}

// unsubscribe detaches a client from symbols, releasing core
// subscriptions whose last client left.
func (sc *StreamController) unsubscribe(client *streamClient, symbols []string) {
	var released []*marketdata.Subscription
	var removed []string

	sc.mu.Lock()
	for _, raw := range symbols {
		sym, err := marketdata.NormalizeSymbol(raw)
		if err != nil || !client.symbols[sym] {
			continue
		}
		delete(client.symbols, sym)
		removed = append(removed, sym)
		if sub := sc.releaseFeedLocked(sym); sub != nil {
			released = append(released, sub)
		}
	}
	sc.mu.Unlock()

	for _, sub := range released {
		sub.Unsubscribe()
	}

	if len(removed) > 0 {
		sc.sendToClient(client, StreamMessage{Type: "unsubscribed", Data: removed})
	}
}

// releaseFeedLocked drops one reference to a symbol feed and returns
// the core subscription to release when the feed is no longer wanted.
// Caller holds sc.mu and must call Unsubscribe outside the lock.
func (sc *StreamController) releaseFeedLocked(symbol string) *marketdata.Subscription {
	feed, ok := sc.feeds[symbol]
	if !ok {
		return nil
	}
	feed.refs--
	if feed.refs > 0 {
		return nil
	}
	delete(sc.feeds, symbol)
	return feed.sub
}

// unregister removes a disconnected client and releases its feeds
func (sc *StreamController) unregister(client *streamClient) {
	var released []*marketdata.Subscription

	sc.mu.Lock()
	if _, ok := sc.clients[client]; !ok {
		sc.mu.Unlock()
		return
	}
	delete(sc.clients, client)
	for sym := range client.symbols {
		if sub := sc.releaseFeedLocked(sym); sub != nil {
			released = append(released, sub)
		}
	}
	close(client.send)
	clientCount := len(sc.clients)
	sc.mu.Unlock()

	for _, sub := range released {
		sub.Unsubscribe()
	}
	log.Printf("WebSocket client disconnected. Total clients: %d", clientCount)
}

// broadcastQuote is the consumer callback registered with the
// distribution core. It must not block: full client buffers drop the
// update rather than stalling the fan-out.
func (sc *StreamController) broadcastQuote(quote models.Quote) {
	msg := StreamMessage{
		Type: "quote",
		Data: quote,
		Time: time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling quote message: %v", err)
		return
	}

	sc.mu.RLock()
	defer sc.mu.RUnlock()
	for client := range sc.clients {
		if !client.symbols[quote.Symbol] {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client buffer full, drop this update
		}
	}
}

// sendToClient sends one message to a single client, dropping it if
// the client's buffer is full
func (sc *StreamController) sendToClient(client *streamClient, msg StreamMessage) {
	msg.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients
func (sc *StreamController) ClientCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.clients)
}

// Close shuts down all client connections and releases every feed
func (sc *StreamController) Close() {
	sc.mu.Lock()
	sc.closed = true
	var released []*marketdata.Subscription
	for sym, feed := range sc.feeds {
		if feed.sub != nil {
			released = append(released, feed.sub)
		}
		delete(sc.feeds, sym)
	}
	clients := make([]*streamClient, 0, len(sc.clients))
	for client := range sc.clients {
		clients = append(clients, client)
	}
	sc.clients = make(map[*streamClient]bool)
	sc.mu.Unlock()

	for _, sub := range released {
		sub.Unsubscribe()
	}
	for _, client := range clients {
		close(client.send)
		client.conn.Close()
	}
	log.Println("Stream controller shutdown complete")
}
