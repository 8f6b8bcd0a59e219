// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	applog "github.com/imSoTn/audioreact/internal/log"
)

// wsSendQueue is the per-client outbound buffer. A client that falls this
// far behind is evicted rather than allowed to stall the broadcast loop.
const wsSendQueue = 16

// WebSocketHub serves analysis results as JSON to dashboard clients over
// a /ws endpoint. Results arrive through Send, are throttled to the
// configured interval, and fan out through a single broadcast goroutine;
// each client gets its own writer goroutine and send queue.
type WebSocketHub struct {
	addr     string
	interval time.Duration
	upgrader websocket.Upgrader
	server   *http.Server

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan any

	lastSend atomic.Int64 // Unix nanos of the last accepted Send.

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type wsClient struct {
	conn *websocket.Conn
	send chan any
}

// NewWebSocketHub starts the HTTP server and the broadcast loop. interval
// is the minimum spacing between broadcast frames; zero disables
// throttling.
func NewWebSocketHub(addr string, interval time.Duration) *WebSocketHub {
	h := &WebSocketHub{
		addr:     addr,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from arbitrary local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan any, 64),
		done:       make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleUpgrade)
	h.server = &http.Server{Addr: addr, Handler: mux}

	h.wg.Add(2)
	go h.serve()
	go h.run()

	return h
}

func (h *WebSocketHub) serve() {
	defer h.wg.Done()
	applog.Infof("WebSocketHub: listening on %s", h.addr)
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		applog.Errorf("WebSocketHub: server error: %v", err)
	}
}

// run owns the client set. Register, unregister, and broadcast all funnel
// through here so the set needs no lock.
func (h *WebSocketHub) run() {
	defer h.wg.Done()

	clients := make(map[*wsClient]bool)
	defer func() {
		for c := range clients {
			close(c.send)
			c.conn.Close()
		}
	}()

	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			clients[c] = true
			applog.Debugf("WebSocketHub: client connected, total: %d", len(clients))
		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
				applog.Debugf("WebSocketHub: client disconnected, total: %d", len(clients))
			}
		case data := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- data:
				default:
					// Slow client: evict instead of blocking the loop.
					delete(clients, c)
					close(c.send)
					c.conn.Close()
					applog.Warnf("WebSocketHub: evicted slow client, total: %d", len(clients))
				}
			}
		}
	}
}

func (h *WebSocketHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketHub: upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan any, wsSendQueue)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeLoop(client)
	go h.readLoop(client)
}

// writeLoop drains the client's send queue. It exits when the queue is
// closed by the run loop.
func (h *WebSocketHub) writeLoop(c *wsClient) {
	for data := range c.send {
		if err := c.conn.WriteJSON(data); err != nil {
			applog.Debugf("WebSocketHub: write failed: %v", err)
			break
		}
	}
	c.conn.Close()
}

// readLoop exists to detect disconnects; inbound messages are discarded.
func (h *WebSocketHub) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Send queues a result for broadcast. Frames arriving faster than the
// configured interval, or when the queue is full, are dropped; the next
// frame carries fresher data anyway.
func (h *WebSocketHub) Send(data any) error {
	if h.interval > 0 {
		now := time.Now().UnixNano()
		last := h.lastSend.Load()
		if now-last < int64(h.interval) {
			return nil
		}
		if !h.lastSend.CompareAndSwap(last, now) {
			return nil
		}
	}

	select {
	case h.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the server, the broadcast loop, and every client.
func (h *WebSocketHub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		applog.Infof("WebSocketHub: closing")
		close(h.done)
		err = h.server.Close()
		h.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketHub)(nil)
