// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http"
	applog "radar/internal/log"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WebSocketTransport broadcasts frames as JSON to every client connected to
// /ws. Send blocks while the broadcast queue is full. The frames of the
// latest result are replayed to clients that connect later.
type WebSocketTransport struct {
	addr       string
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	clientsMu  sync.Mutex // guards clients, history and generation
	history    []any
	generation uint64 // bumped whenever history restarts with a new result
	broadcast  chan any
	server     *http.Server
	done       chan struct{}
	closeOnce  sync.Once
}

// NewWebSocketTransport creates a transport and, when addr is not empty,
// starts an HTTP server on it.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local viewers
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	wst.start()
	return wst
}

// Handler returns the HTTP handler serving the /ws endpoint.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	return mux
}

// start begins the broadcast loop and, if configured, the HTTP server.
func (wst *WebSocketTransport) start() {
	if wst.addr != "" {
		wst.server = &http.Server{
			Addr:              wst.addr,
			Handler:           wst.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			applog.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.addr)
			if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				applog.Errorf("WebSocketTransport: Server error: %v", err)
			}
		}()
	}

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	// Replay without holding clientsMu, then register once the client has
	// caught up with everything broadcast in the meantime.
	var gen uint64
	replayed := 0
	for {
		wst.clientsMu.Lock()
		select {
		case <-wst.done:
			wst.clientsMu.Unlock()
			conn.Close()
			return
		default:
		}
		if wst.generation != gen {
			gen, replayed = wst.generation, 0
		}
		if replayed == len(wst.history) {
			wst.clients[conn] = true
			total := len(wst.clients)
			wst.clientsMu.Unlock()
			applog.Infof("WebSocketTransport: Client connected, total: %d, replayed %d frames", total, replayed)
			break
		}
		pending := slices.Clone(wst.history[replayed:])
		wst.clientsMu.Unlock()

		for _, data := range pending {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(data); err != nil {
				applog.Warnf("WebSocketTransport: Error replaying to client: %v", err)
				conn.Close()
				return
			}
		}
		replayed += len(pending)
	}

	// Clients only listen; the first read error means they went away.
	go func() {
		if _, _, err := conn.ReadMessage(); err != nil {
			wst.removeClient(conn)
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued frames to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			if _, ok := data.(ResultFrame); ok {
				wst.history = nil
				wst.generation++
			}
			wst.history = append(wst.history, data)
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

var errWebSocketClosed = errors.New("websocket transport is closed")

// Send queues data for broadcast to all connected WebSocket clients
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return errWebSocketClosed
	default:
	}

	select {
	case wst.broadcast <- data:
		return nil
	case <-wst.done:
		return errWebSocketClosed
	}
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
