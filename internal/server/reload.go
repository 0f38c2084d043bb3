package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	reloadMessage = "reload"
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 4
)

// reloadHub tracks live-reload connections and fans messages out to them.
type reloadHub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*reloadClient]struct{}
	closed  bool
}

type reloadClient struct {
	conn *websocket.Conn
	send chan string
}

func newReloadHub(log *slog.Logger) *reloadHub {
	return &reloadHub{
		log:     log,
		clients: make(map[*reloadClient]struct{}),
	}
}

// ServeHTTP upgrades the request and pumps messages until the client leaves.
func (h *reloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the response.
		h.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &reloadClient{conn: conn, send: make(chan string, sendBuffer)}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	// Browsers never send anything; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.Background())
	h.pump(ctx, c)
}

func (h *reloadHub) pump(ctx context.Context, c *reloadClient) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.CloseNow()
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, c.conn, msg); err != nil {
				h.log.Debug("websocket write failed", "error", err)
				_ = c.conn.CloseNow()
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}

func (h *reloadHub) write(ctx context.Context, conn *websocket.Conn, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(msg))
}

func (h *reloadHub) add(c *reloadClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *reloadHub) remove(c *reloadClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Broadcast queues msg for every client and returns how many got it.
// Clients whose queue is full miss the message; a reload is idempotent.
func (h *reloadHub) Broadcast(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			n++
		default:
		}
	}
	return n
}

// Clients returns the number of open connections.
func (h *reloadHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close tells every client to go away and rejects new ones.
func (h *reloadHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
