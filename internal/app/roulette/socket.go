package roulette

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
)

// wsClient serializes writes to one socket; gorilla allows a single writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type WsHub struct {
	mu      sync.RWMutex
	conns   map[int64]map[*wsClient]struct{} // userID -> set of clients
	upgr    websocket.Upgrader
	metrics *metrics.Metrics
}

func NewWSHub(m *metrics.Metrics) *WsHub {
	return &WsHub{
		conns: make(map[int64]map[*wsClient]struct{}),
		upgr: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: m,
	}
}

func (h *WsHub) subscribe(userID int64, w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgr.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &wsClient{conn: conn}
	h.mu.Lock()
	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[*wsClient]struct{})
	}
	h.conns[userID][client] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WsConnections.Inc()
	}

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.conns[userID], client)
			if len(h.conns[userID]) == 0 {
				delete(h.conns, userID)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WsConnections.Dec()
			}
			conn.Close()
		}()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// notifyUser sends payload to every socket the user has open. The hub lock
// is only held while collecting the user's clients.
func (h *WsHub) notifyUser(userID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.send(data)
	}
}

func (h *WsHub) connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
