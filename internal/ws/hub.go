package ws

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "colorsnap_ws_clients",
	Help: "Open websocket connections",
})

func init() {
	prometheus.MustRegister(ConnectedClients)
}

// Hub indexes open connections by player address.
type Hub struct {
	mu      sync.RWMutex
	clients map[common.Address]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[common.Address]map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.clients[c.Address]
	if !ok {
		byID = make(map[string]*Client)
		h.clients[c.Address] = byID
	}
	byID[c.ID] = c
	ConnectedClients.Inc()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.clients[c.Address]
	if !ok {
		return
	}
	if _, ok := byID[c.ID]; !ok {
		return
	}
	delete(byID, c.ID)
	if len(byID) == 0 {
		delete(h.clients, c.Address)
	}
	ConnectedClients.Dec()
}

// Count returns the open connections for addr
func (h *Hub) Count(addr common.Address) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[addr])
}

// Disconnect closes every connection of addr.
func (h *Hub) Disconnect(addr common.Address) {
	h.mu.RLock()
	var conns []*Client
	for _, c := range h.clients[addr] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// CloseAll closes every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var conns []*Client
	for _, byID := range h.clients {
		for _, c := range byID {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}
