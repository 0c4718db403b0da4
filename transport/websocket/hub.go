package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dogwalk/gameserver/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only send pongs.
	maxMessageSize = 512

	// Per-client send queue. A client that falls this far behind is
	// dropped.
	sendQueueLen = 16

	// Pending updates from the game loop.
	updateQueueLen = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The game client is served from the same host; browsers that
		// are not are on their own.
		return true
	},
}

// stateMessage is one outgoing frame: the session snapshot plus the
// session id it belongs to.
type stateMessage struct {
	SessionID uint32 `json:"sessionId"`
	*service.StateSnapshot
}

type update struct {
	sessionID uint32
	state     *service.StateSnapshot
}

// Client is one connected peer.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID uint32
}

// Hub maintains the set of active clients and fans session snapshots
// out to them.
type Hub struct {
	log *zap.Logger

	// Registered clients by session id. Owned by the Run goroutine.
	sessions map[uint32]map[*Client]bool

	updates    chan update
	register   chan *Client
	unregister chan *Client

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub. Call Run before wiring it anywhere.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		sessions:   make(map[uint32]map[*Client]bool),
		updates:    make(chan update, updateQueueLen),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It owns the session registry; everything
// else reaches it through channels.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case u := <-h.updates:
			h.fanOut(u)

		case <-h.quit:
			for _, clients := range h.sessions {
				for client := range clients {
					close(client.send)
				}
			}
			h.sessions = make(map[uint32]map[*Client]bool)
			return
		}
	}
}

// Shutdown stops the event loop and closes every client. It must not be
// called before Run has started.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Broadcast queues a snapshot for every client of the session. It never
// blocks; when the queue is full the update is dropped, the next tick
// supersedes it anyway. Safe to use as a service.BroadcastFunc.
func (h *Hub) Broadcast(sessionID uint32, state *service.StateSnapshot) {
	select {
	case h.updates <- update{sessionID: sessionID, state: state}:
	default:
	}
}

// ServeWS finishes the WebSocket handshake and subscribes the client to
// its session. The caller has already authenticated the request.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID uint32) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendQueueLen),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) add(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.log.Info("websocket client subscribed",
		zap.Uint32("session", client.sessionID),
		zap.Int("clients", len(h.sessions[client.sessionID])))
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	h.log.Info("websocket client dropped",
		zap.Uint32("session", client.sessionID),
		zap.Int("clients", len(clients)))
}

func (h *Hub) fanOut(u update) {
	clients := h.sessions[u.sessionID]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(stateMessage{SessionID: u.sessionID, StateSnapshot: u.state})
	if err != nil {
		h.log.Error("failed to marshal state update", zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// The client is not keeping up.
			h.remove(client)
		}
	}
}

// readPump discards client frames and keeps the connection alive until
// the peer goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards queued snapshots to the peer and pings it on a
// timer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped us.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
