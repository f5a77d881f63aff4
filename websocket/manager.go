// Package websocket pushes engine session events to browsers and feeds
// client activity back into the sessions.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roommatch/engine"
	"roommatch/logging"
	"roommatch/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Authenticator turns a connection token into a profile id.
type Authenticator func(token string) (string, error)

// Manager tracks connected clients per user. Registration and presence
// fan-out go through its run loop.
type Manager struct {
	engine *engine.Engine
	logger logging.Logger

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn     *websocket.Conn
	userID   string
	send     chan []byte
	manager  *Manager
	session  *engine.Session
	release  func()
	unlisten func()
}

// frame is the envelope of every message in both directions.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewManager(e *engine.Engine, logger logging.Logger) *Manager {
	return &Manager{
		engine:     e,
		logger:     logger,
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Start runs the manager loop until Stop.
func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			first := len(m.clients[client.userID]) == 0
			if m.clients[client.userID] == nil {
				m.clients[client.userID] = make(map[*Client]bool)
			}
			m.clients[client.userID][client] = true
			m.mu.Unlock()
			m.logger.Info(context.Background(), "websocket client registered", "userId", client.userID, "users", m.GetConnectedUsers())
			if first {
				m.fanOut(presenceFrame(client.userID, true))
			}
			go client.session.Refresh(context.Background())

		case client := <-m.unregister:
			m.mu.Lock()
			if conns, ok := m.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(m.clients, client.userID)
				}
			}
			last := len(m.clients[client.userID]) == 0
			m.mu.Unlock()
			m.logger.Info(context.Background(), "websocket client unregistered", "userId", client.userID, "users", m.GetConnectedUsers())
			if last {
				m.fanOut(presenceFrame(client.userID, false))
			}

		case <-m.done:
			return
		}
	}
}

func (m *Manager) Stop() {
	close(m.done)
}

// fanOut must only run on the manager loop.
func (m *Manager) fanOut(message []byte) {
	if message == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, conns := range m.clients {
		for client := range conns {
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(conns, client)
			}
		}
		if len(conns) == 0 {
			delete(m.clients, userID)
		}
	}
}

// SendToUser delivers an event to every connection of userID.
func (m *Manager) SendToUser(userID, eventType string, payload any) {
	msg := encode(m.logger, eventType, payload)
	if msg == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for client := range m.clients[userID] {
		select {
		case client.send <- msg:
		default:
			m.logger.Warn(context.Background(), "websocket send buffer full, dropping event", "userId", userID, "type", eventType)
		}
	}
}

// MarkRead zeroes the session's unread count for conversationID and sends a
// read receipt to the partner's connections. It reports false when the
// session's viewer is not a participant. A nil Manager only marks.
func (m *Manager) MarkRead(ctx context.Context, session *engine.Session, conversationID string) bool {
	readerID := session.ViewerID()
	partner, ok := models.Partner(conversationID, readerID)
	if !ok {
		return false
	}
	session.MarkRead(ctx, conversationID)
	if m != nil {
		m.SendToUser(partner, "read", map[string]any{
			"conversationId": conversationID,
			"userId":         readerID,
			"readAt":         time.Now().UnixMilli(),
		})
	}
	return true
}

// GetConnectedUsers counts users with at least one connection.
func (m *Manager) GetConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsConnected reports whether userID has an open connection.
func (m *Manager) IsConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID]) > 0
}

func encode(logger logging.Logger, eventType string, payload any) []byte {
	msg, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		logger.Error(context.Background(), "failed to marshal websocket event", "type", eventType, "error", err)
		return nil
	}
	return msg
}

func presenceFrame(userID string, online bool) []byte {
	msg, _ := json.Marshal(map[string]any{
		"type": "presence",
		"payload": map[string]any{
			"userId": userID,
			"online": online,
		},
	})
	return msg
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketHandler authenticates ?token=, binds the connection to the
// user's engine session and starts the pumps.
func WebSocketHandler(manager *Manager, authenticate Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}
		userID, err := authenticate(token)
		if err != nil {
			manager.logger.Warn(r.Context(), "websocket connection rejected", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			manager.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
			return
		}

		ctx := context.Background()
		name := ""
		if p, err := manager.engine.Profiles().Get(ctx, userID); err == nil {
			name = p.Name
		}

		session, release := manager.engine.Attach(ctx, userID, name)
		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, 256),
			manager: manager,
			session: session,
			release: release,
		}
		client.unlisten = client.session.Listen(func(ev engine.Event) {
			client.reply(string(ev.Type), ev.Data)
		})

		client.send <- encode(manager.logger, "connected", map[string]any{
			"userId": userID,
			"time":   time.Now().UnixMilli(),
		})
		select {
		case manager.register <- client:
		case <-manager.done:
			client.unlisten()
			client.release()
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.unlisten()
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.release()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Warn(context.Background(), "websocket read error", "userId", c.userID, "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.manager.logger.Debug(context.Background(), "websocket frame unmarshal error", "userId", c.userID, "error", err)
			continue
		}
		c.handle(context.Background(), f)
	}
}

type framePayload struct {
	OtherID        string `json:"otherId"`
	ConversationID string `json:"conversationId"`
	Visible        *bool  `json:"visible"`
}

func (c *Client) handle(ctx context.Context, f frame) {
	var p framePayload
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return
		}
	}

	switch f.Type {
	case "ping":
		c.reply("pong", map[string]any{"time": time.Now().UnixMilli()})
	case "activity":
		c.session.Activity(ctx)
	case "visibility":
		if p.Visible != nil {
			c.session.SetVisible(ctx, *p.Visible)
		}
	case "watch":
		if p.OtherID != "" {
			if err := c.session.Watch(ctx, p.OtherID); err != nil {
				c.manager.logger.Warn(ctx, "watch failed", "userId", c.userID, "otherId", p.OtherID, "error", err)
			}
		}
	case "typing_start":
		if p.OtherID != "" {
			c.session.Keystroke(ctx, p.OtherID)
		}
	case "typing_end":
		if p.OtherID != "" {
			c.session.StopTyping(p.OtherID)
		}
	case "mark_read":
		c.manager.MarkRead(ctx, c.session, p.ConversationID)
	}
}

// reply queues an event for this connection only. Events for an
// unregistered client are dropped.
func (c *Client) reply(eventType string, payload any) {
	msg := encode(c.manager.logger, eventType, payload)
	if msg == nil {
		return
	}
	c.manager.mu.RLock()
	defer c.manager.mu.RUnlock()
	if !c.manager.clients[c.userID][c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

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
