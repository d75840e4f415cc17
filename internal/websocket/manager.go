package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// PortfolioSource prices a user's account.
type PortfolioSource interface {
	Portfolio(ctx context.Context, userID uuid.UUID) (*models.PortfolioView, error)
}

type Client struct {
	Manager *Manager
	Conn    *websocket.Conn
	UserID  uuid.UUID
	Send    chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(manager *Manager, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		Manager: manager,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Manager keeps one feed per user and pushes a fresh PortfolioView on every
// tick and whenever Notify is called for that user.
type Manager struct {
	clients    map[uuid.UUID]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	notify     chan uuid.UUID
	log        *slog.Logger
	portfolios PortfolioSource
	interval   time.Duration
	quit       chan struct{}
}

func NewManager(log *slog.Logger, portfolios PortfolioSource, interval time.Duration) *Manager {
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan uuid.UUID, 64),
		log:        log,
		portfolios: portfolios,
		interval:   interval,
		quit:       make(chan struct{}),
	}
}

func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.quit)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("manager run loop stopping...")
			m.closeAll()
			return
		case client := <-m.register:
			m.registerClient(client)
			go m.push(ctx, client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		case userID := <-m.notify:
			if client, ok := m.client(userID); ok {
				go m.push(ctx, client)
			}
		case <-ticker.C:
			for _, client := range m.snapshot() {
				go m.push(ctx, client)
			}
		}
	}
}

func (m *Manager) Register(client *Client) {
	select {
	case m.register <- client:
	case <-m.quit:
		client.close()
	}
}

func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.quit:
	}
}

// Notify asks for an immediate push to userID. It never blocks; if the
// queue is full the next tick covers it.
func (m *Manager) Notify(userID uuid.UUID) {
	select {
	case m.notify <- userID:
	default:
		m.log.Debug("notify queue is full, dropping", "userID", userID)
	}
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldClient, exists := m.clients[client.UserID]; exists {
		m.log.Warn("client re-registering, closing old connection", "userID", client.UserID)
		oldClient.close()
	}

	m.clients[client.UserID] = client
	m.log.Info("new client registered", "userID", client.UserID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.clients[client.UserID]; ok && current == client {
		delete(m.clients, client.UserID)
		m.log.Info("client unregistered", "userID", client.UserID)
	}
	client.close()
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, client := range m.clients {
		client.close()
		delete(m.clients, userID)
	}
}

func (m *Manager) client(userID uuid.UUID) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[userID]
	return client, ok
}

func (m *Manager) snapshot() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	return clients
}

type feedMessage struct {
	Portfolio *models.PortfolioView `json:"portfolio,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func (m *Manager) push(ctx context.Context, client *Client) {
	var msg feedMessage

	view, err := m.portfolios.Portfolio(ctx, client.UserID)
	if err != nil {
		m.log.Warn("failed to build portfolio for feed", "userID", client.UserID, "error", err)
		msg.Error = errs.Message(err)
	} else {
		msg.Portfolio = view
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("failed to marshal portfolio view", "error", err, "userID", client.UserID)
		return
	}

	select {
	case client.Send <- data:
	case <-client.done:
	default:
		m.log.Warn("client send channel is full, dropping message", "userID", client.UserID)
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "userID", c.UserID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "userID", c.UserID, "error", err)
			}
			break
		}
	}
}
