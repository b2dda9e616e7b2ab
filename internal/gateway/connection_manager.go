package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/broker"
)

// ConnectionManager manages WebSocket connections for live leaderboard observers
type ConnectionManager struct {
	broker *broker.Broker

	connections map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig
}

// Connection represents a WebSocket connection to one observer.
// It bridges a single broker subscription onto the socket; the server only
// pushes, the client never sends application frames.
type Connection struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan []byte
	Subscription *broker.Subscription
	Manager      *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBacklog     int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBacklog:     256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager feeding
// from the given broker
func NewConnectionManager(b *broker.Broker, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		broker:      b,
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches
// it to the event stream. The broker subscription is taken before the
// handshake response goes out, so no event published after the upgrade can
// be missed by this observer.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	sub := cm.broker.Subscribe()

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.broker.Unsubscribe(sub)
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		Conn:         conn,
		Send:         make(chan []byte, cm.config.SendBacklog),
		Subscription: sub,
		Manager:      cm,
		ConnectedAt:  time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()
	go connection.streamPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("subscription_id", connection.Subscription.ID()).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and cancels its subscription.
// Safe to call from multiple pumps; only the first call does the work.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	cm.mu.Unlock()

	cm.broker.Unsubscribe(conn.Subscription)

	log.Info().
		Str("connection_id", conn.ID).
		Msg("connection unregistered")
}

// ConnectionCount returns the number of active WebSocket connections
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// streamPump moves events from the broker subscription onto the send
// queue. A closed subscription (dropped by the broker or unregistered)
// ends the pump and closes Send, which lets writePump finish the socket.
func (c *Connection) streamPump() {
	defer close(c.Send)

	for event := range c.Subscription.Events() {
		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event for connection")
			continue
		}

		select {
		case c.Send <- data:
		default:
			// Socket writer cannot keep up; force a disconnect so the
			// client re-initializes instead of stalling everyone upstream.
			log.Warn().
				Str("connection_id", c.ID).
				Msg("connection send buffer full, closing connection")
			c.Manager.unregisterConnection(c)
			return
		}
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Stream ended; tell the client to reconnect from scratch.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump drains the socket to process control frames and detect
// disconnects; observers have nothing to say over this channel.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		log.Debug().
			Str("connection_id", c.ID).
			Int("bytes", len(message)).
			Msg("ignoring client message on push-only stream")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
