package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192
)

var ErrConnectionClosed = errors.New("chat: connection closed")

// Connection is one participant's websocket.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	gateway   *Gateway
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool

	chatID   string
	playerID string
	name     string
}

func newConnection(conn *websocket.Conn, gateway *Gateway) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		gateway: gateway,
		logger:  gateway.logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// Close tears down the socket; it is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		err = c.conn.Close()
		c.gateway.remove(c)
	})
	return err
}

// SendMessage queues msg for delivery. A peer that cannot keep up is
// disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		c.sendMu.Unlock()
		return nil
	default:
		c.sendMu.Unlock()
		c.logger.Warn("Connection send buffer full, closing connection", "player", c.PlayerID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) bind(chatID, playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID, c.playerID, c.name = chatID, playerID, name
}

// ChatID returns the chat the connection joined, if any.
func (c *Connection) ChatID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chatID
}

// PlayerID returns the participant behind the connection.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

func (c *Connection) displayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.PlayerID())

	switch msg.Type {
	case MessageTypeHello:
		var data HelloData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse hello data")
			return
		}
		c.handleHello(data)

	case MessageTypeSay:
		var data SayData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse say data")
			return
		}
		c.handleSay(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

func (c *Connection) handleHello(data HelloData) {
	chatID := strings.TrimSpace(data.ChatID)
	playerID := strings.TrimSpace(data.PlayerID)
	if chatID == "" || playerID == "" {
		c.sendError("invalid_hello", "Chat and player IDs are required")
		return
	}
	name := strings.TrimSpace(data.Name)
	if name == "" {
		name = playerID
	}
	c.bind(chatID, playerID, name)
	c.logger.Info("Participant connected", "chat", chatID, "player", playerID)

	response, _ := NewMessage(MessageTypeWelcome, WelcomeData{ChatID: chatID, PlayerID: playerID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleSay(data SayData) {
	chatID := c.ChatID()
	if chatID == "" {
		c.sendError("not_joined", "Send hello first")
		return
	}
	text := strings.TrimSpace(data.Text)
	if text == "" {
		return
	}

	in := Inbound{
		ChatID:   chatID,
		PlayerID: c.PlayerID(),
		Name:     c.displayName(),
		Text:     text,
	}
	c.gateway.echo(in, c)
	if h := c.gateway.handler(); h != nil {
		// Announcements triggered here go to the whole chat even if this
		// connection drops mid-command.
		h.HandleText(context.WithoutCancel(c.ctx), in)
	}
}
