// Package chat is a small websocket chat service: participants connect,
// say lines into a chat, and the bot's announcements are broadcast back.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Inbound is a line typed by a participant.
type Inbound struct {
	ChatID   string
	PlayerID string
	Name     string
	Text     string
}

// Handler reacts to participant lines.
type Handler interface {
	HandleText(ctx context.Context, in Inbound)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in Inbound)

func (f HandlerFunc) HandleText(ctx context.Context, in Inbound) { f(ctx, in) }

// Gateway accepts websocket participants and delivers chat messages to them.
type Gateway struct {
	upgrader    websocket.Upgrader
	logger      *log.Logger
	newID       func() string
	mu          sync.RWMutex
	connections map[*Connection]struct{}
	h           Handler
}

// NewGateway returns a gateway with no handler attached.
func NewGateway(logger *log.Logger) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("chat"),
		newID:       uuid.NewString,
		connections: make(map[*Connection]struct{}),
	}
}

// SetHandler attaches the handler for participant lines.
func (g *Gateway) SetHandler(h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.h = h
}

func (g *Gateway) handler() Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.h
}

// Routes returns the HTTP routes served by the gateway.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWebSocket)
	mux.HandleFunc("/health", g.handleHealth)
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("Starting chat gateway", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown chat gateway: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects every participant.
func (g *Gateway) Close() {
	for _, conn := range g.snapshot("") {
		_ = conn.Close()
	}
}

// Send broadcasts a bot announcement to everyone in the chat and returns
// the message ID.
func (g *Gateway) Send(ctx context.Context, chatID, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := NewMessage(MessageTypeChat, ChatData{ChatID: chatID, Text: text})
	if err != nil {
		return "", err
	}
	msg.ID = g.newID()

	recipients := g.broadcast(chatID, msg, nil)
	g.logger.Debug("Broadcast to chat", "chat", chatID, "id", msg.ID, "recipients", recipients)
	return msg.ID, nil
}

// Participants returns the player IDs connected to a chat.
func (g *Gateway) Participants(chatID string) []string {
	var players []string
	for _, conn := range g.snapshot(chatID) {
		players = append(players, conn.PlayerID())
	}
	return players
}

func (g *Gateway) echo(in Inbound, from *Connection) {
	msg, err := NewMessage(MessageTypeChat, ChatData{ChatID: in.ChatID, From: in.Name, Text: in.Text})
	if err != nil {
		return
	}
	msg.ID = g.newID()
	g.broadcast(in.ChatID, msg, from)
}

func (g *Gateway) broadcast(chatID string, msg *Message, except *Connection) int {
	count := 0
	for _, conn := range g.snapshot(chatID) {
		if conn == except {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			g.logger.Warn("Failed to deliver message", "chat", chatID, "player", conn.PlayerID(), "error", err)
			continue
		}
		count++
	}
	return count
}

// snapshot copies the connections bound to chatID, or all of them for "".
func (g *Gateway) snapshot(chatID string) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conns := make([]*Connection, 0, len(g.connections))
	for conn := range g.connections {
		if chatID == "" || conn.ChatID() == chatID {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (g *Gateway) remove(c *Connection) {
	g.mu.Lock()
	_, ok := g.connections[c]
	delete(g.connections, c)
	total := len(g.connections)
	g.mu.Unlock()
	if ok {
		g.logger.Info("Client disconnected", "total", total)
	}
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := newConnection(conn, g)
	g.mu.Lock()
	g.connections[client] = struct{}{}
	total := len(g.connections)
	g.mu.Unlock()
	g.logger.Info("Client connected", "total", total)

	client.start()
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
