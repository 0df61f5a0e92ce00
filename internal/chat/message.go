package chat

import (
	"encoding/json"
	"time"
)

// MessageType identifies a websocket frame.
type MessageType string

const (
	// Client to server
	MessageTypeHello MessageType = "hello"
	MessageTypeSay   MessageType = "say"

	// Server to client
	MessageTypeWelcome MessageType = "welcome"
	MessageTypeChat    MessageType = "chat"
	MessageTypeError   MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Message is the envelope for every frame on the socket.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// HelloData binds a connection to a chat as a named participant.
type HelloData struct {
	ChatID   string `json:"chatId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

// SayData is a line typed into the chat.
type SayData struct {
	Text string `json:"text"`
}

type WelcomeData struct {
	ChatID   string `json:"chatId"`
	PlayerID string `json:"playerId"`
}

// ChatData is a line shown in a chat. From is empty for bot announcements.
type ChatData struct {
	ChatID string `json:"chatId"`
	From   string `json:"from,omitempty"`
	Text   string `json:"text"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
