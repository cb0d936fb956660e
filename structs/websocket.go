package structs

import "encoding/json"

// LiveMessage is what spectators of a debate receive over the socket.
type LiveMessage struct {
	Type    string          `json:"type"`
	Event   json.RawMessage `json:"event,omitempty"`
	Content string          `json:"content,omitempty"`
}

const (
	LiveMessageEvent = "event"
	LiveMessagePing  = "ping"
	LiveMessageError = "error"
)
