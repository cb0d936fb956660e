package debate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types fanned out to spectators of a debate
const (
	EventArgumentSubmitted  = "argument.submitted"
	EventVoteCast           = "vote.cast"
	EventDebateJoined       = "debate.joined"
	EventDebateForfeited    = "debate.forfeited"
	EventDebateCompleted    = "debate.completed"
	EventDebateCancelled    = "debate.cancelled"
	EventDefinitionProposed = "definition.proposed"
	EventDefinitionUpdated  = "definition.updated"
)

// Event represents a debate event published to spectators
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	DebateID  string          `json:"debateId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// ArgumentPayload accompanies EventArgumentSubmitted
type ArgumentPayload struct {
	ArgumentID string `json:"argumentId"`
	AuthorID   string `json:"authorId"`
	TurnNumber int    `json:"turnNumber"`
	NextSide   string `json:"nextSide,omitempty"`
}

// VotePayload accompanies EventVoteCast
type VotePayload struct {
	TargetKind string `json:"targetKind"`
	TargetID   string `json:"targetId"`
	Support    int64  `json:"support"`
	Oppose     int64  `json:"oppose"`
}

// ResolutionPayload accompanies forfeits, completions and cancellations
type ResolutionPayload struct {
	Status      string `json:"status"`
	WinningRole string `json:"winningRole,omitempty"`
	Description string `json:"description,omitempty"`
}

// ParticipantPayload accompanies EventDebateJoined
type ParticipantPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// DefinitionPayload accompanies definition events
type DefinitionPayload struct {
	DefinitionID string `json:"definitionId"`
	Term         string `json:"term"`
	Status       string `json:"status"`
}

// NewEvent creates a new event with timestamp
func NewEvent(debateID, eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		DebateID:  debateID,
		Payload:   payloadBytes,
		Timestamp: time.Now().Unix(),
	}, nil
}

// MarshalEvent marshals an event to JSON string for Redis Stream
func MarshalEvent(event *Event) (string, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalEvent unmarshals a JSON string to an Event
func UnmarshalEvent(data string) (*Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, err
	}
	return &event, nil
}
