package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationArgumentVote   NotificationType = "ARGUMENT_VOTE"
	NotificationDefinitionVote NotificationType = "DEFINITION_VOTE"
	NotificationDebateForfeit  NotificationType = "DEBATE_FORFEIT"
	NotificationDebateJoined   NotificationType = "DEBATE_JOINED"
	NotificationTurnReady      NotificationType = "TURN_READY"
)

// Notification is an append-only record shown to UserID
type Notification struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type       NotificationType    `bson:"type" json:"type"`
	Title      string              `bson:"title" json:"title"`
	Message    string              `bson:"message" json:"message"`
	Link       string              `bson:"link" json:"link"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	ActorID    primitive.ObjectID  `bson:"actorId,omitempty" json:"actorId,omitempty"`
	DebateID   primitive.ObjectID  `bson:"debateId" json:"debateId"`
	ArgumentID *primitive.ObjectID `bson:"argumentId,omitempty" json:"argumentId,omitempty"`
	Metadata   map[string]any      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Read       bool                `bson:"read" json:"read"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
}
