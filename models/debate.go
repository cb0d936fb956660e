package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DebateStatus string

const (
	DebateStatusDraft      DebateStatus = "DRAFT"
	DebateStatusOpen       DebateStatus = "OPEN"
	DebateStatusInProgress DebateStatus = "IN_PROGRESS"
	DebateStatusCompleted  DebateStatus = "COMPLETED"
	DebateStatusCancelled  DebateStatus = "CANCELLED"
)

type DebateFormat string

const (
	FormatOneOnOne DebateFormat = "ONE_ON_ONE"
	FormatPanel    DebateFormat = "PANEL"
)

// Debate defines a single debate record
type Debate struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title             string             `bson:"title" json:"title"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Format            DebateFormat       `bson:"format" json:"format"`
	Status            DebateStatus       `bson:"status" json:"status"`
	MaxParticipants   int                `bson:"maxParticipants" json:"maxParticipants"`
	TurnsPerSide      int                `bson:"turnsPerSide" json:"turnsPerSide"`
	TurnTimeLimit     *int               `bson:"turnTimeLimit" json:"turnTimeLimit"` // hours, nil = unlimited
	MinReferences     int                `bson:"minReferences" json:"minReferences"`
	CurrentTurnNumber int                `bson:"currentTurnNumber" json:"currentTurnNumber"`
	CurrentTurnSide   ParticipantRole    `bson:"currentTurnSide" json:"currentTurnSide"`
	CreatorID         primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	Version           int64              `bson:"version" json:"version"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	StartedAt         *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// IsTerminal reports whether no further status change is allowed.
func (s DebateStatus) IsTerminal() bool {
	return s == DebateStatusCompleted || s == DebateStatusCancelled
}

var statusRank = map[DebateStatus]int{
	DebateStatusDraft:      0,
	DebateStatusOpen:       1,
	DebateStatusInProgress: 2,
	DebateStatusCompleted:  3,
}

// CanTransition enforces the monotonic lifecycle: statuses only move forward and any
// non-terminal debate may be cancelled.
func CanTransition(from, to DebateStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == DebateStatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// TotalTurns is the number of turns a debate runs for when nobody forfeits.
func (d *Debate) TotalTurns() int {
	return d.TurnsPerSide * d.MaxParticipants
}

// DebateTopic tags a debate with one entry of AllowedTopics
type DebateTopic struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DebateID primitive.ObjectID `bson:"debateId" json:"debateId"`
	Topic    string             `bson:"topic" json:"topic"`
}

// WinConditionType describes how a debate was decided
type WinConditionType string

const (
	WinByForfeit        WinConditionType = "FORFEIT"
	WinByTurnsExhausted WinConditionType = "TURNS_EXHAUSTED"
)

// WinCondition is stored once per debate when it resolves
type WinCondition struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DebateID    primitive.ObjectID `bson:"debateId" json:"debateId"`
	Type        WinConditionType   `bson:"type" json:"type"`
	WinningRole ParticipantRole    `bson:"winningRole,omitempty" json:"winningRole,omitempty"`
	DecidedAt   time.Time          `bson:"decidedAt" json:"decidedAt"`
	Description string             `bson:"description" json:"description"`
}
