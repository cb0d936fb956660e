package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ParticipantRole string

const (
	RoleProposer ParticipantRole = "PROPOSER"
	RoleOpposer  ParticipantRole = "OPPOSER"
	RoleNeutral  ParticipantRole = "NEUTRAL"
)

// Opposite returns the other side of a two-sided debate. NEUTRAL has no opposite.
func (r ParticipantRole) Opposite() ParticipantRole {
	switch r {
	case RoleProposer:
		return RoleOpposer
	case RoleOpposer:
		return RoleProposer
	}
	return ""
}

type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "ACTIVE"
	ParticipantForfeited ParticipantStatus = "FORFEITED"
)

// DebateParticipant links a user to a debate on one side
type DebateParticipant struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DebateID primitive.ObjectID `bson:"debateId" json:"debateId"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	Role     ParticipantRole    `bson:"role" json:"role"`
	Status   ParticipantStatus  `bson:"status" json:"status"`
	JoinedAt time.Time          `bson:"joinedAt" json:"joinedAt"`
}
