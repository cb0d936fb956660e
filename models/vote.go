package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VoteTargetKind string

const (
	VoteTargetArgument   VoteTargetKind = "argument"
	VoteTargetDefinition VoteTargetKind = "definition"
)

// Vote is a user's support or opposition for an argument or a definition.
// There is at most one per (TargetKind, TargetID, UserID).
type Vote struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TargetKind VoteTargetKind     `bson:"targetKind" json:"targetKind"`
	TargetID   primitive.ObjectID `bson:"targetId" json:"targetId"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Support    bool               `bson:"support" json:"support"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// VoteTally counts the votes on one target
type VoteTally struct {
	Support int64 `json:"support"`
	Oppose  int64 `json:"oppose"`
}

// Net is support minus opposition.
func (t VoteTally) Net() int64 {
	return t.Support - t.Oppose
}
