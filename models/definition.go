package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DefinitionStatus string

const (
	DefinitionProposed   DefinitionStatus = "PROPOSED"
	DefinitionAccepted   DefinitionStatus = "ACCEPTED"
	DefinitionContested  DefinitionStatus = "CONTESTED"
	DefinitionDeprecated DefinitionStatus = "DEPRECATED"
)

// Definition is a proposed meaning for a term used in a debate.
// SupersededBy points at the revision that replaced it.
type Definition struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	DebateID     primitive.ObjectID  `bson:"debateId" json:"debateId"`
	Term         string              `bson:"term" json:"term"`
	Definition   string              `bson:"definition" json:"definition"`
	Status       DefinitionStatus    `bson:"status" json:"status"`
	ProposerID   primitive.ObjectID  `bson:"proposerId" json:"proposerId"`
	SupersededBy *primitive.ObjectID `bson:"supersededBy,omitempty" json:"supersededBy,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}
