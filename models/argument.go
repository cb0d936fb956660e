package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Argument is one submission made during a turn
type Argument struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	DebateID      primitive.ObjectID  `bson:"debateId" json:"debateId"`
	ParticipantID primitive.ObjectID  `bson:"participantId" json:"participantId"`
	AuthorID      primitive.ObjectID  `bson:"authorId" json:"authorId"`
	Content       string              `bson:"content" json:"content"`
	TurnNumber    int                 `bson:"turnNumber" json:"turnNumber"`
	RebuttalTo    *primitive.ObjectID `bson:"rebuttalTo,omitempty" json:"rebuttalTo,omitempty"`
	ResponseTo    *primitive.ObjectID `bson:"responseTo,omitempty" json:"responseTo,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}

type ReferenceType string

const (
	ReferenceAcademicPaper      ReferenceType = "ACADEMIC_PAPER"
	ReferenceVideo              ReferenceType = "VIDEO"
	ReferenceNewsArticle        ReferenceType = "NEWS_ARTICLE"
	ReferenceGovernmentDocument ReferenceType = "GOVERNMENT_DOCUMENT"
	ReferenceBook               ReferenceType = "BOOK"
	ReferenceWebsite            ReferenceType = "WEBSITE"
)

// Reference is a citation attached to an argument or a definition
type Reference struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ArgumentID   *primitive.ObjectID `bson:"argumentId,omitempty" json:"argumentId,omitempty"`
	DefinitionID *primitive.ObjectID `bson:"definitionId,omitempty" json:"definitionId,omitempty"`
	Type         ReferenceType       `bson:"type" json:"type"`
	Title        string              `bson:"title" json:"title"`
	URL          string              `bson:"url,omitempty" json:"url,omitempty"`
	Author       string              `bson:"author,omitempty" json:"author,omitempty"`
	Publication  string              `bson:"publication,omitempty" json:"publication,omitempty"`
	Notes        string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
}
