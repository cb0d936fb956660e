package structs

// ReferenceInput is a citation as submitted; its type is derived from the URL.
type ReferenceInput struct {
	Title       string `json:"title" validate:"required,max=300"`
	URL         string `json:"url" validate:"omitempty,url"`
	Author      string `json:"author"`
	Publication string `json:"publication"`
	Notes       string `json:"notes"`
}

type ArgumentInput struct {
	Content    string           `json:"content" validate:"required"`
	References []ReferenceInput `json:"references" validate:"dive"`
}

type CreateDebateRequest struct {
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=5000"`
	Format           string          `json:"format" validate:"omitempty,oneof=ONE_ON_ONE PANEL"`
	MaxParticipants  int             `json:"maxParticipants" validate:"omitempty,min=2,max=10"`
	TurnsPerSide     int             `json:"turnsPerSide" validate:"omitempty,min=1,max=20"`
	TurnTimeLimit    *int            `json:"turnTimeLimit" validate:"omitempty,min=1,max=720"`
	MinReferences    int             `json:"minReferences" validate:"min=0,max=10"`
	Topics           []string        `json:"topics" validate:"required,min=1"`
	InitialArguments []ArgumentInput `json:"initialArguments" validate:"required,min=1,dive"`
}

type SubmitArgumentRequest struct {
	ArgumentInput
	RebuttalTo string `json:"rebuttalTo"`
	ResponseTo string `json:"responseTo"`
}

type ProposeDefinitionRequest struct {
	Term       string           `json:"term" validate:"required,max=100"`
	Definition string           `json:"definition" validate:"required,max=2000"`
	References []ReferenceInput `json:"references" validate:"dive"`
}

type DefinitionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACCEPTED CONTESTED"`
}

type VoteRequest struct {
	TargetID string `json:"targetId" binding:"required"`
	Support  *bool  `json:"support" binding:"required"`
}
