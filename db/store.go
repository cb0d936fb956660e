package db

import (
	"context"
	"errors"

	"debatehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for duplicate keys and stale debate versions.
	ErrConflict = errors.New("conflict")
)

// Collection names shared by the Mongo store, its indexes and the casbin adapter setup.
const (
	DebatesCollection       = "debates"
	TopicsCollection        = "debate_topics"
	ParticipantsCollection  = "debate_participants"
	ArgumentsCollection     = "arguments"
	ReferencesCollection    = "references"
	DefinitionsCollection   = "definitions"
	ArgumentVotesCollection = "argument_votes"
	DefVotesCollection      = "definition_votes"
	WinConditionsCollection = "win_conditions"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
)

// Store is the persistence boundary of the core. Calls made with the context handed to a
// WithTransaction callback join that transaction.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	InsertDebate(ctx context.Context, debate *models.Debate) error
	GetDebate(ctx context.Context, id primitive.ObjectID) (*models.Debate, error)
	// UpdateDebate writes debate only if the stored version still equals debate.Version,
	// then bumps debate.Version. A stale version yields ErrConflict.
	UpdateDebate(ctx context.Context, debate *models.Debate) error
	ListTimedDebatesInProgress(ctx context.Context) ([]models.Debate, error)

	InsertTopics(ctx context.Context, topics []models.DebateTopic) error
	ListTopics(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateTopic, error)

	InsertParticipant(ctx context.Context, participant *models.DebateParticipant) error
	ListParticipants(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateParticipant, error)
	UpdateParticipantStatus(ctx context.Context, id primitive.ObjectID, status models.ParticipantStatus) error

	InsertArgument(ctx context.Context, argument *models.Argument) error
	GetArgument(ctx context.Context, id primitive.ObjectID) (*models.Argument, error)
	ListArguments(ctx context.Context, debateID primitive.ObjectID) ([]models.Argument, error)
	LatestArgument(ctx context.Context, debateID primitive.ObjectID) (*models.Argument, error)

	InsertReferences(ctx context.Context, refs []models.Reference) error
	ListArgumentReferences(ctx context.Context, argumentIDs []primitive.ObjectID) ([]models.Reference, error)
	ListDefinitionReferences(ctx context.Context, definitionIDs []primitive.ObjectID) ([]models.Reference, error)

	InsertDefinition(ctx context.Context, def *models.Definition) error
	GetDefinition(ctx context.Context, id primitive.ObjectID) (*models.Definition, error)
	UpdateDefinition(ctx context.Context, def *models.Definition) error
	ListDefinitions(ctx context.Context, debateID primitive.ObjectID) ([]models.Definition, error)

	FindVote(ctx context.Context, kind models.VoteTargetKind, targetID, userID primitive.ObjectID) (*models.Vote, error)
	// InsertVote yields ErrConflict when the user already has a vote on the target.
	InsertVote(ctx context.Context, vote *models.Vote) error
	UpdateVote(ctx context.Context, vote *models.Vote) error
	DeleteVote(ctx context.Context, kind models.VoteTargetKind, id primitive.ObjectID) error
	TallyVotes(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID) (models.VoteTally, error)

	UpsertWinCondition(ctx context.Context, wc *models.WinCondition) error
	GetWinCondition(ctx context.Context, debateID primitive.ObjectID) (*models.WinCondition, error)

	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error)

	InsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

func voteCollection(kind models.VoteTargetKind) string {
	if kind == models.VoteTargetDefinition {
		return DefVotesCollection
	}
	return ArgumentVotesCollection
}
