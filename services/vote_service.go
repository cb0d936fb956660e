package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/metrics"
	"debatehub/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VoteState is where a (target, user) pair ends up after a vote.
type VoteState string

const (
	VoteStateNone      VoteState = "NONE"
	VoteStateUpvoted   VoteState = "UPVOTED"
	VoteStateDownvoted VoteState = "DOWNVOTED"
)

// VoteAction is the transition a vote call performed.
type VoteAction string

const (
	VoteCreated  VoteAction = "created"
	VoteSwitched VoteAction = "switched"
	VoteRemoved  VoteAction = "removed"
)

// maxVoteAttempts bounds retries when a concurrent vote by the same user wins the race.
const maxVoteAttempts = 3

type VoteResult struct {
	Success bool         `json:"success"`
	Vote    *models.Vote `json:"vote"`
	State   VoteState    `json:"state"`
	Action  VoteAction   `json:"action"`
}

// VoteTarget is one kind of votable item. T is whatever the target needs to describe
// itself in a notification.
type VoteTarget[T any] interface {
	Kind() models.VoteTargetKind
	LoadTarget(ctx context.Context, id primitive.ObjectID) (T, error)
	AuthorIDOf(item T) primitive.ObjectID
	DebateIDOf(item T) primitive.ObjectID
	NotificationFor(item T, actorID primitive.ObjectID, action VoteAction, support bool) *models.Notification
}

type votedArgument struct {
	argument *models.Argument
	debate   *models.Debate
}

// ArgumentTarget makes arguments votable
type ArgumentTarget struct {
	store db.Store
}

func (ArgumentTarget) Kind() models.VoteTargetKind { return models.VoteTargetArgument }

func (t ArgumentTarget) LoadTarget(ctx context.Context, id primitive.ObjectID) (votedArgument, error) {
	argument, err := t.store.GetArgument(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return votedArgument{}, notFound("argument")
	}
	if err != nil {
		return votedArgument{}, fmt.Errorf("failed to load argument: %w", err)
	}
	d, err := t.store.GetDebate(ctx, argument.DebateID)
	if err != nil {
		return votedArgument{}, fmt.Errorf("failed to load debate of argument: %w", err)
	}
	return votedArgument{argument: argument, debate: d}, nil
}

func (ArgumentTarget) AuthorIDOf(item votedArgument) primitive.ObjectID {
	return item.argument.AuthorID
}

func (ArgumentTarget) DebateIDOf(item votedArgument) primitive.ObjectID {
	return item.debate.ID
}

func (ArgumentTarget) NotificationFor(item votedArgument, actorID primitive.ObjectID, action VoteAction, support bool) *models.Notification {
	argumentID := item.argument.ID
	return &models.Notification{
		Type:       models.NotificationArgumentVote,
		Title:      "New vote on your argument",
		Message:    fmt.Sprintf("Someone %s your argument in \"%s\"", voteVerb(action, support), item.debate.Title),
		Link:       fmt.Sprintf("/debates/%s#argument-%s", item.debate.ID.Hex(), argumentID.Hex()),
		UserID:     item.argument.AuthorID,
		ActorID:    actorID,
		DebateID:   item.debate.ID,
		ArgumentID: &argumentID,
		Metadata:   map[string]any{"support": support, "action": string(action)},
	}
}

type votedDefinition struct {
	definition *models.Definition
	debate     *models.Debate
}

// DefinitionTarget makes definitions votable
type DefinitionTarget struct {
	store db.Store
}

func (DefinitionTarget) Kind() models.VoteTargetKind { return models.VoteTargetDefinition }

func (t DefinitionTarget) LoadTarget(ctx context.Context, id primitive.ObjectID) (votedDefinition, error) {
	def, err := t.store.GetDefinition(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return votedDefinition{}, notFound("definition")
	}
	if err != nil {
		return votedDefinition{}, fmt.Errorf("failed to load definition: %w", err)
	}
	d, err := t.store.GetDebate(ctx, def.DebateID)
	if err != nil {
		return votedDefinition{}, fmt.Errorf("failed to load debate of definition: %w", err)
	}
	return votedDefinition{definition: def, debate: d}, nil
}

func (DefinitionTarget) AuthorIDOf(item votedDefinition) primitive.ObjectID {
	return item.definition.ProposerID
}

func (DefinitionTarget) DebateIDOf(item votedDefinition) primitive.ObjectID {
	return item.debate.ID
}

func (DefinitionTarget) NotificationFor(item votedDefinition, actorID primitive.ObjectID, action VoteAction, support bool) *models.Notification {
	return &models.Notification{
		Type:     models.NotificationDefinitionVote,
		Title:    "New vote on your definition",
		Message:  fmt.Sprintf("Someone %s your definition of \"%s\"", voteVerb(action, support), item.definition.Term),
		Link:     fmt.Sprintf("/debates/%s#definition-%s", item.debate.ID.Hex(), item.definition.ID.Hex()),
		UserID:   item.definition.ProposerID,
		ActorID:  actorID,
		DebateID: item.debate.ID,
		Metadata: map[string]any{"support": support, "action": string(action), "definitionId": item.definition.ID.Hex()},
	}
}

func voteVerb(action VoteAction, support bool) string {
	switch {
	case action == VoteRemoved:
		return "withdrew their vote on"
	case support:
		return "upvoted"
	default:
		return "downvoted"
	}
}

// VoteService toggles votes on arguments and definitions
type VoteService struct {
	store       db.Store
	arguments   ArgumentTarget
	definitions DefinitionTarget
	effects     sideEffects
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewVoteService(store db.Store, notifier Notifier, events EventPublisher, m *metrics.Metrics, log logrus.FieldLogger) *VoteService {
	return &VoteService{
		store:       store,
		arguments:   ArgumentTarget{store: store},
		definitions: DefinitionTarget{store: store},
		effects:     sideEffects{notifier: notifier, events: events, log: log.WithField("component", "votes")},
		metrics:     m,
		now:         time.Now,
	}
}

// Vote creates, switches or withdraws userID's vote on a target.
func (s *VoteService) Vote(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID, support bool, userID primitive.ObjectID) (*VoteResult, error) {
	switch kind {
	case models.VoteTargetArgument:
		return castVote[votedArgument](ctx, s, s.arguments, targetID, support, userID)
	case models.VoteTargetDefinition:
		return castVote[votedDefinition](ctx, s, s.definitions, targetID, support, userID)
	}
	return nil, validationf("Unknown vote target %q", kind)
}

// Tally counts the votes on a target.
func (s *VoteService) Tally(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID) (models.VoteTally, error) {
	var err error
	switch kind {
	case models.VoteTargetArgument:
		_, err = s.arguments.LoadTarget(ctx, targetID)
	case models.VoteTargetDefinition:
		_, err = s.definitions.LoadTarget(ctx, targetID)
	default:
		return models.VoteTally{}, validationf("Unknown vote target %q", kind)
	}
	if err != nil {
		return models.VoteTally{}, err
	}
	return s.store.TallyVotes(ctx, kind, targetID)
}

func castVote[T any](ctx context.Context, s *VoteService, target VoteTarget[T], targetID primitive.ObjectID, support bool, userID primitive.ObjectID) (*VoteResult, error) {
	item, err := target.LoadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var result *VoteResult
	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		result, err = s.applyVote(ctx, target.Kind(), targetID, support, userID)
		// a concurrent vote by the same user created or removed the row; re-read and retry
		if !errors.Is(err, db.ErrConflict) && !errors.Is(err, db.ErrNotFound) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	s.metrics.VoteRecorded(string(target.Kind()), string(result.Action))

	if target.AuthorIDOf(item) != userID {
		s.effects.notify(ctx, target.NotificationFor(item, userID, result.Action, support))
	}

	if tally, err := s.store.TallyVotes(ctx, target.Kind(), targetID); err == nil {
		s.effects.publish(ctx, target.DebateIDOf(item), debate.EventVoteCast, debate.VotePayload{
			TargetKind: string(target.Kind()),
			TargetID:   targetID.Hex(),
			Support:    tally.Support,
			Oppose:     tally.Oppose,
		})
	}
	return result, nil
}

func (s *VoteService) applyVote(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID, support bool, userID primitive.ObjectID) (*VoteResult, error) {
	now := s.now()
	existing, err := s.store.FindVote(ctx, kind, targetID, userID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		vote := &models.Vote{
			TargetKind: kind,
			TargetID:   targetID,
			UserID:     userID,
			Support:    support,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.InsertVote(ctx, vote); err != nil {
			return nil, err
		}
		return &VoteResult{Success: true, Vote: vote, State: stateOf(vote), Action: VoteCreated}, nil

	case err != nil:
		return nil, err

	case existing.Support == support:
		if err := s.store.DeleteVote(ctx, kind, existing.ID); err != nil {
			return nil, err
		}
		return &VoteResult{Success: true, Vote: nil, State: VoteStateNone, Action: VoteRemoved}, nil

	default:
		existing.Support = support
		existing.UpdatedAt = now
		if err := s.store.UpdateVote(ctx, existing); err != nil {
			return nil, err
		}
		return &VoteResult{Success: true, Vote: existing, State: stateOf(existing), Action: VoteSwitched}, nil
	}
}

func stateOf(vote *models.Vote) VoteState {
	if vote == nil {
		return VoteStateNone
	}
	if vote.Support {
		return VoteStateUpvoted
	}
	return VoteStateDownvoted
}
