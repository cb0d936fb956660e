package services

import (
	"context"
	"testing"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/logger"
	"debatehub/models"
	"debatehub/structs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVoteService_Vote(t *testing.T) {
	ctx := context.Background()

	t.Run("same vote twice withdraws it", func(t *testing.T) {
		f := newFixture(t)
		created, _, _ := f.startedDebate(t, validCreateRequest())
		argumentID := created.Arguments[0].ID
		voter := primitive.NewObjectID()

		first, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, true, voter)
		require.NoError(t, err)
		assert.Equal(t, VoteCreated, first.Action)
		assert.Equal(t, VoteStateUpvoted, first.State)
		require.NotNil(t, first.Vote)

		second, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, true, voter)
		require.NoError(t, err)
		assert.Equal(t, VoteRemoved, second.Action)
		assert.Equal(t, VoteStateNone, second.State)
		assert.Nil(t, second.Vote)

		tally, err := f.votes.Tally(ctx, models.VoteTargetArgument, argumentID)
		require.NoError(t, err)
		assert.Equal(t, models.VoteTally{}, tally)
	})

	t.Run("opposite vote switches it", func(t *testing.T) {
		f := newFixture(t)
		created, _, _ := f.startedDebate(t, validCreateRequest())
		argumentID := created.Arguments[0].ID
		voter := primitive.NewObjectID()

		_, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, true, voter)
		require.NoError(t, err)
		res, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, false, voter)
		require.NoError(t, err)
		assert.Equal(t, VoteSwitched, res.Action)
		assert.Equal(t, VoteStateDownvoted, res.State)

		tally, err := f.votes.Tally(ctx, models.VoteTargetArgument, argumentID)
		require.NoError(t, err)
		assert.Equal(t, models.VoteTally{Support: 0, Oppose: 1}, tally)
		assert.Equal(t, int64(-1), tally.Net())
	})

	t.Run("author is notified of other users' votes", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, _ := f.startedDebate(t, validCreateRequest())
		argumentID := created.Arguments[0].ID

		_, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, true, primitive.NewObjectID())
		require.NoError(t, err)

		notes, err := f.store.ListNotifications(ctx, proposer, 10)
		require.NoError(t, err)
		require.NotEmpty(t, notes)
		latest := notes[0]
		assert.Equal(t, models.NotificationArgumentVote, latest.Type)
		require.NotNil(t, latest.ArgumentID)
		assert.Equal(t, argumentID, *latest.ArgumentID)
		assert.Equal(t, true, latest.Metadata["support"])
		assert.Contains(t, f.events.types(), debate.EventVoteCast)
	})

	t.Run("voting on your own argument is silent", func(t *testing.T) {
		f := newFixture(t)
		proposer := primitive.NewObjectID()
		created, err := f.debates.CreateDebate(ctx, proposer, validCreateRequest())
		require.NoError(t, err)

		_, err = f.votes.Vote(ctx, models.VoteTargetArgument, created.Arguments[0].ID, true, proposer)
		require.NoError(t, err)

		notes, err := f.store.ListNotifications(ctx, proposer, 10)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("a failing notifier does not fail the vote", func(t *testing.T) {
		store := db.NewMemoryStore()
		debates := NewDebateService(store, nil, failingNotifier{}, nil, nil, logger.Discard())
		votes := NewVoteService(store, failingNotifier{}, nil, nil, logger.Discard())

		created, err := debates.CreateDebate(ctx, primitive.NewObjectID(), validCreateRequest())
		require.NoError(t, err)

		res, err := votes.Vote(ctx, models.VoteTargetArgument, created.Arguments[0].ID, false, primitive.NewObjectID())
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("definitions", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, opposer := f.startedDebate(t, validCreateRequest())
		def, err := f.definitions.ProposeDefinition(ctx, created.ID, proposer, &structs.ProposeDefinitionRequest{
			Term:       "city centre",
			Definition: "The area inside the inner ring road.",
		})
		require.NoError(t, err)

		res, err := f.votes.Vote(ctx, models.VoteTargetDefinition, def.ID, true, opposer)
		require.NoError(t, err)
		assert.Equal(t, VoteStateUpvoted, res.State)

		notes, err := f.store.ListNotifications(ctx, proposer, 10)
		require.NoError(t, err)
		require.NotEmpty(t, notes)
		assert.Equal(t, models.NotificationDefinitionVote, notes[0].Type)

		tally, err := f.votes.Tally(ctx, models.VoteTargetDefinition, def.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tally.Support)
	})

	t.Run("missing targets", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.votes.Vote(ctx, models.VoteTargetArgument, primitive.NewObjectID(), true, primitive.NewObjectID())
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "argument not found", nf.Error())

		_, err = f.votes.Vote(ctx, models.VoteTargetDefinition, primitive.NewObjectID(), true, primitive.NewObjectID())
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "definition not found", nf.Error())

		_, err = f.votes.Tally(ctx, models.VoteTargetArgument, primitive.NewObjectID())
		require.ErrorAs(t, err, &nf)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.votes.Vote(ctx, models.VoteTargetKind("comment"), primitive.NewObjectID(), true, primitive.NewObjectID())
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

// racingStore makes the first FindVote miss so InsertVote hits the unique key, as when two
// requests by the same user arrive together.
type racingStore struct {
	*db.MemoryStore
	missed bool
}

func (s *racingStore) FindVote(ctx context.Context, kind models.VoteTargetKind, targetID, userID primitive.ObjectID) (*models.Vote, error) {
	if !s.missed {
		s.missed = true
		return nil, db.ErrNotFound
	}
	return s.MemoryStore.FindVote(ctx, kind, targetID, userID)
}

func TestVoteService_Vote_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, _, _ := f.startedDebate(t, validCreateRequest())
	argumentID := created.Arguments[0].ID
	voter := primitive.NewObjectID()

	_, err := f.votes.Vote(ctx, models.VoteTargetArgument, argumentID, true, voter)
	require.NoError(t, err)

	store := &racingStore{MemoryStore: f.store}
	votes := NewVoteService(store, nil, nil, nil, logger.Discard())
	res, err := votes.Vote(ctx, models.VoteTargetArgument, argumentID, false, voter)
	require.NoError(t, err)
	assert.Equal(t, VoteSwitched, res.Action)

	tally, err := f.store.TallyVotes(ctx, models.VoteTargetArgument, argumentID)
	require.NoError(t, err)
	assert.Equal(t, models.VoteTally{Oppose: 1}, tally)
}
