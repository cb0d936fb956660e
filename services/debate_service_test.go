package services

import (
	"context"
	"testing"

	"debatehub/internal/debate"
	"debatehub/models"
	"debatehub/structs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDebateService_CreateDebate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		creator := primitive.NewObjectID()

		detail, err := f.debates.CreateDebate(ctx, creator, validCreateRequest())
		require.NoError(t, err)

		assert.Equal(t, models.DebateStatusOpen, detail.Status)
		assert.Equal(t, models.FormatOneOnOne, detail.Format)
		assert.Equal(t, 2, detail.MaxParticipants)
		assert.Equal(t, 3, detail.TurnsPerSide)
		assert.Equal(t, 2, detail.CurrentTurnNumber)
		assert.Equal(t, models.RoleOpposer, detail.CurrentTurnSide)
		assert.ElementsMatch(t, []string{"environment", "politics"}, detail.Topics)

		require.Len(t, detail.Participants, 1)
		assert.Equal(t, creator, detail.Participants[0].UserID)
		assert.Equal(t, models.RoleProposer, detail.Participants[0].Role)
		assert.Equal(t, models.ParticipantActive, detail.Participants[0].Status)

		require.Len(t, detail.Arguments, 1)
		assert.Equal(t, 1, detail.Arguments[0].TurnNumber)
		require.Len(t, detail.Arguments[0].References, 1)
		assert.Equal(t, models.ReferenceAcademicPaper, detail.Arguments[0].References[0].Type)
		assert.Equal(t, 1, detail.Progress.CurrentTurn)
		assert.Equal(t, 1, f.store.CountDebates())
	})

	t.Run("duplicate topics are stored once", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Topics = []string{"science", "science", "ethics"}

		detail, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"science", "ethics"}, detail.Topics)
	})

	t.Run("invalid topic writes nothing", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Topics = []string{"politics", "invalid-topic", "gardening"}

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "invalid-topic")
		assert.Contains(t, verr.Message, "gardening")
		assert.Equal(t, 0, f.store.CountDebates())
	})

	t.Run("short argument writes nothing", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.InitialArguments = append(req.InitialArguments, structs.ArgumentInput{Content: "<p><b>Too</b>   short</p>"})

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Argument 2 must contain at least 10 characters of text", verr.Message)
		assert.Equal(t, 0, f.store.CountDebates())
	})

	t.Run("inline tags do not pad short content", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.InitialArguments = []structs.ArgumentInput{{Content: "<b>12345</b>6789"}}

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Argument 1 must contain at least 10 characters of text", verr.Message)
		assert.Equal(t, 0, f.store.CountDebates())
	})

	t.Run("missing title", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Title = ""

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "The title field is required", verr.Message)
	})

	t.Run("bad reference url", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.InitialArguments[0].References[0].URL = "not a url"

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "must be a valid URL")
	})

	t.Run("one on one must have two participants", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.MaxParticipants = 4

		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("panel defaults", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Format = string(models.FormatPanel)

		detail, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		require.NoError(t, err)
		assert.Equal(t, 4, detail.MaxParticipants)
		assert.Equal(t, 12, detail.Progress.TotalPossibleTurns)
	})
}

func TestDebateService_GetDebate(t *testing.T) {
	f := newFixture(t)
	_, err := f.debates.GetDebate(context.Background(), primitive.NewObjectID())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "debate", nf.Entity)
}

func TestDebateService_JoinDebate(t *testing.T) {
	ctx := context.Background()

	t.Run("second participant starts the debate", func(t *testing.T) {
		f := newFixture(t)
		creator, joiner := primitive.NewObjectID(), primitive.NewObjectID()
		created, err := f.debates.CreateDebate(ctx, creator, validCreateRequest())
		require.NoError(t, err)

		p, err := f.debates.JoinDebate(ctx, created.ID, joiner)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOpposer, p.Role)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusInProgress, d.Status)
		require.NotNil(t, d.StartedAt)

		notes, err := f.store.ListNotifications(ctx, creator, 10)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationDebateJoined, notes[0].Type)
		assert.Contains(t, f.events.types(), debate.EventDebateJoined)

		t.Run("full debate is closed", func(t *testing.T) {
			_, err := f.debates.JoinDebate(ctx, created.ID, primitive.NewObjectID())
			assert.ErrorIs(t, err, ErrConflict)
		})
	})

	t.Run("creator cannot oppose themselves", func(t *testing.T) {
		f := newFixture(t)
		creator := primitive.NewObjectID()
		created, err := f.debates.CreateDebate(ctx, creator, validCreateRequest())
		require.NoError(t, err)

		_, err = f.debates.JoinDebate(ctx, created.ID, creator)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("joining twice", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Format = string(models.FormatPanel)
		created, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		require.NoError(t, err)

		joiner := primitive.NewObjectID()
		_, err = f.debates.JoinDebate(ctx, created.ID, joiner)
		require.NoError(t, err)
		_, err = f.debates.JoinDebate(ctx, created.ID, joiner)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("panel sides stay balanced", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.Format = string(models.FormatPanel)
		created, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		require.NoError(t, err)

		var roles []models.ParticipantRole
		for i := 0; i < 3; i++ {
			p, err := f.debates.JoinDebate(ctx, created.ID, primitive.NewObjectID())
			require.NoError(t, err)
			roles = append(roles, p.Role)
		}
		assert.Equal(t, []models.ParticipantRole{models.RoleOpposer, models.RoleOpposer, models.RoleProposer}, roles)
	})

	t.Run("unknown debate", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.debates.JoinDebate(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestDebateService_SubmitArgument(t *testing.T) {
	ctx := context.Background()

	t.Run("turn passes to the other side", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, opposer := f.startedDebate(t, validCreateRequest())

		arg, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Delivery vans still need access to the centre."))
		require.NoError(t, err)
		assert.Equal(t, 2, arg.TurnNumber)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, d.CurrentTurnNumber)
		assert.Equal(t, models.RoleProposer, d.CurrentTurnSide)

		notes, err := f.store.ListNotifications(ctx, proposer, 10)
		require.NoError(t, err)
		require.NotEmpty(t, notes)
		assert.Equal(t, models.NotificationTurnReady, notes[0].Type)
		assert.Contains(t, f.events.types(), debate.EventArgumentSubmitted)
	})

	t.Run("out of turn", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, _ := f.startedDebate(t, validCreateRequest())

		_, err := f.debates.SubmitArgument(ctx, created.ID, proposer, argumentRequest("Proposer tries to speak twice in a row."))
		require.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "not your turn")
	})

	t.Run("stale turn after the side moved on", func(t *testing.T) {
		f := newFixture(t)
		created, _, opposer := f.startedDebate(t, validCreateRequest())

		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("First response from the opposing side."))
		require.NoError(t, err)
		_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("A retried copy of the same response."))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("outsider", func(t *testing.T) {
		f := newFixture(t)
		created, _, _ := f.startedDebate(t, validCreateRequest())

		_, err := f.debates.SubmitArgument(ctx, created.ID, primitive.NewObjectID(), argumentRequest("I was never part of this debate."))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("debate not started", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), validCreateRequest())
		require.NoError(t, err)

		_, err = f.debates.SubmitArgument(ctx, created.ID, primitive.NewObjectID(), argumentRequest("Nobody has joined this debate yet."))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("too short", func(t *testing.T) {
		f := newFixture(t)
		created, _, opposer := f.startedDebate(t, validCreateRequest())

		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("<em>nope</em>"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("minimum references", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.MinReferences = 1
		created, _, opposer := f.startedDebate(t, req)

		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("An unsupported claim about traffic."))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "At least 1 reference(s) are required for this debate", verr.Message)

		withRef := argumentRequest("A supported claim about traffic.")
		withRef.References = []structs.ReferenceInput{{Title: "Traffic report", URL: "https://www.transport.gov/report"}}
		arg, err := f.debates.SubmitArgument(ctx, created.ID, opposer, withRef)
		require.NoError(t, err)
		require.Len(t, arg.References, 1)
		assert.Equal(t, models.ReferenceGovernmentDocument, arg.References[0].Type)
	})

	t.Run("rebuttal must target the same debate", func(t *testing.T) {
		f := newFixture(t)
		created, _, opposer := f.startedDebate(t, validCreateRequest())
		other, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), validCreateRequest())
		require.NoError(t, err)

		req := argumentRequest("This rebuts an argument from elsewhere.")
		req.RebuttalTo = other.Arguments[0].ID.Hex()
		_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		req.RebuttalTo = "zzz"
		_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, req)
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "The rebuttalTo field is not a valid id", verr.Message)

		req.RebuttalTo = created.Arguments[0].ID.Hex()
		arg, err := f.debates.SubmitArgument(ctx, created.ID, opposer, req)
		require.NoError(t, err)
		require.NotNil(t, arg.RebuttalTo)
		assert.Equal(t, created.Arguments[0].ID, *arg.RebuttalTo)
	})

	t.Run("last turn completes the debate on votes", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.TurnsPerSide = 1
		created, _, opposer := f.startedDebate(t, req)

		_, err := f.votes.Vote(ctx, models.VoteTargetArgument, created.Arguments[0].ID, true, primitive.NewObjectID())
		require.NoError(t, err)

		_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Closing statement for the opposition."))
		require.NoError(t, err)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusCompleted, d.Status)
		require.NotNil(t, d.CompletedAt)

		wc, err := f.store.GetWinCondition(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WinByTurnsExhausted, wc.Type)
		assert.Equal(t, models.RoleProposer, wc.WinningRole)
		assert.Contains(t, f.events.types(), debate.EventDebateCompleted)

		_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Too late, the debate is over."))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("tied votes leave no winner", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.TurnsPerSide = 1
		created, _, opposer := f.startedDebate(t, req)

		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Closing statement for the opposition."))
		require.NoError(t, err)

		wc, err := f.store.GetWinCondition(ctx, created.ID)
		require.NoError(t, err)
		assert.Empty(t, wc.WinningRole)
		assert.Equal(t, "All turns used; the vote was tied at +0", wc.Description)
	})
}

func TestDebateService_CancelDebate(t *testing.T) {
	ctx := context.Background()

	t.Run("creator", func(t *testing.T) {
		f := newFixture(t)
		creator := primitive.NewObjectID()
		created, err := f.debates.CreateDebate(ctx, creator, validCreateRequest())
		require.NoError(t, err)

		d, err := f.debates.CancelDebate(ctx, created.ID, Actor{UserID: creator, Role: models.UserRoleUser})
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusCancelled, d.Status)
		assert.NotNil(t, d.CompletedAt)
		assert.Contains(t, f.events.types(), debate.EventDebateCancelled)

		t.Run("twice", func(t *testing.T) {
			_, err := f.debates.CancelDebate(ctx, created.ID, Actor{UserID: creator, Role: models.UserRoleUser})
			assert.ErrorIs(t, err, ErrConflict)
		})
	})

	t.Run("other users need the permission", func(t *testing.T) {
		f := newFixture(t)
		created, _, _ := f.startedDebate(t, validCreateRequest())

		_, err := f.debates.CancelDebate(ctx, created.ID, Actor{UserID: primitive.NewObjectID(), Role: models.UserRoleUser})
		assert.ErrorIs(t, err, ErrForbidden)

		d, err := f.debates.CancelDebate(ctx, created.ID, Actor{UserID: primitive.NewObjectID(), Role: models.UserRoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusCancelled, d.Status)
	})

	t.Run("completed debates stay completed", func(t *testing.T) {
		f := newFixture(t)
		req := validCreateRequest()
		req.TurnsPerSide = 1
		created, proposer, opposer := f.startedDebate(t, req)
		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Closing statement for the opposition."))
		require.NoError(t, err)

		_, err = f.debates.CancelDebate(ctx, created.ID, Actor{UserID: proposer})
		assert.ErrorIs(t, err, ErrConflict)
	})
}
