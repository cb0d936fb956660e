package services

import (
	"context"
	"testing"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/models"
	"debatehub/structs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCalculateProgress(t *testing.T) {
	d := &models.Debate{TurnsPerSide: 3, MaxParticipants: 2}

	t.Run("partial", func(t *testing.T) {
		p := CalculateProgress(d, 2)
		assert.Equal(t, 2, p.CurrentTurn)
		assert.Equal(t, 6, p.TotalPossibleTurns)
		assert.InDelta(t, 33.33, p.ProgressPercent, 0.001)
	})

	t.Run("no arguments", func(t *testing.T) {
		p := CalculateProgress(d, 0)
		assert.Equal(t, 0.0, p.ProgressPercent)
	})

	t.Run("zero total turns", func(t *testing.T) {
		p := CalculateProgress(&models.Debate{}, 3)
		assert.Equal(t, 0, p.TotalPossibleTurns)
		assert.Equal(t, 0.0, p.ProgressPercent)
	})
}

func TestLifecycleService_ComputeProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, _, opposer := f.startedDebate(t, validCreateRequest())

	p, err := f.lifecycle.ComputeProgress(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentTurn)
	assert.InDelta(t, 16.67, p.ProgressPercent, 0.001)

	_, err = f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Banning cars hurts small shops downtown."))
	require.NoError(t, err)

	p, err = f.lifecycle.ComputeProgress(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentTurn)
	assert.InDelta(t, 33.33, p.ProgressPercent, 0.001)

	t.Run("unknown debate", func(t *testing.T) {
		_, err := f.lifecycle.ComputeProgress(ctx, primitive.NewObjectID())
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "debate not found", nf.Error())
	})
}

func timedRequest(hours int) *structs.CreateDebateRequest {
	req := validCreateRequest()
	req.TurnTimeLimit = intPtr(hours)
	return req
}

func TestLifecycleService_SweepTimeouts(t *testing.T) {
	ctx := context.Background()

	t.Run("forfeits the waiting participant", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, opposer := f.startedDebate(t, timedRequest(24))

		f.clock.Advance(25 * time.Hour)
		report, err := f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Checked)
		assert.Equal(t, 1, report.Forfeited)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusCompleted, d.Status)
		require.NotNil(t, d.CompletedAt)

		participants, err := f.store.ListParticipants(ctx, created.ID)
		require.NoError(t, err)
		for _, p := range participants {
			if p.UserID == opposer {
				assert.Equal(t, models.ParticipantForfeited, p.Status)
			} else {
				assert.Equal(t, models.ParticipantActive, p.Status)
			}
		}

		wc, err := f.store.GetWinCondition(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WinByForfeit, wc.Type)
		assert.Equal(t, models.RoleProposer, wc.WinningRole)
		assert.Equal(t, "User "+opposer.Hex()+" forfeited by not responding within 24 hours", wc.Description)
		assert.Equal(t, 1, f.store.CountWinConditions())

		loserNotes, err := f.store.ListNotifications(ctx, opposer, 10)
		require.NoError(t, err)
		require.Len(t, loserNotes, 1)
		assert.Equal(t, models.NotificationDebateForfeit, loserNotes[0].Type)

		winnerNotes, err := f.store.ListNotifications(ctx, proposer, 10)
		require.NoError(t, err)
		var forfeitNotes int
		for _, n := range winnerNotes {
			if n.Type == models.NotificationDebateForfeit {
				forfeitNotes++
			}
		}
		assert.Equal(t, 1, forfeitNotes)
		assert.Contains(t, f.events.types(), debate.EventDebateForfeited)

		t.Run("running again changes nothing", func(t *testing.T) {
			again, err := f.lifecycle.SweepTimeouts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, again.Checked)
			assert.Equal(t, 0, again.Forfeited)
			assert.Equal(t, 1, f.store.CountWinConditions())
		})
	})

	t.Run("uses the display name when the user is known", func(t *testing.T) {
		f := newFixture(t)
		opponent := &models.User{Email: "sam@example.com", DisplayName: "Sam", Role: models.UserRoleUser}
		require.NoError(t, f.store.InsertUser(ctx, opponent))

		created, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), timedRequest(2))
		require.NoError(t, err)
		_, err = f.debates.JoinDebate(ctx, created.ID, opponent.ID)
		require.NoError(t, err)

		f.clock.Advance(3 * time.Hour)
		_, err = f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)

		wc, err := f.store.GetWinCondition(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sam forfeited by not responding within 2 hours", wc.Description)
	})

	t.Run("not yet due", func(t *testing.T) {
		f := newFixture(t)
		created, _, _ := f.startedDebate(t, timedRequest(24))

		f.clock.Advance(24 * time.Hour)
		report, err := f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.NotDue)
		assert.Equal(t, 0, report.Forfeited)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusInProgress, d.Status)
	})

	t.Run("deadline restarts with each argument", func(t *testing.T) {
		f := newFixture(t)
		created, proposer, opposer := f.startedDebate(t, timedRequest(24))

		f.clock.Advance(20 * time.Hour)
		_, err := f.debates.SubmitArgument(ctx, created.ID, opposer, argumentRequest("Shops depend on drivers from the suburbs."))
		require.NoError(t, err)

		f.clock.Advance(20 * time.Hour)
		report, err := f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.NotDue)

		f.clock.Advance(5 * time.Hour)
		report, err = f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Forfeited)

		wc, err := f.store.GetWinCondition(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOpposer, wc.WinningRole)
		assert.Contains(t, wc.Description, proposer.Hex())
	})

	t.Run("untimed and open debates are ignored", func(t *testing.T) {
		f := newFixture(t)
		f.startedDebate(t, validCreateRequest())
		_, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), timedRequest(1))
		require.NoError(t, err)

		f.clock.Advance(48 * time.Hour)
		report, err := f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Checked)
	})

	t.Run("several waiting participants are left alone", func(t *testing.T) {
		f := newFixture(t)
		req := timedRequest(24)
		req.Format = string(models.FormatPanel)
		req.MaxParticipants = 4
		created, err := f.debates.CreateDebate(ctx, primitive.NewObjectID(), req)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := f.debates.JoinDebate(ctx, created.ID, primitive.NewObjectID())
			require.NoError(t, err)
		}

		f.clock.Advance(25 * time.Hour)
		report, err := f.lifecycle.SweepTimeouts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Ambiguous)
		assert.Equal(t, 0, report.Forfeited)

		d, err := f.store.GetDebate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DebateStatusInProgress, d.Status)
		assert.Equal(t, 0, f.store.CountWinConditions())
	})
}

// versionBumpingStore bumps the debate version before the sweep writes, the way a turn
// submission landing in between would.
type versionBumpingStore struct {
	*db.MemoryStore
	bumped bool
}

func (s *versionBumpingStore) UpsertWinCondition(ctx context.Context, wc *models.WinCondition) error {
	if !s.bumped {
		s.bumped = true
		d, err := s.MemoryStore.GetDebate(ctx, wc.DebateID)
		if err != nil {
			return err
		}
		if err := s.MemoryStore.UpdateDebate(ctx, d); err != nil {
			return err
		}
	}
	return s.MemoryStore.UpsertWinCondition(ctx, wc)
}

func TestLifecycleService_SweepTimeouts_ConcurrentChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _, _ := f.startedDebate(t, timedRequest(24))

	store := &versionBumpingStore{MemoryStore: f.store}
	lifecycle := NewLifecycleService(store, StoreNotifier{Store: store}, f.events, nil, f.lifecycle.log)
	lifecycle.now = f.clock.Now

	f.clock.Advance(25 * time.Hour)
	report, err := lifecycle.SweepTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Forfeited)

	d, err := f.store.GetDebate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebateStatusInProgress, d.Status)
	assert.Equal(t, 0, f.store.CountWinConditions())
}
