package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/metrics"
	"debatehub/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Progress summarises how far a debate has run
type Progress struct {
	CurrentTurn        int     `json:"currentTurn"`
	ProgressPercent    float64 `json:"progressPercent"`
	TotalPossibleTurns int     `json:"totalPossibleTurns"`
}

// CalculateProgress derives progress from the highest turn number submitted so far.
func CalculateProgress(d *models.Debate, maxTurn int) Progress {
	total := d.TotalTurns()
	p := Progress{CurrentTurn: maxTurn, TotalPossibleTurns: total}
	if total > 0 {
		p.ProgressPercent = math.Round(float64(maxTurn)/float64(total)*10000) / 100
	}
	return p
}

func maxTurnNumber(arguments []models.Argument) int {
	maxTurn := 0
	for _, a := range arguments {
		if a.TurnNumber > maxTurn {
			maxTurn = a.TurnNumber
		}
	}
	return maxTurn
}

// SweepReport counts what one timeout sweep did
type SweepReport struct {
	Checked   int `json:"checked"`
	Forfeited int `json:"forfeited"`
	NotDue    int `json:"notDue"`
	Skipped   int `json:"skipped"`
	Ambiguous int `json:"ambiguous"`
	Failed    int `json:"failed"`
}

type sweepOutcome int

const (
	outcomeNotDue sweepOutcome = iota
	outcomeSkipped
	outcomeAmbiguous
	outcomeForfeited
)

type forfeiture struct {
	debate       *models.Debate
	loser        models.DebateParticipant
	opponents    []models.DebateParticipant
	winCondition *models.WinCondition
}

// LifecycleService computes progress and forfeits participants who let their turn expire.
// It holds no timer; callers decide when to sweep.
type LifecycleService struct {
	store   db.Store
	effects sideEffects
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewLifecycleService(store db.Store, notifier Notifier, events EventPublisher, m *metrics.Metrics, log logrus.FieldLogger) *LifecycleService {
	log = log.WithField("component", "lifecycle")
	return &LifecycleService{
		store:   store,
		effects: sideEffects{notifier: notifier, events: events, log: log},
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// ComputeProgress loads a debate's arguments and reports its progress.
func (s *LifecycleService) ComputeProgress(ctx context.Context, debateID primitive.ObjectID) (Progress, error) {
	d, err := s.store.GetDebate(ctx, debateID)
	if errors.Is(err, db.ErrNotFound) {
		return Progress{}, notFound("debate")
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to load debate: %w", err)
	}
	arguments, err := s.store.ListArguments(ctx, debateID)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to load arguments: %w", err)
	}
	return CalculateProgress(d, maxTurnNumber(arguments)), nil
}

// SweepTimeouts forfeits the waiting participant of every in-progress debate whose turn
// time limit has passed since the last argument. Completed debates drop out of the
// status filter, so running it again is a no-op for them.
func (s *LifecycleService) SweepTimeouts(ctx context.Context) (*SweepReport, error) {
	debates, err := s.store.ListTimedDebatesInProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates in progress: %w", err)
	}

	now := s.now()
	report := &SweepReport{}
	for _, d := range debates {
		if ctx.Err() != nil {
			break
		}
		report.Checked++

		// once started, a debate's resolution is not interrupted by the caller going away
		outcome, err := s.resolveTimeout(context.WithoutCancel(ctx), d.ID, now)
		entry := s.log.WithField("debate_id", d.ID.Hex())
		switch {
		case errors.Is(err, db.ErrConflict):
			// a turn submission or another sweep got there first
			entry.Info("debate changed during timeout check, skipping")
			report.Skipped++
		case err != nil:
			entry.WithError(err).Error("failed to resolve debate timeout")
			report.Failed++
		case outcome == outcomeForfeited:
			report.Forfeited++
		case outcome == outcomeAmbiguous:
			report.Ambiguous++
		case outcome == outcomeSkipped:
			report.Skipped++
		default:
			report.NotDue++
		}
	}

	s.metrics.SweepRan(report.Forfeited, report.Ambiguous)
	s.log.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"forfeited": report.Forfeited,
		"ambiguous": report.Ambiguous,
		"failed":    report.Failed,
	}).Info("timeout sweep finished")
	return report, nil
}

func (s *LifecycleService) resolveTimeout(ctx context.Context, debateID primitive.ObjectID, now time.Time) (sweepOutcome, error) {
	var (
		outcome sweepOutcome
		result  *forfeiture
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		outcome, result = outcomeNotDue, nil

		d, err := s.store.GetDebate(ctx, debateID)
		if err != nil {
			return err
		}
		if d.Status != models.DebateStatusInProgress || d.TurnTimeLimit == nil {
			outcome = outcomeSkipped
			return nil
		}

		last, err := s.store.LatestArgument(ctx, debateID)
		if errors.Is(err, db.ErrNotFound) {
			// no turn has started
			outcome = outcomeSkipped
			return nil
		}
		if err != nil {
			return err
		}

		deadline := last.CreatedAt.Add(time.Duration(*d.TurnTimeLimit) * time.Hour)
		if !now.After(deadline) {
			return nil
		}

		participants, err := s.store.ListParticipants(ctx, debateID)
		if err != nil {
			return err
		}
		var waiting []models.DebateParticipant
		for _, p := range participants {
			if p.Status == models.ParticipantActive && p.UserID != last.AuthorID {
				waiting = append(waiting, p)
			}
		}
		switch {
		case len(waiting) == 0:
			outcome = outcomeSkipped
			return nil
		case len(waiting) > 1:
			// With more than two active participants it is unclear who let the turn lapse.
			// Left for a human decision rather than picking one.
			s.log.WithFields(logrus.Fields{
				"debate_id":  debateID.Hex(),
				"candidates": len(waiting),
			}).Warn("timed-out debate has several waiting participants, not forfeiting")
			outcome = outcomeAmbiguous
			return nil
		}

		loser := waiting[0]
		if err := s.store.UpdateParticipantStatus(ctx, loser.ID, models.ParticipantForfeited); err != nil {
			return err
		}

		wc := &models.WinCondition{
			DebateID:    debateID,
			Type:        models.WinByForfeit,
			WinningRole: loser.Role.Opposite(),
			DecidedAt:   now,
			Description: fmt.Sprintf("%s forfeited by not responding within %d hours",
				s.displayName(ctx, loser.UserID), *d.TurnTimeLimit),
		}
		if err := s.store.UpsertWinCondition(ctx, wc); err != nil {
			return err
		}

		d.Status = models.DebateStatusCompleted
		d.CompletedAt = &now
		d.UpdatedAt = now
		if err := s.store.UpdateDebate(ctx, d); err != nil {
			return err
		}

		var opponents []models.DebateParticipant
		for _, p := range participants {
			if p.ID != loser.ID && p.Status == models.ParticipantActive {
				opponents = append(opponents, p)
			}
		}
		outcome = outcomeForfeited
		result = &forfeiture{debate: d, loser: loser, opponents: opponents, winCondition: wc}
		return nil
	})
	if err != nil {
		return outcomeNotDue, err
	}

	if result != nil {
		s.announceForfeit(ctx, result)
	}
	return outcome, nil
}

func (s *LifecycleService) displayName(ctx context.Context, userID primitive.ObjectID) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user.DisplayName == "" {
		return "User " + userID.Hex()
	}
	return user.DisplayName
}

func (s *LifecycleService) announceForfeit(ctx context.Context, f *forfeiture) {
	link := fmt.Sprintf("/debates/%s", f.debate.ID.Hex())
	s.effects.notify(ctx, &models.Notification{
		Type:     models.NotificationDebateForfeit,
		Title:    "You forfeited a debate",
		Message:  fmt.Sprintf("Your turn in \"%s\" expired and the debate was forfeited.", f.debate.Title),
		Link:     link,
		UserID:   f.loser.UserID,
		DebateID: f.debate.ID,
	})
	for _, p := range f.opponents {
		s.effects.notify(ctx, &models.Notification{
			Type:     models.NotificationDebateForfeit,
			Title:    "You won by forfeit",
			Message:  fmt.Sprintf("Your opponent did not respond in \"%s\" in time.", f.debate.Title),
			Link:     link,
			UserID:   p.UserID,
			ActorID:  f.loser.UserID,
			DebateID: f.debate.ID,
		})
	}
	s.effects.publish(ctx, f.debate.ID, debate.EventDebateForfeited, debate.ResolutionPayload{
		Status:      string(f.debate.Status),
		WinningRole: string(f.winCondition.WinningRole),
		Description: f.winCondition.Description,
	})
}
