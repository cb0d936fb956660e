package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/metrics"
	"debatehub/models"
	"debatehub/structs"
	"debatehub/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	minArgumentLength   = 10
	defaultTurnsPerSide = 3
	defaultPanelSize    = 4
)

// Permissions answers RBAC questions such as whether a role may cancel any debate.
type Permissions interface {
	Allowed(role, resource, action string) (bool, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
}

type ArgumentDetail struct {
	models.Argument
	References []models.Reference `json:"references"`
	Tally      models.VoteTally   `json:"tally"`
}

type DefinitionDetail struct {
	models.Definition
	References []models.Reference `json:"references"`
	Tally      models.VoteTally   `json:"tally"`
}

// DebateDetail is a debate with everything hanging off it
type DebateDetail struct {
	*models.Debate
	Topics       []string                   `json:"topics"`
	Participants []models.DebateParticipant `json:"participants"`
	Arguments    []ArgumentDetail           `json:"arguments"`
	Definitions  []DefinitionDetail         `json:"definitions"`
	WinCondition *models.WinCondition       `json:"winCondition,omitempty"`
	Progress     Progress                   `json:"progress"`
}

type DebateService struct {
	store   db.Store
	perms   Permissions
	effects sideEffects
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewDebateService(store db.Store, perms Permissions, notifier Notifier, events EventPublisher, m *metrics.Metrics, log logrus.FieldLogger) *DebateService {
	log = log.WithField("component", "debates")
	return &DebateService{
		store:   store,
		perms:   perms,
		effects: sideEffects{notifier: notifier, events: events, log: log},
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// storeErr maps store sentinels onto service errors.
func storeErr(err error, entity string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return notFound(entity)
	case errors.Is(err, db.ErrConflict):
		return conflictf("%s was changed by another request", entity)
	}
	return err
}

func allowed(perms Permissions, role, resource, action string) (bool, error) {
	if perms == nil || role == "" {
		return false, nil
	}
	return perms.Allowed(role, resource, action)
}

func checkContent(content string, label string) error {
	if utils.VisibleLength(content) < minArgumentLength {
		return validationf("%s must contain at least %d characters of text", label, minArgumentLength)
	}
	return nil
}

func buildReferences(inputs []structs.ReferenceInput, now time.Time) []models.Reference {
	refs := make([]models.Reference, 0, len(inputs))
	for _, in := range inputs {
		refs = append(refs, models.Reference{
			ID:          primitive.NewObjectID(),
			Type:        ClassifyReference(in.URL),
			Title:       strings.TrimSpace(in.Title),
			URL:         strings.TrimSpace(in.URL),
			Author:      in.Author,
			Publication: in.Publication,
			Notes:       in.Notes,
			CreatedAt:   now,
		})
	}
	return refs
}

func findActiveParticipant(participants []models.DebateParticipant, userID primitive.ObjectID) (models.DebateParticipant, bool) {
	for _, p := range participants {
		if p.UserID == userID && p.Status == models.ParticipantActive {
			return p, true
		}
	}
	return models.DebateParticipant{}, false
}

// CreateDebate stores a new debate with its topics, the creator as proposer and the
// opening arguments. Nothing is written unless every part is valid.
func (s *DebateService) CreateDebate(ctx context.Context, creatorID primitive.ObjectID, req *structs.CreateDebateRequest) (*DebateDetail, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	topics := make([]string, 0, len(req.Topics))
	seen := make(map[string]struct{}, len(req.Topics))
	var invalid []string
	for _, topic := range req.Topics {
		if !models.IsAllowedTopic(topic) {
			invalid = append(invalid, topic)
			continue
		}
		if _, dup := seen[topic]; !dup {
			seen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}
	if len(invalid) > 0 {
		return nil, invalidTopicsError(invalid)
	}

	for i, arg := range req.InitialArguments {
		if err := checkContent(arg.Content, fmt.Sprintf("Argument %d", i+1)); err != nil {
			return nil, err
		}
	}

	format := models.DebateFormat(req.Format)
	if format == "" {
		format = models.FormatOneOnOne
	}
	maxParticipants := req.MaxParticipants
	switch {
	case format == models.FormatOneOnOne && maxParticipants != 0 && maxParticipants != 2:
		return nil, validationf("ONE_ON_ONE debates have exactly 2 participants")
	case format == models.FormatOneOnOne:
		maxParticipants = 2
	case maxParticipants == 0:
		maxParticipants = defaultPanelSize
	}
	turnsPerSide := req.TurnsPerSide
	if turnsPerSide == 0 {
		turnsPerSide = defaultTurnsPerSide
	}

	now := s.now()
	d := &models.Debate{
		ID:                primitive.NewObjectID(),
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		Format:            format,
		Status:            models.DebateStatusOpen,
		MaxParticipants:   maxParticipants,
		TurnsPerSide:      turnsPerSide,
		TurnTimeLimit:     req.TurnTimeLimit,
		MinReferences:     req.MinReferences,
		CurrentTurnNumber: 2,
		CurrentTurnSide:   models.RoleOpposer,
		CreatorID:         creatorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertDebate(ctx, d); err != nil {
			return fmt.Errorf("failed to insert debate: %w", err)
		}

		rows := make([]models.DebateTopic, 0, len(topics))
		for _, topic := range topics {
			rows = append(rows, models.DebateTopic{DebateID: d.ID, Topic: topic})
		}
		if err := s.store.InsertTopics(ctx, rows); err != nil {
			return fmt.Errorf("failed to insert topics: %w", err)
		}

		proposer := &models.DebateParticipant{
			DebateID: d.ID,
			UserID:   creatorID,
			Role:     models.RoleProposer,
			Status:   models.ParticipantActive,
			JoinedAt: now,
		}
		if err := s.store.InsertParticipant(ctx, proposer); err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		for _, in := range req.InitialArguments {
			argument := &models.Argument{
				DebateID:      d.ID,
				ParticipantID: proposer.ID,
				AuthorID:      creatorID,
				Content:       in.Content,
				TurnNumber:    1,
				CreatedAt:     now,
			}
			if err := s.store.InsertArgument(ctx, argument); err != nil {
				return fmt.Errorf("failed to insert argument: %w", err)
			}
			if len(in.References) == 0 {
				continue
			}
			refs := buildReferences(in.References, now)
			for i := range refs {
				refs[i].ArgumentID = &argument.ID
			}
			if err := s.store.InsertReferences(ctx, refs); err != nil {
				return fmt.Errorf("failed to insert references: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DebateCreated()
	s.log.WithFields(logrus.Fields{
		"debate_id":  d.ID.Hex(),
		"creator_id": creatorID.Hex(),
		"topics":     topics,
	}).Info("debate created")
	return s.GetDebate(ctx, d.ID)
}

// GetDebate loads a debate and all its related rows.
func (s *DebateService) GetDebate(ctx context.Context, id primitive.ObjectID) (*DebateDetail, error) {
	d, err := s.store.GetDebate(ctx, id)
	if err != nil {
		return nil, storeErr(err, "debate")
	}
	detail := &DebateDetail{Debate: d}

	topics, err := s.store.ListTopics(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}
	detail.Topics = make([]string, 0, len(topics))
	for _, t := range topics {
		detail.Topics = append(detail.Topics, t.Topic)
	}

	if detail.Participants, err = s.store.ListParticipants(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	if detail.Arguments, err = s.argumentDetails(ctx, id); err != nil {
		return nil, err
	}
	if detail.Definitions, err = definitionDetails(ctx, s.store, id); err != nil {
		return nil, err
	}

	wc, err := s.store.GetWinCondition(ctx, id)
	switch {
	case err == nil:
		detail.WinCondition = wc
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("failed to load win condition: %w", err)
	}

	maxTurn := 0
	for _, a := range detail.Arguments {
		if a.TurnNumber > maxTurn {
			maxTurn = a.TurnNumber
		}
	}
	detail.Progress = CalculateProgress(d, maxTurn)
	return detail, nil
}

func (s *DebateService) argumentDetails(ctx context.Context, debateID primitive.ObjectID) ([]ArgumentDetail, error) {
	arguments, err := s.store.ListArguments(ctx, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load arguments: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(arguments))
	for _, a := range arguments {
		ids = append(ids, a.ID)
	}
	refs, err := s.store.ListArgumentReferences(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load references: %w", err)
	}
	byArgument := make(map[primitive.ObjectID][]models.Reference)
	for _, r := range refs {
		if r.ArgumentID != nil {
			byArgument[*r.ArgumentID] = append(byArgument[*r.ArgumentID], r)
		}
	}

	out := make([]ArgumentDetail, 0, len(arguments))
	for _, a := range arguments {
		tally, err := s.store.TallyVotes(ctx, models.VoteTargetArgument, a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to tally argument votes: %w", err)
		}
		out = append(out, ArgumentDetail{
			Argument:   a,
			References: append([]models.Reference{}, byArgument[a.ID]...),
			Tally:      tally,
		})
	}
	return out, nil
}

// JoinDebate adds userID to an open debate. The debate starts once it is full.
func (s *DebateService) JoinDebate(ctx context.Context, debateID, userID primitive.ObjectID) (*models.DebateParticipant, error) {
	var (
		d      *models.Debate
		joined *models.DebateParticipant
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if d, err = s.store.GetDebate(ctx, debateID); err != nil {
			return storeErr(err, "debate")
		}
		if d.Status != models.DebateStatusOpen {
			return conflictf("debate is not open for joining")
		}
		if d.CreatorID == userID {
			return validationf("You cannot join your own debate as an opponent")
		}

		participants, err := s.store.ListParticipants(ctx, debateID)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		proposers, opposers := 0, 0
		for _, p := range participants {
			if p.UserID == userID {
				return conflictf("already participating in this debate")
			}
			switch p.Role {
			case models.RoleProposer:
				proposers++
			case models.RoleOpposer:
				opposers++
			}
		}
		if len(participants) >= d.MaxParticipants {
			return conflictf("debate is full")
		}

		role := models.RoleOpposer
		if d.Format == models.FormatPanel && proposers < opposers {
			role = models.RoleProposer
		}
		now := s.now()
		joined = &models.DebateParticipant{
			DebateID: debateID,
			UserID:   userID,
			Role:     role,
			Status:   models.ParticipantActive,
			JoinedAt: now,
		}
		if err := s.store.InsertParticipant(ctx, joined); err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		if len(participants)+1 == d.MaxParticipants {
			d.Status = models.DebateStatusInProgress
			d.StartedAt = &now
		}
		d.UpdatedAt = now
		if err := s.store.UpdateDebate(ctx, d); err != nil {
			return storeErr(err, "debate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.notify(ctx, &models.Notification{
		Type:     models.NotificationDebateJoined,
		Title:    "Someone joined your debate",
		Message:  fmt.Sprintf("A new %s joined \"%s\"", strings.ToLower(string(joined.Role)), d.Title),
		Link:     fmt.Sprintf("/debates/%s", d.ID.Hex()),
		UserID:   d.CreatorID,
		ActorID:  userID,
		DebateID: d.ID,
	})
	s.effects.publish(ctx, d.ID, debate.EventDebateJoined, debate.ParticipantPayload{
		UserID: userID.Hex(),
		Role:   string(joined.Role),
		Status: string(d.Status),
	})
	return joined, nil
}

type submission struct {
	debate       *models.Debate
	argument     *ArgumentDetail
	participants []models.DebateParticipant
	winCondition *models.WinCondition
}

// SubmitArgument records the current side's argument and hands the turn over. The debate
// completes once every side has used its turns.
func (s *DebateService) SubmitArgument(ctx context.Context, debateID, userID primitive.ObjectID, req *structs.SubmitArgumentRequest) (*ArgumentDetail, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := checkContent(req.Content, "Argument"); err != nil {
		return nil, err
	}
	rebuttalTo, err := optionalObjectID(req.RebuttalTo, "rebuttalTo")
	if err != nil {
		return nil, err
	}
	responseTo, err := optionalObjectID(req.ResponseTo, "responseTo")
	if err != nil {
		return nil, err
	}

	var result *submission
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		result = nil

		d, err := s.store.GetDebate(ctx, debateID)
		if err != nil {
			return storeErr(err, "debate")
		}
		if d.Status != models.DebateStatusInProgress {
			return conflictf("debate is not in progress")
		}

		participants, err := s.store.ListParticipants(ctx, debateID)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		author, ok := findActiveParticipant(participants, userID)
		if !ok {
			return ErrForbidden
		}
		if author.Role != d.CurrentTurnSide {
			return conflictf("it is not your turn")
		}
		if len(req.References) < d.MinReferences {
			return validationf("At least %d reference(s) are required for this debate", d.MinReferences)
		}
		for _, target := range []*primitive.ObjectID{rebuttalTo, responseTo} {
			if target == nil {
				continue
			}
			other, err := s.store.GetArgument(ctx, *target)
			if err != nil || other.DebateID != debateID {
				return validationf("Referenced argument %s does not belong to this debate", target.Hex())
			}
		}

		now := s.now()
		argument := &models.Argument{
			DebateID:      debateID,
			ParticipantID: author.ID,
			AuthorID:      userID,
			Content:       req.Content,
			TurnNumber:    d.CurrentTurnNumber,
			RebuttalTo:    rebuttalTo,
			ResponseTo:    responseTo,
			CreatedAt:     now,
		}
		if err := s.store.InsertArgument(ctx, argument); err != nil {
			return fmt.Errorf("failed to insert argument: %w", err)
		}
		refs := buildReferences(req.References, now)
		for i := range refs {
			refs[i].ArgumentID = &argument.ID
		}
		if len(refs) > 0 {
			if err := s.store.InsertReferences(ctx, refs); err != nil {
				return fmt.Errorf("failed to insert references: %w", err)
			}
		}

		d.CurrentTurnNumber++
		d.CurrentTurnSide = author.Role.Opposite()
		d.UpdatedAt = now

		var wc *models.WinCondition
		if d.CurrentTurnNumber > d.TotalTurns() {
			if wc, err = s.decideByVotes(ctx, d, participants, now); err != nil {
				return err
			}
			d.Status = models.DebateStatusCompleted
			d.CompletedAt = &now
		}
		if err := s.store.UpdateDebate(ctx, d); err != nil {
			return storeErr(err, "debate")
		}

		result = &submission{
			debate:       d,
			argument:     &ArgumentDetail{Argument: *argument, References: refs},
			participants: participants,
			winCondition: wc,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announceSubmission(ctx, result)
	return result.argument, nil
}

// decideByVotes resolves a debate whose turns ran out: the side whose arguments gathered
// more net support wins, a tie leaves no winner.
func (s *DebateService) decideByVotes(ctx context.Context, d *models.Debate, participants []models.DebateParticipant, now time.Time) (*models.WinCondition, error) {
	roleOf := make(map[primitive.ObjectID]models.ParticipantRole, len(participants))
	for _, p := range participants {
		roleOf[p.ID] = p.Role
	}
	arguments, err := s.store.ListArguments(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load arguments: %w", err)
	}

	net := make(map[models.ParticipantRole]int64)
	for _, a := range arguments {
		tally, err := s.store.TallyVotes(ctx, models.VoteTargetArgument, a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to tally argument votes: %w", err)
		}
		net[roleOf[a.ParticipantID]] += tally.Net()
	}

	wc := &models.WinCondition{
		DebateID:  d.ID,
		Type:      models.WinByTurnsExhausted,
		DecidedAt: now,
	}
	proposer, opposer := net[models.RoleProposer], net[models.RoleOpposer]
	switch {
	case proposer > opposer:
		wc.WinningRole = models.RoleProposer
		wc.Description = fmt.Sprintf("All turns used; proposers won on votes (%+d to %+d)", proposer, opposer)
	case opposer > proposer:
		wc.WinningRole = models.RoleOpposer
		wc.Description = fmt.Sprintf("All turns used; opposers won on votes (%+d to %+d)", opposer, proposer)
	default:
		wc.Description = fmt.Sprintf("All turns used; the vote was tied at %+d", proposer)
	}
	if err := s.store.UpsertWinCondition(ctx, wc); err != nil {
		return nil, fmt.Errorf("failed to store win condition: %w", err)
	}
	return wc, nil
}

func (s *DebateService) announceSubmission(ctx context.Context, sub *submission) {
	d := sub.debate
	if sub.winCondition == nil {
		for _, p := range sub.participants {
			if p.Status != models.ParticipantActive || p.Role != d.CurrentTurnSide {
				continue
			}
			argumentID := sub.argument.ID
			s.effects.notify(ctx, &models.Notification{
				Type:       models.NotificationTurnReady,
				Title:      "It's your turn",
				Message:    fmt.Sprintf("Turn %d of \"%s\" is yours", d.CurrentTurnNumber, d.Title),
				Link:       fmt.Sprintf("/debates/%s", d.ID.Hex()),
				UserID:     p.UserID,
				ActorID:    sub.argument.AuthorID,
				DebateID:   d.ID,
				ArgumentID: &argumentID,
			})
		}
	}

	payload := debate.ArgumentPayload{
		ArgumentID: sub.argument.ID.Hex(),
		AuthorID:   sub.argument.AuthorID.Hex(),
		TurnNumber: sub.argument.TurnNumber,
	}
	if sub.winCondition == nil {
		payload.NextSide = string(d.CurrentTurnSide)
	}
	s.effects.publish(ctx, d.ID, debate.EventArgumentSubmitted, payload)

	if sub.winCondition != nil {
		s.effects.publish(ctx, d.ID, debate.EventDebateCompleted, debate.ResolutionPayload{
			Status:      string(d.Status),
			WinningRole: string(sub.winCondition.WinningRole),
			Description: sub.winCondition.Description,
		})
	}
}

// CancelDebate stops a debate that has not finished. Only its creator or a role with the
// (debate, cancel) permission may do so.
func (s *DebateService) CancelDebate(ctx context.Context, debateID primitive.ObjectID, actor Actor) (*models.Debate, error) {
	var d *models.Debate
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if d, err = s.store.GetDebate(ctx, debateID); err != nil {
			return storeErr(err, "debate")
		}
		if d.CreatorID != actor.UserID {
			ok, err := allowed(s.perms, actor.Role, "debate", "cancel")
			if err != nil {
				return fmt.Errorf("failed to check permissions: %w", err)
			}
			if !ok {
				return ErrForbidden
			}
		}
		if !models.CanTransition(d.Status, models.DebateStatusCancelled) {
			return conflictf("debate is already %s", strings.ToLower(string(d.Status)))
		}

		now := s.now()
		d.Status = models.DebateStatusCancelled
		d.UpdatedAt = now
		d.CompletedAt = &now
		return storeErr(s.store.UpdateDebate(ctx, d), "debate")
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"debate_id": debateID.Hex(),
		"actor_id":  actor.UserID.Hex(),
	}).Info("debate cancelled")
	s.effects.publish(ctx, d.ID, debate.EventDebateCancelled, debate.ResolutionPayload{Status: string(d.Status)})
	return d, nil
}

func optionalObjectID(hex, field string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, validationf("The %s field is not a valid id", field)
	}
	return &id, nil
}
