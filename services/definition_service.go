package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/models"
	"debatehub/structs"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefinitionService manages the agreed meaning of terms within a debate.
type DefinitionService struct {
	store   db.Store
	perms   Permissions
	effects sideEffects
	now     func() time.Time
}

func NewDefinitionService(store db.Store, perms Permissions, events EventPublisher, log logrus.FieldLogger) *DefinitionService {
	return &DefinitionService{
		store:   store,
		perms:   perms,
		effects: sideEffects{events: events, log: log.WithField("component", "definitions")},
		now:     time.Now,
	}
}

func definitionDetails(ctx context.Context, store db.Store, debateID primitive.ObjectID) ([]DefinitionDetail, error) {
	defs, err := store.ListDefinitions(ctx, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	refs, err := store.ListDefinitionReferences(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load references: %w", err)
	}
	byDefinition := make(map[primitive.ObjectID][]models.Reference)
	for _, r := range refs {
		if r.DefinitionID != nil {
			byDefinition[*r.DefinitionID] = append(byDefinition[*r.DefinitionID], r)
		}
	}

	out := make([]DefinitionDetail, 0, len(defs))
	for _, d := range defs {
		tally, err := store.TallyVotes(ctx, models.VoteTargetDefinition, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to tally definition votes: %w", err)
		}
		out = append(out, DefinitionDetail{
			Definition: d,
			References: append([]models.Reference{}, byDefinition[d.ID]...),
			Tally:      tally,
		})
	}
	return out, nil
}

// participantOf reports whether userID takes part in debateID, forfeited or not.
func (s *DefinitionService) participantOf(ctx context.Context, debateID, userID primitive.ObjectID) (bool, error) {
	participants, err := s.store.ListParticipants(ctx, debateID)
	if err != nil {
		return false, fmt.Errorf("failed to load participants: %w", err)
	}
	for _, p := range participants {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *DefinitionService) openDebate(ctx context.Context, debateID primitive.ObjectID) (*models.Debate, error) {
	d, err := s.store.GetDebate(ctx, debateID)
	if err != nil {
		return nil, storeErr(err, "debate")
	}
	if d.Status.IsTerminal() {
		return nil, conflictf("debate is %s", strings.ToLower(string(d.Status)))
	}
	return d, nil
}

// insertDefinition writes def and its references; callers run it inside a transaction.
func (s *DefinitionService) insertDefinition(ctx context.Context, def *models.Definition, inputs []structs.ReferenceInput) ([]models.Reference, error) {
	if err := s.store.InsertDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to insert definition: %w", err)
	}
	refs := buildReferences(inputs, def.CreatedAt)
	for i := range refs {
		refs[i].DefinitionID = &def.ID
	}
	if len(refs) > 0 {
		if err := s.store.InsertReferences(ctx, refs); err != nil {
			return nil, fmt.Errorf("failed to insert references: %w", err)
		}
	}
	return refs, nil
}

// ProposeDefinition lets a participant put forward a meaning for a term.
func (s *DefinitionService) ProposeDefinition(ctx context.Context, debateID, userID primitive.ObjectID, req *structs.ProposeDefinitionRequest) (*DefinitionDetail, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var detail *DefinitionDetail
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.openDebate(ctx, debateID); err != nil {
			return err
		}
		ok, err := s.participantOf(ctx, debateID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}

		now := s.now()
		def := &models.Definition{
			DebateID:   debateID,
			Term:       strings.TrimSpace(req.Term),
			Definition: strings.TrimSpace(req.Definition),
			Status:     models.DefinitionProposed,
			ProposerID: userID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		refs, err := s.insertDefinition(ctx, def, req.References)
		if err != nil {
			return err
		}
		detail = &DefinitionDetail{Definition: *def, References: refs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishDefinition(ctx, debate.EventDefinitionProposed, &detail.Definition)
	return detail, nil
}

// SetDefinitionStatus accepts or contests a definition. The proposer cannot rule on their
// own definition unless they hold the moderate permission.
func (s *DefinitionService) SetDefinitionStatus(ctx context.Context, definitionID primitive.ObjectID, actor Actor, req *structs.DefinitionStatusRequest) (*models.Definition, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	status := models.DefinitionStatus(req.Status)

	var def *models.Definition
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if def, err = s.store.GetDefinition(ctx, definitionID); err != nil {
			return storeErr(err, "definition")
		}
		if def.Status == models.DefinitionDeprecated {
			return conflictf("definition has been superseded")
		}
		if _, err := s.openDebate(ctx, def.DebateID); err != nil {
			return err
		}

		moderator, err := allowed(s.perms, actor.Role, "definition", "moderate")
		if err != nil {
			return fmt.Errorf("failed to check permissions: %w", err)
		}
		if !moderator {
			if def.ProposerID == actor.UserID {
				return ErrForbidden
			}
			ok, err := s.participantOf(ctx, def.DebateID, actor.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		}

		def.Status = status
		def.UpdatedAt = s.now()
		return storeErr(s.store.UpdateDefinition(ctx, def), "definition")
	})
	if err != nil {
		return nil, err
	}

	s.publishDefinition(ctx, debate.EventDefinitionUpdated, def)
	return def, nil
}

// SupersedeDefinition replaces a definition with a revised one and deprecates the old
// one. A deprecated definition cannot be superseded again, so chains never loop.
func (s *DefinitionService) SupersedeDefinition(ctx context.Context, definitionID primitive.ObjectID, actor Actor, req *structs.ProposeDefinitionRequest) (*DefinitionDetail, error) {
	var (
		old    *models.Definition
		detail *DefinitionDetail
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if old, err = s.store.GetDefinition(ctx, definitionID); err != nil {
			return storeErr(err, "definition")
		}
		if old.Status == models.DefinitionDeprecated {
			return conflictf("definition has already been superseded")
		}

		revision := *req
		if strings.TrimSpace(revision.Term) == "" {
			revision.Term = old.Term
		}
		if err := validateRequest(&revision); err != nil {
			return err
		}

		if _, err := s.openDebate(ctx, old.DebateID); err != nil {
			return err
		}
		moderator, err := allowed(s.perms, actor.Role, "definition", "moderate")
		if err != nil {
			return fmt.Errorf("failed to check permissions: %w", err)
		}
		if !moderator {
			ok, err := s.participantOf(ctx, old.DebateID, actor.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		}

		now := s.now()
		next := &models.Definition{
			ID:         primitive.NewObjectID(),
			DebateID:   old.DebateID,
			Term:       strings.TrimSpace(revision.Term),
			Definition: strings.TrimSpace(revision.Definition),
			Status:     models.DefinitionProposed,
			ProposerID: actor.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		refs, err := s.insertDefinition(ctx, next, revision.References)
		if err != nil {
			return err
		}

		old.Status = models.DefinitionDeprecated
		old.SupersededBy = &next.ID
		old.UpdatedAt = now
		if err := s.store.UpdateDefinition(ctx, old); err != nil {
			return storeErr(err, "definition")
		}
		detail = &DefinitionDetail{Definition: *next, References: refs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishDefinition(ctx, debate.EventDefinitionUpdated, old)
	s.publishDefinition(ctx, debate.EventDefinitionProposed, &detail.Definition)
	return detail, nil
}

func (s *DefinitionService) publishDefinition(ctx context.Context, eventType string, def *models.Definition) {
	s.effects.publish(ctx, def.DebateID, eventType, debate.DefinitionPayload{
		DefinitionID: def.ID.Hex(),
		Term:         def.Term,
		Status:       string(def.Status),
	})
}
