package db

import (
	"context"
	"sort"
	"sync"

	"debatehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local Store used by tests and by `database.driver: memory`.
// A transaction runs against a private copy of the state which replaces the shared state
// only when the callback succeeds, so readers never see half of a transaction.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex // serializes writers so a committed copy never drops a concurrent write
	state *memState
}

type memState struct {
	debates       map[primitive.ObjectID]models.Debate
	topics        []models.DebateTopic
	participants  map[primitive.ObjectID]models.DebateParticipant
	arguments     map[primitive.ObjectID]models.Argument
	references    []models.Reference
	definitions   map[primitive.ObjectID]models.Definition
	votes         map[voteKey]models.Vote
	winConditions map[primitive.ObjectID]models.WinCondition
	notifications []models.Notification
	users         map[primitive.ObjectID]models.User
}

type voteKey struct {
	kind     models.VoteTargetKind
	targetID primitive.ObjectID
	userID   primitive.ObjectID
}

type memTxKey struct{}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		debates:       make(map[primitive.ObjectID]models.Debate),
		participants:  make(map[primitive.ObjectID]models.DebateParticipant),
		arguments:     make(map[primitive.ObjectID]models.Argument),
		definitions:   make(map[primitive.ObjectID]models.Definition),
		votes:         make(map[voteKey]models.Vote),
		winConditions: make(map[primitive.ObjectID]models.WinCondition),
		users:         make(map[primitive.ObjectID]models.User),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.debates {
		c.debates[k] = v
	}
	for k, v := range st.participants {
		c.participants[k] = v
	}
	for k, v := range st.arguments {
		c.arguments[k] = v
	}
	for k, v := range st.definitions {
		c.definitions[k] = v
	}
	for k, v := range st.votes {
		c.votes[k] = v
	}
	for k, v := range st.winConditions {
		c.winConditions[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	c.topics = append([]models.DebateTopic(nil), st.topics...)
	c.references = append([]models.Reference(nil), st.references...)
	c.notifications = append([]models.Notification(nil), st.notifications...)
	return c
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, working)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// read runs fn against the transaction copy if ctx carries one, else the shared state.
func (s *MemoryStore) read(ctx context.Context, fn func(st *memState) error) error {
	if st, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) write(ctx context.Context, fn func(st *memState) error) error {
	if st, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return fn(st)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) InsertDebate(ctx context.Context, debate *models.Debate) error {
	if debate.ID.IsZero() {
		debate.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		if _, exists := st.debates[debate.ID]; exists {
			return ErrConflict
		}
		st.debates[debate.ID] = *debate
		return nil
	})
}

func (s *MemoryStore) GetDebate(ctx context.Context, id primitive.ObjectID) (*models.Debate, error) {
	var out models.Debate
	err := s.read(ctx, func(st *memState) error {
		d, ok := st.debates[id]
		if !ok {
			return ErrNotFound
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) UpdateDebate(ctx context.Context, debate *models.Debate) error {
	return s.write(ctx, func(st *memState) error {
		current, ok := st.debates[debate.ID]
		if !ok || current.Version != debate.Version {
			return ErrConflict
		}
		next := *debate
		next.Version++
		st.debates[debate.ID] = next
		debate.Version = next.Version
		return nil
	})
}

func (s *MemoryStore) ListTimedDebatesInProgress(ctx context.Context) ([]models.Debate, error) {
	var out []models.Debate
	err := s.read(ctx, func(st *memState) error {
		for _, d := range st.debates {
			if d.Status == models.DebateStatusInProgress && d.TurnTimeLimit != nil {
				out = append(out, d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (s *MemoryStore) InsertTopics(ctx context.Context, topics []models.DebateTopic) error {
	for i := range topics {
		if topics[i].ID.IsZero() {
			topics[i].ID = primitive.NewObjectID()
		}
	}
	return s.write(ctx, func(st *memState) error {
		st.topics = append(st.topics, topics...)
		return nil
	})
}

func (s *MemoryStore) ListTopics(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateTopic, error) {
	var out []models.DebateTopic
	err := s.read(ctx, func(st *memState) error {
		for _, t := range st.topics {
			if t.DebateID == debateID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) InsertParticipant(ctx context.Context, participant *models.DebateParticipant) error {
	if participant.ID.IsZero() {
		participant.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		st.participants[participant.ID] = *participant
		return nil
	})
}

func (s *MemoryStore) ListParticipants(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateParticipant, error) {
	var out []models.DebateParticipant
	err := s.read(ctx, func(st *memState) error {
		for _, p := range st.participants {
			if p.DebateID == debateID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

func (s *MemoryStore) UpdateParticipantStatus(ctx context.Context, id primitive.ObjectID, status models.ParticipantStatus) error {
	return s.write(ctx, func(st *memState) error {
		p, ok := st.participants[id]
		if !ok {
			return ErrNotFound
		}
		p.Status = status
		st.participants[id] = p
		return nil
	})
}

func (s *MemoryStore) InsertArgument(ctx context.Context, argument *models.Argument) error {
	if argument.ID.IsZero() {
		argument.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		st.arguments[argument.ID] = *argument
		return nil
	})
}

func (s *MemoryStore) GetArgument(ctx context.Context, id primitive.ObjectID) (*models.Argument, error) {
	var out models.Argument
	err := s.read(ctx, func(st *memState) error {
		a, ok := st.arguments[id]
		if !ok {
			return ErrNotFound
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) ListArguments(ctx context.Context, debateID primitive.ObjectID) ([]models.Argument, error) {
	var out []models.Argument
	err := s.read(ctx, func(st *memState) error {
		for _, a := range st.arguments {
			if a.DebateID == debateID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return argumentBefore(out[i], out[j]) })
	return out, err
}

func argumentBefore(a, b models.Argument) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}

func (s *MemoryStore) LatestArgument(ctx context.Context, debateID primitive.ObjectID) (*models.Argument, error) {
	args, err := s.ListArguments(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, ErrNotFound
	}
	latest := args[len(args)-1]
	return &latest, nil
}

func (s *MemoryStore) InsertReferences(ctx context.Context, refs []models.Reference) error {
	for i := range refs {
		if refs[i].ID.IsZero() {
			refs[i].ID = primitive.NewObjectID()
		}
	}
	return s.write(ctx, func(st *memState) error {
		st.references = append(st.references, refs...)
		return nil
	})
}

func (s *MemoryStore) ListArgumentReferences(ctx context.Context, argumentIDs []primitive.ObjectID) ([]models.Reference, error) {
	return s.listReferences(ctx, argumentIDs, func(r models.Reference) *primitive.ObjectID { return r.ArgumentID })
}

func (s *MemoryStore) ListDefinitionReferences(ctx context.Context, definitionIDs []primitive.ObjectID) ([]models.Reference, error) {
	return s.listReferences(ctx, definitionIDs, func(r models.Reference) *primitive.ObjectID { return r.DefinitionID })
}

func (s *MemoryStore) listReferences(ctx context.Context, ids []primitive.ObjectID, owner func(models.Reference) *primitive.ObjectID) ([]models.Reference, error) {
	wanted := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []models.Reference
	err := s.read(ctx, func(st *memState) error {
		for _, r := range st.references {
			if id := owner(r); id != nil {
				if _, ok := wanted[*id]; ok {
					out = append(out, r)
				}
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) InsertDefinition(ctx context.Context, def *models.Definition) error {
	if def.ID.IsZero() {
		def.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		st.definitions[def.ID] = *def
		return nil
	})
}

func (s *MemoryStore) GetDefinition(ctx context.Context, id primitive.ObjectID) (*models.Definition, error) {
	var out models.Definition
	err := s.read(ctx, func(st *memState) error {
		d, ok := st.definitions[id]
		if !ok {
			return ErrNotFound
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) UpdateDefinition(ctx context.Context, def *models.Definition) error {
	return s.write(ctx, func(st *memState) error {
		if _, ok := st.definitions[def.ID]; !ok {
			return ErrNotFound
		}
		st.definitions[def.ID] = *def
		return nil
	})
}

func (s *MemoryStore) ListDefinitions(ctx context.Context, debateID primitive.ObjectID) ([]models.Definition, error) {
	var out []models.Definition
	err := s.read(ctx, func(st *memState) error {
		for _, d := range st.definitions {
			if d.DebateID == debateID {
				out = append(out, d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (s *MemoryStore) FindVote(ctx context.Context, kind models.VoteTargetKind, targetID, userID primitive.ObjectID) (*models.Vote, error) {
	var out models.Vote
	err := s.read(ctx, func(st *memState) error {
		v, ok := st.votes[voteKey{kind: kind, targetID: targetID, userID: userID}]
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) InsertVote(ctx context.Context, vote *models.Vote) error {
	if vote.ID.IsZero() {
		vote.ID = primitive.NewObjectID()
	}
	key := voteKey{kind: vote.TargetKind, targetID: vote.TargetID, userID: vote.UserID}
	return s.write(ctx, func(st *memState) error {
		if _, exists := st.votes[key]; exists {
			return ErrConflict
		}
		st.votes[key] = *vote
		return nil
	})
}

func (s *MemoryStore) UpdateVote(ctx context.Context, vote *models.Vote) error {
	key := voteKey{kind: vote.TargetKind, targetID: vote.TargetID, userID: vote.UserID}
	return s.write(ctx, func(st *memState) error {
		current, ok := st.votes[key]
		if !ok || current.ID != vote.ID {
			return ErrNotFound
		}
		current.Support = vote.Support
		current.UpdatedAt = vote.UpdatedAt
		st.votes[key] = current
		return nil
	})
}

func (s *MemoryStore) DeleteVote(ctx context.Context, kind models.VoteTargetKind, id primitive.ObjectID) error {
	return s.write(ctx, func(st *memState) error {
		for key, v := range st.votes {
			if key.kind == kind && v.ID == id {
				delete(st.votes, key)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *MemoryStore) TallyVotes(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID) (models.VoteTally, error) {
	var tally models.VoteTally
	err := s.read(ctx, func(st *memState) error {
		for key, v := range st.votes {
			if key.kind != kind || key.targetID != targetID {
				continue
			}
			if v.Support {
				tally.Support++
			} else {
				tally.Oppose++
			}
		}
		return nil
	})
	return tally, err
}

func (s *MemoryStore) UpsertWinCondition(ctx context.Context, wc *models.WinCondition) error {
	return s.write(ctx, func(st *memState) error {
		if existing, ok := st.winConditions[wc.DebateID]; ok {
			wc.ID = existing.ID
		} else if wc.ID.IsZero() {
			wc.ID = primitive.NewObjectID()
		}
		st.winConditions[wc.DebateID] = *wc
		return nil
	})
}

func (s *MemoryStore) GetWinCondition(ctx context.Context, debateID primitive.ObjectID) (*models.WinCondition, error) {
	var out models.WinCondition
	err := s.read(ctx, func(st *memState) error {
		wc, ok := st.winConditions[debateID]
		if !ok {
			return ErrNotFound
		}
		out = wc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CountWinConditions reports how many win conditions the store holds. Together with
// CountDebates it lets callers check that a failed transaction left nothing behind.
func (s *MemoryStore) CountWinConditions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.winConditions)
}

// CountDebates reports how many debates the store holds.
func (s *MemoryStore) CountDebates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.debates)
}

func (s *MemoryStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.read(ctx, func(st *memState) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			if st.notifications[i].UserID == userID {
				out = append(out, st.notifications[i])
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) InsertUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	return s.write(ctx, func(st *memState) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return ErrConflict
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (s *MemoryStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var out models.User
	err := s.read(ctx, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var out models.User
	err := s.read(ctx, func(st *memState) error {
		for _, u := range st.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var out models.User
	err := s.read(ctx, func(st *memState) error {
		for _, u := range st.users {
			if tokenHash != "" && u.ResetTokenHash == tokenHash {
				out = u
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	return s.write(ctx, func(st *memState) error {
		if _, ok := st.users[user.ID]; !ok {
			return ErrNotFound
		}
		st.users[user.ID] = *user
		return nil
	})
}
