package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/logger"
	"debatehub/models"
	"debatehub/structs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*debate.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *debate.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, *models.Notification) error {
	return errors.New("notification store down")
}

// staticPermissions grants exactly the listed "role:resource:action" triples.
type staticPermissions map[string]bool

func (p staticPermissions) Allowed(role, resource, action string) (bool, error) {
	return p[role+":"+resource+":"+action], nil
}

type fixture struct {
	store       *db.MemoryStore
	clock       *testClock
	events      *recordingPublisher
	debates     *DebateService
	votes       *VoteService
	lifecycle   *LifecycleService
	definitions *DefinitionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &recordingPublisher{}
	notifier := StoreNotifier{Store: store}
	perms := staticPermissions{
		"admin:debate:cancel":           true,
		"moderator:definition:moderate": true,
	}
	log := logger.Discard()

	f := &fixture{
		store:       store,
		clock:       clock,
		events:      events,
		debates:     NewDebateService(store, perms, notifier, events, nil, log),
		votes:       NewVoteService(store, notifier, events, nil, log),
		lifecycle:   NewLifecycleService(store, notifier, events, nil, log),
		definitions: NewDefinitionService(store, perms, events, log),
	}
	f.debates.now = clock.Now
	f.votes.now = clock.Now
	f.lifecycle.now = clock.Now
	f.definitions.now = clock.Now
	return f
}

func intPtr(v int) *int { return &v }

func validCreateRequest() *structs.CreateDebateRequest {
	return &structs.CreateDebateRequest{
		Title:  "Should cities ban cars from their centres?",
		Topics: []string{"environment", "politics"},
		InitialArguments: []structs.ArgumentInput{{
			Content: "<p>Car-free centres cut <b>pollution</b> and make streets safer.</p>",
			References: []structs.ReferenceInput{
				{Title: "Urban air quality study", URL: "https://arxiv.org/abs/2101.00001"},
			},
		}},
	}
}

func argumentRequest(content string) *structs.SubmitArgumentRequest {
	return &structs.SubmitArgumentRequest{ArgumentInput: structs.ArgumentInput{Content: content}}
}

// startedDebate creates a one-on-one debate and has a second user join it.
func (f *fixture) startedDebate(t *testing.T, req *structs.CreateDebateRequest) (created *DebateDetail, proposer, opposer primitive.ObjectID) {
	t.Helper()
	ctx := context.Background()
	proposer, opposer = primitive.NewObjectID(), primitive.NewObjectID()

	created, err := f.debates.CreateDebate(ctx, proposer, req)
	require.NoError(t, err)
	_, err = f.debates.JoinDebate(ctx, created.ID, opposer)
	require.NoError(t, err)
	return created, proposer, opposer
}
