package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debatehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB replica set (transactions need one).
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, database *mongo.Database) *MongoStore {
	return &MongoStore{client: client, database: database}
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.database.Collection(name)
}

// EnsureIndexes creates the unique indexes the core relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		ArgumentVotesCollection: {{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		DefVotesCollection:      {{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique}},
		WinConditionsCollection: {{Keys: bson.D{{Key: "debateId", Value: 1}}, Options: unique}},
		UsersCollection:         {{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		ArgumentsCollection:     {{Keys: bson.D{{Key: "debateId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		ParticipantsCollection:  {{Keys: bson.D{{Key: "debateId", Value: 1}}}},
		DebatesCollection:       {{Keys: bson.D{{Key: "status", Value: 1}, {Key: "turnTimeLimit", Value: 1}}}},
		NotificationsCollection: {{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}}},
	}
	for name, idx := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) findOne(ctx context.Context, collection string, filter bson.M, out interface{}, opts ...*options.FindOneOptions) error {
	err := s.col(collection).FindOne(ctx, filter, opts...).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) insertOne(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.col(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) InsertDebate(ctx context.Context, debate *models.Debate) error {
	if debate.ID.IsZero() {
		debate.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, DebatesCollection, debate)
}

func (s *MongoStore) GetDebate(ctx context.Context, id primitive.ObjectID) (*models.Debate, error) {
	var debate models.Debate
	if err := s.findOne(ctx, DebatesCollection, bson.M{"_id": id}, &debate); err != nil {
		return nil, err
	}
	return &debate, nil
}

func (s *MongoStore) UpdateDebate(ctx context.Context, debate *models.Debate) error {
	next := *debate
	next.Version = debate.Version + 1
	res, err := s.col(DebatesCollection).ReplaceOne(ctx, bson.M{"_id": debate.ID, "version": debate.Version}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	debate.Version = next.Version
	return nil
}

func (s *MongoStore) ListTimedDebatesInProgress(ctx context.Context) ([]models.Debate, error) {
	filter := bson.M{
		"status":        models.DebateStatusInProgress,
		"turnTimeLimit": bson.M{"$ne": nil},
	}
	return findAll[models.Debate](ctx, s.col(DebatesCollection), filter, options.Find().SetSort(bson.M{"createdAt": 1}))
}

func (s *MongoStore) InsertTopics(ctx context.Context, topics []models.DebateTopic) error {
	if len(topics) == 0 {
		return nil
	}
	docs := make([]interface{}, len(topics))
	for i := range topics {
		if topics[i].ID.IsZero() {
			topics[i].ID = primitive.NewObjectID()
		}
		docs[i] = topics[i]
	}
	_, err := s.col(TopicsCollection).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) ListTopics(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateTopic, error) {
	return findAll[models.DebateTopic](ctx, s.col(TopicsCollection), bson.M{"debateId": debateID})
}

func (s *MongoStore) InsertParticipant(ctx context.Context, participant *models.DebateParticipant) error {
	if participant.ID.IsZero() {
		participant.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, ParticipantsCollection, participant)
}

func (s *MongoStore) ListParticipants(ctx context.Context, debateID primitive.ObjectID) ([]models.DebateParticipant, error) {
	return findAll[models.DebateParticipant](ctx, s.col(ParticipantsCollection), bson.M{"debateId": debateID},
		options.Find().SetSort(bson.M{"joinedAt": 1}))
}

func (s *MongoStore) UpdateParticipantStatus(ctx context.Context, id primitive.ObjectID, status models.ParticipantStatus) error {
	res, err := s.col(ParticipantsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertArgument(ctx context.Context, argument *models.Argument) error {
	if argument.ID.IsZero() {
		argument.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, ArgumentsCollection, argument)
}

func (s *MongoStore) GetArgument(ctx context.Context, id primitive.ObjectID) (*models.Argument, error) {
	var argument models.Argument
	if err := s.findOne(ctx, ArgumentsCollection, bson.M{"_id": id}, &argument); err != nil {
		return nil, err
	}
	return &argument, nil
}

func (s *MongoStore) ListArguments(ctx context.Context, debateID primitive.ObjectID) ([]models.Argument, error) {
	sort := bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	return findAll[models.Argument](ctx, s.col(ArgumentsCollection), bson.M{"debateId": debateID}, options.Find().SetSort(sort))
}

func (s *MongoStore) LatestArgument(ctx context.Context, debateID primitive.ObjectID) (*models.Argument, error) {
	var argument models.Argument
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if err := s.findOne(ctx, ArgumentsCollection, bson.M{"debateId": debateID}, &argument, opts); err != nil {
		return nil, err
	}
	return &argument, nil
}

func (s *MongoStore) InsertReferences(ctx context.Context, refs []models.Reference) error {
	if len(refs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(refs))
	for i := range refs {
		if refs[i].ID.IsZero() {
			refs[i].ID = primitive.NewObjectID()
		}
		docs[i] = refs[i]
	}
	_, err := s.col(ReferencesCollection).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) ListArgumentReferences(ctx context.Context, argumentIDs []primitive.ObjectID) ([]models.Reference, error) {
	if len(argumentIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Reference](ctx, s.col(ReferencesCollection), bson.M{"argumentId": bson.M{"$in": argumentIDs}})
}

func (s *MongoStore) ListDefinitionReferences(ctx context.Context, definitionIDs []primitive.ObjectID) ([]models.Reference, error) {
	if len(definitionIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Reference](ctx, s.col(ReferencesCollection), bson.M{"definitionId": bson.M{"$in": definitionIDs}})
}

func (s *MongoStore) InsertDefinition(ctx context.Context, def *models.Definition) error {
	if def.ID.IsZero() {
		def.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, DefinitionsCollection, def)
}

func (s *MongoStore) GetDefinition(ctx context.Context, id primitive.ObjectID) (*models.Definition, error) {
	var def models.Definition
	if err := s.findOne(ctx, DefinitionsCollection, bson.M{"_id": id}, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *MongoStore) UpdateDefinition(ctx context.Context, def *models.Definition) error {
	res, err := s.col(DefinitionsCollection).ReplaceOne(ctx, bson.M{"_id": def.ID}, def)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListDefinitions(ctx context.Context, debateID primitive.ObjectID) ([]models.Definition, error) {
	return findAll[models.Definition](ctx, s.col(DefinitionsCollection), bson.M{"debateId": debateID},
		options.Find().SetSort(bson.M{"createdAt": 1}))
}

func (s *MongoStore) FindVote(ctx context.Context, kind models.VoteTargetKind, targetID, userID primitive.ObjectID) (*models.Vote, error) {
	var vote models.Vote
	if err := s.findOne(ctx, voteCollection(kind), bson.M{"targetId": targetID, "userId": userID}, &vote); err != nil {
		return nil, err
	}
	return &vote, nil
}

func (s *MongoStore) InsertVote(ctx context.Context, vote *models.Vote) error {
	if vote.ID.IsZero() {
		vote.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, voteCollection(vote.TargetKind), vote)
}

func (s *MongoStore) UpdateVote(ctx context.Context, vote *models.Vote) error {
	update := bson.M{"$set": bson.M{"support": vote.Support, "updatedAt": vote.UpdatedAt}}
	res, err := s.col(voteCollection(vote.TargetKind)).UpdateOne(ctx, bson.M{"_id": vote.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteVote(ctx context.Context, kind models.VoteTargetKind, id primitive.ObjectID) error {
	res, err := s.col(voteCollection(kind)).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) TallyVotes(ctx context.Context, kind models.VoteTargetKind, targetID primitive.ObjectID) (models.VoteTally, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"targetId": targetID}}},
		{{Key: "$group", Value: bson.M{"_id": "$support", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.col(voteCollection(kind)).Aggregate(ctx, pipeline)
	if err != nil {
		return models.VoteTally{}, err
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Support bool  `bson:"_id"`
		Count   int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return models.VoteTally{}, err
	}

	var tally models.VoteTally
	for _, g := range groups {
		if g.Support {
			tally.Support = g.Count
		} else {
			tally.Oppose = g.Count
		}
	}
	return tally, nil
}

func (s *MongoStore) UpsertWinCondition(ctx context.Context, wc *models.WinCondition) error {
	if wc.ID.IsZero() {
		wc.ID = primitive.NewObjectID()
	}
	update := bson.M{
		"$set": bson.M{
			"type":        wc.Type,
			"winningRole": wc.WinningRole,
			"decidedAt":   wc.DecidedAt,
			"description": wc.Description,
		},
		"$setOnInsert": bson.M{"_id": wc.ID},
	}
	_, err := s.col(WinConditionsCollection).UpdateOne(ctx, bson.M{"debateId": wc.DebateID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) GetWinCondition(ctx context.Context, debateID primitive.ObjectID) (*models.WinCondition, error) {
	var wc models.WinCondition
	if err := s.findOne(ctx, WinConditionsCollection, bson.M{"debateId": debateID}, &wc); err != nil {
		return nil, err
	}
	return &wc, nil
}

func (s *MongoStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, NotificationsCollection, n)
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(int64(limit))
	return findAll[models.Notification](ctx, s.col(NotificationsCollection), bson.M{"userId": userID}, opts)
}

func (s *MongoStore) InsertUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	return s.insertOne(ctx, UsersCollection, user)
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, UsersCollection, bson.M{"_id": id}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, UsersCollection, bson.M{"email": email}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	var user models.User
	if err := s.findOne(ctx, UsersCollection, bson.M{"resetTokenHash": tokenHash}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.col(UsersCollection).ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping is used by the health check.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}
