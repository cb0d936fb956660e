package services

import (
	"context"
	"time"

	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the append-only notification sink
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// EventPublisher delivers live debate events to spectators
type EventPublisher interface {
	Publish(ctx context.Context, event *debate.Event) error
}

// Mailer is the email sink; delivery failures are never fatal to the caller
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, url, name string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
}

// StoreNotifier persists notifications in the store
type StoreNotifier struct {
	Store db.Store
}

func (n StoreNotifier) Notify(ctx context.Context, note *models.Notification) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	return n.Store.InsertNotification(ctx, note)
}

// List returns the newest notifications of userID.
func (n StoreNotifier) List(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return n.Store.ListNotifications(ctx, userID, limit)
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *debate.Event) error { return nil }

// sideEffects runs the fire-and-forget parts of an operation after its data is committed.
type sideEffects struct {
	notifier Notifier
	events   EventPublisher
	log      logrus.FieldLogger
}

func (s sideEffects) notify(ctx context.Context, note *models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"type":    note.Type,
			"user_id": note.UserID.Hex(),
		}).Warn("failed to create notification")
	}
}

func (s sideEffects) publish(ctx context.Context, debateID primitive.ObjectID, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	event, err := debate.NewEvent(debateID.Hex(), eventType, payload)
	if err == nil {
		err = s.events.Publish(ctx, event)
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":     eventType,
			"debate_id": debateID.Hex(),
		}).Warn("failed to publish debate event")
	}
}
