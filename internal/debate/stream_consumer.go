package debate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const streamMaxLen = 10000

// DebateHub interface for broadcasting events
type DebateHub interface {
	BroadcastToDebate(debateID string, event *Event)
}

func streamKey(debateID string) string {
	return fmt.Sprintf("debate:%s:events", debateID)
}

// StreamPublisher appends events to the debate's Redis Stream
type StreamPublisher struct {
	rdb redis.Cmdable
}

func NewStreamPublisher(rdb redis.Cmdable) *StreamPublisher {
	return &StreamPublisher{rdb: rdb}
}

// Publish publishes an event to the Redis Stream
func (p *StreamPublisher) Publish(ctx context.Context, event *Event) error {
	eventData, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Add to stream with MAXLEN to bound history
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(event.DebateID),
		Values: map[string]interface{}{"data": eventData},
		MaxLen: streamMaxLen,
		Approx: true,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// StreamConsumer tails debate streams and forwards events to the local hub. Every instance
// reads every entry, so each instance's spectators see all events.
type StreamConsumer struct {
	rdb   redis.Cmdable
	hub   DebateHub
	log   logrus.FieldLogger
	block time.Duration
}

func NewStreamConsumer(rdb redis.Cmdable, hub DebateHub, log logrus.FieldLogger) *StreamConsumer {
	return &StreamConsumer{rdb: rdb, hub: hub, log: log, block: time.Second}
}

// Follow forwards events appended after the call until ctx is cancelled.
func (sc *StreamConsumer) Follow(ctx context.Context, debateID string) {
	key := streamKey(debateID)
	lastID := "$"

	for ctx.Err() == nil {
		streams, err := sc.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, lastID},
			Count:   100,
			Block:   sc.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			sc.log.WithError(err).WithField("debate_id", debateID).Warn("reading debate stream failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				if err := sc.processMessage(debateID, message); err != nil {
					sc.log.WithError(err).WithField("message_id", message.ID).Warn("skipping malformed debate event")
				}
			}
		}
	}
}

// processMessage processes a stream message and forwards to WebSocket clients
func (sc *StreamConsumer) processMessage(debateID string, message redis.XMessage) error {
	eventData, ok := message.Values["data"].(string)
	if !ok {
		return fmt.Errorf("invalid message format: missing data field")
	}

	event, err := UnmarshalEvent(eventData)
	if err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	sc.hub.BroadcastToDebate(debateID, event)
	return nil
}
