package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"debatehub/internal/debate"
	"debatehub/structs"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// Client is one spectator socket watching a debate
type Client struct {
	Conn     *websocket.Conn
	DebateID string
	// WriteWait bounds each write; zero means writeWait.
	WriteWait time.Duration
	writeMu   sync.Mutex
}

// SafeWriteJSON serialises writes; gorilla connections allow one concurrent writer.
// A spectator that stops reading fails the write once the deadline passes.
func (c *Client) SafeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wait := c.WriteWait
	if wait <= 0 {
		wait = writeWait
	}
	if err := c.Conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

// Hub keeps the spectators of each debate on this instance. Without a stream it is also
// the event publisher; with one, it tails the debate's stream while anyone is watching.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]struct{}
	followers map[string]context.CancelFunc
	consumer  *debate.StreamConsumer
	ctx       context.Context
	log       logrus.FieldLogger
}

func NewHub(ctx context.Context, log logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		followers: make(map[string]context.CancelFunc),
		ctx:       ctx,
		log:       log.WithField("component", "hub"),
	}
}

// FollowStreams makes the hub read events from Redis instead of receiving them in process.
func (h *Hub) FollowStreams(rdb redis.Cmdable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consumer = debate.NewStreamConsumer(rdb, h, h.log)
}

// Register adds a client to its debate room
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.DebateID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.DebateID] = room
	}
	room[client] = struct{}{}

	if h.consumer != nil && h.followers[client.DebateID] == nil {
		ctx, cancel := context.WithCancel(h.ctx)
		h.followers[client.DebateID] = cancel
		go h.consumer.Follow(ctx, client.DebateID)
	}
	h.log.WithFields(logrus.Fields{
		"debate_id":  client.DebateID,
		"spectators": len(room),
	}).Debug("spectator joined")
}

// Unregister removes a client and closes its connection. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DebateID]
	if ok {
		if _, present := room[client]; present {
			delete(room, client)
			client.Conn.Close()
		}
		if len(room) == 0 {
			delete(h.rooms, client.DebateID)
			if cancel := h.followers[client.DebateID]; cancel != nil {
				cancel()
				delete(h.followers, client.DebateID)
			}
		}
	}
	h.mu.Unlock()
}

// Spectators returns the number of clients watching debateID.
func (h *Hub) Spectators(debateID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[debateID])
}

// Publish delivers an event to this instance's spectators directly.
func (h *Hub) Publish(_ context.Context, event *debate.Event) error {
	h.BroadcastToDebate(event.DebateID, event)
	return nil
}

// BroadcastToDebate writes event to every spectator of debateID
func (h *Hub) BroadcastToDebate(debateID string, event *debate.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode debate event")
		return
	}
	message := structs.LiveMessage{Type: structs.LiveMessageEvent, Event: data}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[debateID]))
	for c := range h.rooms[debateID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	// one slow spectator must not hold up the rest of the room
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if err := c.SafeWriteJSON(message); err != nil {
				h.log.WithError(err).WithField("debate_id", debateID).Debug("dropping spectator after failed write")
				h.Unregister(c)
			}
		}(c)
	}
	wg.Wait()
}

// Close disconnects everyone and stops the stream followers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for c := range room {
			c.Conn.Close()
		}
		delete(h.rooms, id)
	}
	for id, cancel := range h.followers {
		cancel()
		delete(h.followers, id)
	}
}
