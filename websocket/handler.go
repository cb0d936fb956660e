package websocket

import (
	"errors"
	"net/http"
	"time"

	"debatehub/db"
	"debatehub/structs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// NewUpgrader accepts sockets from the given origins; an empty list or "*" allows any.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// DebateLiveHandler streams a debate's events to a spectator
func DebateLiveHandler(hub *Hub, store db.Store, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		debateID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid debate id"})
			return
		}
		if _, err := store.GetDebate(c.Request.Context(), debateID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := &Client{Conn: conn, DebateID: debateID.Hex()}
		hub.Register(client)
		defer hub.Unregister(client)

		if err := client.SafeWriteJSON(structs.LiveMessage{Type: "connected", Content: debateID.Hex()}); err != nil {
			hub.log.WithError(err).WithField("debate_id", client.DebateID).Debug("spectator gone before hello")
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					client.writeMu.Lock()
					err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
					client.writeMu.Unlock()
					if err != nil {
						return
					}
				}
			}
		}()

		// spectators only listen; reading drives the pong handler and notices disconnects
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					hub.log.WithError(err).WithField("debate_id", client.DebateID).Debug("spectator socket closed")
				}
				return
			}
		}
	}
}
