package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens on the token, not the origin.
		return true
	},
}

// Handler upgrades an authenticated request and joins the connection to the
// user's notification group. Browsers cannot set headers on a WebSocket
// handshake, so the token travels in the query string.
func Handler(hub *Hub, authManager *auth.Manager, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		user, err := authManager.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, user.NotificationGroup())
		hub.register(client)

		logger.Info(
			"Websocket client connected",
			zap.Int64("user_id", user.ID),
			zap.String("group", client.group),
		)

		go client.writePump()
		go client.readPump()
	})
}
