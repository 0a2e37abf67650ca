package ws

import (
	"net/http"

	"colorsnap/internal/logger"
	"colorsnap/internal/service"
	"colorsnap/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades an authenticated request and attaches the socket to
// the player's session, starting one if needed.
func HandleWS(hub *Hub, mgr *session.Manager, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		addr, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		s, err := mgr.Connect(addr)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "address", addr.Hex(), "error", err)
			return
		}

		client := NewClient(conn, hub, s)
		logger.Debug("ws client connected", "client", client.ID, "address", addr.Hex())
		go client.Run()
	}
}
