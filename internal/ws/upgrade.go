package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"salonshop/config"
	"salonshop/internal/auth"
	"salonshop/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UpgradeAdminWS streams admin notifications. The access token comes in the
// token query parameter since browsers cannot set headers on WebSocket requests.
func UpgradeAdminWS(cfg *config.JWTConfig, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		token := c.Query("token")
		if token == "" {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"token required"}`))
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
			return
		}
		if claims.Role != domain.RoleAdmin {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"forbidden"}`))
			return
		}
		client := NewClient(claims.UserID, claims.Role)
		hub.Register(client)
		defer client.Close()
		log.Debug().Uint("user_id", claims.UserID).Int("clients", hub.ClientCount()).Msg("[WS] admin connected")

		hello, _ := json.Marshal(map[string]interface{}{"type": "connected"})
		client.Send <- hello
		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
