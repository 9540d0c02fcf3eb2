// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Maximum wait for a client ping before the connection is considered dead.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Issuer *auth.TokenIssuer
}

// ServeWs streams ledger notifications. The optional batchId query parameter restricts the
// stream to one batch.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	_, caller, err := h.Issuer.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	var batchID uint64
	if raw := c.Query("batchId"); raw != "" {
		batchID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil || batchID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batchId must be a positive integer", "kind": "VALIDATION"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := socket.NewClient(uuid.NewString(), caller, batchID, conn)
	h.Hub.Register(client)

	defer func() {
		h.Hub.Unregister(client.ID)
		conn.Close()
	}()

	// Each client ping extends the read deadline; gorilla answers with the pong.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}
	}
}
