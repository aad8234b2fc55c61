package presence

import (
	"log"
	"net/http"
	"time"

	"portal/internal/domain"
	"portal/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,

	// Allow any origin for dev; tighten for production deployments.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades admin watchers onto the presence feed.
type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
}

func NewHandler(hub *Hub, jwtService *jwt.Service) *Handler {
	return &Handler{hub: hub, jwtService: jwtService}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/presence", h.HandleWebSocket)
}

// HandleWebSocket authenticates via ?token= (WebSocket clients cannot
// set headers), requires an admin role, and keeps the connection alive
// with ping/pong until the watcher disconnects.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Token is required. Use ?token=YOUR_JWT_TOKEN",
		})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid or expired token",
		})
		return
	}

	if !domain.Role(claims.Role).AtLeast(domain.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Admin role required",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	watcherID := claims.AccountID
	h.hub.Register(watcherID, conn)
	log.Printf("Watcher %d connected to presence feed", watcherID)

	defer func() {
		h.hub.Unregister(watcherID)
		log.Printf("Watcher %d disconnected from presence feed", watcherID)
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	go h.pingLoop(watcherID)

	h.readLoop(conn)
}

// pingLoop sends a ping every 30 seconds until the watcher drops off.
// Pings go through the hub so they serialize with event broadcasts on
// the same connection.
func (h *Handler) pingLoop(watcherID int64) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := h.hub.Ping(watcherID); err != nil {
			return
		}
	}
}

// readLoop drains the connection. Watchers only listen, but reading is
// what notices the close frame and pong replies.
func (h *Handler) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
