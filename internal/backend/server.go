// Package backend is a development server speaking the notification REST
// and push protocol, so the client can run end to end without the real
// business backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nhle/bizdesk/internal/feed/push"
	"github.com/nhle/bizdesk/internal/feed/rest"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	commandTimeout = 5 * time.Second
)

// Server is the development backend HTTP server.
type Server struct {
	router   *gin.Engine
	store    store.Store
	hub      *Hub
	secret   string
	upgrader websocket.Upgrader
}

// NewServer builds the router over st. Tokens are verified with secret.
func NewServer(st store.Store, secret string) *Server {
	router := gin.New()
	router.Use(recovery())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		store:  st,
		hub:    NewHub(),
		secret: secret,
		upgrader: websocket.Upgrader{
			// Development only: the TUI is not a browser, so origin checks
			// do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run listens on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	auth := requireAuth(s.secret)

	api := s.router.Group("/api")
	api.Use(auth)
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleList())
			notifications.GET("/unread-count", s.handleUnreadCount())
			notifications.POST("", s.handleCreate())
			notifications.DELETE("/:id", s.handleDelete())
		}
	}

	s.router.GET("/ws", auth, s.handleSocket())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "bizdesk-dev"})
	})
}

// recovery turns panics into a logged 500.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		limit := min(queryInt(c, "limit", defaultLimit), maxLimit)

		items, total, err := s.store.ListNotifications(c.Request.Context(), userID(c), store.ListFilter{
			Limit:  limit,
			Offset: (page - 1) * limit,
		})
		if err != nil {
			log.Printf("listing notifications: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
			return
		}

		c.JSON(http.StatusOK, rest.ListResponse{
			Notifications: items,
			Pagination: model.Pagination{
				Page:       page,
				Limit:      limit,
				Total:      total,
				TotalPages: (total + limit - 1) / limit,
			},
		})
	}
}

func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.CountUnread(c.Request.Context(), userID(c))
		if err != nil {
			log.Printf("counting unread notifications: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
			return
		}
		c.JSON(http.StatusOK, rest.UnreadCountResponse{UnreadCount: &n})
	}
}

// createRequest is the body of POST /api/notifications.
type createRequest struct {
	Title      string                 `json:"title" binding:"required"`
	Message    string                 `json:"message"`
	Type       model.NotificationType `json:"type"`
	Priority   model.Priority         `json:"priority"`
	CompanyID  string                 `json:"companyId"`
	EmployeeID string                 `json:"employeeId"`
	Metadata   json.RawMessage        `json:"metadata"`
}

// handleCreate stores a notification for the caller and pushes it to
// every live connection of the caller.
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
		if req.Type != "" && !req.Type.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown type %q", req.Type)})
			return
		}
		if req.Priority != "" && !req.Priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown priority %q", req.Priority)})
			return
		}

		uid := userID(c)
		n, err := s.store.CreateNotification(c.Request.Context(), uid, model.Notification{
			Title:      req.Title,
			Message:    req.Message,
			Type:       req.Type,
			Priority:   req.Priority,
			CompanyID:  req.CompanyID,
			EmployeeID: req.EmployeeID,
			Metadata:   req.Metadata,
		})
		if err != nil {
			log.Printf("creating notification: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
			return
		}

		s.broadcast(uid, push.EventNewNotification, n)
		c.JSON(http.StatusCreated, n)
	}
}

func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := s.store.DeleteNotification(c.Request.Context(), userID(c), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		case err != nil:
			log.Printf("deleting notification %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notification"})
		default:
			c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
		}
	}
}

// handleSocket upgrades an authenticated request to a push connection.
func (s *Server) handleSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}

		cl := &client{userID: userID(c), conn: conn, send: make(chan []byte, sendBacklog)}
		s.hub.register(cl)
		go cl.writePump()

		s.readPump(cl)
	}
}

// readPump applies client commands until the connection fails.
func (s *Server) readPump(cl *client) {
	defer func() {
		s.hub.unregister(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(64 << 10)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	cl.conn.SetPingHandler(func(data string) error {
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return cl.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, frame, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read for %s: %v", cl.userID, err)
			}
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleCommand(cl.userID, frame)
	}
}

func (s *Server) handleCommand(uid string, frame []byte) {
	var env push.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Printf("websocket: invalid frame from %s: %v", uid, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch env.Event {
	case push.EventMarkRead:
		var p push.ReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.NotificationID == "" {
			log.Printf("websocket: invalid %s from %s", env.Event, uid)
			return
		}
		changed, err := s.store.MarkNotificationRead(ctx, uid, p.NotificationID)
		if err != nil {
			log.Printf("websocket: %v", err)
			return
		}
		if changed {
			s.broadcast(uid, push.EventNotificationRead, p)
		}

	case push.EventMarkAllRead:
		if _, err := s.store.MarkAllRead(ctx, uid); err != nil {
			log.Printf("websocket: %v", err)
			return
		}
		s.broadcast(uid, push.EventAllMarkedRead, nil)

	default:
		log.Printf("websocket: unknown event %q from %s", env.Event, uid)
	}
}

func (s *Server) broadcast(uid, event string, data any) {
	frame, err := push.Encode(event, data)
	if err != nil {
		log.Printf("encoding %s: %v", event, err)
		return
	}
	s.hub.Broadcast(uid, frame)
}
