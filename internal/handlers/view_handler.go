package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/anonto42/quill/backend/internal/viewtracker"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	pingInterval = 10 * time.Second
	pongWait     = 2 * pingInterval
)

// ViewHandler counts post views. A reading session is a websocket held open while the
// post is on screen; the view counts once it has stayed open past the dwell delay.
type ViewHandler struct {
	postRepository repositories.PostRepository
	tracker        *viewtracker.Tracker
	cache          *cache.Cache
	upgrader       websocket.Upgrader
}

// NewViewHandler creates a new ViewHandler
func NewViewHandler(postRepo repositories.PostRepository, tracker *viewtracker.Tracker, c *cache.Cache) *ViewHandler {
	return &ViewHandler{
		postRepository: postRepo,
		tracker:        tracker,
		cache:          c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterViewRoutes registers view counting routes
func (h *ViewHandler) RegisterViewRoutes(g *echo.Group) {
	g.POST("/posts/:id/views", h.IncrementViews)
	g.GET("/posts/:id/read", h.Read)
}

// IncrementViews adds one view to a post unconditionally
func (h *ViewHandler) IncrementViews(c echo.Context) error {
	if err := h.postRepository.IncrementViews(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Read upgrades to a websocket and mounts a view session until the client goes away
func (h *ViewHandler) Read(c echo.Context) error {
	postID := c.Param("id")
	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		return httpError(err)
	}
	if post.Status != models.PostStatusPublished {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response
		return nil
	}
	defer ws.Close()

	session := h.tracker.Mount(postID)
	defer func() {
		session.Unmount()
		if session.Recorded() {
			h.cache.Invalidate(cache.Posts)
		}
	}()

	if err := ws.WriteJSON(echo.Map{"post_id": postID, "views_count": post.ViewsCount}); err != nil {
		return nil
	}

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()
	defer close(done)

	// Clients send nothing meaningful; reading only detects the disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("reading session for post %s ended: %v", postID, err)
			}
			return nil
		}
	}
}
