package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/anonto42/quill/backend/internal/ai"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/anonto42/quill/backend/internal/richtext"
	"github.com/labstack/echo/v4"
)

const searchLimit = 10

// Assistant is the AI surface used by the handlers. Implemented by *ai.Service.
type Assistant interface {
	Summarize(ctx context.Context, post *models.Post) (string, error)
	SearchKeywords(ctx context.Context, question string) ([]string, error)
	Chat(ctx context.Context, history []ai.Message, articleContext string, onChunk func(string) error) error
}

// AIHandler serves summaries, keyword search and the streaming reading assistant
type AIHandler struct {
	assistant      Assistant
	postRepository repositories.PostRepository
}

// NewAIHandler creates a new AIHandler. assistant may be nil when no model is configured.
func NewAIHandler(assistant Assistant, postRepo repositories.PostRepository) *AIHandler {
	return &AIHandler{assistant: assistant, postRepository: postRepo}
}

// RegisterAIRoutes registers search and AI routes
func (h *AIHandler) RegisterAIRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
	g.POST("/ai/summarize/:id", h.Summarize)
	g.POST("/ai/search", h.AISearch)
	g.POST("/ai/chat", h.Chat)
}

// ChatRequest is the conversation so far, optionally about one post
type ChatRequest struct {
	Messages []ai.Message `json:"messages" validate:"required,min=1,max=40,dive"`
	PostID   string       `json:"post_id,omitempty"`
}

// SearchRequest is a free-form question
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

// Search matches published posts against the words of q
func (h *AIHandler) Search(c echo.Context) error {
	terms := strings.Fields(c.QueryParam("q"))
	if len(terms) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	posts, err := h.postRepository.SearchPosts(c.Request().Context(), terms, searchLimit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"terms": terms, "posts": posts})
}

// Summarize returns a short model-written summary of a published post
func (h *AIHandler) Summarize(c echo.Context) error {
	if h.assistant == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}

	post, err := h.publishedPost(c, c.Param("id"))
	if err != nil {
		return err
	}

	summary, err := h.assistant.Summarize(c.Request().Context(), post)
	if err != nil {
		return aiError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"post_id": post.ID.Hex(), "summary": summary})
}

// AISearch rewrites a question into keywords and searches with them
func (h *AIHandler) AISearch(c echo.Context) error {
	if h.assistant == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	keywords, err := h.assistant.SearchKeywords(c.Request().Context(), req.Query)
	if err != nil {
		return aiError(err)
	}
	if len(keywords) == 0 {
		keywords = strings.Fields(req.Query)
	}

	posts, err := h.postRepository.SearchPosts(c.Request().Context(), keywords, searchLimit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"keywords": keywords, "posts": posts})
}

// Chat streams the assistant's answer as server-sent events. Each chunk is a JSON
// string in a data line; the stream ends with a done event.
func (h *AIHandler) Chat(c echo.Context) error {
	if h.assistant == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if req.Messages[len(req.Messages)-1].Role != ai.RoleUser {
		return echo.NewHTTPError(http.StatusBadRequest, ai.ErrNoQuestion.Error())
	}

	var articleContext string
	if req.PostID != "" {
		post, err := h.publishedPost(c, req.PostID)
		if err != nil {
			return err
		}
		articleContext = post.Title + "\n\n" + richtext.PlainText(post.Content)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	err := h.assistant.Chat(c.Request().Context(), req.Messages, articleContext, func(chunk string) error {
		data, _ := json.Marshal(chunk)
		if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		// headers are gone; report the failure in-band
		log.Printf("chat stream failed: %v", err)
		fmt.Fprint(res, "event: error\ndata: \"the assistant is unavailable\"\n\n")
		res.Flush()
		return nil
	}

	fmt.Fprint(res, "event: done\ndata: {}\n\n")
	res.Flush()
	return nil
}

func (h *AIHandler) publishedPost(c echo.Context, id string) (*models.Post, error) {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if post.Status != models.PostStatusPublished {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return post, nil
}

func aiError(err error) error {
	switch {
	case errors.Is(err, ai.ErrNothingToSummarize):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusRequestTimeout, "Request cancelled")
	}
	log.Printf("ai request failed: %v", err)
	return echo.NewHTTPError(http.StatusBadGateway, "The assistant is unavailable, please try again")
}
