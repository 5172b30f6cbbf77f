package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/commenttree"
	"github.com/anonto42/quill/backend/internal/loaders"
	"github.com/anonto42/quill/backend/internal/middleware"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository repositories.CommentRepository
	postRepository    repositories.PostRepository
	users             loaders.UserSource
	tree              commenttree.Options
	cache             *cache.Cache
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, postRepo repositories.PostRepository,
	users loaders.UserSource, tree commenttree.Options, c *cache.Cache) *CommentHandler {
	return &CommentHandler{
		commentRepository: commentRepo,
		postRepository:    postRepo,
		users:             users,
		tree:              tree,
		cache:             c,
	}
}

// RegisterPublicCommentRoutes registers the comment thread read route
func (h *CommentHandler) RegisterPublicCommentRoutes(g *echo.Group) {
	g.GET("/posts/:id/comments", h.GetCommentsByPostID)
}

// RegisterCommentRoutes registers routes that need an authenticated user
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comments", h.CreateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// RegisterAdminCommentRoutes registers moderation routes; g must be admin-only
func (h *CommentHandler) RegisterAdminCommentRoutes(g *echo.Group) {
	g.GET("/comments", h.ListComments)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CommentThread is a post's comments as a nested forest
type CommentThread struct {
	Comments []*commenttree.Node `json:"comments"`
	Total    int                 `json:"total"`
	MaxDepth int                 `json:"max_depth"`
}

// GetCommentsByPostID returns the nested comment thread of a post, newest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("id")

	key := cache.NewKey(cache.Comments, map[string]string{"post": postID})
	comments, err := cache.GetOrLoad(h.cache, key, func() ([]models.Comment, error) {
		if _, err := h.postRepository.GetPostByID(ctx, postID); err != nil {
			return nil, err
		}
		return h.commentRepository.GetCommentsByPostID(ctx, postID)
	})
	if err != nil {
		return httpError(err)
	}

	forest, err := commenttree.Build(comments, h.tree)
	if err != nil {
		return httpError(err)
	}

	nodes := commenttree.Flatten(forest)
	ids := make([]uint, 0, len(nodes))
	for _, n := range nodes {
		if n.AuthorID != nil {
			ids = append(ids, *n.AuthorID)
		}
	}
	if len(ids) > 0 {
		authors, err := loaders.For(ctx, h.users).Users(ctx, ids)
		if err != nil {
			return httpError(err)
		}
		for _, n := range nodes {
			if n.AuthorID != nil {
				n.Author = authors[*n.AuthorID]
			}
		}
	}

	maxDepth := h.tree.MaxDepth
	if maxDepth <= 0 {
		maxDepth = commenttree.DefaultMaxDepth
	}
	return c.JSON(http.StatusOK, CommentThread{Comments: forest, Total: len(nodes), MaxDepth: maxDepth})
}

// CreateComment creates a comment or a reply on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	ctx := c.Request().Context()
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	postID := c.Param("id")

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(err)
	}
	if post.Status != models.PostStatusPublished {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	if req.ParentID != nil {
		parent, err := h.commentRepository.GetCommentByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, "Parent comment not found")
			}
			return httpError(err)
		}
		if parent.PostID == nil || *parent.PostID != postID {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Parent comment belongs to another post")
		}
		if err := h.checkDepth(c, parent.ID); err != nil {
			return err
		}
	}

	authorID := claims.UserID
	comment := &models.Comment{
		Content:  req.Content,
		AuthorID: &authorID,
		PostID:   &postID,
		ParentID: req.ParentID,
	}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(cache.Comments)
	return c.JSON(http.StatusCreated, comment)
}

// checkDepth rejects replies to a comment that already sits at the deepest level.
// Ancestors that no longer exist end the chain, the same way the tree promotes them.
func (h *CommentHandler) checkDepth(c echo.Context, parentID uint) error {
	ctx := c.Request().Context()
	maxDepth := h.tree.MaxDepth
	if maxDepth <= 0 {
		maxDepth = commenttree.DefaultMaxDepth
	}

	level, err := commenttree.LevelOf(parentID, func(id uint) (*uint, error) {
		p, err := h.commentRepository.GetParentID(ctx, id)
		if err != nil || p == nil {
			return p, err
		}
		if _, err := h.commentRepository.GetParentID(ctx, *p); errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return p, nil
	})
	if err != nil {
		return httpError(err)
	}
	if level >= maxDepth {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Maximum reply depth reached")
	}
	return nil
}

// DeleteComment deletes a comment. Authors may delete their own; admins any.
// Replies are kept and fall back to the orphan policy.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	commentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}

	comment, err := h.commentRepository.GetCommentByID(ctx, uint(commentID))
	if err != nil {
		return httpError(err)
	}

	isOwner := comment.AuthorID != nil && *comment.AuthorID == claims.UserID
	if !isOwner && claims.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	if err := h.commentRepository.DeleteComment(ctx, comment.ID); err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(cache.Comments)
	return c.NoContent(http.StatusNoContent)
}

// ListComments pages through every comment for moderation, newest first
func (h *CommentHandler) ListComments(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit = pagination(page, limit)

	comments, total, err := h.commentRepository.ListComments(c.Request().Context(), (page-1)*limit, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"comments": comments,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}
