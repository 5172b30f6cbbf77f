package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/middleware"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/anonto42/quill/backend/internal/richtext"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// PostPage is one page of a post listing
type PostPage struct {
	Posts []models.Post `json:"posts"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// Submitter runs an authoring submission. Implemented by *authoring.Workflow.
type Submitter interface {
	Submit(ctx context.Context, f *authoring.Form, authorID string) (*authoring.Result, error)
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository    repositories.PostRepository
	commentRepository repositories.CommentRepository
	workflow          Submitter
	cache             *cache.Cache
	maxUploadBytes    int64
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, commentRepo repositories.CommentRepository,
	workflow Submitter, c *cache.Cache, maxUploadBytes int64) *PostHandler {
	return &PostHandler{
		postRepository:    postRepo,
		commentRepository: commentRepo,
		workflow:          workflow,
		cache:             c,
		maxUploadBytes:    maxUploadBytes,
	}
}

// RegisterPostRoutes registers the public read routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/slug/:slug", h.GetPostBySlug)
	g.GET("/posts/:id", h.GetPost)
}

// RegisterAdminPostRoutes registers the authoring routes; g must be admin-only
func (h *PostHandler) RegisterAdminPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetAllPosts)
	g.GET("/posts/:id", h.GetPostForEdit)
	g.POST("/posts", h.CreatePost)
	g.POST("/posts/preview", h.Preview)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// GetPosts lists published posts, optionally filtered by label and type
func (h *PostHandler) GetPosts(c echo.Context) error {
	var q models.PostListQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(q); err != nil {
		return err
	}
	page, limit := pagination(q.Page, q.Limit)

	key := cache.NewKey(cache.Posts, map[string]string{
		"label": q.LabelID,
		"type":  q.TypeID,
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	})
	result, err := cache.GetOrLoad(h.cache, key, func() (*PostPage, error) {
		filter := models.PostFilter{Status: models.PostStatusPublished, LabelID: q.LabelID, TypeID: q.TypeID}
		posts, total, err := h.postRepository.ListPosts(c.Request().Context(), filter,
			int64((page-1)*limit), int64(limit))
		if err != nil {
			return nil, err
		}
		return &PostPage{Posts: posts, Total: total, Page: page, Limit: limit}, nil
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetPost retrieves a published post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if post.Status != models.PostStatusPublished {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return c.JSON(http.StatusOK, post)
}

// GetPostBySlug retrieves a published post by its slug
func (h *PostHandler) GetPostBySlug(c echo.Context) error {
	post, err := h.postRepository.GetPostBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(err)
	}
	if post.Status != models.PostStatusPublished {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return c.JSON(http.StatusOK, post)
}

// GetAllPosts lists posts in every status for the admin table
func (h *PostHandler) GetAllPosts(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit = pagination(page, limit)

	filter := models.PostFilter{
		Status:  models.PostStatus(c.QueryParam("status")),
		LabelID: c.QueryParam("label_id"),
		TypeID:  c.QueryParam("type_id"),
		Search:  c.QueryParam("q"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid status")
	}

	posts, total, err := h.postRepository.ListPosts(c.Request().Context(), filter,
		int64((page-1)*limit), int64(limit))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, PostPage{Posts: posts, Total: total, Page: page, Limit: limit})
}

// GetPostForEdit returns a post in any status together with its content statistics
func (h *PostHandler) GetPostForEdit(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"post": post, "stats": richtext.Measure(post.Content)})
}

// CreatePost submits a new post from a multipart authoring form
func (h *PostHandler) CreatePost(c echo.Context) error {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	form := authoring.NewForm()
	if err := h.fillForm(c, form); err != nil {
		return err
	}

	result, err := h.workflow.Submit(c.Request().Context(), form, claims.FirebaseUID)
	if err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(cache.Posts)
	return c.JSON(http.StatusCreated, result)
}

// UpdatePost submits changes to an existing post. Omitted fields keep their stored value.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	existing, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	form := authoring.EditForm(existing)
	if err := h.fillForm(c, form); err != nil {
		return err
	}

	result, err := h.workflow.Submit(c.Request().Context(), form, claims.FirebaseUID)
	if err != nil {
		return httpError(err)
	}
	// the update only touches editable fields
	result.Post.AuthorID = existing.AuthorID
	result.Post.CreatedAt = existing.CreatedAt
	result.Post.ViewsCount = existing.ViewsCount

	h.cache.Invalidate(cache.Posts)
	return c.JSON(http.StatusOK, result)
}

// PreviewRequest is the live editor state sent while typing
type PreviewRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content"`
}

// Preview returns the derived slug, excerpt and statistics without saving anything
func (h *PostHandler) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"slug":    authoring.Slugify(req.Title),
		"excerpt": richtext.Truncate(richtext.PlainText(req.Content), 200),
		"stats":   richtext.Measure(req.Content),
	})
}

// DeletePost deletes a post and its comments
func (h *PostHandler) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("id")

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return httpError(err)
	}
	if err := h.commentRepository.DeleteByPostID(ctx, postID); err != nil {
		log.Printf("post %s deleted but its comments were not: %v", postID, err)
	}

	h.cache.Invalidate(cache.Posts)
	h.cache.Invalidate(cache.Comments)
	return c.NoContent(http.StatusNoContent)
}

// fillForm applies the multipart fields that are present to the form. The cover can be
// a file part named cover_image or an already uploaded URL in cover_image_url.
func (h *PostHandler) fillForm(c echo.Context, f *authoring.Form) error {
	mf, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Expected a multipart form")
	}

	value := func(name string) (string, bool) {
		v, ok := mf.Value[name]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	if v, ok := value("title"); ok {
		f.SetTitle(v)
	}
	if v, ok := value("slug"); ok && v != "" {
		f.SetSlug(authoring.Slugify(v))
	}
	if v, ok := value("content"); ok {
		f.SetContent(v)
	}
	if v, ok := value("excerpt"); ok {
		f.SetExcerpt(v)
	}
	if v, ok := value("status"); ok {
		f.SetStatus(models.PostStatus(v))
	}
	if v, ok := value("label_id"); ok {
		f.SetLabel(v)
	}
	if v, ok := value("type_id"); ok {
		f.SetType(v)
	}
	if v, ok := value("cover_image_url"); ok {
		f.SetCoverURL(v)
	}

	if files := mf.File["cover_image"]; len(files) > 0 {
		fh := files[0]
		if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Cover image is too large")
		}
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Unreadable cover image")
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Unreadable cover image")
		}
		f.SetCoverFile(&authoring.ImageFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return nil
}

func pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
