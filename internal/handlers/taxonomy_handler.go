package handlers

import (
	"net/http"

	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TaxonomyHandler serves labels or types; both share one shape
type TaxonomyHandler[T repositories.Taxonomy] struct {
	repo     repositories.TaxonomyRepository[T]
	posts    repositories.PostRepository
	cache    *cache.Cache
	resource string
	refField string
	apply    func(item *T, req models.TaxonomyRequest)
}

// NewLabelHandler creates the handler for /labels
func NewLabelHandler(repo repositories.TaxonomyRepository[models.Label], posts repositories.PostRepository, c *cache.Cache) *TaxonomyHandler[models.Label] {
	return &TaxonomyHandler[models.Label]{
		repo:     repo,
		posts:    posts,
		cache:    c,
		resource: cache.Labels,
		refField: "label_id",
		apply: func(l *models.Label, req models.TaxonomyRequest) {
			l.Name = req.Name
			l.Color = req.Color
			l.Description = req.Description
		},
	}
}

// NewTypeHandler creates the handler for /types
func NewTypeHandler(repo repositories.TaxonomyRepository[models.PostType], posts repositories.PostRepository, c *cache.Cache) *TaxonomyHandler[models.PostType] {
	return &TaxonomyHandler[models.PostType]{
		repo:     repo,
		posts:    posts,
		cache:    c,
		resource: cache.Types,
		refField: "type_id",
		apply: func(t *models.PostType, req models.TaxonomyRequest) {
			t.Name = req.Name
			t.Description = req.Description
		},
	}
}

// RegisterRoutes registers the public listing under path
func (h *TaxonomyHandler[T]) RegisterRoutes(g *echo.Group, path string) {
	g.GET(path, h.List)
	g.GET(path+"/:id", h.Get)
}

// RegisterAdminRoutes registers create, update and delete under path; g must be admin-only
func (h *TaxonomyHandler[T]) RegisterAdminRoutes(g *echo.Group, path string) {
	g.GET(path, h.List)
	g.POST(path, h.Create)
	g.PUT(path+"/:id", h.Update)
	g.DELETE(path+"/:id", h.Delete)
}

func (h *TaxonomyHandler[T]) List(c echo.Context) error {
	items, err := cache.GetOrLoad(h.cache, cache.NewKey(h.resource, nil), func() ([]T, error) {
		return h.repo.List(c.Request().Context())
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *TaxonomyHandler[T]) Get(c echo.Context) error {
	id, err := taxonomyID(c)
	if err != nil {
		return err
	}
	item, err := h.repo.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *TaxonomyHandler[T]) Create(c echo.Context) error {
	var req models.TaxonomyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	var item T
	h.apply(&item, req)
	if err := h.repo.Create(c.Request().Context(), &item); err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(h.resource)
	return c.JSON(http.StatusCreated, item)
}

func (h *TaxonomyHandler[T]) Update(c echo.Context) error {
	id, err := taxonomyID(c)
	if err != nil {
		return err
	}

	var req models.TaxonomyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	item, err := h.repo.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	h.apply(item, req)
	if err := h.repo.Update(c.Request().Context(), item); err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(h.resource)
	return c.JSON(http.StatusOK, item)
}

// Delete removes an entry that no post references
func (h *TaxonomyHandler[T]) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := taxonomyID(c)
	if err != nil {
		return err
	}

	inUse, err := h.posts.CountByTaxonomy(ctx, h.refField, id)
	if err != nil {
		return httpError(err)
	}
	if inUse > 0 {
		return echo.NewHTTPError(http.StatusConflict, echo.Map{
			"message": "still referenced by posts",
			"posts":   inUse,
		})
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return httpError(err)
	}

	h.cache.Invalidate(h.resource)
	return c.NoContent(http.StatusNoContent)
}

func taxonomyID(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid ID")
	}
	return id, nil
}
