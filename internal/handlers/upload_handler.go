package handlers

import (
	"io"
	"net/http"

	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/labstack/echo/v4"
)

// UploadHandler stores editor images and returns their durable URL
type UploadHandler struct {
	uploader authoring.Uploader
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploader authoring.Uploader, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes}
}

// RegisterUploadRoutes registers the upload route; g must be admin-only
func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group) {
	g.POST("/uploads", h.Upload)
}

// Upload accepts a multipart "file" part
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File is too large")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file")
	}

	url, err := h.uploader.Upload(c.Request().Context(), authoring.ImageFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return httpError(&authoring.UploadError{Err: err})
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}
