package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/anonto42/quill/backend/internal/commenttree"
	"github.com/anonto42/quill/backend/internal/objectstore"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// httpError maps domain and repository errors onto HTTP statuses. Anything unknown is
// logged and reported as a 500 without leaking the cause.
func httpError(err error) error {
	var (
		validation *authoring.ValidationError
		upload     *authoring.UploadError
		orphans    *commenttree.OrphanError
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{
			"field":   validation.Field,
			"message": validation.Message,
		})
	case errors.Is(err, objectstore.ErrEmptyFile),
		errors.Is(err, objectstore.ErrFileTooLarge),
		errors.Is(err, objectstore.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &upload):
		log.Printf("cover upload failed: %v", upload.Err)
		return echo.NewHTTPError(http.StatusBadGateway, "Cover image upload failed, please try again")
	case errors.Is(err, authoring.ErrSubmissionInFlight):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, repositories.ErrSlugTaken), errors.Is(err, repositories.ErrNameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &orphans):
		log.Printf("comment thread rejected: %v", orphans)
		return echo.NewHTTPError(http.StatusInternalServerError, "Comment thread is inconsistent")
	}

	log.Printf("unhandled error: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}
