package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/quill/backend/internal/middleware"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
}

// RegisterAdminUserRoutes registers user management routes; g must be admin-only
func (h *UserHandler) RegisterAdminUserRoutes(g *echo.Group) {
	g.GET("/users", h.GetUsers)
	g.PUT("/users/:id/role", h.UpdateRole)
	g.DELETE("/users/:id", h.DeleteUser)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return httpError(err)
	}
	user.Name = req.Name
	if err := h.userRepository.UpdateUser(c.Request().Context(), user); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// GetUsers lists every user for the admin table
func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userRepository.GetUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateRole promotes or demotes a user. Admins cannot demote themselves.
func (h *UserHandler) UpdateRole(c echo.Context) error {
	claims, _ := middleware.CurrentUser(c)
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req models.UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if claims != nil && claims.UserID == id && req.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusConflict, "You cannot remove your own admin role")
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	user.Role = req.Role
	if err := h.userRepository.UpdateUser(c.Request().Context(), user); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user account
func (h *UserHandler) DeleteUser(c echo.Context) error {
	claims, _ := middleware.CurrentUser(c)
	id, err := userID(c)
	if err != nil {
		return err
	}
	if claims != nil && claims.UserID == id {
		return echo.NewHTTPError(http.StatusConflict, "You cannot delete your own account here")
	}

	if err := h.userRepository.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func userID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	return uint(id), nil
}
