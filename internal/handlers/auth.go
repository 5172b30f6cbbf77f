package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/quill/backend/internal/middleware"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const tokenTTL = 72 * time.Hour

// AuthHandler exchanges identity-provider tokens for local session tokens
type AuthHandler struct {
	userRepository repositories.UserRepository
	verifier       middleware.TokenVerifier
	jwtSecret      string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, verifier middleware.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		verifier:       verifier,
		jwtSecret:      jwtSecret,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin, middleware.FirebaseAuthMiddleware(h.verifier))
}

// FirebaseLogin syncs the verified identity into the users table and issues a local JWT.
// The ID token arrives as a Bearer token and is checked by FirebaseAuthMiddleware.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	token, ok := middleware.FirebaseToken(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing identity token")
	}

	email, _ := token.Claims["email"].(string)
	if email == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Identity has no email address")
	}
	name, _ := token.Claims["name"].(string)

	user := &models.User{
		Name:        name,
		Email:       email,
		FirebaseUID: token.UID,
	}
	if err := h.userRepository.UpsertByFirebaseUID(c.Request().Context(), user); err != nil {
		return httpError(err)
	}
	// re-read so the token carries the stored role
	user, err := h.userRepository.GetUserByFirebaseUID(c.Request().Context(), token.UID)
	if err != nil {
		return httpError(err)
	}

	localJWT, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "user": user})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID:      user.ID,
		Email:       user.Email,
		FirebaseUID: user.FirebaseUID,
		Role:        user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
