package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const signatureHeader = "X-Webhook-Signature"

// IdentityEvent is a user lifecycle notification pushed by the identity provider
type IdentityEvent struct {
	Type string `json:"type" validate:"required,oneof=user.created user.updated user.deleted"`
	Data struct {
		UID   string `json:"uid" validate:"required"`
		Email string `json:"email" validate:"omitempty,email"`
		Name  string `json:"name"`
	} `json:"data"`
}

// WebhookHandler keeps the users table in sync with the identity provider
type WebhookHandler struct {
	userRepository repositories.UserRepository
	secret         []byte
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(userRepo repositories.UserRepository, secret string) *WebhookHandler {
	return &WebhookHandler{userRepository: userRepo, secret: []byte(secret)}
}

// RegisterWebhookRoutes registers the identity webhook
func (h *WebhookHandler) RegisterWebhookRoutes(g *echo.Group) {
	g.POST("/identity", h.Identity)
}

// Identity applies a signed user lifecycle event
func (h *WebhookHandler) Identity(c echo.Context) error {
	if len(h.secret) == 0 {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Webhook secret not configured")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable body")
	}
	if !VerifySignature(h.secret, body, c.Request().Header.Get(signatureHeader)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
	}

	var event IdentityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid event payload")
	}
	if err := c.Validate(event); err != nil {
		return err
	}

	ctx := c.Request().Context()
	switch event.Type {
	case "user.created", "user.updated":
		if event.Data.Email == "" {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "email is required")
		}
		user := &models.User{Name: event.Data.Name, Email: event.Data.Email, FirebaseUID: event.Data.UID}
		if err := h.userRepository.UpsertByFirebaseUID(ctx, user); err != nil {
			return httpError(err)
		}
	case "user.deleted":
		err := h.userRepository.DeleteByFirebaseUID(ctx, event.Data.UID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return httpError(err)
		}
	}

	log.Printf("identity webhook applied: %s %s", event.Type, event.Data.UID)
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// VerifySignature checks a "sha256=<hex>" HMAC of body in constant time
func VerifySignature(secret, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
