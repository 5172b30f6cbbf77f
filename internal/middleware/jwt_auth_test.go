package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, role string, expires time.Time) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: 42,
		Email:  "ada@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(t *testing.T, header string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var h echo.HandlerFunc = func(c echo.Context) error {
		claims, _ := CurrentUser(c)
		return c.JSON(http.StatusOK, claims)
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return rec, h(c)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	return he.Code
}

func TestJWTAuth(t *testing.T) {
	valid := signToken(t, testSecret, models.RoleUser, time.Now().Add(time.Hour))

	rec, err := serve(t, "Bearer "+valid, JWTAuthMiddleware(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, "other", models.RoleUser, time.Now().Add(time.Hour)),
		"expired":        "Bearer " + signToken(t, testSecret, models.RoleUser, time.Now().Add(-time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := serve(t, header, JWTAuthMiddleware(testSecret))
			assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := signToken(t, testSecret, models.RoleAdmin, time.Now().Add(time.Hour))
	user := signToken(t, testSecret, models.RoleUser, time.Now().Add(time.Hour))

	_, err := serve(t, "Bearer "+admin, JWTAuthMiddleware(testSecret), RequireRole(models.RoleAdmin))
	assert.NoError(t, err)

	_, err = serve(t, "Bearer "+user, JWTAuthMiddleware(testSecret), RequireRole(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = serve(t, "", RequireRole(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	args := m.Called(ctx, idToken)
	token, _ := args.Get(0).(*auth.Token)
	return token, args.Error(1)
}

func TestFirebaseAuth(t *testing.T) {
	v := new(mockVerifier)
	v.On("VerifyIDToken", mock.Anything, "good").Return(&auth.Token{UID: "uid-1"}, nil)
	v.On("VerifyIDToken", mock.Anything, "bad").Return(nil, errors.New("expired"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	c := e.NewContext(req, httptest.NewRecorder())

	err := FirebaseAuthMiddleware(v)(func(c echo.Context) error {
		token, ok := FirebaseToken(c)
		require.True(t, ok)
		assert.Equal(t, "uid-1", token.UID)
		assert.Equal(t, "uid-1", c.Get("firebaseUID"))
		return nil
	})(c)
	require.NoError(t, err)

	_, err = serve(t, "Bearer bad", FirebaseAuthMiddleware(v))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
