package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/quill/backend/internal/ai"
	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostRepo struct {
	mock.Mock
}

func (m *mockPostRepo) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPostRepo) CreatePost(ctx context.Context, post *models.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *mockPostRepo) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockPostRepo) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	args := m.Called(ctx, slug)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockPostRepo) ListPosts(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error) {
	args := m.Called(ctx, filter, skip, limit)
	posts, _ := args.Get(0).([]models.Post)
	return posts, args.Get(1).(int64), args.Error(2)
}

func (m *mockPostRepo) SearchPosts(ctx context.Context, terms []string, limit int64) ([]models.Post, error) {
	args := m.Called(ctx, terms, limit)
	posts, _ := args.Get(0).([]models.Post)
	return posts, args.Error(1)
}

func (m *mockPostRepo) UpdatePost(ctx context.Context, id string, post *models.Post) error {
	return m.Called(ctx, id, post).Error(0)
}

func (m *mockPostRepo) DeletePost(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPostRepo) IncrementViews(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPostRepo) CountByTaxonomy(ctx context.Context, field, id string) (int64, error) {
	args := m.Called(ctx, field, id)
	return args.Get(0).(int64), args.Error(1)
}

type mockCommentRepo struct {
	mock.Mock
}

func (m *mockCommentRepo) CreateComment(ctx context.Context, comment *models.Comment) error {
	return m.Called(ctx, comment).Error(0)
}

func (m *mockCommentRepo) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	args := m.Called(ctx, id)
	comment, _ := args.Get(0).(*models.Comment)
	return comment, args.Error(1)
}

func (m *mockCommentRepo) GetParentID(ctx context.Context, id uint) (*uint, error) {
	args := m.Called(ctx, id)
	parent, _ := args.Get(0).(*uint)
	return parent, args.Error(1)
}

func (m *mockCommentRepo) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	args := m.Called(ctx, postID)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Error(1)
}

func (m *mockCommentRepo) ListComments(ctx context.Context, offset, limit int) ([]models.Comment, int64, error) {
	args := m.Called(ctx, offset, limit)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Get(1).(int64), args.Error(2)
}

func (m *mockCommentRepo) DeleteComment(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCommentRepo) DeleteByPostID(ctx context.Context, postID string) error {
	return m.Called(ctx, postID).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) UpsertByFirebaseUID(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	args := m.Called(ctx, firebaseUID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) GetUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) DeleteByFirebaseUID(ctx context.Context, firebaseUID string) error {
	return m.Called(ctx, firebaseUID).Error(0)
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, f *authoring.Form, authorID string) (*authoring.Result, error) {
	args := m.Called(ctx, f, authorID)
	result, _ := args.Get(0).(*authoring.Result)
	return result, args.Error(1)
}

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) Summarize(ctx context.Context, post *models.Post) (string, error) {
	args := m.Called(ctx, post)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) SearchKeywords(ctx context.Context, question string) ([]string, error) {
	args := m.Called(ctx, question)
	keywords, _ := args.Get(0).([]string)
	return keywords, args.Error(1)
}

func (m *mockAssistant) Chat(ctx context.Context, history []ai.Message, articleContext string, onChunk func(string) error) error {
	args := m.Called(ctx, history, articleContext, onChunk)
	for _, chunk := range []string{"Hello", " reader"} {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validators.NewValidator()
	return e
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(64)
	require.NoError(t, err)
	return c
}

// newContext builds a request context; claims, when set, look like JWTAuthMiddleware ran.
func newContext(e *echo.Echo, method, target string, body io.Reader, contentType string, claims *models.JwtCustomClaims) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set("user", claims)
	}
	return c, rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T: %v", err, err)
	return he.Code
}

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
