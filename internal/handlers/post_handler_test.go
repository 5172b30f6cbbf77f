package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, fields map[string]string, cover []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if cover != nil {
		part, err := w.CreateFormFile("cover_image", "cover.png")
		require.NoError(t, err)
		_, err = part.Write(cover)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func adminClaims() *models.JwtCustomClaims {
	return &models.JwtCustomClaims{UserID: 1, FirebaseUID: "admin-uid", Role: models.RoleAdmin}
}

func TestCreatePost_SubmitsMultipartForm(t *testing.T) {
	posts, comments, submitter := new(mockPostRepo), new(mockCommentRepo), new(mockSubmitter)
	saved := &models.Post{ID: primitive.NewObjectID(), Slug: "my-first-post"}
	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(f *authoring.Form) bool {
		return f.Mode() == authoring.ModeCreate &&
			f.Slug == "my-first-post" &&
			f.LabelID == "L1" && f.TypeID == "T1" &&
			f.CoverImage.Pending() &&
			f.Stats().Words == 2
	}), "admin-uid").Return(&authoring.Result{Post: saved, Redirect: "/admin/posts"}, nil)

	body, contentType := multipartBody(t, map[string]string{
		"title":    "My First Post",
		"content":  "<p>Hello world</p>",
		"label_id": "L1",
		"type_id":  "T1",
	}, pngHeader)
	c, rec := newContext(newEcho(), http.MethodPost, "/", body, contentType, adminClaims())

	h := NewPostHandler(posts, comments, submitter, newCache(t), 1<<20)
	require.NoError(t, h.CreatePost(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect":"/admin/posts"`)
	submitter.AssertExpectations(t)
}

func TestCreatePost_MapsWorkflowErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", authoring.ErrCoverImageRequired, http.StatusUnprocessableEntity},
		{"upload", &authoring.UploadError{Err: errors.New("bucket down")}, http.StatusBadGateway},
		{"in flight", authoring.ErrSubmissionInFlight, http.StatusConflict},
		{"duplicate slug", repositories.ErrSlugTaken, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := new(mockSubmitter)
			submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			body, contentType := multipartBody(t, map[string]string{"title": "x"}, nil)
			c, _ := newContext(newEcho(), http.MethodPost, "/", body, contentType, adminClaims())

			h := NewPostHandler(new(mockPostRepo), new(mockCommentRepo), submitter, newCache(t), 1<<20)
			assert.Equal(t, tt.want, httpStatus(t, h.CreatePost(c)))
		})
	}
}

func TestCreatePost_RejectsOversizedCover(t *testing.T) {
	submitter := new(mockSubmitter)
	body, contentType := multipartBody(t, map[string]string{"title": "x"}, bytes.Repeat([]byte("a"), 64))
	c, _ := newContext(newEcho(), http.MethodPost, "/", body, contentType, adminClaims())

	h := NewPostHandler(new(mockPostRepo), new(mockCommentRepo), submitter, newCache(t), 16)
	assert.Equal(t, http.StatusRequestEntityTooLarge, httpStatus(t, h.CreatePost(c)))
	submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePost_StartsFromStoredPost(t *testing.T) {
	id := primitive.NewObjectID()
	existing := &models.Post{
		ID: id, Title: "Old Title", Slug: "old-title", CoverImage: "https://cdn.example/a.png",
		Content: "<p>old</p>", Status: models.PostStatusPublished, LabelID: "L1", TypeID: "T1",
		AuthorID: "writer", ViewsCount: 9,
	}
	posts, submitter := new(mockPostRepo), new(mockSubmitter)
	posts.On("GetPostByID", mock.Anything, id.Hex()).Return(existing, nil)
	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(f *authoring.Form) bool {
		return f.Mode() == authoring.ModeEdit &&
			f.PostID() == id.Hex() &&
			f.Slug == "old-title" &&
			f.Content == "<p>new body</p>" &&
			f.CoverImage.URL == "https://cdn.example/a.png"
	}), "admin-uid").Return(&authoring.Result{Post: &models.Post{ID: id}, Redirect: "/admin/posts/" + id.Hex()}, nil)

	body, contentType := multipartBody(t, map[string]string{"content": "<p>new body</p>"}, nil)
	c, rec := newContext(newEcho(), http.MethodPut, "/", body, contentType, adminClaims())
	c.SetParamNames("id")
	c.SetParamValues(id.Hex())

	h := NewPostHandler(posts, new(mockCommentRepo), submitter, newCache(t), 1<<20)
	require.NoError(t, h.UpdatePost(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"views_count":9`)
	assert.Contains(t, rec.Body.String(), `"author_id":"writer"`)
	submitter.AssertExpectations(t)
}

func TestGetPosts_CachesUntilInvalidated(t *testing.T) {
	posts := new(mockPostRepo)
	filter := models.PostFilter{Status: models.PostStatusPublished, LabelID: "L1"}
	posts.On("ListPosts", mock.Anything, filter, int64(0), int64(10)).
		Return([]models.Post{{Title: "A"}}, int64(1), nil)

	e := newEcho()
	h := NewPostHandler(posts, new(mockCommentRepo), new(mockSubmitter), newCache(t), 1<<20)
	get := func() {
		c, rec := newContext(e, http.MethodGet, "/posts?label_id=L1", nil, "", nil)
		require.NoError(t, h.GetPosts(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":1`)
	}

	get()
	get()
	posts.AssertNumberOfCalls(t, "ListPosts", 1)

	h.cache.Invalidate("posts")
	get()
	posts.AssertNumberOfCalls(t, "ListPosts", 2)
}

func TestGetPost_HidesDrafts(t *testing.T) {
	posts := new(mockPostRepo)
	posts.On("GetPostByID", mock.Anything, postHex).Return(&models.Post{Status: models.PostStatusDraft}, nil)

	c, _ := newContext(newEcho(), http.MethodGet, "/", nil, "", nil)
	c.SetParamNames("id")
	c.SetParamValues(postHex)

	h := NewPostHandler(posts, new(mockCommentRepo), new(mockSubmitter), newCache(t), 1<<20)
	assert.Equal(t, http.StatusNotFound, httpStatus(t, h.GetPost(c)))
}

func TestPreview(t *testing.T) {
	c, rec := newContext(newEcho(), http.MethodPost, "/",
		strings.NewReader(`{"title":"Hello, World! -- 2024","content":"<p>one two three</p>"}`),
		echo.MIMEApplicationJSON, adminClaims())

	h := NewPostHandler(new(mockPostRepo), new(mockCommentRepo), new(mockSubmitter), newCache(t), 1<<20)
	require.NoError(t, h.Preview(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"hello-world-2024"`)
	assert.Contains(t, rec.Body.String(), `"excerpt":"one two three"`)
}

func TestDeletePost_RemovesComments(t *testing.T) {
	posts, comments := new(mockPostRepo), new(mockCommentRepo)
	posts.On("DeletePost", mock.Anything, postHex).Return(nil)
	comments.On("DeleteByPostID", mock.Anything, postHex).Return(nil)

	c, rec := newContext(newEcho(), http.MethodDelete, "/", nil, "", adminClaims())
	c.SetParamNames("id")
	c.SetParamValues(postHex)

	h := NewPostHandler(posts, comments, new(mockSubmitter), newCache(t), 1<<20)
	require.NoError(t, h.DeletePost(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	comments.AssertExpectations(t)
}
