// Package authoring drives the admin post editor: slug derivation, live content
// statistics, cover upload and create/update submission.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/richtext"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidationError is a missing or invalid field caught before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrContentRequired    = &ValidationError{Field: "content", Message: "content is required"}
	ErrCoverImageRequired = &ValidationError{Field: "cover_image", Message: "cover image required"}
	ErrLabelRequired      = &ValidationError{Field: "label_id", Message: "label is required"}
	ErrTypeRequired       = &ValidationError{Field: "type_id", Message: "type is required"}

	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// UploadError aborts a submission whose cover image could not be stored.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "cover image upload failed: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// Uploader stores a cover image and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, file ImageFile) (string, error)
}

// PostStore persists posts. Implemented by repositories.PostRepository.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, id string, post *models.Post) error
}

// Result is a saved post and where the editor goes next.
type Result struct {
	Post     *models.Post   `json:"post"`
	Redirect string         `json:"redirect"`
	Stats    richtext.Stats `json:"stats"`
}

type Workflow struct {
	uploader Uploader
	posts    PostStore
	validate *validator.Validate
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewWorkflow(uploader Uploader, posts PostStore, validate *validator.Validate) *Workflow {
	if validate == nil {
		validate = validator.New()
	}
	return &Workflow{
		uploader: uploader,
		posts:    posts,
		validate: validate,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Check runs the pre-submission checks in order and returns the first failure.
func Check(f *Form) error {
	if richtext.IsBlank(f.Content) {
		return ErrContentRequired
	}
	if f.CoverImage.Empty() {
		return ErrCoverImageRequired
	}
	if strings.TrimSpace(f.LabelID) == "" {
		return ErrLabelRequired
	}
	if strings.TrimSpace(f.TypeID) == "" {
		return ErrTypeRequired
	}
	return nil
}

// Submit validates the form, uploads a pending cover image and then creates or updates
// the post. The upload always completes before the post is written; any failure leaves
// the form populated and ready to resubmit.
func (w *Workflow) Submit(ctx context.Context, f *Form, authorID string) (*Result, error) {
	if !f.beginSubmit() {
		return nil, ErrSubmissionInFlight
	}
	saved := false
	defer func() { f.endSubmit(saved) }()

	if err := Check(f); err != nil {
		return nil, err
	}

	if !w.acquire(authorID) {
		return nil, ErrSubmissionInFlight
	}
	defer w.release(authorID)

	post := w.payload(f, authorID)
	if f.CoverImage.Pending() {
		// the cover url does not exist yet; everything else must pass before the upload
		if err := w.validate.StructExcept(post, "CoverImage"); err != nil {
			return nil, fieldError(err)
		}
		url, err := w.uploader.Upload(ctx, *f.CoverImage.File)
		if err != nil {
			return nil, &UploadError{Err: err}
		}
		f.CoverImage = CoverImage{URL: url}
		post.CoverImage = url
	}

	if err := w.validate.Struct(post); err != nil {
		return nil, fieldError(err)
	}

	var err error
	redirect := "/admin/posts"
	if f.mode == ModeEdit {
		err = w.posts.UpdatePost(ctx, f.postID, post)
		redirect = "/admin/posts/" + f.postID
	} else {
		err = w.posts.CreatePost(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	if f.mode == ModeCreate {
		f.postID = post.ID.Hex()
	}
	saved = true
	return &Result{Post: post, Redirect: redirect, Stats: f.Stats()}, nil
}

func (w *Workflow) payload(f *Form, authorID string) *models.Post {
	now := w.now()
	status := f.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	post := &models.Post{
		Slug:       f.Slug,
		Title:      strings.TrimSpace(f.Title),
		CoverImage: f.CoverImage.URL,
		Content:    f.Content,
		Excerpt:    strings.TrimSpace(f.Excerpt),
		Status:     status,
		AuthorID:   authorID,
		LabelID:    f.LabelID,
		TypeID:     f.TypeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if f.mode == ModeEdit {
		if id, err := primitive.ObjectIDFromHex(f.postID); err == nil {
			post.ID = id
		}
	}
	if post.Excerpt == "" {
		post.Excerpt = richtext.Truncate(richtext.PlainText(f.Content), 200)
	}
	return post
}

func (w *Workflow) acquire(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[key]; busy {
		return false
	}
	w.inflight[key] = struct{}{}
	return true
}

func (w *Workflow) release(key string) {
	w.mu.Lock()
	delete(w.inflight, key)
	w.mu.Unlock()
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("%s failed the %q check", strings.ToLower(fe.Field()), fe.Tag()),
		}
	}
	return err
}
