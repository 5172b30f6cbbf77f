package authoring

import (
	"sync"

	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/richtext"
)

// Mode tells a new post apart from an edit of an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// ImageFile is a cover image that has not been uploaded yet.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// CoverImage holds either a durable URL or a pending file, never both.
type CoverImage struct {
	URL  string
	File *ImageFile
}

func (c CoverImage) Empty() bool {
	return c.URL == "" && (c.File == nil || len(c.File.Data) == 0)
}

func (c CoverImage) Pending() bool {
	return c.File != nil && len(c.File.Data) > 0
}

// Form is the editable state of a post plus the transient submission flags.
type Form struct {
	Title      string
	Slug       string
	CoverImage CoverImage
	Content    string
	Excerpt    string
	Status     models.PostStatus
	LabelID    string
	TypeID     string

	mode        Mode
	postID      string
	loadedTitle string
	stats       richtext.Stats

	mu           sync.Mutex
	isSubmitting bool
	isDirty      bool
}

// NewForm returns an empty draft form in create mode.
func NewForm() *Form {
	return &Form{Status: models.PostStatusDraft}
}

// EditForm loads an existing post. The slug keeps its stored value until the title
// actually changes.
func EditForm(p *models.Post) *Form {
	f := &Form{
		Title:       p.Title,
		Slug:        p.Slug,
		CoverImage:  CoverImage{URL: p.CoverImage},
		Content:     p.Content,
		Excerpt:     p.Excerpt,
		Status:      p.Status,
		LabelID:     p.LabelID,
		TypeID:      p.TypeID,
		mode:        ModeEdit,
		postID:      p.ID.Hex(),
		loadedTitle: p.Title,
	}
	f.stats = richtext.Measure(p.Content)
	return f
}

// Mode reports whether the form creates or edits a post.
func (f *Form) Mode() Mode     { return f.mode }
func (f *Form) PostID() string { return f.postID }

// SetTitle updates the title and derives the slug from it. An edit keeps its stored
// slug while the title matches the loaded one.
func (f *Form) SetTitle(title string) {
	f.Title = title
	f.touch()
	if f.mode == ModeEdit && title == f.loadedTitle {
		return
	}
	f.Slug = Slugify(title)
}

// SetSlug overrides the derived slug.
func (f *Form) SetSlug(slug string) {
	f.Slug = slug
	f.touch()
}

// SetContent replaces the HTML body and recomputes its stats.
func (f *Form) SetContent(content string) {
	f.Content = content
	f.stats = richtext.Measure(content)
	f.touch()
}

func (f *Form) SetExcerpt(excerpt string) {
	f.Excerpt = excerpt
	f.touch()
}

func (f *Form) SetStatus(status models.PostStatus) {
	f.Status = status
	f.touch()
}

func (f *Form) SetLabel(id string) {
	f.LabelID = id
	f.touch()
}

func (f *Form) SetType(id string) {
	f.TypeID = id
	f.touch()
}

// SetCoverFile stages an image for upload on the next submit.
func (f *Form) SetCoverFile(file *ImageFile) {
	f.CoverImage = CoverImage{File: file}
	f.touch()
}

func (f *Form) SetCoverURL(url string) {
	f.CoverImage = CoverImage{URL: url}
	f.touch()
}

func (f *Form) Stats() richtext.Stats { return f.stats }

// IsDirty reports unsaved edits since the form was opened or last saved.
func (f *Form) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isDirty
}

func (f *Form) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isSubmitting
}

func (f *Form) touch() {
	f.mu.Lock()
	f.isDirty = true
	f.mu.Unlock()
}

func (f *Form) beginSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isSubmitting {
		return false
	}
	f.isSubmitting = true
	return true
}

func (f *Form) endSubmit(saved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isSubmitting = false
	if saved {
		f.isDirty = false
	}
}
