package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// Post represents a blog article stored in MongoDB
type Post struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Slug       string             `json:"slug" bson:"slug" validate:"required,max=200"`
	Title      string             `json:"title" bson:"title" validate:"required,max=200"`
	CoverImage string             `json:"cover_image" bson:"cover_image" validate:"required,url"`
	Content    string             `json:"content" bson:"content" validate:"required"`
	Excerpt    string             `json:"excerpt" bson:"excerpt" validate:"max=500"`
	Status     PostStatus         `json:"status" bson:"status" validate:"required,oneof=draft published archived"`
	AuthorID   string             `json:"author_id" bson:"author_id"` // Firebase UID of the author
	LabelID    string             `json:"label_id" bson:"label_id" validate:"required"`
	TypeID     string             `json:"type_id" bson:"type_id" validate:"required"`
	ViewsCount int64              `json:"views_count" bson:"views_count"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// PostFilter narrows post listings
type PostFilter struct {
	Status   PostStatus
	LabelID  string
	TypeID   string
	AuthorID string
	Search   string
}

// PostListQuery is the public listing query string
type PostListQuery struct {
	LabelID string `query:"label_id"`
	TypeID  string `query:"type_id"`
	Page    int    `query:"page" validate:"omitempty,min=1"`
	Limit   int    `query:"limit" validate:"omitempty,min=1,max=50"`
}
