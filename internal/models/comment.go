package models

import "time"

// Comment represents a comment on a post. ParentID points at another comment when
// the comment is a reply.
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	AuthorID  *uint     `json:"author_id" gorm:"index"`
	PostID    *string   `json:"post_id" gorm:"index"` // MongoDB ObjectID of the post, as hex
	ParentID  *uint     `json:"parent_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=2000"`
	ParentID *uint  `json:"parent_id,omitempty" validate:"omitempty,min=1"`
}
