package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Label is a category a post can be filed under
type Label struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:80;uniqueIndex;not null"`
	Color       string    `json:"color,omitempty" gorm:"size:16"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostType distinguishes kinds of posts (article, tutorial, note...)
type PostType struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:80;uniqueIndex;not null"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l *Label) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (t *PostType) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (PostType) TableName() string {
	return "types"
}

// TaxonomyRequest is shared by label and type create/update bodies
type TaxonomyRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=80"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Description string `json:"description,omitempty" validate:"max=500"`
}
