package repositories

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid id format")
	ErrSlugTaken = errors.New("a post with this slug already exists")
	ErrNameTaken = errors.New("name already in use")
)
