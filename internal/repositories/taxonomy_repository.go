package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/quill/backend/internal/models"
	"gorm.io/gorm"
)

// Taxonomy is a label or a post type.
type Taxonomy interface {
	models.Label | models.PostType
}

// TaxonomyRepository defines CRUD over labels and types
type TaxonomyRepository[T Taxonomy] interface {
	Create(ctx context.Context, item *T) error
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id string) error
}

// PostgresTaxonomyRepository implements TaxonomyRepository for PostgreSQL
type PostgresTaxonomyRepository[T Taxonomy] struct {
	db *gorm.DB
}

func NewPostgresLabelRepository(db *gorm.DB) *PostgresTaxonomyRepository[models.Label] {
	return &PostgresTaxonomyRepository[models.Label]{db: db}
}

func NewPostgresTypeRepository(db *gorm.DB) *PostgresTaxonomyRepository[models.PostType] {
	return &PostgresTaxonomyRepository[models.PostType]{db: db}
}

func (r *PostgresTaxonomyRepository[T]) Create(ctx context.Context, item *T) error {
	return duplicate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *PostgresTaxonomyRepository[T]) List(ctx context.Context) ([]T, error) {
	items := []T{}
	if err := r.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresTaxonomyRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *PostgresTaxonomyRepository[T]) Update(ctx context.Context, item *T) error {
	return duplicate(r.db.WithContext(ctx).Save(item).Error)
}

func (r *PostgresTaxonomyRepository[T]) Delete(ctx context.Context, id string) error {
	var item T
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrNameTaken
	}
	return err
}
