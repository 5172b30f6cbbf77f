package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/anonto42/quill/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	EnsureIndexes(ctx context.Context) error
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	ListPosts(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error)
	SearchPosts(ctx context.Context, terms []string, limit int64) ([]models.Post, error)
	UpdatePost(ctx context.Context, id string, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	CountByTaxonomy(ctx context.Context, field, id string) (int64, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the unique slug index and the listing index.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "label_id", Value: 1}}},
		{Keys: bson.D{{Key: "type_id", Value: 1}}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	post.ViewsCount = 0
	_, err := r.collection.InsertOne(ctx, post)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlugTaken
	}
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

func (r *MongoPostRepository) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *MongoPostRepository) findOne(ctx context.Context, filter bson.M) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, filter).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListPosts returns a newest-first page of posts matching filter plus the total count.
func (r *MongoPostRepository) ListPosts(ctx context.Context, filter models.PostFilter, skip, limit int64) ([]models.Post, int64, error) {
	query := buildFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func buildFilter(f models.PostFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.LabelID != "" {
		query["label_id"] = f.LabelID
	}
	if f.TypeID != "" {
		query["type_id"] = f.TypeID
	}
	if f.AuthorID != "" {
		query["author_id"] = f.AuthorID
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		query["$or"] = bson.A{bson.M{"title": pattern}, bson.M{"excerpt": pattern}}
	}
	return query
}

// SearchPosts matches published posts whose title, excerpt or content contains any term.
func (r *MongoPostRepository) SearchPosts(ctx context.Context, terms []string, limit int64) ([]models.Post, error) {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return []models.Post{}, nil
	}
	pattern := primitive.Regex{Pattern: strings.Join(quoted, "|"), Options: "i"}
	query := bson.M{
		"status": models.PostStatusPublished,
		"$or":    bson.A{bson.M{"title": pattern}, bson.M{"excerpt": pattern}, bson.M{"content": pattern}},
	}

	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "views_count", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost updates the editable fields of an existing post in MongoDB
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, post *models.Post) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	post.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"slug":        post.Slug,
			"title":       post.Title,
			"cover_image": post.CoverImage,
			"content":     post.Content,
			"excerpt":     post.Excerpt,
			"status":      post.Status,
			"label_id":    post.LabelID,
			"type_id":     post.TypeID,
			"updated_at":  post.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps views_count by one. It never decreases.
func (r *MongoPostRepository) IncrementViews(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{"views_count": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordView adapts IncrementViews to viewtracker.Recorder.
func (r *MongoPostRepository) RecordView(ctx context.Context, id string) error {
	return r.IncrementViews(ctx, id)
}

// CountByTaxonomy counts posts referencing a label ("label_id") or type ("type_id").
func (r *MongoPostRepository) CountByTaxonomy(ctx context.Context, field, id string) (int64, error) {
	if field != "label_id" && field != "type_id" {
		return 0, fmt.Errorf("unsupported taxonomy field %q", field)
	}
	return r.collection.CountDocuments(ctx, bson.M{field: id})
}
