package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/models"
)

// ICategoryService defines the interface for category operations.
type ICategoryService interface {
	CreateCategory(ctx context.Context, name, description string) (*models.Category, error)
	FindCategoryByID(ctx context.Context, categoryID string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, categoryID, name, description string) (*models.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

const categoriesCollection = "categories"

type categoryService struct {
	db *mongo.Database
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(db *mongo.Database) ICategoryService {
	return &categoryService{db: db}
}

func (s *categoryService) CreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", ErrInvalidArgument)
	}
	collection := s.db.Collection(categoriesCollection)

	var category *models.Category
	operation := func() error {
		category = &models.Category{
			Base:        models.NewBase(),
			Name:        name,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, category)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert category %q: %w", name, err)
	}
	return category, nil
}

func (s *categoryService) FindCategoryByID(ctx context.Context, categoryID string) (*models.Category, error) {
	var category models.Category
	err := s.db.Collection(categoriesCollection).FindOne(ctx, bson.M{"_id": categoryID}).Decode(&category)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding category %s: %w", categoryID, err)
	}
	return &category, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer cursor.Close(ctx)

	var categories []models.Category
	if err = cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return categories, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, categoryID, name, description string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", ErrInvalidArgument)
	}
	update := bson.M{"$set": bson.M{"name": name, "description": description}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Category
	err := s.db.Collection(categoriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": categoryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update category %s: %w", categoryID, err)
	}
	return &updated, nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	result, err := s.db.Collection(categoriesCollection).DeleteOne(ctx, bson.M{"_id": categoryID})
	if err != nil {
		return fmt.Errorf("failed to delete category %s: %w", categoryID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
	}
	// Listings keep a dangling category_id on purpose; the category reference
	// is nullable in the catalog.
	return nil
}
