package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/models"
)

// IListingService defines the interface for catalog operations.
type IListingService interface {
	CreateListing(ctx context.Context, sellerID string, input ListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID string) (*models.Listing, error)
	FindAvailableListing(ctx context.Context, listingID string) (*models.Listing, error)
	SearchListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error)
	UpdateListing(ctx context.Context, listingID, sellerID string, updates map[string]interface{}) (*models.Listing, error)
	DeleteListing(ctx context.Context, listingID, sellerID string) error
	FindListingsBySeller(ctx context.Context, sellerID string, sold *bool) ([]models.Listing, error)
	FindListingsByIDs(ctx context.Context, listingIDs []string) (map[string]models.Listing, error)
	MarkSold(ctx context.Context, listingID string) error
	MarkUnsold(ctx context.Context, listingID string) error
	SetImageKey(ctx context.Context, listingID, imageKey string) error
}

// ListingInput carries the fields a seller supplies at creation time.
type ListingInput struct {
	Title       string
	Description string
	Price       models.Money
	PhoneNumber string
	CategoryID  string
	Gender      models.Gender
	Condition   models.Condition
}

// ListingFilter narrows a catalog search. Zero fields are ignored.
type ListingFilter struct {
	Query      string // case-insensitive substring over title and description
	CategoryID string
	Gender     models.Gender
	Condition  models.Condition
	Limit      int64
}

const listingsCollection = "listings"

type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListing inserts a new catalog entry. Price is frozen here: there is
// no code path that updates it afterwards.
func (s *listingService) CreateListing(ctx context.Context, sellerID string, input ListingInput) (*models.Listing, error) {
	if input.Title == "" || input.Description == "" {
		return nil, fmt.Errorf("title and description are required: %w", ErrInvalidArgument)
	}
	if !input.Price.IsPositive() {
		return nil, fmt.Errorf("price must be greater than zero: %w", ErrInvalidArgument)
	}
	if !input.Gender.Valid() {
		return nil, fmt.Errorf("unknown gender %q: %w", input.Gender, ErrInvalidArgument)
	}
	if !input.Condition.Valid() {
		return nil, fmt.Errorf("unknown condition %q: %w", input.Condition, ErrInvalidArgument)
	}

	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	var newListing *models.Listing
	operation := func() error {
		newListing = &models.Listing{
			Base:        models.NewBase(),
			SellerID:    sellerID,
			Title:       input.Title,
			Description: input.Description,
			Price:       input.Price,
			PhoneNumber: input.PhoneNumber,
			CategoryID:  input.CategoryID,
			Gender:      input.Gender,
			Condition:   input.Condition,
			IsSold:      false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert listing for seller %s: %w", sellerID, err)
	}
	return newListing, nil
}

// FindListingByID returns the listing regardless of its sale status. Used by
// owner-facing paths; buyer-facing reads go through FindAvailableListing.
func (s *listingService) FindListingByID(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID, err)
	}
	return &listing, nil
}

// FindAvailableListing returns the listing only while it is still for sale.
// A sold listing is indistinguishable from an absent one to the caller.
func (s *listingService) FindAvailableListing(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	filter := bson.M{"_id": listingID, "is_sold": false}
	err := s.db.Collection(listingsCollection).FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s not available: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID, err)
	}
	return &listing, nil
}

// SearchListings lists unsold catalog entries matching the filter, newest
// first.
func (s *listingService) SearchListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error) {
	query := bson.M{"is_sold": false}

	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	if filter.Gender != "" {
		if !filter.Gender.Valid() {
			return nil, fmt.Errorf("unknown gender %q: %w", filter.Gender, ErrInvalidArgument)
		}
		query["gender"] = filter.Gender
	}
	if filter.Condition != "" {
		if !filter.Condition.Valid() {
			return nil, fmt.Errorf("unknown condition %q: %w", filter.Condition, ErrInvalidArgument)
		}
		query["condition"] = filter.Condition
	}
	if filter.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := s.db.Collection(listingsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode listing search results: %w", err)
	}
	return results, nil
}

// UpdateListing updates mutable fields of a listing owned by the seller.
// Price and sale status are deliberately absent from the allowed set: price
// is immutable after creation and the sold flag only moves through
// MarkSold/MarkUnsold.
func (s *listingService) UpdateListing(ctx context.Context, listingID, sellerID string, updates map[string]interface{}) (*models.Listing, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "phone_number", "category_id", "gender", "condition":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field %q cannot be updated: %w", key, ErrInvalidArgument)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update: %w", ErrInvalidArgument)
	}
	if g, ok := allowedUpdates["gender"]; ok {
		if gs, _ := g.(string); !models.Gender(gs).Valid() {
			return nil, fmt.Errorf("unknown gender %q: %w", g, ErrInvalidArgument)
		}
	}
	if c, ok := allowedUpdates["condition"]; ok {
		if cs, _ := c.(string); !models.Condition(cs).Valid() {
			return nil, fmt.Errorf("unknown condition %q: %w", c, ErrInvalidArgument)
		}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": listingID, "seller_id": sellerID, "is_sold": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Listing
	err := s.db.Collection(listingsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseOwnership(ctx, listingID, sellerID)
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID, err)
	}
	return &updated, nil
}

// DeleteListing removes an unsold listing owned by the seller.
func (s *listingService) DeleteListing(ctx context.Context, listingID, sellerID string) error {
	filter := bson.M{"_id": listingID, "seller_id": sellerID, "is_sold": false}
	result, err := s.db.Collection(listingsCollection).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}
	if result.DeletedCount == 0 {
		return s.diagnoseOwnership(ctx, listingID, sellerID)
	}
	return nil
}

// diagnoseOwnership figures out which failure class a conditional write
// missed on: absent listing, foreign listing, or sold listing.
func (s *listingService) diagnoseOwnership(ctx context.Context, listingID, sellerID string) error {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("error checking listing %s: %w", listingID, err)
	}
	if listing.SellerID != sellerID {
		return fmt.Errorf("listing %s does not belong to user %s: %w", listingID, sellerID, ErrPermissionDenied)
	}
	if listing.IsSold {
		return fmt.Errorf("listing %s is already sold: %w", listingID, ErrConflict)
	}
	return fmt.Errorf("listing %s cannot be modified: %w", listingID, ErrConflict)
}

// FindListingsBySeller returns the seller's listings, optionally split by
// sale status (profile "selling" vs "sold" views).
func (s *listingService) FindListingsBySeller(ctx context.Context, sellerID string, sold *bool) ([]models.Listing, error) {
	filter := bson.M{"seller_id": sellerID}
	if sold != nil {
		filter["is_sold"] = *sold
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller %s listings: %w", sellerID, err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode seller listings: %w", err)
	}
	return listings, nil
}

// FindListingsByIDs fetches listings in bulk, keyed by ID. Missing IDs are
// simply absent from the map; the caller decides whether that matters.
func (s *listingService) FindListingsByIDs(ctx context.Context, listingIDs []string) (map[string]models.Listing, error) {
	result := make(map[string]models.Listing, len(listingIDs))
	if len(listingIDs) == 0 {
		return result, nil
	}
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": listingIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings by IDs: %w", err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings by IDs: %w", err)
	}
	for _, l := range listings {
		result[l.ID] = l
	}
	return result, nil
}

// MarkSold flips the sold flag with a compare-and-set on is_sold:false. Two
// concurrent checkouts of the same listing cannot both succeed: the second
// one sees MatchedCount zero and gets ErrConflict.
func (s *listingService) MarkSold(ctx context.Context, listingID string) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": listingID, "is_sold": false}
	update := bson.M{"$set": bson.M{"is_sold": true, "sold_at": now, "updated_at": now}}

	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error marking listing %s sold: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return fmt.Errorf("listing %s already sold: %w", listingID, ErrConflict)
	}
	return nil
}

// MarkUnsold reverts a sold flag. Only the order manager calls this, to
// unwind a partially marked checkout that lost the race.
func (s *listingService) MarkUnsold(ctx context.Context, listingID string) error {
	update := bson.M{
		"$set":   bson.M{"is_sold": false, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"sold_at": ""},
	}
	_, err := s.db.Collection(listingsCollection).UpdateOne(ctx, bson.M{"_id": listingID, "is_sold": true}, update)
	if err != nil {
		return fmt.Errorf("db error reverting sold flag on listing %s: %w", listingID, err)
	}
	return nil
}

// SetImageKey records the processed image's S3 key. Called by the image
// worker once the upload finished.
func (s *listingService) SetImageKey(ctx context.Context, listingID, imageKey string) error {
	update := bson.M{"$set": bson.M{"image": imageKey, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, bson.M{"_id": listingID}, update)
	if err != nil {
		return fmt.Errorf("db error setting image on listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	return nil
}
