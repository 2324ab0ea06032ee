package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
)

// IRatingService defines the interface for seller rating operations.
type IRatingService interface {
	SubmitRating(ctx context.Context, buyerID, orderID, sellerID string, value int, comment string) (*models.Rating, error)
	ListRatingsForSeller(ctx context.Context, sellerID string) ([]models.Rating, error)
	ListRatingsByBuyer(ctx context.Context, buyerID string) ([]models.Rating, error)
	SellerScore(ctx context.Context, sellerID string) (*models.SellerScore, error)
}

const ratingsCollection = "ratings"

type ratingService struct {
	db     *mongo.Database
	orders IOrderService
}

// NewRatingService creates a new RatingService.
func NewRatingService(db *mongo.Database, orders IOrderService) IRatingService {
	return &ratingService{db: db, orders: orders}
}

// SubmitRating records the buyer's score for a seller on one delivered
// order. The gates, in order: the order must exist and belong to the buyer,
// it must be delivered, the rated seller must have sold something in it, and
// the buyer must not have rated this order before. The last gate is a unique
// index on (order_id, buyer_id), so concurrent duplicate submissions resolve
// to exactly one rating.
func (s *ratingService) SubmitRating(ctx context.Context, buyerID, orderID, sellerID string, value int, comment string) (*models.Rating, error) {
	if value < models.RatingMin || value > models.RatingMax {
		return nil, fmt.Errorf("rating %d out of range: %w", value, ErrInvalidArgument)
	}
	if buyerID == sellerID {
		return nil, fmt.Errorf("sellers cannot rate themselves: %w", ErrInvalidArgument)
	}

	order, err := s.orders.FindOrderByID(ctx, identity.UserOwner(buyerID), orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != buyerID {
		return nil, fmt.Errorf("order %s was not placed by user %s: %w", orderID, buyerID, ErrPermissionDenied)
	}
	if order.Status != models.OrderDelivered {
		return nil, fmt.Errorf("order %s is not delivered yet: %w", orderID, ErrInvalidArgument)
	}
	if !order.HasSeller(sellerID) {
		return nil, fmt.Errorf("user %s sold nothing in order %s: %w", sellerID, orderID, ErrInvalidArgument)
	}

	collection := s.db.Collection(ratingsCollection)
	rating := &models.Rating{
		Base:      models.NewBase(),
		OrderID:   orderID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Value:     value,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	operation := func() error {
		rating.GenID()
		_, insertErr := collection.InsertOne(ctx, rating)
		return insertErr
	}
	if err = db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("order %s already rated by user %s: %w", orderID, buyerID, ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert rating for order %s: %w", orderID, err)
	}
	return rating, nil
}

// ListRatingsForSeller returns the seller's received ratings, newest first.
func (s *ratingService) ListRatingsForSeller(ctx context.Context, sellerID string) ([]models.Rating, error) {
	return s.list(ctx, bson.M{"seller_id": sellerID})
}

// ListRatingsByBuyer returns the ratings a buyer has submitted, newest
// first.
func (s *ratingService) ListRatingsByBuyer(ctx context.Context, buyerID string) ([]models.Rating, error) {
	return s.list(ctx, bson.M{"buyer_id": buyerID})
}

func (s *ratingService) list(ctx context.Context, filter bson.M) ([]models.Rating, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(ratingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var ratings []models.Rating
	if err = cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}
	return ratings, nil
}

// SellerScore aggregates the seller's average rating and count. A seller
// with no ratings gets a zero score, not an error.
func (s *ratingService) SellerScore(ctx context.Context, sellerID string) (*models.SellerScore, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"seller_id": sellerID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.db.Collection(ratingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings for seller %s: %w", sellerID, err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Average float64 `bson:"average"`
		Count   int64   `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode rating aggregate: %w", err)
	}
	if len(results) == 0 {
		return &models.SellerScore{}, nil
	}
	return &models.SellerScore{Average: results[0].Average, Count: results[0].Count}, nil
}
