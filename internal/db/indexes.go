package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the services rely on. Uniqueness of a cart
// per owner and of a rating per (order, buyer) is enforced here rather than in
// application code so concurrent writers cannot slip past the read-then-write
// checks in the services.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type collIndexes struct {
		collection string
		models     []mongo.IndexModel
	}

	partial := func(field string) *options.IndexOptions {
		return options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{field: bson.M{"$exists": true}})
	}

	specs := []collIndexes{
		{
			collection: "users",
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			collection: "listings",
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "is_sold", Value: 1}}},
				{Keys: bson.D{{Key: "category_id", Value: 1}}},
				{Keys: bson.D{{Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: "carts",
			models: []mongo.IndexModel{
				// A cart belongs to exactly one of a user or a guest session.
				{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: partial("user_id")},
				{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: partial("session_id")},
				{Keys: bson.D{{Key: "items.id", Value: 1}}},
			},
		},
		{
			collection: "orders",
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "items.seller_id", Value: 1}}},
			},
		},
		{
			collection: "ratings",
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "buyer_id", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "seller_id", Value: 1}}},
			},
		},
		{
			collection: "messages",
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
	}

	for _, spec := range specs {
		if _, err := db.Collection(spec.collection).Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", spec.collection, err)
		}
	}
	return nil
}
