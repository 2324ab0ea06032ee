package services

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/models"
)

var testMongoURI = ""

func init() {
	testMongoURI = os.Getenv("MONGO_URI_TEST")
	if testMongoURI == "" {
		testMongoURI = "mongodb://localhost:27017"
	}
}

// setupTestDB connects to the test Mongo instance, drops the named
// collections and recreates the indexes so uniqueness behaves like
// production.
func setupTestDB(t *testing.T, dbName string) *mongo.Database {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	testDb := client.Database(dbName)
	for _, collection := range []string{"users", "listings", "categories", "carts", "orders", "ratings", "messages"} {
		_ = testDb.Collection(collection).Drop(context.Background())
	}
	if err = db.EnsureIndexes(context.Background(), testDb); err != nil {
		t.Fatalf("Failed to ensure indexes: %v", err)
	}
	return testDb
}

func testConfig() *config.Config {
	return &config.Config{PasswordRegexp: "^.{8,}$"}
}

func mustMoney(t *testing.T, s string) models.Money {
	t.Helper()
	m, err := models.MoneyFromString(s)
	if err != nil {
		t.Fatalf("invalid money literal %q: %v", s, err)
	}
	return m
}

// seedListing creates a valid listing through the service.
func seedListing(t *testing.T, testDb *mongo.Database, sellerID, title, price string) *models.Listing {
	t.Helper()
	svc := NewListingService(testDb, testConfig())
	listing, err := svc.CreateListing(context.Background(), sellerID, ListingInput{
		Title:       title,
		Description: "a " + title,
		Price:       mustMoney(t, price),
		PhoneNumber: "555-0100",
		Gender:      models.GenderUnisex,
		Condition:   models.ConditionGood,
	})
	if err != nil {
		t.Fatalf("failed to seed listing: %v", err)
	}
	return listing
}
