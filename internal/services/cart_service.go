package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
)

// ICartService defines the interface for shopping cart operations. Every
// operation is scoped by the owner key; there is no way to address another
// owner's cart.
type ICartService interface {
	GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*models.Cart, error)
	AddItem(ctx context.Context, owner identity.OwnerKey, listingID string, quantity int64) (*models.CartView, error)
	RemoveItem(ctx context.Context, owner identity.OwnerKey, itemID string) (*models.CartView, error)
	SetItemQuantity(ctx context.Context, owner identity.OwnerKey, itemID string, quantity int64) (*models.CartView, error)
	GetCartView(ctx context.Context, owner identity.OwnerKey) (*models.CartView, error)
	ClearCart(ctx context.Context, owner identity.OwnerKey) error
}

const (
	cartsCollection = "carts"
	maxItemQuantity = 100
)

type cartService struct {
	db       *mongo.Database
	listings IListingService
}

// NewCartService creates a new CartService.
func NewCartService(db *mongo.Database, listings IListingService) ICartService {
	return &cartService{db: db, listings: listings}
}

// GetOrCreateCart returns the owner's cart, creating an empty one on first
// touch. The upsert combined with the partial unique index on the owner
// field keeps the cart singular even under concurrent first requests.
func (s *cartService) GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("no owner identity: %w", ErrInvalidArgument)
	}
	now := time.Now().UTC()
	setOnInsert := bson.M{
		"_id":        models.NewID(),
		"items":      []models.CartItem{},
		"created_at": now,
		"updated_at": now,
	}
	owner.SetOn(setOnInsert)

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var cart models.Cart
	err := s.db.Collection(cartsCollection).
		FindOneAndUpdate(ctx, owner.Filter(), bson.M{"$setOnInsert": setOnInsert}, opts).
		Decode(&cart)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create cart for %s: %w", owner, err)
	}
	return &cart, nil
}

// AddItem puts a listing into the cart. Adding a listing already in the cart
// bumps the existing line's quantity instead of duplicating it. Both paths
// carry their precondition in the update filter, so concurrent adds of the
// same listing can never produce two lines or drop a bump.
func (s *cartService) AddItem(ctx context.Context, owner identity.OwnerKey, listingID string, quantity int64) (*models.CartView, error) {
	if quantity < 1 || quantity > maxItemQuantity {
		return nil, fmt.Errorf("quantity %d out of range: %w", quantity, ErrInvalidArgument)
	}

	// Sold listings read as not found here; the buyer never sees them.
	listing, err := s.listings.FindAvailableListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(cartsCollection)
	for attempt := 0; attempt < 3; attempt++ {
		now := time.Now().UTC()

		// Bump an existing line in place, refusing to cross the cap.
		incFilter := owner.Filter()
		incFilter["items"] = bson.M{"$elemMatch": bson.M{
			"listing_id": listing.ID,
			"quantity":   bson.M{"$lte": maxItemQuantity - quantity},
		}}
		incUpdate := bson.M{
			"$inc": bson.M{"items.$.quantity": quantity},
			"$set": bson.M{"updated_at": now},
		}
		result, err := collection.UpdateOne(ctx, incFilter, incUpdate)
		if err != nil {
			return nil, fmt.Errorf("failed to bump quantity in cart %s: %w", cart.ID, err)
		}
		if result.MatchedCount > 0 {
			return s.GetCartView(ctx, owner)
		}

		// No bumpable line: either none exists, or the one that does is
		// already too close to the cap.
		lineFilter := owner.Filter()
		lineFilter["items.listing_id"] = listing.ID
		count, err := collection.CountDocuments(ctx, lineFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect cart %s: %w", cart.ID, err)
		}
		if count > 0 {
			return nil, fmt.Errorf("quantity for listing %s would exceed %d: %w", listing.ID, maxItemQuantity, ErrInvalidArgument)
		}

		// Push a fresh line. The guard loses if a concurrent add pushed the
		// same listing first; go around and bump that line instead.
		item := models.CartItem{
			ID:        models.NewID(),
			ListingID: listing.ID,
			Quantity:  quantity,
			CreatedAt: now,
		}
		pushFilter := bson.M{"_id": cart.ID, "items.listing_id": bson.M{"$ne": listing.ID}}
		pushUpdate := bson.M{
			"$push": bson.M{"items": item},
			"$set":  bson.M{"updated_at": now},
		}
		result, err = collection.UpdateOne(ctx, pushFilter, pushUpdate)
		if err != nil {
			return nil, fmt.Errorf("failed to add item to cart %s: %w", cart.ID, err)
		}
		if result.MatchedCount > 0 {
			return s.GetCartView(ctx, owner)
		}
	}
	return nil, fmt.Errorf("cart %s is too contended to add listing %s: %w", cart.ID, listing.ID, ErrConflict)
}

// RemoveItem deletes one line from the cart by its item ID.
func (s *cartService) RemoveItem(ctx context.Context, owner identity.OwnerKey, itemID string) (*models.CartView, error) {
	filter := owner.Filter()
	filter["items.id"] = itemID
	update := bson.M{
		"$pull": bson.M{"items": bson.M{"id": itemID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(cartsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to remove item %s from cart: %w", itemID, err)
	}
	if result.MatchedCount == 0 {
		return nil, s.diagnoseItem(ctx, itemID)
	}
	return s.GetCartView(ctx, owner)
}

// diagnoseItem explains a zero-match update on a cart line: the item either
// lives in someone else's cart or does not exist at all.
func (s *cartService) diagnoseItem(ctx context.Context, itemID string) error {
	count, err := s.db.Collection(cartsCollection).CountDocuments(ctx, bson.M{"items.id": itemID})
	if err == nil && count > 0 {
		return fmt.Errorf("cart item %s belongs to another owner: %w", itemID, ErrPermissionDenied)
	}
	return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
}

// SetItemQuantity replaces the quantity of one cart line.
func (s *cartService) SetItemQuantity(ctx context.Context, owner identity.OwnerKey, itemID string, quantity int64) (*models.CartView, error) {
	if quantity < 1 || quantity > maxItemQuantity {
		return nil, fmt.Errorf("quantity %d out of range: %w", quantity, ErrInvalidArgument)
	}
	filter := owner.Filter()
	filter["items.id"] = itemID
	update := bson.M{
		"$set": bson.M{"items.$.quantity": quantity, "updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(cartsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to set quantity on item %s: %w", itemID, err)
	}
	if result.MatchedCount == 0 {
		return nil, s.diagnoseItem(ctx, itemID)
	}
	return s.GetCartView(ctx, owner)
}

// GetCartView loads the cart and prices it out against the current catalog.
// Lines whose listing was sold since being added stay visible and flagged so
// the client can surface them; they are rejected at checkout.
func (s *cartService) GetCartView(ctx context.Context, owner identity.OwnerKey) (*models.CartView, error) {
	cart, err := s.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart)
}

func (s *cartService) buildView(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	listingIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		listingIDs = append(listingIDs, item.ListingID)
	}
	listings, err := s.listings.FindListingsByIDs(ctx, listingIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		listing, ok := listings[item.ListingID]
		if !ok {
			// Listing deleted since being carted; the line silently drops out
			// of the view.
			continue
		}
		lines = append(lines, models.CartLine{
			CartItem:  item,
			Title:     listing.Title,
			UnitPrice: listing.Price,
			LineTotal: listing.Price.Times(item.Quantity),
			IsSold:    listing.IsSold,
			ImageKey:  listing.ImageKey,
			SellerID:  listing.SellerID,
		})
	}

	return &models.CartView{
		ID:        cart.ID,
		Lines:     lines,
		Total:     models.SumLines(lines),
		UpdatedAt: cart.UpdatedAt,
	}, nil
}

// ClearCart empties the cart after a successful checkout.
func (s *cartService) ClearCart(ctx context.Context, owner identity.OwnerKey) error {
	update := bson.M{
		"$set": bson.M{"items": []models.CartItem{}, "updated_at": time.Now().UTC()},
	}
	if _, err := s.db.Collection(cartsCollection).UpdateOne(ctx, owner.Filter(), update); err != nil {
		return fmt.Errorf("failed to clear cart for %s: %w", owner, err)
	}
	return nil
}
