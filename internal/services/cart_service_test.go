package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nansalmad/thriftshop/internal/identity"
)

func TestCartService_GetOrCreateIsIdempotent(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_getorcreate")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.SessionOwner("guest-token-1")

	first, err := svc.GetOrCreateCart(ctx, owner)
	require.NoError(t, err)
	second, err := svc.GetOrCreateCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.Items)

	// A different owner gets a different cart.
	other, err := svc.GetOrCreateCart(ctx, identity.UserOwner("user-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = svc.GetOrCreateCart(ctx, identity.OwnerKey{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCartService_AddItemMergesDuplicates(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_add")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.UserOwner("buyer-1")

	listing := seedListing(t, testDb, "seller-1", "Sweater", "19.99")

	view, err := svc.AddItem(ctx, owner, listing.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].Quantity)

	// Adding the same listing again bumps the line, no duplicate.
	view, err = svc.AddItem(ctx, owner, listing.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(2), view.Lines[0].Quantity)
	assert.Equal(t, "39.98", view.Total.StringFixed())
}

func TestCartService_AddItemRejectsSoldAndBadQuantity(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_add_invalid")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.UserOwner("buyer-1")

	listing := seedListing(t, testDb, "seller-1", "Coat", "50.00")

	_, err := svc.AddItem(ctx, owner, listing.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.AddItem(ctx, owner, listing.ID, 101)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, listings.MarkSold(ctx, listing.ID))
	_, err = svc.AddItem(ctx, owner, listing.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddItem(ctx, owner, "no-such-listing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_ViewPricesExactly(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_pricing")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.SessionOwner("guest-2")

	shirt := seedListing(t, testDb, "seller-1", "Shirt", "19.99")
	belt := seedListing(t, testDb, "seller-2", "Belt", "5.00")

	_, err := svc.AddItem(ctx, owner, shirt.ID, 2)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, owner, belt.ID, 1)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "44.98", view.Total.StringFixed())
	for _, line := range view.Lines {
		if line.ListingID == shirt.ID {
			assert.Equal(t, "39.98", line.LineTotal.StringFixed())
			assert.Equal(t, "seller-1", line.SellerID)
		}
	}
}

func TestCartService_RemoveAndSetQuantity(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_mutate")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.UserOwner("buyer-2")

	listing := seedListing(t, testDb, "seller-1", "Skirt", "12.00")
	view, err := svc.AddItem(ctx, owner, listing.ID, 1)
	require.NoError(t, err)
	itemID := view.Lines[0].ID

	view, err = svc.SetItemQuantity(ctx, owner, itemID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Lines[0].Quantity)
	assert.Equal(t, "36.00", view.Total.StringFixed())

	_, err = svc.SetItemQuantity(ctx, owner, itemID, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Another owner cannot touch the item.
	_, err = svc.SetItemQuantity(ctx, identity.UserOwner("intruder"), itemID, 1)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = svc.RemoveItem(ctx, identity.UserOwner("intruder"), itemID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	view, err = svc.RemoveItem(ctx, owner, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "0.00", view.Total.StringFixed())

	_, err = svc.RemoveItem(ctx, owner, itemID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_AddItemCapsLineQuantity(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_quantity_cap")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.UserOwner("buyer-4")

	listing := seedListing(t, testDb, "seller-1", "Socks", "3.00")

	_, err := svc.AddItem(ctx, owner, listing.ID, 60)
	require.NoError(t, err)

	// A second add that would cross the cap is refused and changes nothing.
	_, err = svc.AddItem(ctx, owner, listing.ID, 60)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	view, err := svc.GetCartView(ctx, owner)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(60), view.Lines[0].Quantity)

	// Topping up exactly to the cap is still allowed.
	view, err = svc.AddItem(ctx, owner, listing.ID, 40)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(100), view.Lines[0].Quantity)
}

func TestCartService_SoldLineFlaggedInView(t *testing.T) {
	testDb := setupTestDB(t, "testdb_cart_sold_flag")
	listings := NewListingService(testDb, testConfig())
	svc := NewCartService(testDb, listings)
	ctx := context.Background()
	owner := identity.UserOwner("buyer-3")

	listing := seedListing(t, testDb, "seller-1", "Gloves", "7.50")
	_, err := svc.AddItem(ctx, owner, listing.ID, 1)
	require.NoError(t, err)

	// Sold after being carted: the line stays, flagged.
	require.NoError(t, listings.MarkSold(ctx, listing.ID))

	view, err := svc.GetCartView(ctx, owner)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, view.Lines[0].IsSold)
}
