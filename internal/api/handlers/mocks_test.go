package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
)

// --- Mocks ---

// MockCartService
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*models.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, owner identity.OwnerKey, listingID string, quantity int64) (*models.CartView, error) {
	args := m.Called(ctx, owner, listingID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, owner identity.OwnerKey, itemID string) (*models.CartView, error) {
	args := m.Called(ctx, owner, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) SetItemQuantity(ctx context.Context, owner identity.OwnerKey, itemID string, quantity int64) (*models.CartView, error) {
	args := m.Called(ctx, owner, itemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) GetCartView(ctx context.Context, owner identity.OwnerKey) (*models.CartView, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) ClearCart(ctx context.Context, owner identity.OwnerKey) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, sellerID string, input services.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, sellerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID string) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindAvailableListing(ctx context.Context, listingID string) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SearchListings(ctx context.Context, filter services.ListingFilter) ([]models.Listing, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, sellerID string, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, sellerID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID, sellerID string) error {
	args := m.Called(ctx, listingID, sellerID)
	return args.Error(0)
}

func (m *MockListingService) FindListingsBySeller(ctx context.Context, sellerID string, sold *bool) ([]models.Listing, error) {
	args := m.Called(ctx, sellerID, sold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingsByIDs(ctx context.Context, listingIDs []string) (map[string]models.Listing, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.Listing), args.Error(1)
}

func (m *MockListingService) MarkSold(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingService) MarkUnsold(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingService) SetImageKey(ctx context.Context, listingID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}
