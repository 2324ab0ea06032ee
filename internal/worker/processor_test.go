package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/tasks"
	"github.com/nansalmad/thriftshop/internal/worker"
)

// --- Mocks ---

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

// MockOrderService implements services.IOrderService. Only FindOrderForWorker
// matters for the email task; the rest satisfy the interface.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, owner identity.OwnerKey, shipping models.ShippingInfo) (*models.Order, error) {
	args := m.Called(ctx, owner, shipping)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) FindOrderByID(ctx context.Context, owner identity.OwnerKey, orderID string) (*models.Order, error) {
	args := m.Called(ctx, owner, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, owner identity.OwnerKey) ([]models.Order, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, actorID, orderID string, next models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, actorID, orderID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) UpdatePaymentStatus(ctx context.Context, actorID, orderID string, next models.PaymentStatus) (*models.Order, error) {
	args := m.Called(ctx, actorID, orderID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) ListSales(ctx context.Context, sellerID string) ([]models.Order, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) FindOrderForWorker(ctx context.Context, orderID string) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) PurchasedListingIDs(ctx context.Context, owner identity.OwnerKey) ([]string, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockUserService implements services.IUserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error) {
	args := m.Called(ctx, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetProfileImageKey(ctx context.Context, userID, imageKey string) error {
	args := m.Called(ctx, userID, imageKey)
	return args.Error(0)
}

// --- Tests ---

func mustMoney(t *testing.T, s string) models.Money {
	t.Helper()
	m, err := models.MoneyFromString(s)
	if err != nil {
		t.Fatalf("invalid money literal %q: %v", s, err)
	}
	return m
}

func confirmedOrder(t *testing.T) *models.Order {
	return &models.Order{
		Base:   models.Base{ID: "order-1"},
		UserID: "user-1",
		Items: []models.OrderItem{
			{ListingID: "listing-1", Title: "Wool coat", UnitPrice: mustMoney(t, "80.00"), Quantity: 1, SellerID: "seller-1", SellerPhone: "555-0100"},
		},
		TotalAmount:   mustMoney(t, "80.00"),
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
		Shipping:      models.ShippingInfo{Name: "Jane Doe", Phone: "555-0101", Address: "1 Main St"},
	}
}

func TestHandleOrderEmailTask_Success(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockOrders := new(MockOrderService)
	mockUsers := new(MockUserService)
	cfg := &config.Config{AppName: "ThriftShop", SmtpFromAddress: "noreply@thriftshop.test"}

	p := worker.NewTaskProcessor(cfg, nil, mockSender, nil, nil, mockUsers, mockOrders)

	order := confirmedOrder(t)
	mockOrders.On("FindOrderForWorker", mock.Anything, "order-1").Return(order, nil)
	mockUsers.On("FindUserByID", mock.Anything, "user-1").Return(&models.User{
		Base:      models.Base{ID: "user-1"},
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
	}, nil)

	expectedSubject := "ThriftShop: order order-1 confirmed"
	mockSender.On("Send",
		mock.Anything,
		[]string{"jane@example.com"},
		expectedSubject,
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: jane@example.com")
			assert.Contains(t, msgStr, "From: noreply@thriftshop.test")
			assert.Contains(t, msgStr, fmt.Sprintf("Subject: %s", expectedSubject))
			assert.Contains(t, msgStr, "Wool coat x1 @ 80.00")
			assert.Contains(t, msgStr, "Total: 80.00")
			assert.Contains(t, msgStr, "Shipping to: Jane Doe, 1 Main St")
			return true
		}),
	).Return(nil)

	task, err := tasks.NewOrderEmailTask("order-1")
	assert.NoError(t, err)

	err = p.HandleOrderEmailTask(context.Background(), task)
	assert.NoError(t, err)
	mockOrders.AssertExpectations(t)
	mockUsers.AssertExpectations(t)
	mockSender.AssertExpectations(t)
}

func TestHandleOrderEmailTask_GuestOrderSkipped(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockOrders := new(MockOrderService)
	mockUsers := new(MockUserService)
	p := worker.NewTaskProcessor(&config.Config{}, nil, mockSender, nil, nil, mockUsers, mockOrders)

	guestOrder := confirmedOrder(t)
	guestOrder.UserID = ""
	guestOrder.SessionID = "guest-session-1"
	mockOrders.On("FindOrderForWorker", mock.Anything, "order-1").Return(guestOrder, nil)

	task, _ := tasks.NewOrderEmailTask("order-1")
	err := p.HandleOrderEmailTask(context.Background(), task)

	// No email address on file is a clean no-op, not a retryable failure.
	assert.NoError(t, err)
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUsers.AssertNotCalled(t, "FindUserByID", mock.Anything, mock.Anything)
}

func TestHandleOrderEmailTask_OrderGoneSkipsRetry(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockOrders := new(MockOrderService)
	mockUsers := new(MockUserService)
	p := worker.NewTaskProcessor(&config.Config{}, nil, mockSender, nil, nil, mockUsers, mockOrders)

	mockOrders.On("FindOrderForWorker", mock.Anything, "order-gone").Return(nil, fmt.Errorf("order: %w", services.ErrNotFound))

	task, _ := tasks.NewOrderEmailTask("order-gone")
	err := p.HandleOrderEmailTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "missing order should not be retried")
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleImageProcessTask_BadPayloadSkipsRetry(t *testing.T) {
	p := worker.NewTaskProcessor(&config.Config{}, nil, nil, nil, nil, nil, nil)

	task := asynq.NewTask(tasks.TypeImageProcess, []byte("not json"))
	err := p.HandleImageProcessTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewImageProcessTask_Payload(t *testing.T) {
	task, err := tasks.NewImageProcessTask(tasks.ImageTargetListing, "listing-1", "image_staging:abc")
	assert.NoError(t, err)
	assert.Equal(t, tasks.TypeImageProcess, task.Type())

	var payload tasks.ImageProcessPayload
	assert.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, tasks.ImageTargetListing, payload.Target)
	assert.Equal(t, "listing-1", payload.EntityID)
	assert.Equal(t, "image_staging:abc", payload.StagingKey)
}
