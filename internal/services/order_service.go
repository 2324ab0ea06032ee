package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/tasks"
)

// IOrderService defines the interface for order lifecycle operations.
type IOrderService interface {
	PlaceOrder(ctx context.Context, owner identity.OwnerKey, shipping models.ShippingInfo) (*models.Order, error)
	FindOrderByID(ctx context.Context, owner identity.OwnerKey, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, owner identity.OwnerKey) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, actorID, orderID string, next models.OrderStatus) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, actorID, orderID string, next models.PaymentStatus) (*models.Order, error)
	ListSales(ctx context.Context, sellerID string) ([]models.Order, error)
	FindOrderForWorker(ctx context.Context, orderID string) (*models.Order, error)
	PurchasedListingIDs(ctx context.Context, owner identity.OwnerKey) ([]string, error)
}

const ordersCollection = "orders"

type orderService struct {
	db       *mongo.Database
	listings IListingService
	carts    ICartService
	enqueuer tasks.IEnqueuer
}

// NewOrderService creates a new OrderService. The enqueuer may be nil, in
// which case confirmation emails are skipped (worker-less test setups).
func NewOrderService(db *mongo.Database, listings IListingService, carts ICartService, enqueuer tasks.IEnqueuer) IOrderService {
	return &orderService{db: db, listings: listings, carts: carts, enqueuer: enqueuer}
}

// PlaceOrder converts the owner's cart into an order. Every listed item is
// claimed with a compare-and-set on its sold flag before the order document
// exists; if any claim fails the already claimed ones are reverted and the
// whole checkout reports a conflict. Two buyers racing for the same listing
// therefore produce exactly one order.
func (s *orderService) PlaceOrder(ctx context.Context, owner identity.OwnerKey, shipping models.ShippingInfo) (*models.Order, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("no owner identity: %w", ErrInvalidArgument)
	}
	if !shipping.Complete() {
		return nil, fmt.Errorf("shipping name, phone and address are required: %w", ErrInvalidArgument)
	}

	view, err := s.carts.GetCartView(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", ErrInvalidArgument)
	}
	for _, line := range view.Lines {
		if line.IsSold {
			return nil, fmt.Errorf("listing %s in cart is already sold: %w", line.ListingID, ErrConflict)
		}
	}

	// Claim phase. Order matters only for the unwind below.
	var claimed []string
	for _, line := range view.Lines {
		if err = s.listings.MarkSold(ctx, line.ListingID); err != nil {
			s.unwindClaims(ctx, claimed)
			return nil, fmt.Errorf("listing %s could not be claimed: %w", line.ListingID, err)
		}
		claimed = append(claimed, line.ListingID)
	}

	// Everything past this point must release the claims on failure, or the
	// listings stay stuck as sold with no order to show for it.
	listings, err := s.listings.FindListingsByIDs(ctx, claimed)
	if err != nil {
		s.unwindClaims(ctx, claimed)
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(view.Lines))
	for _, line := range view.Lines {
		items = append(items, models.OrderItem{
			ListingID:   line.ListingID,
			Title:       line.Title,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			SellerID:    line.SellerID,
			SellerPhone: listings[line.ListingID].PhoneNumber,
		})
	}

	now := time.Now().UTC()
	order := &models.Order{
		Base:          models.NewBase(),
		CartID:        view.ID,
		Items:         items,
		TotalAmount:   view.Total,
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
		Shipping:      shipping,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if owner.IsUser() {
		order.UserID = owner.UserID
	} else {
		order.SessionID = owner.SessionToken
	}

	collection := s.db.Collection(ordersCollection)
	operation := func() error {
		order.GenID()
		_, insertErr := collection.InsertOne(ctx, order)
		return insertErr
	}
	if err = db.Try(operation); err != nil {
		s.unwindClaims(ctx, claimed)
		return nil, fmt.Errorf("failed to insert order for %s: %w", owner, err)
	}

	if err = s.carts.ClearCart(ctx, owner); err != nil {
		// The order exists; a stale cart is an annoyance, not a failure.
		log.Printf("order %s: failed to clear cart: %v", order.ID, err)
	}

	s.enqueueConfirmation(ctx, order.ID)
	return order, nil
}

// unwindClaims reverts sold flags set during a checkout that cannot finish.
func (s *orderService) unwindClaims(ctx context.Context, claimed []string) {
	for _, id := range claimed {
		if err := s.listings.MarkUnsold(ctx, id); err != nil {
			log.Printf("order: failed to revert sold flag on listing %s: %v", id, err)
		}
	}
}

func (s *orderService) enqueueConfirmation(ctx context.Context, orderID string) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewOrderEmailTask(orderID)
	if err != nil {
		log.Printf("order %s: failed to build email task: %v", orderID, err)
		return
	}
	if _, err = s.enqueuer.EnqueueContext(ctx, task); err != nil {
		log.Printf("order %s: failed to enqueue email task: %v", orderID, err)
	}
}

// FindOrderByID returns the order if the owner placed it or sold something
// in it. Anyone else gets permission denied; an unknown ID gets not found.
func (s *orderService) FindOrderByID(ctx context.Context, owner identity.OwnerKey, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding order %s: %w", orderID, err)
	}
	if !owner.Owns(order.UserID, order.SessionID) && !(owner.IsUser() && order.HasSeller(owner.UserID)) {
		return nil, fmt.Errorf("order %s does not belong to %s: %w", orderID, owner, ErrPermissionDenied)
	}
	return &order, nil
}

// ListOrders returns the owner's purchase history, newest first.
func (s *orderService) ListOrders(ctx context.Context, owner identity.OwnerKey) ([]models.Order, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("no owner identity: %w", ErrInvalidArgument)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(ordersCollection).Find(ctx, owner.Filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", owner, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// ListSales returns orders containing at least one item the seller sold,
// newest first.
func (s *orderService) ListSales(ctx context.Context, sellerID string) ([]models.Order, error) {
	filter := bson.M{"items.seller_id": sellerID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(ordersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales for seller %s: %w", sellerID, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode sales: %w", err)
	}
	return orders, nil
}

// statusTimestamp maps a newly reached status to the field stamped with it.
func statusTimestamp(next models.OrderStatus) string {
	switch next {
	case models.OrderShipped:
		return "shipped_at"
	case models.OrderDelivered:
		return "delivered_at"
	}
	return ""
}

// UpdateOrderStatus advances the shipment state. Only a seller with items in
// the order may do this. The current status is part of the update filter, so
// a concurrent transition from the same state loses cleanly instead of
// rewriting history.
func (s *orderService) UpdateOrderStatus(ctx context.Context, actorID, orderID string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", next, ErrInvalidArgument)
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasSeller(actorID) {
		return nil, fmt.Errorf("user %s is not a seller on order %s: %w", actorID, orderID, ErrPermissionDenied)
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("order %s cannot move from %s to %s: %w", orderID, order.Status, next, ErrConflict)
	}

	now := time.Now().UTC()
	set := bson.M{"status": next, "updated_at": now}
	if field := statusTimestamp(next); field != "" {
		set[field] = now
	}

	filter := bson.M{"_id": orderID, "status": order.Status}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = s.db.Collection(ordersCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order %s status changed concurrently: %w", orderID, ErrConflict)
		}
		return nil, fmt.Errorf("failed to update status of order %s: %w", orderID, err)
	}
	return &updated, nil
}

// UpdatePaymentStatus records the payment outcome. Only a seller on the
// order may confirm payment; the only legal moves are pending to paid or
// pending to failed.
func (s *orderService) UpdatePaymentStatus(ctx context.Context, actorID, orderID string, next models.PaymentStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("unknown payment status %q: %w", next, ErrInvalidArgument)
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasSeller(actorID) {
		return nil, fmt.Errorf("user %s is not a seller on order %s: %w", actorID, orderID, ErrPermissionDenied)
	}
	if !order.PaymentStatus.CanTransitionTo(next) {
		return nil, fmt.Errorf("order %s payment cannot move from %s to %s: %w", orderID, order.PaymentStatus, next, ErrConflict)
	}

	now := time.Now().UTC()
	set := bson.M{"payment_status": next, "updated_at": now}
	if next == models.PaymentPaid {
		set["paid_at"] = now
	}

	filter := bson.M{"_id": orderID, "payment_status": order.PaymentStatus}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = s.db.Collection(ordersCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order %s payment changed concurrently: %w", orderID, ErrConflict)
		}
		return nil, fmt.Errorf("failed to update payment of order %s: %w", orderID, err)
	}
	return &updated, nil
}

// FindOrderForWorker loads an order without an ownership check. Background
// workers use it; never exposed through the API.
func (s *orderService) FindOrderForWorker(ctx context.Context, orderID string) (*models.Order, error) {
	return s.findOrder(ctx, orderID)
}

func (s *orderService) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding order %s: %w", orderID, err)
	}
	return &order, nil
}

// PurchasedListingIDs returns the distinct listings the owner has bought in
// delivered orders. The rating gate uses it.
func (s *orderService) PurchasedListingIDs(ctx context.Context, owner identity.OwnerKey) ([]string, error) {
	filter := owner.Filter()
	filter["status"] = models.OrderDelivered
	cursor, err := s.db.Collection(ordersCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivered orders for %s: %w", owner, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode delivered orders: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, order := range orders {
		for _, item := range order.Items {
			if !seen[item.ListingID] {
				seen[item.ListingID] = true
				ids = append(ids, item.ListingID)
			}
		}
	}
	return ids, nil
}
