// Package mongo provides primary-store implementations of the domain
// repositories on top of the MongoDB document store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vietpay-gateway/internal/domain/order"
)

const (
	// OrderCollectionName is the name of the orders collection
	OrderCollectionName = "orders"
)

// OrderRepository implements order.Repository for MongoDB
type OrderRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewOrderRepository creates a new MongoDB order repository
func NewOrderRepository(logger *slog.Logger, db *mongo.Database) order.Repository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new order after checking the merchant-supplied order id
// for uniqueness within the merchant.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	collection := r.db.Collection(OrderCollectionName)

	if o.MerchantOrderID != "" {
		existing, err := r.GetByMerchantOrderID(ctx, o.MerchantPublicID, o.MerchantOrderID)
		if err != nil {
			r.logger.Error("Failed to check for existing merchant order id",
				"merchant_order_id", o.MerchantOrderID,
				"error", err)
			return fmt.Errorf("failed to check for existing merchant order id: %w", err)
		}
		if existing != nil {
			return order.ErrDuplicateMerchantOrderID{MerchantOrderID: o.MerchantOrderID}
		}
	}

	_, err := collection.InsertOne(ctx, o)
	if err != nil {
		r.logger.Error("Failed to create order", "order_id", o.OrderID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByOrderID retrieves an order by its id.
// Returns ErrOrderNotFound if no order exists.
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	collection := r.db.Collection(OrderCollectionName)

	var o order.Order
	err := collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrOrderNotFound{OrderID: orderID}
		}
		r.logger.Error("Failed to get order", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &o, nil
}

// GetByMerchantOrderID returns nil, nil when the merchant-supplied id is unused
func (r *OrderRepository) GetByMerchantOrderID(ctx context.Context, merchantPublicID, merchantOrderID string) (*order.Order, error) {
	collection := r.db.Collection(OrderCollectionName)

	filter := bson.M{
		"merchant_public_id": merchantPublicID,
		"merchant_order_id":  merchantOrderID,
	}
	var o order.Order
	err := collection.FindOne(ctx, filter).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get order by merchant order id",
			"merchant_order_id", merchantOrderID,
			"error", err)
		return nil, fmt.Errorf("failed to get order by merchant order id: %w", err)
	}

	return &o, nil
}

// ListByMerchant retrieves paginated orders for a merchant, newest first,
// optionally filtered by order type.
func (r *OrderRepository) ListByMerchant(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	collection := r.db.Collection(OrderCollectionName)

	filter := bson.M{"merchant_public_id": merchantPublicID}
	if orderType != "" {
		filter["type"] = orderType
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list orders", "merchant_public_id", merchantPublicID, "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*order.Order
	if err := cursor.All(ctx, &orders); err != nil {
		r.logger.Error("Failed to decode orders", "merchant_public_id", merchantPublicID, "error", err)
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	return orders, nil
}

// Update replaces the stored order document
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	collection := r.db.Collection(OrderCollectionName)

	result, err := collection.ReplaceOne(ctx, bson.M{"order_id": o.OrderID}, o)
	if err != nil {
		r.logger.Error("Failed to update order", "order_id", o.OrderID, "error", err)
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return order.ErrOrderNotFound{OrderID: o.OrderID}
	}

	return nil
}

// UpdateStatus sets the order status and refreshes the updated timestamp
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	collection := r.db.Collection(OrderCollectionName)

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}
	result, err := collection.UpdateOne(ctx, bson.M{"order_id": orderID}, update)
	if err != nil {
		r.logger.Error("Failed to update order status",
			"order_id", orderID,
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.MatchedCount == 0 {
		return order.ErrOrderNotFound{OrderID: orderID}
	}

	return nil
}

// MarkNotified flags the order's callback as delivered
func (r *OrderRepository) MarkNotified(ctx context.Context, orderID string) error {
	collection := r.db.Collection(OrderCollectionName)

	update := bson.M{
		"$set": bson.M{
			"notification_sent": true,
			"updated_at":        time.Now(),
		},
	}
	result, err := collection.UpdateOne(ctx, bson.M{"order_id": orderID}, update)
	if err != nil {
		r.logger.Error("Failed to mark order notified", "order_id", orderID, "error", err)
		return fmt.Errorf("failed to mark order notified: %w", err)
	}
	if result.MatchedCount == 0 {
		return order.ErrOrderNotFound{OrderID: orderID}
	}

	return nil
}

// FindExpiredProcessing returns deposit orders still processing past their
// payment window, oldest first.
func (r *OrderRepository) FindExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]*order.Order, error) {
	collection := r.db.Collection(OrderCollectionName)

	filter := bson.M{
		"type":       order.TypeDeposit,
		"status":     order.StatusProcessing,
		"expires_at": bson.M{"$lt": now},
	}
	opts := options.Find().
		SetSort(bson.M{"expires_at": 1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find expired orders", "error", err)
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*order.Order
	if err := cursor.All(ctx, &orders); err != nil {
		r.logger.Error("Failed to decode expired orders", "error", err)
		return nil, fmt.Errorf("failed to decode expired orders: %w", err)
	}

	return orders, nil
}
