package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vietpay-gateway/internal/domain/banktx"
)

const (
	// BankTxCollectionName is the name of the bank transaction entries collection
	BankTxCollectionName = "bank_transaction_entries"
)

// BankTxRepository implements banktx.Repository for MongoDB
type BankTxRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewBankTxRepository creates a new MongoDB bank transaction repository
func NewBankTxRepository(logger *slog.Logger, db *mongo.Database) banktx.Repository {
	return &BankTxRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new entry after checking the (portal, portal transaction id)
// natural key for uniqueness.
func (r *BankTxRepository) Create(ctx context.Context, entry *banktx.Entry) error {
	collection := r.db.Collection(BankTxCollectionName)

	existing, err := r.GetByPortalRef(ctx, entry.PortalID, entry.PortalTransactionID)
	if err != nil {
		r.logger.Error("Failed to check for existing bank transaction entry",
			"portal_id", entry.PortalID,
			"portal_transaction_id", entry.PortalTransactionID,
			"error", err)
		return fmt.Errorf("failed to check for existing bank transaction entry: %w", err)
	}
	if existing != nil {
		return banktx.ErrDuplicateEntry{
			PortalID:            entry.PortalID,
			PortalTransactionID: entry.PortalTransactionID,
		}
	}

	_, err = collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to create bank transaction entry",
			"portal_id", entry.PortalID,
			"portal_transaction_id", entry.PortalTransactionID,
			"error", err)
		return fmt.Errorf("failed to create bank transaction entry: %w", err)
	}

	return nil
}

// GetByPortalRef returns nil, nil when the natural key is unseen
func (r *BankTxRepository) GetByPortalRef(ctx context.Context, portalID, portalTransactionID string) (*banktx.Entry, error) {
	collection := r.db.Collection(BankTxCollectionName)

	filter := bson.M{
		"portal_id":             portalID,
		"portal_transaction_id": portalTransactionID,
	}
	var entry banktx.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get bank transaction entry",
			"portal_id", portalID,
			"portal_transaction_id", portalTransactionID,
			"error", err)
		return nil, fmt.Errorf("failed to get bank transaction entry: %w", err)
	}

	return &entry, nil
}

// Update replaces the stored entry document
func (r *BankTxRepository) Update(ctx context.Context, entry *banktx.Entry) error {
	collection := r.db.Collection(BankTxCollectionName)

	filter := bson.M{
		"portal_id":             entry.PortalID,
		"portal_transaction_id": entry.PortalTransactionID,
	}
	result, err := collection.ReplaceOne(ctx, filter, entry)
	if err != nil {
		r.logger.Error("Failed to update bank transaction entry",
			"portal_id", entry.PortalID,
			"portal_transaction_id", entry.PortalTransactionID,
			"error", err)
		return fmt.Errorf("failed to update bank transaction entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return banktx.ErrEntryNotFound{
			PortalID:            entry.PortalID,
			PortalTransactionID: entry.PortalTransactionID,
		}
	}

	return nil
}

// ExistsProcessed reports whether the pair was already processed to completion
func (r *BankTxRepository) ExistsProcessed(ctx context.Context, portalID, portalTransactionID string) (bool, error) {
	collection := r.db.Collection(BankTxCollectionName)

	filter := bson.M{
		"portal_id":             portalID,
		"portal_transaction_id": portalTransactionID,
		"status":                banktx.StatusProcessed,
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to check processed bank transaction",
			"portal_id", portalID,
			"portal_transaction_id", portalTransactionID,
			"error", err)
		return false, fmt.Errorf("failed to check processed bank transaction: %w", err)
	}

	return count > 0, nil
}

// ExistsForOrder reports whether any entry references the order id
func (r *BankTxRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	collection := r.db.Collection(BankTxCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"order_id": orderID})
	if err != nil {
		r.logger.Error("Failed to check entries for order", "order_id", orderID, "error", err)
		return false, fmt.Errorf("failed to check entries for order: %w", err)
	}

	return count > 0, nil
}
