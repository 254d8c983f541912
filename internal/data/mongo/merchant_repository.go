package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

const (
	// MerchantCollectionName is the name of the merchant accounts collection
	MerchantCollectionName = "merchant_accounts"
)

// MerchantRepository implements merchant.Repository for MongoDB
type MerchantRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewMerchantRepository creates a new MongoDB merchant repository
func NewMerchantRepository(logger *slog.Logger, db *mongo.Database) merchant.Repository {
	return &MerchantRepository{
		db:     db,
		logger: logger,
	}
}

// GetByPublicID retrieves a merchant account by its public id.
// Returns ErrAccountNotFound if no account exists.
func (r *MerchantRepository) GetByPublicID(ctx context.Context, publicID string) (*merchant.Account, error) {
	collection := r.db.Collection(MerchantCollectionName)

	var acct merchant.Account
	err := collection.FindOne(ctx, bson.M{"public_id": publicID}).Decode(&acct)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, merchant.ErrAccountNotFound{PublicID: publicID}
		}
		r.logger.Error("Failed to get merchant account", "public_id", publicID, "error", err)
		return nil, fmt.Errorf("failed to get merchant account: %w", err)
	}

	return &acct, nil
}

// AdjustBalances applies signed deltas atomically within the document.
// Per-merchant serialization is the balance ledger's responsibility.
func (r *MerchantRepository) AdjustBalances(ctx context.Context, publicID string, availableDelta, currentDelta int64) error {
	collection := r.db.Collection(MerchantCollectionName)

	update := bson.M{
		"$inc": bson.M{
			"available_balance": availableDelta,
			"current_balance":   currentDelta,
		},
		"$set": bson.M{"updated_at": time.Now()},
	}
	result, err := collection.UpdateOne(ctx, bson.M{"public_id": publicID}, update)
	if err != nil {
		r.logger.Error("Failed to adjust merchant balances",
			"public_id", publicID,
			"available_delta", availableDelta,
			"current_delta", currentDelta,
			"error", err)
		return fmt.Errorf("failed to adjust merchant balances: %w", err)
	}
	if result.MatchedCount == 0 {
		return merchant.ErrAccountNotFound{PublicID: publicID}
	}

	return nil
}
