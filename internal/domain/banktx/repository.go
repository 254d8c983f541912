package banktx

import (
	"context"
	"errors"
)

// ErrDuplicatePayment is the hard idempotency stop: the portal transaction
// was already processed to completion and must never be reprocessed, even
// under explicit operator override.
var ErrDuplicatePayment = errors.New("bank transaction already processed")

// Repository defines bank transaction entry persistence operations
type Repository interface {
	Create(ctx context.Context, entry *Entry) error

	// GetByPortalRef returns nil, nil when no entry exists for the composite
	// natural key.
	GetByPortalRef(ctx context.Context, portalID, portalTransactionID string) (*Entry, error)

	Update(ctx context.Context, entry *Entry) error

	// ExistsProcessed implements checkProcessedTransaction: reports whether
	// the pair was already driven to a processed state.
	ExistsProcessed(ctx context.Context, portalID, portalTransactionID string) (bool, error)

	// ExistsForOrder reports whether any entry references the order id.
	// Used to guard failed transitions after money has moved.
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
}

// ErrEntryNotFound indicates a missing bank transaction entry
type ErrEntryNotFound struct {
	PortalID            string
	PortalTransactionID string
}

func (e ErrEntryNotFound) Error() string {
	return "bank transaction entry not found: " + e.PortalID + "/" + e.PortalTransactionID
}

// Is matches any ErrEntryNotFound when the target key is empty
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.PortalID == "" && t.PortalTransactionID == "" {
		return true
	}
	return e.PortalID == t.PortalID && e.PortalTransactionID == t.PortalTransactionID
}

// ErrDuplicateEntry indicates a natural-key uniqueness violation on insert
type ErrDuplicateEntry struct {
	PortalID            string
	PortalTransactionID string
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate bank transaction entry: " + e.PortalID + "/" + e.PortalTransactionID
}
