package order

import (
	"context"
	"time"
)

// Repository defines order persistence operations
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)

	// GetByMerchantOrderID returns nil, nil when no order carries the
	// merchant-supplied id for that merchant.
	GetByMerchantOrderID(ctx context.Context, merchantPublicID, merchantOrderID string) (*Order, error)

	ListByMerchant(ctx context.Context, merchantPublicID string, orderType Type, limit, offset int) ([]*Order, error)
	Update(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	MarkNotified(ctx context.Context, orderID string) error

	// FindExpiredProcessing returns deposit orders still processing whose
	// payment window elapsed before now.
	FindExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]*Order, error)
}

// ErrOrderNotFound indicates a missing order
type ErrOrderNotFound struct {
	OrderID string
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID
}

// Is implements errors.Is matching; an empty target OrderID matches any
// ErrOrderNotFound.
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OrderID == "" {
		return true
	}
	return e.OrderID == t.OrderID
}

// ErrDuplicateMerchantOrderID indicates the merchant-supplied order id is
// already in use for this merchant
type ErrDuplicateMerchantOrderID struct {
	MerchantOrderID string
}

func (e ErrDuplicateMerchantOrderID) Error() string {
	return "merchant order id already exists: " + e.MerchantOrderID
}

// ErrInvalidTransition indicates a refused state machine edge
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid order status transition: " + string(e.From) + " -> " + string(e.To)
}

// Is matches any ErrInvalidTransition when the target carries empty statuses
func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	if t.From == "" && t.To == "" {
		return true
	}
	return e.From == t.From && e.To == t.To
}
