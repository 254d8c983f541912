package merchant

import "context"

// Repository defines merchant account persistence operations
type Repository interface {
	GetByPublicID(ctx context.Context, publicID string) (*Account, error)

	// AdjustBalances applies signed deltas to the available and current
	// balances. Callers serialize per-merchant; the store only needs
	// per-document update atomicity.
	AdjustBalances(ctx context.Context, publicID string, availableDelta, currentDelta int64) error
}

// ErrAccountNotFound indicates a missing merchant account
type ErrAccountNotFound struct {
	PublicID string
}

func (e ErrAccountNotFound) Error() string {
	return "merchant account not found: " + e.PublicID
}

// Is matches any ErrAccountNotFound when the target PublicID is empty
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.PublicID == "" {
		return true
	}
	return e.PublicID == t.PublicID
}
