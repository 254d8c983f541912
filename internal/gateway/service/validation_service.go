package service

import (
	"context"
	"log/slog"

	"github.com/vietpay-gateway/internal/reconciler"
)

// validationService implements ValidationService over the matcher
type validationService struct {
	logger  *slog.Logger
	matcher *reconciler.Matcher
}

// NewValidationService creates the dry-run validation service
func NewValidationService(logger *slog.Logger, matcher *reconciler.Matcher) ValidationService {
	return &validationService{logger: logger, matcher: matcher}
}

func (s *validationService) Validate(ctx context.Context, portalID, portalTransactionID, orderID string) (*reconciler.Validation, error) {
	v, err := s.matcher.Validate(ctx, portalID, portalTransactionID, orderID)
	if err != nil {
		s.logger.Warn("Payment validation failed",
			"portal_id", portalID,
			"portal_transaction_id", portalTransactionID,
			"order_id", orderID,
			"error", err)
		return nil, err
	}
	return v, nil
}
