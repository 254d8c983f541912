// Package reconciler matches external bank-side events against orders and
// commits the resulting money movements. The portal, not the webhook payload,
// is the authority on a transaction's amount and direction.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietpay-gateway/internal/balance"
	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/platform/messaging/producers"
	"github.com/vietpay-gateway/internal/reconciler/descparse"
	"github.com/vietpay-gateway/internal/reconciler/portal"
)

// Matching errors
var (
	ErrNoOrderReference     = errors.New("no order reference found in transaction")
	ErrAmountMismatch       = errors.New("payment amount does not match order remainder")
	ErrDebitTransaction     = errors.New("debit transaction cannot settle a deposit")
	ErrCreditTransaction    = errors.New("credit transaction cannot settle a withdrawal")
	ErrOrderNotPayable      = errors.New("order is not in a payable state")
	ErrRequiresManualReview = errors.New("funds settled but commit did not finish, manual review required")
)

// PartialFailureError reports a commit that stopped after money moved. The
// entry is left failed with an audit note; an operator must finish the job.
type PartialFailureError struct {
	Stage string
	Err   error
}

func (e PartialFailureError) Error() string {
	return "payment commit failed at " + e.Stage + ": " + e.Err.Error()
}

func (e PartialFailureError) Unwrap() error { return e.Err }

// Notifier enqueues the merchant callback after a committed match
type Notifier interface {
	EnqueueOrderNotification(o *order.Order)
}

// CacheInvalidator drops stale merchant cache entries after balance mutations
type CacheInvalidator interface {
	Invalidate(ctx context.Context, publicID string)
}

// Matcher reconciles portal transactions with orders
type Matcher struct {
	logger     *slog.Logger
	entries    banktx.Repository
	orders     order.Repository
	ledger     *balance.Ledger
	registry   *portal.Registry
	notifier   Notifier
	cache      CacheInvalidator
	settlement producers.SettlementPublisher
}

// NewMatcher creates the reconciliation matcher
func NewMatcher(
	logger *slog.Logger,
	entries banktx.Repository,
	orders order.Repository,
	ledger *balance.Ledger,
	registry *portal.Registry,
	notifier Notifier,
	cache CacheInvalidator,
	settlement producers.SettlementPublisher,
) *Matcher {
	return &Matcher{
		logger:     logger,
		entries:    entries,
		orders:     orders,
		ledger:     ledger,
		registry:   registry,
		notifier:   notifier,
		cache:      cache,
		settlement: settlement,
	}
}

// ProcessRequest carries one webhook-delivered bank event. PortalTransactionID
// may be empty when the caller only knows the order id; the portal's lookup
// channel then resolves the real reference.
type ProcessRequest struct {
	PortalID            string
	PortalTransactionID string
	OrderID             string // Optional hint; the description still decides
	Description         string
	RawPayload          string
}

// ProcessPayment drives one bank event through matching and settlement.
// Returns the entry in its final state; the order is non-nil only when a
// match committed.
func (m *Matcher) ProcessPayment(ctx context.Context, req ProcessRequest) (*banktx.Entry, *order.Order, error) {
	var tx *portal.Transaction
	if req.PortalTransactionID == "" {
		// Order-id-only call: resolve the portal reference first so the
		// duplicate check runs against the real natural key.
		var err error
		tx, err = m.fetchAuthoritative(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		req.PortalID = tx.PortalID
		req.PortalTransactionID = tx.PortalTransactionID
	}

	existing, err := m.entries.GetByPortalRef(ctx, req.PortalID, req.PortalTransactionID)
	if err != nil {
		return nil, nil, err
	}

	if existing != nil {
		switch {
		case existing.Status == banktx.StatusProcessed || existing.Status == banktx.StatusDuplicated:
			m.logger.Info("Duplicate payment delivery refused",
				"portal_id", req.PortalID,
				"portal_transaction_id", req.PortalTransactionID)
			return existing, nil, banktx.ErrDuplicatePayment
		case existing.Status == banktx.StatusAvailable:
			return m.redeemAvailable(ctx, existing, req)
		case existing.Status == banktx.StatusFailed && existing.Settled():
			m.logger.Error("Refused re-drive of entry that already moved money",
				"portal_id", req.PortalID,
				"portal_transaction_id", req.PortalTransactionID,
				"entry_id", existing.EntryID)
			return existing, nil, ErrRequiresManualReview
		}
		// pending, unlinked, failed before settlement: re-drive the match
	}

	if tx == nil {
		tx, err = m.fetchAuthoritative(ctx, req)
		if err != nil {
			return existing, nil, err
		}
	}

	entry := existing
	if entry == nil {
		entry = banktx.New(tx.PortalID, tx.PortalTransactionID, tx.Amount, tx.BalanceAfter, req.RawPayload)
		if entry.RawPayload == "" {
			entry.RawPayload = tx.Raw
		}
		if err := m.entries.Create(ctx, entry); err != nil {
			var dup banktx.ErrDuplicateEntry
			if errors.As(err, &dup) {
				return nil, nil, banktx.ErrDuplicatePayment
			}
			return nil, nil, err
		}
	} else {
		entry.Amount = tx.Amount
		entry.BalanceAfter = tx.BalanceAfter
		entry.AddNote("match re-driven from portal data")
	}

	return m.match(ctx, entry, tx, req)
}

// fetchAuthoritative resolves the transaction from the portal named in the
// request.
func (m *Matcher) fetchAuthoritative(ctx context.Context, req ProcessRequest) (*portal.Transaction, error) {
	client, err := m.registry.Get(req.PortalID)
	if err != nil {
		return nil, err
	}
	return resolveTransaction(ctx, client, req.PortalTransactionID, req.OrderID)
}

// resolveTransaction fetches by portal transaction id when one is known,
// falling back to the order-id lookup channel for portals that index by memo.
func resolveTransaction(ctx context.Context, client portal.Client, portalTransactionID, orderID string) (*portal.Transaction, error) {
	fetchErr := error(portal.ErrTransactionNotFound)
	if portalTransactionID != "" {
		tx, err := client.FetchTransaction(ctx, portalTransactionID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, portal.ErrTransactionNotFound) {
			return nil, err
		}
		fetchErr = err
	}

	if orderID != "" {
		if lookup, ok := client.(portal.OrderLookup); ok {
			if tx, err := lookup.FindByOrderID(ctx, orderID); err == nil {
				return tx, nil
			}
		}
	}

	return nil, fetchErr
}

func (m *Matcher) match(ctx context.Context, entry *banktx.Entry, tx *portal.Transaction, req ProcessRequest) (*banktx.Entry, *order.Order, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID, _ = descparse.ExtractOrderID(tx.Description)
	}
	if orderID == "" {
		entry.Status = banktx.StatusUnlinked
		entry.AddNote("no order reference in description")
		if err := m.entries.Update(ctx, entry); err != nil {
			m.logger.Error("Failed to persist unlinked entry", "entry_id", entry.EntryID, "error", err)
		}
		return entry, nil, ErrNoOrderReference
	}

	o, err := m.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			entry.Status = banktx.StatusUnlinked
			entry.AddNote("referenced order does not exist: " + orderID)
			if updErr := m.entries.Update(ctx, entry); updErr != nil {
				m.logger.Error("Failed to persist unlinked entry", "entry_id", entry.EntryID, "error", updErr)
			}
			return entry, nil, err
		}
		return entry, nil, err
	}

	if !payable(o) {
		entry.Status = banktx.StatusDuplicated
		entry.AddNote("payment arrived for non-payable order " + orderID + " in status " + string(o.Status))
		if err := m.entries.Update(ctx, entry); err != nil {
			m.logger.Error("Failed to persist duplicated entry", "entry_id", entry.EntryID, "error", err)
		}
		return entry, nil, ErrOrderNotPayable
	}

	// Deposits settle from credits, withdrawals from debits.
	if o.Type == order.TypeDeposit && tx.IsDebit() {
		entry.MarkFailed("debit transaction cannot settle deposit " + orderID)
		if err := m.entries.Update(ctx, entry); err != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", err)
		}
		return entry, nil, ErrDebitTransaction
	}
	if o.Type == order.TypeWithdraw && !tx.IsDebit() {
		entry.MarkFailed("credit transaction cannot settle withdrawal " + orderID)
		if err := m.entries.Update(ctx, entry); err != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", err)
		}
		return entry, nil, ErrCreditTransaction
	}

	if magnitude(entry.Amount) != o.UnpaidAmount {
		entry.MarkFailed(fmt.Sprintf("amount %d does not match order remainder %d", entry.Amount, o.UnpaidAmount))
		if err := m.entries.Update(ctx, entry); err != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", err)
		}
		return entry, nil, ErrAmountMismatch
	}

	return m.commit(ctx, entry, o)
}

// payable reports whether the matcher may still settle against the order
func payable(o *order.Order) bool {
	switch o.Type {
	case order.TypeDeposit:
		return o.Status == order.StatusProcessing
	case order.TypeWithdraw:
		return o.Status == order.StatusPending || o.Status == order.StatusProcessing
	}
	return false
}

func magnitude(amount int64) int64 {
	if amount < 0 {
		return -amount
	}
	return amount
}

// redeemAvailable consumes a pre-allocated credit against an order. The
// stored entry amount is authoritative; no portal round trip.
func (m *Matcher) redeemAvailable(ctx context.Context, entry *banktx.Entry, req ProcessRequest) (*banktx.Entry, *order.Order, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID, _ = descparse.ExtractOrderID(req.Description)
	}
	if orderID == "" {
		return entry, nil, ErrNoOrderReference
	}

	o, err := m.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return entry, nil, err
	}

	if o.Type != order.TypeDeposit || o.Status != order.StatusProcessing {
		return entry, nil, ErrOrderNotPayable
	}
	if entry.Amount != o.UnpaidAmount {
		return entry, nil, ErrAmountMismatch
	}

	entry.AddNote("redeemed from available pool for " + orderID)
	return m.commit(ctx, entry, o)
}

// commit applies the settlement in order: merchant balance, order update,
// entry finalization, then the side channels. Once the balance moved the
// entry carries a settle mark; any later failure leaves it failed for manual
// review and it is never re-driven.
func (m *Matcher) commit(ctx context.Context, entry *banktx.Entry, o *order.Order) (*banktx.Entry, *order.Order, error) {
	amount := magnitude(entry.Amount)

	var settleErr error
	if o.Type == order.TypeWithdraw {
		settleErr = m.ledger.SettleWithdraw(ctx, o.MerchantPublicID, amount)
	} else {
		settleErr = m.ledger.SettleDeposit(ctx, o.MerchantPublicID, amount)
	}
	if settleErr != nil {
		entry.MarkFailed("merchant settle failed: " + settleErr.Error())
		if updErr := m.entries.Update(ctx, entry); updErr != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", updErr)
		}
		return entry, nil, PartialFailureError{Stage: "settle", Err: settleErr}
	}
	entry.MarkSettled()
	if m.cache != nil {
		m.cache.Invalidate(ctx, o.MerchantPublicID)
	}

	if err := o.ApplyPayment(amount); err != nil {
		entry.MarkFailed("order payment application refused after settle: " + err.Error())
		if updErr := m.entries.Update(ctx, entry); updErr != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", updErr)
		}
		return entry, nil, PartialFailureError{Stage: "apply", Err: err}
	}

	if err := m.orders.Update(ctx, o); err != nil {
		entry.MarkFailed("order update failed after settle: " + err.Error())
		if updErr := m.entries.Update(ctx, entry); updErr != nil {
			m.logger.Error("Failed to persist failed entry", "entry_id", entry.EntryID, "error", updErr)
		}
		return entry, nil, PartialFailureError{Stage: "order", Err: err}
	}

	entry.MarkProcessed(o.OrderID)
	if err := m.entries.Update(ctx, entry); err != nil {
		// Money and order state are committed; the entry is the only laggard.
		m.logger.Error("Failed to finalize processed entry", "entry_id", entry.EntryID, "error", err)
		return entry, o, PartialFailureError{Stage: "entry", Err: err}
	}

	m.logger.Info("Payment matched",
		"order_id", o.OrderID,
		"portal_id", entry.PortalID,
		"portal_transaction_id", entry.PortalTransactionID,
		"amount", amount,
		"order_status", o.Status)

	if m.notifier != nil {
		m.notifier.EnqueueOrderNotification(o)
	}
	if m.settlement != nil {
		event := producers.SettlementEvent{
			OrderID:             o.OrderID,
			MerchantPublicID:    o.MerchantPublicID,
			PortalID:            entry.PortalID,
			PortalTransactionID: entry.PortalTransactionID,
			Amount:              amount,
			OrderStatus:         string(o.Status),
			OccurredAt:          *entry.ProcessedAt,
		}
		if err := m.settlement.Publish(ctx, event); err != nil {
			m.logger.Error("Failed to publish settlement event", "order_id", o.OrderID, "error", err)
		}
	}

	return entry, o, nil
}

// Validation is the dry-run match report for support tooling
type Validation struct {
	OrderIDMatch       bool `json:"orderIdMatch"`
	AmountMatch        bool `json:"amountMatch"`
	IsDebitTransaction bool `json:"isDebitTransaction"`
	AlreadyProcessed   bool `json:"alreadyProcessed"`
	IsValid            bool `json:"isValid"`
}

// Validate checks a portal transaction against an order without moving any
// state. Used by support tooling before a manual reprocess. Either the portal
// transaction id or the order id may drive the lookup.
func (m *Matcher) Validate(ctx context.Context, portalID, portalTransactionID, orderID string) (*Validation, error) {
	client, err := m.registry.Get(portalID)
	if err != nil {
		return nil, err
	}

	tx, err := resolveTransaction(ctx, client, portalTransactionID, orderID)
	if err != nil {
		return nil, err
	}

	v := &Validation{IsDebitTransaction: tx.IsDebit()}

	processed, err := m.entries.ExistsProcessed(ctx, portalID, tx.PortalTransactionID)
	if err != nil {
		return nil, err
	}
	v.AlreadyProcessed = processed

	extracted, _ := descparse.ExtractOrderID(tx.Description)
	v.OrderIDMatch = extracted != "" && extracted == orderID

	o, err := m.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			return v, nil
		}
		return nil, err
	}
	v.AmountMatch = magnitude(tx.Amount) == o.UnpaidAmount

	directionOK := tx.IsDebit() == (o.Type == order.TypeWithdraw)
	v.IsValid = v.OrderIDMatch && v.AmountMatch && directionOK && !v.AlreadyProcessed
	return v, nil
}
