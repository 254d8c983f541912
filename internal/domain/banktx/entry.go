// Package banktx holds the normalized record of one external bank-side event.
// The (portal id, portal transaction id) pair is the system's idempotency
// boundary: it is never processed to completion twice.
package banktx

import (
	"time"

	"github.com/google/uuid"
)

// Status defines bank transaction entry states
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusDuplicated Status = "duplicated"
	StatusUnlinked   Status = "unlinked"

	// StatusAvailable marks an entry pre-allocated into the redemption pool
	// (over-payment or house balance) with no order attached yet. Consumed,
	// not created, by later matches.
	StatusAvailable Status = "available"
)

// Entry is a normalized record of one external bank-side credit or debit
type Entry struct {
	EntryID             uuid.UUID  `json:"entry_id" bson:"entry_id"`
	PortalID            string     `json:"portal_id" bson:"portal_id"`
	PortalTransactionID string     `json:"portal_transaction_id" bson:"portal_transaction_id"`
	OrderID             string     `json:"order_id,omitempty" bson:"order_id,omitempty"` // Empty until linked
	Amount              int64      `json:"amount" bson:"amount"`                         // Signed: negative = debit, positive = credit
	BalanceAfter        int64      `json:"balance_after" bson:"balance_after"`
	Status              Status     `json:"status" bson:"status"`
	RawPayload          string     `json:"raw_payload,omitempty" bson:"raw_payload,omitempty"`
	Notes               []string   `json:"notes,omitempty" bson:"notes,omitempty"` // Free-text audit trail, append only
	CreatedAt           time.Time  `json:"created_at" bson:"created_at"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	SettledAt           *time.Time `json:"settled_at,omitempty" bson:"settled_at,omitempty"` // Set the moment merchant funds move
}

// New builds a pending entry for a freshly sighted bank event
func New(portalID, portalTransactionID string, amount, balanceAfter int64, rawPayload string) *Entry {
	return &Entry{
		EntryID:             uuid.New(),
		PortalID:            portalID,
		PortalTransactionID: portalTransactionID,
		Amount:              amount,
		BalanceAfter:        balanceAfter,
		Status:              StatusPending,
		RawPayload:          rawPayload,
		CreatedAt:           time.Now(),
	}
}

// IsDebit reports whether the event moved money out of the bank account
func (e *Entry) IsDebit() bool {
	return e.Amount < 0
}

// AddNote appends to the audit trail
func (e *Entry) AddNote(note string) {
	e.Notes = append(e.Notes, time.Now().UTC().Format(time.RFC3339)+" "+note)
}

// MarkProcessed finalizes the entry against an order
func (e *Entry) MarkProcessed(orderID string) {
	e.OrderID = orderID
	e.Status = StatusProcessed
	now := time.Now()
	e.ProcessedAt = &now
}

// MarkSettled records that merchant funds moved for this entry. A failed
// entry with a settle mark must never be re-driven automatically.
func (e *Entry) MarkSettled() {
	now := time.Now()
	e.SettledAt = &now
}

// Settled reports whether merchant funds already moved for this entry
func (e *Entry) Settled() bool {
	return e.SettledAt != nil
}

// MarkFailed records a diagnostic note and moves the entry to failed
func (e *Entry) MarkFailed(note string) {
	e.Status = StatusFailed
	e.AddNote(note)
	now := time.Now()
	e.ProcessedAt = &now
}
