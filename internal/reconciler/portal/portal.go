// Package portal talks to the external bank aggregation portals used as the
// authoritative validation channel during reconciliation.
package portal

import (
	"context"
	"errors"
	"time"
)

// ErrTransactionNotFound indicates the portal has no record of the
// transaction reference.
var ErrTransactionNotFound = errors.New("portal transaction not found")

// Transaction is the normalized view of one bank statement line as reported
// by a portal. Amount is signed: credits positive, debits negative.
type Transaction struct {
	PortalID            string
	PortalTransactionID string
	Amount              int64
	BalanceAfter        int64
	Description         string
	OccurredAt          time.Time
	Raw                 string
}

// IsDebit reports whether the money left the monitored account
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// Client fetches a transaction from one portal by its reference
type Client interface {
	ID() string
	FetchTransaction(ctx context.Context, portalTransactionID string) (*Transaction, error)
}

// OrderLookup is the optional alternate channel: portals that index by memo
// content can resolve a transaction directly from the order id.
type OrderLookup interface {
	FindByOrderID(ctx context.Context, orderID string) (*Transaction, error)
}

// ErrUnknownPortal indicates a webhook or lookup named a portal that was
// never registered.
type ErrUnknownPortal struct {
	PortalID string
}

func (e ErrUnknownPortal) Error() string {
	return "unknown portal: " + e.PortalID
}

// Is matches any ErrUnknownPortal when the target id is empty
func (e ErrUnknownPortal) Is(target error) bool {
	t, ok := target.(ErrUnknownPortal)
	if !ok {
		return false
	}
	if t.PortalID == "" {
		return true
	}
	return e.PortalID == t.PortalID
}

// Registry holds the configured portal clients by id
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates a registry over the given clients
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client)}
	for _, c := range clients {
		r.clients[c.ID()] = c
	}
	return r
}

// Get returns the client for a portal id
func (r *Registry) Get(portalID string) (Client, error) {
	c, ok := r.clients[portalID]
	if !ok {
		return nil, ErrUnknownPortal{PortalID: portalID}
	}
	return c, nil
}

// IDs lists the registered portal ids
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
