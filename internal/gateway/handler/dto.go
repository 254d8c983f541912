package handler

import (
	"encoding/json"
	"strings"

	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/orders"
)

// CreateOrderRequest is one order in a merchant submission
type CreateOrderRequest struct {
	MerchantOrderID  string `json:"merchantOrderId"`
	Type             string `json:"odrType"`
	Amount           int64  `json:"amount"`
	BankID           string `json:"bankId"`
	BankCode         string `json:"bankCode"`
	BankReceiveNum   string `json:"bankReceiveNumber"`
	BankReceiveOwner string `json:"bankReceiveOwnerName"`
	CallbackURL      string `json:"urlCallBack"`
}

func (r CreateOrderRequest) toCreateRequest() orders.CreateRequest {
	return orders.CreateRequest{
		MerchantOrderID:  r.MerchantOrderID,
		Type:             order.Type(r.Type),
		Amount:           r.Amount,
		BankID:           r.BankID,
		BankCode:         r.BankCode,
		BankReceiveNum:   r.BankReceiveNum,
		BankReceiveOwner: r.BankReceiveOwner,
		CallbackURL:      r.CallbackURL,
	}
}

// parseOrderSubmission accepts the three body shapes merchants send: a single
// order object, a bare JSON array of orders, or {"orders": [...]}.
func parseOrderSubmission(body []byte) ([]CreateOrderRequest, bool, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var reqs []CreateOrderRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			return nil, true, err
		}
		return reqs, true, nil
	}

	var wrapped struct {
		Orders []CreateOrderRequest `json:"orders"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Orders) > 0 {
		return wrapped.Orders, true, nil
	}

	var single CreateOrderRequest
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, false, err
	}
	return []CreateOrderRequest{single}, false, nil
}

// OrderResult is the per-order entry in a bulk response
type OrderResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    *order.Order `json:"data,omitempty"`
}

// flexID tolerates portals that send identifiers as JSON numbers instead of
// strings
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// BankWebhookRequest is the inbound payment notification. Portals disagree on
// field names, so both the id and description fields have aliases.
type BankWebhookRequest struct {
	ID            flexID `json:"id"`
	ReferenceCode string `json:"reference_code"`
	OrderID       string `json:"order_id"`
	Content       string `json:"content"`
	Description   string `json:"description"`
}

// PortalTransactionID picks the transaction identifier from whichever field
// the portal filled
func (r BankWebhookRequest) PortalTransactionID() string {
	if r.ID != "" {
		return string(r.ID)
	}
	return r.ReferenceCode
}

// Memo picks the statement description from whichever field the portal filled
func (r BankWebhookRequest) Memo() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// ValidatePaymentRequest is the POST body for dry-run payment validation
type ValidatePaymentRequest struct {
	PortalID            string `json:"portal_id"`
	PortalTransactionID string `json:"portal_transaction_id"`
	OrderID             string `json:"order_id"`
}

// UpdateStatusRequest is the operator status-change body
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ResendWebhookRequest asks for a merchant callback to be re-sent. A non-empty
// Status forces a guarded status transition first.
type ResendWebhookRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
