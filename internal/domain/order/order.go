package order

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount        = errors.New("amount must be positive and at most 13 digits")
	ErrAmountOutOfLimits    = errors.New("amount outside merchant limits")
	ErrMissingCallbackURL   = errors.New("callback URL is required")
	ErrMissingBankID        = errors.New("deposit orders require a source bank id")
	ErrMissingBankCode      = errors.New("withdraw orders require a bank code")
	ErrInvalidReceiveNumber = errors.New("receiving account number must be 5-19 alphanumeric characters")
	ErrInvalidOwnerName     = errors.New("receiving account owner name must contain letters and spaces only")
	ErrInvalidType          = errors.New("order type must be deposit or withdraw")
	ErrPaymentExceedsAmount = errors.New("payment exceeds remaining unpaid amount")
)

// Type defines the direction of an order
type Type string

const (
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"
)

// Status defines order lifecycle states
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// validTransitions encodes the monotonic state machine. Terminal states have
// no outgoing edges.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCanceled},
}

// CanTransition reports whether moving from one status to another is allowed
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

const maxAmountDigits = 13

var (
	receiveNumberPattern = regexp.MustCompile(`^[a-zA-Z0-9]{5,19}$`)
	ownerNamePattern     = regexp.MustCompile(`^[a-zA-Z ]+$`)
)

// Order represents one deposit or withdraw request from a merchant
type Order struct {
	OrderID          string     `json:"order_id" bson:"order_id"`
	MerchantOrderID  string     `json:"merchant_order_id,omitempty" bson:"merchant_order_id,omitempty"`
	MerchantPublicID string     `json:"merchant_public_id" bson:"merchant_public_id"`
	Type             Type       `json:"type" bson:"type"`
	Status           Status     `json:"status" bson:"status"`
	Amount           int64      `json:"amount" bson:"amount"` // Minor currency units
	PaidAmount       int64      `json:"paid_amount" bson:"paid_amount"`
	UnpaidAmount     int64      `json:"unpaid_amount" bson:"unpaid_amount"`
	BankID           string     `json:"bank_id,omitempty" bson:"bank_id,omitempty"` // Deposit source bank
	QRPayload        string     `json:"qr_payload,omitempty" bson:"qr_payload,omitempty"`
	BankCode         string     `json:"bank_code,omitempty" bson:"bank_code,omitempty"` // Withdraw counterpart
	BankReceiveNum   string     `json:"bank_receive_number,omitempty" bson:"bank_receive_number,omitempty"`
	BankReceiveOwner string     `json:"bank_receive_owner_name,omitempty" bson:"bank_receive_owner_name,omitempty"`
	CreatedIP        string     `json:"created_ip" bson:"created_ip"`
	IsSuspicious     bool       `json:"is_suspicious" bson:"is_suspicious"` // Creating IP absent from whitelist
	CallbackURL      string     `json:"url_call_back" bson:"url_call_back"`
	NotificationSent bool       `json:"notification_sent" bson:"notification_sent"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"` // Deposit payment window
}

// CreateParams carries the validated inputs needed to build a new order
type CreateParams struct {
	MerchantOrderID  string
	MerchantPublicID string
	Type             Type
	Amount           int64
	BankID           string
	BankCode         string
	BankReceiveNum   string
	BankReceiveOwner string
	CreatedIP        string
	IsSuspicious     bool
	CallbackURL      string
	PaymentWindow    time.Duration
}

// NewID generates a globally unique, date-prefixed order id,
// e.g. ODR20260824-3F7A9C1B.
func NewID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("ODR%s-%s", now.Format("20060102"), suffix)
}

// New validates type-specific required fields and builds an order in its
// initial status: deposits start processing (payment window running),
// withdrawals start pending (awaiting fund release).
func New(p CreateParams) (*Order, error) {
	if p.Type != TypeDeposit && p.Type != TypeWithdraw {
		return nil, ErrInvalidType
	}
	if p.Amount <= 0 || amountDigits(p.Amount) > maxAmountDigits {
		return nil, ErrInvalidAmount
	}
	if p.CallbackURL == "" {
		return nil, ErrMissingCallbackURL
	}

	switch p.Type {
	case TypeDeposit:
		if p.BankID == "" {
			return nil, ErrMissingBankID
		}
	case TypeWithdraw:
		if p.BankCode == "" {
			return nil, ErrMissingBankCode
		}
		if !receiveNumberPattern.MatchString(p.BankReceiveNum) {
			return nil, ErrInvalidReceiveNumber
		}
		if !ownerNamePattern.MatchString(p.BankReceiveOwner) {
			return nil, ErrInvalidOwnerName
		}
	}

	now := time.Now()
	o := &Order{
		OrderID:          NewID(now),
		MerchantOrderID:  p.MerchantOrderID,
		MerchantPublicID: p.MerchantPublicID,
		Type:             p.Type,
		Amount:           p.Amount,
		PaidAmount:       0,
		UnpaidAmount:     p.Amount,
		CreatedIP:        p.CreatedIP,
		IsSuspicious:     p.IsSuspicious,
		CallbackURL:      p.CallbackURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	switch p.Type {
	case TypeDeposit:
		o.Status = StatusProcessing
		o.BankID = p.BankID
		o.QRPayload = buildQRPayload(p.BankID, p.Amount, o.OrderID)
		expires := now.Add(p.PaymentWindow)
		o.ExpiresAt = &expires
	case TypeWithdraw:
		o.Status = StatusPending
		o.BankCode = p.BankCode
		o.BankReceiveNum = p.BankReceiveNum
		o.BankReceiveOwner = strings.TrimSpace(p.BankReceiveOwner)
	}

	return o, nil
}

// ApplyPayment increments paid amount and recomputes the unpaid remainder,
// flipping the order to completed once nothing remains unpaid. Paid amount
// only ever increases.
func (o *Order) ApplyPayment(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > o.UnpaidAmount {
		return ErrPaymentExceedsAmount
	}

	o.PaidAmount += amount
	o.UnpaidAmount = o.Amount - o.PaidAmount
	o.UpdatedAt = time.Now()

	if o.UnpaidAmount == 0 {
		o.Status = StatusCompleted
	}
	return nil
}

// Transition moves the order to a new status, refusing any edge not present
// in the state machine.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition{From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// Expired reports whether the deposit payment window has elapsed
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

func amountDigits(n int64) int {
	digits := 0
	for n > 0 {
		digits++
		n /= 10
	}
	return digits
}

// buildQRPayload renders the opaque transfer payload scanned by payer apps.
// The order id rides in the additional-info field so the description parser
// can recover it from the resulting bank statement line.
func buildQRPayload(bankID string, amount int64, orderID string) string {
	return fmt.Sprintf("VQR|%s|%d|%s", bankID, amount, orderID)
}
