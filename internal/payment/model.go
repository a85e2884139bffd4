// Package payment runs hosted-checkout payments, cash-on-delivery settlement
// and refunds against an SSLCommerz-style gateway.
package payment

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a transaction or refund.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusSuccess       Status = "SUCCESS"
	StatusFailed        Status = "FAILED"
	StatusCancelled     Status = "CANCELLED"
	StatusRefundPending Status = "REFUND_PENDING"
	StatusRefunded      Status = "REFUNDED"
)

// Final reports whether gateway callbacks may no longer change the status.
func (s Status) Final() bool {
	return s != StatusPending
}

// Type distinguishes what a transaction pays for.
type Type string

const (
	TypeOnline         Type = "ONLINE"
	TypeCODDeliveryFee Type = "COD_DELIVERY_FEE"
	TypeCODProduct     Type = "COD_PRODUCT"
)

// Transaction is one payment attempt. Amount is in minor units.
type Transaction struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transactionId"`
	OrderID        string          `json:"orderId"`
	UserID         string          `json:"userId,omitempty"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	PaymentType    Type            `json:"paymentType"`
	GatewaySession string          `json:"-"`
	ValidationID   string          `json:"validationId,omitempty"`
	BankTranID     string          `json:"bankTranId,omitempty"`
	CollectedBy    string          `json:"collectedBy,omitempty"`
	GatewayPayload json.RawMessage `json:"gatewayPayload,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Refund is a refund request against a successful transaction.
type Refund struct {
	ID             string          `json:"id"`
	RefundRefID    string          `json:"refundRefId"`
	TransactionID  string          `json:"transactionId"`
	Amount         int64           `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	Status         Status          `json:"status"`
	GatewayPayload json.RawMessage `json:"gatewayPayload,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Customer is the buyer information the gateway requires for a session.
type Customer struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	Address  string `json:"address" validate:"required,max=250"`
	City     string `json:"city" validate:"required,max=60"`
	Postcode string `json:"postcode" validate:"omitempty,max=10"`
	Country  string `json:"country" validate:"omitempty,max=60"`
}
