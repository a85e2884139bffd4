package payment

import (
	"context"
	"encoding/json"
)

// SessionRequest opens a hosted checkout session.
type SessionRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	ProductName   string
	Customer      Customer
	SuccessURL    string
	FailURL       string
	CancelURL     string
	IPNURL        string
}

// Session is the gateway's answer to SessionRequest.
type Session struct {
	SessionKey string
	GatewayURL string
	Raw        json.RawMessage
}

// Validation is the gateway's verdict on a completed payment.
type Validation struct {
	Valid         bool
	Status        string
	TransactionID string
	ValidationID  string
	BankTranID    string
	Amount        int64
	Currency      string
	Raw           json.RawMessage
}

// RefundRequest asks the gateway to refund part or all of a payment.
type RefundRequest struct {
	BankTranID  string
	Amount      int64
	Reason      string
	ReferenceID string
}

// RefundResult is the gateway's view of a refund.
type RefundResult struct {
	RefundRefID string
	Status      Status
	Raw         json.RawMessage
}

// Gateway is the payment provider used by Service.
type Gateway interface {
	InitSession(ctx context.Context, req SessionRequest) (Session, error)
	Validate(ctx context.Context, validationID string) (Validation, error)
	TransactionStatus(ctx context.Context, transactionID string) (Validation, error)
	InitiateRefund(ctx context.Context, req RefundRequest) (RefundResult, error)
	RefundStatus(ctx context.Context, refundRefID string) (RefundResult, error)
}
