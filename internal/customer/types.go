// Package customer declares the customer account shapes shared with the
// account services. Nothing in this module mutates them.
package customer

import "time"

// Customer is the account owner.
type Customer struct {
	ID            string    `json:"id"`
	Email         string    `json:"email" validate:"required,email"`
	Phone         string    `json:"phone" validate:"omitempty,min=6,max=20"`
	Name          string    `json:"name" validate:"required,max=100"`
	Profile       *Profile  `json:"profile,omitempty"`
	WalletBalance int64     `json:"wallet_balance"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Gender values accepted on a profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Profile holds optional personal details.
type Profile struct {
	CustomerID  string     `json:"customer_id"`
	AvatarURL   string     `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Gender      string     `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Review is a product review left by a customer.
type Review struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id" validate:"required"`
	OrderID    string    `json:"order_id,omitempty"`
	Rating     int       `json:"rating" validate:"required,min=1,max=5"`
	Comment    string    `json:"comment,omitempty" validate:"omitempty,max=2000"`
	Images     []string  `json:"images,omitempty" validate:"omitempty,max=5,dive,url"`
	CreatedAt  time.Time `json:"created_at"`
}

// ComplaintStatus tracks a complaint through support.
type ComplaintStatus string

const (
	ComplaintOpen       ComplaintStatus = "OPEN"
	ComplaintInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintResolved   ComplaintStatus = "RESOLVED"
	ComplaintClosed     ComplaintStatus = "CLOSED"
)

// Complaint is a support ticket raised by a customer.
type Complaint struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	OrderID    string          `json:"order_id,omitempty"`
	Subject    string          `json:"subject" validate:"required,max=150"`
	Message    string          `json:"message" validate:"required,max=4000"`
	Status     ComplaintStatus `json:"status"`
	Resolution string          `json:"resolution,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Direction of a wallet or loyalty movement.
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// WalletTransaction is a movement of wallet money in minor units.
type WalletTransaction struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	Direction     Direction `json:"direction" validate:"required,oneof=CREDIT DEBIT"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	BalanceAfter  int64     `json:"balance_after"`
	Reference     string    `json:"reference,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// LoyaltyTransaction is a movement of loyalty points.
type LoyaltyTransaction struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Direction  Direction  `json:"direction" validate:"required,oneof=CREDIT DEBIT"`
	Points     int64      `json:"points" validate:"required,gt=0"`
	Reason     string     `json:"reason,omitempty" validate:"omitempty,max=250"`
	OrderID    string     `json:"order_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
