// Package courier integrates third-party courier providers: the provider and
// credential catalogue, consignment creation and inbound status webhooks.
package courier

import (
	"encoding/json"
	"strings"
	"time"
)

// Environment tags which provider endpoint a credential belongs to.
type Environment string

const (
	EnvSandbox    Environment = "SANDBOX"
	EnvProduction Environment = "PRODUCTION"
)

// Provider is a courier company the platform can ship with.
type Provider struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"baseUrl"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credential authenticates the platform against a provider.
type Credential struct {
	ID            string      `json:"id"`
	ProviderID    string      `json:"courierProviderId"`
	VendorID      *string     `json:"vendorId,omitempty"`
	Environment   Environment `json:"environment"`
	APIKey        string      `json:"-"`
	APISecret     string      `json:"-"`
	WebhookSecret string      `json:"-"`
	IsActive      bool        `json:"isActive"`
}

// Status is the normalised lifecycle state of a consignment.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPickedUp         Status = "PICKED_UP"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusOnHold           Status = "ON_HOLD"
	StatusDelivered        Status = "DELIVERED"
	StatusPartialDelivered Status = "PARTIAL_DELIVERED"
	StatusCancelled        Status = "CANCELLED"
	StatusReturned         Status = "RETURNED"
	StatusUnknown          Status = "UNKNOWN"
)

// Consignment is a parcel booked with a provider.
type Consignment struct {
	ID           string          `json:"id"`
	ProviderID   string          `json:"courierProviderId"`
	CredentialID string          `json:"credentialId"`
	OrderID      string          `json:"orderId"`
	TrackingCode string          `json:"trackingCode"`
	Status       Status          `json:"status"`
	RawPayload   json.RawMessage `json:"rawPayload,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// MapExternalStatus converts provider status labels into a Status.
func MapExternalStatus(external string) Status {
	normalised := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(external)))
	switch normalised {
	case "pending", "in_review", "pickup_requested", "assigned_for_pickup":
		return StatusPending
	case "picked", "pickup", "picked_up":
		return StatusPickedUp
	case "in_transit", "shipped", "at_the_sorting_hub", "on_the_way_to_delivery_hub", "out_for_delivery":
		return StatusInTransit
	case "hold", "on_hold", "delivery_hold":
		return StatusOnHold
	case "delivered", "delivered_approval_pending":
		return StatusDelivered
	case "partial_delivered", "partial_delivered_approval_pending":
		return StatusPartialDelivered
	case "cancelled", "canceled", "cancelled_approval_pending":
		return StatusCancelled
	case "return", "returned", "paid_return", "exchange":
		return StatusReturned
	}
	return StatusUnknown
}

// Final reports whether no further transitions are expected.
func (s Status) Final() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}
	return false
}
