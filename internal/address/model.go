// Package address manages the customer address book. A user with at least
// one address always has exactly one default address.
package address

import "time"

// Address is a stored address book entry.
type Address struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Label        string    `json:"label,omitempty"`
	ReceiverName string    `json:"receiver_name"`
	Phone        string    `json:"phone"`
	Country      string    `json:"country,omitempty"`
	Division     string    `json:"division,omitempty"`
	District     string    `json:"district,omitempty"`
	Area         string    `json:"area,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Line1        string    `json:"address_line1"`
	Line2        string    `json:"address_line2,omitempty"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input is the writable part of an address. A nil IsDefault leaves the
// default flag as it is on update.
type Input struct {
	Label        string `json:"label" validate:"omitempty,max=50"`
	ReceiverName string `json:"receiver_name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,min=6,max=20"`
	Country      string `json:"country" validate:"omitempty,max=60"`
	Division     string `json:"division" validate:"omitempty,max=60"`
	District     string `json:"district" validate:"omitempty,max=60"`
	Area         string `json:"area" validate:"omitempty,max=100"`
	PostalCode   string `json:"postal_code" validate:"omitempty,max=10"`
	Line1        string `json:"address_line1" validate:"required,max=250"`
	Line2        string `json:"address_line2" validate:"omitempty,max=250"`
	IsDefault    *bool  `json:"is_default"`
}

func (in Input) apply(a Address) Address {
	a.Label = in.Label
	a.ReceiverName = in.ReceiverName
	a.Phone = in.Phone
	a.Country = in.Country
	a.Division = in.Division
	a.District = in.District
	a.Area = in.Area
	a.PostalCode = in.PostalCode
	a.Line1 = in.Line1
	a.Line2 = in.Line2
	if a.Country == "" {
		a.Country = "BD"
	}
	return a
}
