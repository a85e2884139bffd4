package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/upstream"
)

const gatewayName = "sslcommerz"

// SSLCommerz implements Gateway over the SSLCommerz v4 API.
type SSLCommerz struct {
	Client        *upstream.Client
	StoreID       string
	StorePassword string
}

func (g SSLCommerz) credentials(v url.Values) url.Values {
	v.Set("store_id", g.StoreID)
	v.Set("store_passwd", g.StorePassword)
	return v
}

type sessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitSession opens a hosted checkout session.
func (g SSLCommerz) InitSession(ctx context.Context, req SessionRequest) (Session, error) {
	country := req.Customer.Country
	if country == "" {
		country = "Bangladesh"
	}
	form := g.credentials(url.Values{
		"total_amount":     {formatAmount(req.Amount)},
		"currency":         {req.Currency},
		"tran_id":          {req.TransactionID},
		"success_url":      {req.SuccessURL},
		"fail_url":         {req.FailURL},
		"cancel_url":       {req.CancelURL},
		"ipn_url":          {req.IPNURL},
		"cus_name":         {req.Customer.Name},
		"cus_email":        {req.Customer.Email},
		"cus_phone":        {req.Customer.Phone},
		"cus_add1":         {req.Customer.Address},
		"cus_city":         {req.Customer.City},
		"cus_postcode":     {req.Customer.Postcode},
		"cus_country":      {country},
		"shipping_method":  {"NO"},
		"product_name":     {req.ProductName},
		"product_category": {"ecommerce"},
		"product_profile":  {"general"},
	})
	var raw json.RawMessage
	if err := g.Client.Do(ctx, upstream.Request{Method: http.MethodPost, Path: "/gwprocess/v4/api.php", Form: form}, &raw); err != nil {
		return Session{}, err
	}
	var resp sessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Session{}, common.Upstream(gatewayName, http.StatusBadGateway, string(raw), err)
	}
	if !strings.EqualFold(resp.Status, "SUCCESS") || resp.GatewayPageURL == "" {
		return Session{}, common.Upstream(gatewayName, http.StatusBadGateway, raw, fmt.Errorf("session rejected: %s", resp.FailedReason))
	}
	return Session{SessionKey: resp.SessionKey, GatewayURL: resp.GatewayPageURL, Raw: raw}, nil
}

type validationResponse struct {
	Status     string `json:"status"`
	TranID     string `json:"tran_id"`
	ValID      string `json:"val_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	BankTranID string `json:"bank_tran_id"`
}

func (r validationResponse) toValidation(raw json.RawMessage) Validation {
	status := strings.ToUpper(r.Status)
	v := Validation{
		Valid:         status == "VALID" || status == "VALIDATED",
		Status:        status,
		TransactionID: r.TranID,
		ValidationID:  r.ValID,
		BankTranID:    r.BankTranID,
		Currency:      r.Currency,
		Raw:           raw,
	}
	if amount, err := parseAmount(r.Amount); err == nil {
		v.Amount = amount
	} else {
		v.Valid = false
	}
	return v
}

// Validate confirms a payment using the val_id posted to the callbacks.
func (g SSLCommerz) Validate(ctx context.Context, validationID string) (Validation, error) {
	query := g.credentials(url.Values{"val_id": {validationID}, "format": {"json"}})
	var raw json.RawMessage
	if err := g.Client.Do(ctx, upstream.Request{Path: "/validator/api/validationserverAPI.php", Query: query}, &raw); err != nil {
		return Validation{}, err
	}
	var resp validationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Validation{}, common.Upstream(gatewayName, http.StatusBadGateway, string(raw), err)
	}
	return resp.toValidation(raw), nil
}

type transactionQueryResponse struct {
	APIConnect string               `json:"APIConnect"`
	Element    []validationResponse `json:"element"`
}

// TransactionStatus queries the gateway for the latest attempt of a tran_id.
func (g SSLCommerz) TransactionStatus(ctx context.Context, transactionID string) (Validation, error) {
	query := g.credentials(url.Values{"tran_id": {transactionID}, "format": {"json"}})
	var raw json.RawMessage
	if err := g.Client.Do(ctx, upstream.Request{Path: "/validator/api/merchantTransIDvalidationAPI.php", Query: query}, &raw); err != nil {
		return Validation{}, err
	}
	var resp transactionQueryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Validation{}, common.Upstream(gatewayName, http.StatusBadGateway, string(raw), err)
	}
	if resp.APIConnect != "DONE" {
		return Validation{}, common.Upstream(gatewayName, http.StatusBadGateway, raw, fmt.Errorf("api connect %s", resp.APIConnect))
	}
	if len(resp.Element) == 0 {
		return Validation{}, common.NotFound("gateway transaction")
	}
	return resp.Element[0].toValidation(raw), nil
}

type refundResponse struct {
	APIConnect  string `json:"APIConnect"`
	Status      string `json:"status"`
	RefundRefID string `json:"refund_ref_id"`
	ErrorReason string `json:"errorReason"`
}

func (r refundResponse) result(raw json.RawMessage) (RefundResult, error) {
	if r.APIConnect != "DONE" {
		return RefundResult{}, common.Upstream(gatewayName, http.StatusBadGateway, raw, fmt.Errorf("api connect %s", r.APIConnect))
	}
	var status Status
	switch strings.ToLower(r.Status) {
	case "success", "processing":
		status = StatusRefundPending
	case "refunded":
		status = StatusRefunded
	case "failed", "cancelled":
		status = StatusFailed
	default:
		return RefundResult{}, common.Upstream(gatewayName, http.StatusBadGateway, raw, fmt.Errorf("refund %s: %s", r.Status, r.ErrorReason))
	}
	return RefundResult{RefundRefID: r.RefundRefID, Status: status, Raw: raw}, nil
}

// InitiateRefund requests a refund for a settled payment.
func (g SSLCommerz) InitiateRefund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	query := g.credentials(url.Values{
		"bank_tran_id":   {req.BankTranID},
		"refund_amount":  {formatAmount(req.Amount)},
		"refund_remarks": {req.Reason},
		"refe_id":        {req.ReferenceID},
		"format":         {"json"},
	})
	var raw json.RawMessage
	if err := g.Client.Do(ctx, upstream.Request{Path: "/validator/api/merchantTransIDvalidationAPI.php", Query: query}, &raw); err != nil {
		return RefundResult{}, err
	}
	var resp refundResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return RefundResult{}, common.Upstream(gatewayName, http.StatusBadGateway, string(raw), err)
	}
	return resp.result(raw)
}

// RefundStatus polls a refund by its gateway reference.
func (g SSLCommerz) RefundStatus(ctx context.Context, refundRefID string) (RefundResult, error) {
	query := g.credentials(url.Values{"refund_ref_id": {refundRefID}, "format": {"json"}})
	var raw json.RawMessage
	if err := g.Client.Do(ctx, upstream.Request{Path: "/validator/api/merchantTransIDvalidationAPI.php", Query: query}, &raw); err != nil {
		return RefundResult{}, err
	}
	var resp refundResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return RefundResult{}, common.Upstream(gatewayName, http.StatusBadGateway, string(raw), err)
	}
	if resp.RefundRefID == "" {
		resp.RefundRefID = refundRefID
	}
	return resp.result(raw)
}
