package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/obs"
)

// Locker serialises callback processing per transaction.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service coordinates gateway sessions, callbacks, COD settlement and refunds.
type Service struct {
	Store           Store
	Gateway         Gateway
	Locker          Locker
	CallbackBaseURL string
	Currency        string
	NewID           func() string
}

// InitInput starts an online payment.
type InitInput struct {
	UserID   string
	OrderID  string
	Amount   int64
	Currency string
	Customer Customer
	Type     Type
}

// InitResult is returned to the client to redirect into the gateway.
type InitResult struct {
	Transaction Transaction `json:"transaction"`
	GatewayURL  string      `json:"gatewayUrl"`
}

// Init opens a gateway session for an order. The transaction is stored as
// PENDING before the gateway is called and marked FAILED when the gateway
// rejects the session.
func (s *Service) Init(ctx context.Context, in InitInput) (InitResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Init")
	defer span.End()
	if in.Type == "" {
		in.Type = TypeOnline
	}
	result := "error"
	defer func() { obs.Inc(obs.PaymentSessionTotal, string(in.Type), result) }()

	if in.Amount <= 0 {
		return InitResult{}, common.Validation("amount must be positive", common.FieldError{Field: "amount", Rule: "gt", Message: "must be greater than 0"})
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency()
	}
	tx, err := s.Store.CreateTransaction(ctx, Transaction{
		TransactionID: s.newID(),
		OrderID:       in.OrderID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		Currency:      currency,
		Status:        StatusPending,
		PaymentType:   in.Type,
	})
	if err != nil {
		return InitResult{}, err
	}
	span.SetAttributes(attribute.String("payment.transaction_id", tx.TransactionID), attribute.String("order.id", in.OrderID))

	base := strings.TrimRight(s.CallbackBaseURL, "/")
	session, err := s.Gateway.InitSession(ctx, SessionRequest{
		TransactionID: tx.TransactionID,
		Amount:        tx.Amount,
		Currency:      currency,
		ProductName:   productName(in),
		Customer:      in.Customer,
		SuccessURL:    base + "/payment/success",
		FailURL:       base + "/payment/fail",
		CancelURL:     base + "/payment/cancel",
		IPNURL:        base + "/payment/ipn",
	})
	if err != nil {
		span.RecordError(err)
		if _, uerr := s.Store.UpdateTransaction(ctx, tx.TransactionID, TransactionUpdate{Status: StatusFailed}); uerr != nil {
			zerolog.Ctx(ctx).Error().Err(uerr).Str("transaction_id", tx.TransactionID).Msg("payment_mark_failed")
		}
		return InitResult{}, err
	}
	tx, err = s.Store.UpdateTransaction(ctx, tx.TransactionID, TransactionUpdate{GatewaySession: session.SessionKey, GatewayPayload: session.Raw})
	if err != nil {
		return InitResult{}, err
	}
	result = "success"
	return InitResult{Transaction: tx, GatewayURL: session.GatewayURL}, nil
}

// Callback is the form the gateway posts to the success, fail, cancel and
// IPN endpoints.
type Callback struct {
	TransactionID string
	ValidationID  string
	Status        string
	Amount        string
	Raw           json.RawMessage
}

// Success settles a transaction after the gateway confirms the validation id.
func (s *Service) Success(ctx context.Context, cb Callback) (Transaction, error) {
	return s.settle(ctx, "success", cb)
}

// Fail marks a pending transaction as failed.
func (s *Service) Fail(ctx context.Context, cb Callback) (Transaction, error) {
	return s.close(ctx, "fail", cb, StatusFailed)
}

// Cancel marks a pending transaction as cancelled by the customer.
func (s *Service) Cancel(ctx context.Context, cb Callback) (Transaction, error) {
	return s.close(ctx, "cancel", cb, StatusCancelled)
}

// IPN handles the gateway's server-to-server notification.
func (s *Service) IPN(ctx context.Context, cb Callback) (Transaction, error) {
	switch strings.ToUpper(strings.TrimSpace(cb.Status)) {
	case "VALID", "VALIDATED":
		return s.settle(ctx, "ipn", cb)
	case "FAILED":
		return s.close(ctx, "ipn", cb, StatusFailed)
	case "CANCELLED":
		return s.close(ctx, "ipn", cb, StatusCancelled)
	default:
		obs.Inc(obs.PaymentCallbackTotal, "ipn", "ignored")
		return s.Store.TransactionByTranID(ctx, cb.TransactionID)
	}
}

func (s *Service) settle(ctx context.Context, callback string, cb Callback) (Transaction, error) {
	if cb.TransactionID == "" || cb.ValidationID == "" {
		obs.Inc(obs.PaymentCallbackTotal, callback, "invalid")
		return Transaction{}, common.Validation("tran_id and val_id are required")
	}
	var out Transaction
	err := s.locked(ctx, cb.TransactionID, func(ctx context.Context) error {
		tx, err := s.Store.TransactionByTranID(ctx, cb.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status.Final() {
			out = tx
			obs.Inc(obs.PaymentCallbackTotal, callback, "replayed")
			return nil
		}
		v, err := s.Gateway.Validate(ctx, cb.ValidationID)
		if err != nil {
			return err
		}
		if !v.Valid {
			obs.Inc(obs.PaymentCallbackTotal, callback, "rejected")
			return common.Validation(fmt.Sprintf("payment validation status %s", v.Status))
		}
		if v.TransactionID != tx.TransactionID {
			obs.Inc(obs.PaymentCallbackTotal, callback, "rejected")
			return common.Validation("validated transaction does not match")
		}
		if v.Amount != tx.Amount || !strings.EqualFold(v.Currency, tx.Currency) {
			obs.Inc(obs.PaymentCallbackTotal, callback, "amount_mismatch")
			return common.Validation("payment amount mismatch", common.FieldError{
				Field:   "amount",
				Rule:    "eq",
				Message: fmt.Sprintf("gateway reported %s %s, expected %s %s", formatAmount(v.Amount), v.Currency, formatAmount(tx.Amount), tx.Currency),
			})
		}
		out, err = s.Store.UpdateTransaction(ctx, tx.TransactionID, TransactionUpdate{
			Status:         StatusSuccess,
			ValidationID:   v.ValidationID,
			BankTranID:     v.BankTranID,
			GatewayPayload: v.Raw,
		})
		if err == nil {
			obs.Inc(obs.PaymentCallbackTotal, callback, "success")
		}
		return err
	})
	return out, err
}

func (s *Service) close(ctx context.Context, callback string, cb Callback, status Status) (Transaction, error) {
	if cb.TransactionID == "" {
		return Transaction{}, common.Validation("tran_id is required")
	}
	var out Transaction
	err := s.locked(ctx, cb.TransactionID, func(ctx context.Context) error {
		tx, err := s.Store.TransactionByTranID(ctx, cb.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status.Final() {
			out = tx
			obs.Inc(obs.PaymentCallbackTotal, callback, "replayed")
			return nil
		}
		// callbacks are unauthenticated; a paid attempt must never be closed
		v, err := s.Gateway.TransactionStatus(ctx, tx.TransactionID)
		switch {
		case err != nil && common.KindOf(err) == common.KindNotFound:
			// the customer left before any attempt reached the gateway
		case err != nil:
			return err
		case v.Valid && v.TransactionID == tx.TransactionID:
			obs.Inc(obs.PaymentCallbackTotal, callback, "rejected")
			return common.Validation("gateway reports the transaction as paid")
		}
		out, err = s.Store.UpdateTransaction(ctx, tx.TransactionID, TransactionUpdate{Status: status, GatewayPayload: cb.Raw})
		if err == nil {
			obs.Inc(obs.PaymentCallbackTotal, callback, strings.ToLower(string(status)))
		}
		return err
	})
	return out, err
}

// Status lists the caller's transactions of an order, newest first.
func (s *Service) Status(ctx context.Context, userID, orderID string) ([]Transaction, error) {
	all, err := s.Store.TransactionsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	txs := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if tx.UserID == userID {
			txs = append(txs, tx)
		}
	}
	if len(txs) == 0 {
		return nil, common.NotFound("payment for order")
	}
	return txs, nil
}

// owned loads a transaction of userID. Transactions of other users are
// reported as missing.
func (s *Service) owned(ctx context.Context, userID, tranID string) (Transaction, error) {
	tx, err := s.Store.TransactionByTranID(ctx, tranID)
	if err != nil {
		return Transaction{}, err
	}
	if userID == "" || tx.UserID != userID {
		return Transaction{}, common.NotFound("payment transaction")
	}
	return tx, nil
}

// Details is a transaction with its refunds.
type Details struct {
	Transaction Transaction `json:"transaction"`
	Refunds     []Refund    `json:"refunds"`
}

// Details loads a transaction of userID and its refunds.
func (s *Service) Details(ctx context.Context, userID, tranID string) (Details, error) {
	tx, err := s.owned(ctx, userID, tranID)
	if err != nil {
		return Details{}, err
	}
	refunds, err := s.Store.RefundsByTransaction(ctx, tranID)
	if err != nil {
		return Details{}, err
	}
	return Details{Transaction: tx, Refunds: refunds}, nil
}

// CODDeliveryFee opens an online session for the delivery charge of a
// cash-on-delivery order.
func (s *Service) CODDeliveryFee(ctx context.Context, in InitInput) (InitResult, error) {
	in.Type = TypeCODDeliveryFee
	return s.Init(ctx, in)
}

// CODCompleteProduct records the product value collected in cash on delivery.
// An order can only be completed once.
func (s *Service) CODCompleteProduct(ctx context.Context, orderID string, amount int64, collectedBy string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, common.Validation("amount must be positive", common.FieldError{Field: "amount", Rule: "gt", Message: "must be greater than 0"})
	}
	var out Transaction
	err := s.locked(ctx, "cod:"+orderID, func(ctx context.Context) error {
		existing, err := s.Store.TransactionsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		owner := ""
		for _, tx := range existing {
			if tx.PaymentType == TypeCODProduct && tx.Status == StatusSuccess {
				return common.Validation("cash on delivery already completed for order")
			}
			if owner == "" {
				owner = tx.UserID
			}
		}
		out, err = s.Store.CreateTransaction(ctx, Transaction{
			TransactionID: s.newID(),
			OrderID:       orderID,
			UserID:        owner,
			Amount:        amount,
			Currency:      s.currency(),
			Status:        StatusSuccess,
			PaymentType:   TypeCODProduct,
			CollectedBy:   collectedBy,
		})
		return err
	})
	return out, err
}

// Refund requests a refund for a settled online transaction of userID. The
// total of non-failed refunds never exceeds the paid amount.
func (s *Service) Refund(ctx context.Context, userID, tranID string, amount int64, reason string) (Refund, error) {
	result := "error"
	defer func() { obs.Inc(obs.RefundTotal, result) }()
	if amount <= 0 {
		result = "invalid"
		return Refund{}, common.Validation("amount must be positive", common.FieldError{Field: "amount", Rule: "gt", Message: "must be greater than 0"})
	}
	var out Refund
	err := s.locked(ctx, tranID, func(ctx context.Context) error {
		tx, err := s.owned(ctx, userID, tranID)
		if err != nil {
			return err
		}
		if tx.PaymentType == TypeCODProduct {
			result = "invalid"
			return common.Validation("cash collected on delivery cannot be refunded through the gateway")
		}
		if tx.Status != StatusSuccess && tx.Status != StatusRefundPending {
			result = "invalid"
			return common.Validation(fmt.Sprintf("transaction in status %s cannot be refunded", tx.Status))
		}
		refunds, err := s.Store.RefundsByTransaction(ctx, tranID)
		if err != nil {
			return err
		}
		var refunded int64
		for _, r := range refunds {
			if r.Status != StatusFailed {
				refunded += r.Amount
			}
		}
		if refunded+amount > tx.Amount {
			result = "invalid"
			return common.Validation("refund exceeds paid amount", common.FieldError{
				Field:   "amount",
				Rule:    "lte",
				Message: fmt.Sprintf("at most %s can be refunded", formatAmount(tx.Amount-refunded)),
			})
		}
		res, err := s.Gateway.InitiateRefund(ctx, RefundRequest{
			BankTranID:  tx.BankTranID,
			Amount:      amount,
			Reason:      reason,
			ReferenceID: s.newID(),
		})
		if err != nil {
			return err
		}
		out, err = s.Store.CreateRefund(ctx, Refund{
			RefundRefID:    res.RefundRefID,
			TransactionID:  tranID,
			Amount:         amount,
			Reason:         reason,
			Status:         res.Status,
			GatewayPayload: res.Raw,
		})
		if err != nil {
			// the gateway already holds this refund; keep its reference for reconciliation
			zerolog.Ctx(ctx).Error().Err(err).
				Str("transaction_id", tranID).
				Str("refund_ref_id", res.RefundRefID).
				Int64("amount", amount).
				Str("refund_status", string(res.Status)).
				Msg("payment_refund_unrecorded")
			return fmt.Errorf("record refund %s: %w", res.RefundRefID, err)
		}
		if err := s.reconcileRefunds(ctx, tranID); err != nil {
			return err
		}
		result = strings.ToLower(string(res.Status))
		return nil
	})
	return out, err
}

// RefundStatus refreshes a refund of userID from the gateway. When every
// refund of a fully refunded transaction has settled the transaction becomes
// REFUNDED.
func (s *Service) RefundStatus(ctx context.Context, userID, refundRefID string) (Refund, error) {
	refund, err := s.Store.RefundByRef(ctx, refundRefID)
	if err != nil {
		return Refund{}, err
	}
	if _, err := s.owned(ctx, userID, refund.TransactionID); err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return Refund{}, common.NotFound("refund")
		}
		return Refund{}, err
	}
	if refund.Status != StatusRefundPending {
		return refund, nil
	}
	res, err := s.Gateway.RefundStatus(ctx, refundRefID)
	if err != nil {
		return Refund{}, err
	}
	if res.Status == refund.Status {
		return refund, nil
	}
	var out Refund
	err = s.locked(ctx, refund.TransactionID, func(ctx context.Context) error {
		out, err = s.Store.UpdateRefund(ctx, refundRefID, res.Status, res.Raw)
		if err != nil {
			return err
		}
		return s.reconcileRefunds(ctx, refund.TransactionID)
	})
	return out, err
}

func (s *Service) reconcileRefunds(ctx context.Context, tranID string) error {
	tx, err := s.Store.TransactionByTranID(ctx, tranID)
	if err != nil {
		return err
	}
	refunds, err := s.Store.RefundsByTransaction(ctx, tranID)
	if err != nil {
		return err
	}
	var settled int64
	pending := false
	for _, r := range refunds {
		switch r.Status {
		case StatusRefunded:
			settled += r.Amount
		case StatusRefundPending:
			pending = true
		}
	}
	next := StatusSuccess
	switch {
	case pending:
		next = StatusRefundPending
	case settled >= tx.Amount:
		next = StatusRefunded
	}
	if next == tx.Status {
		return nil
	}
	_, err = s.Store.UpdateTransaction(ctx, tranID, TransactionUpdate{Status: next})
	return err
}

func (s *Service) locked(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, "payment:"+key, 30*time.Second, fn)
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}

func (s *Service) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return "BDT"
}

func productName(in InitInput) string {
	switch in.Type {
	case TypeCODDeliveryFee:
		return "Delivery charge for order " + in.OrderID
	default:
		return "Order " + in.OrderID
	}
}
