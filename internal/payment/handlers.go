package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

// Handler exposes the /payment routes.
type Handler struct {
	Svc *Service
}

type initRequest struct {
	OrderID  string   `json:"orderId" validate:"required,max=64"`
	Amount   int64    `json:"amount" validate:"required,gt=0"`
	Currency string   `json:"currency" validate:"omitempty,len=3"`
	Customer Customer `json:"customer" validate:"required"`
}

func (h Handler) startSession(w http.ResponseWriter, r *http.Request, typ Type) error {
	var req initRequest
	if err := httpx.Decode(r, &req); err != nil {
		return err
	}
	userID, _ := common.UserID(r.Context())
	res, err := h.Svc.Init(r.Context(), InitInput{
		UserID:   userID,
		OrderID:  strings.TrimSpace(req.OrderID),
		Amount:   req.Amount,
		Currency: req.Currency,
		Customer: req.Customer,
		Type:     typ,
	})
	if err != nil {
		return err
	}
	common.OK(w, http.StatusCreated, res)
	return nil
}

// Init handles POST /payment/init.
func (h Handler) Init(w http.ResponseWriter, r *http.Request) error {
	return h.startSession(w, r, TypeOnline)
}

// CODDeliveryFee handles POST /payment/cod/delivery-fee.
func (h Handler) CODDeliveryFee(w http.ResponseWriter, r *http.Request) error {
	return h.startSession(w, r, TypeCODDeliveryFee)
}

type completeProductRequest struct {
	OrderID     string `json:"orderId" validate:"required,max=64"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	CollectedBy string `json:"collectedBy" validate:"omitempty,max=100"`
}

// CODCompleteProduct handles POST /payment/cod/complete-product.
func (h Handler) CODCompleteProduct(w http.ResponseWriter, r *http.Request) error {
	var req completeProductRequest
	if err := httpx.Decode(r, &req); err != nil {
		return err
	}
	collectedBy := req.CollectedBy
	if collectedBy == "" {
		collectedBy, _ = common.UserID(r.Context())
	}
	tx, err := h.Svc.CODCompleteProduct(r.Context(), strings.TrimSpace(req.OrderID), req.Amount, collectedBy)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusCreated, tx)
	return nil
}

// callback reads the gateway's form post. JSON bodies are accepted as well
// so the endpoints can be driven by tooling.
func callback(r *http.Request) (Callback, error) {
	values := map[string]string{}
	if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return Callback{}, common.Validation("invalid callback payload")
		}
		for k, v := range body {
			if s, ok := v.(string); ok {
				values[k] = s
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return Callback{}, common.Validation("invalid callback payload")
		}
		for k := range r.Form {
			values[k] = r.Form.Get(k)
		}
	}
	raw, _ := json.Marshal(values)
	return Callback{
		TransactionID: values["tran_id"],
		ValidationID:  values["val_id"],
		Status:        values["status"],
		Amount:        values["amount"],
		Raw:           raw,
	}, nil
}

func (h Handler) respondCallback(w http.ResponseWriter, r *http.Request, fn func(context.Context, Callback) (Transaction, error)) error {
	cb, err := callback(r)
	if err != nil {
		return err
	}
	tx, err := fn(r.Context(), cb)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, tx)
	return nil
}

// Success handles POST /payment/success.
func (h Handler) Success(w http.ResponseWriter, r *http.Request) error {
	return h.respondCallback(w, r, h.Svc.Success)
}

// Fail handles POST /payment/fail.
func (h Handler) Fail(w http.ResponseWriter, r *http.Request) error {
	return h.respondCallback(w, r, h.Svc.Fail)
}

// Cancel handles POST /payment/cancel.
func (h Handler) Cancel(w http.ResponseWriter, r *http.Request) error {
	return h.respondCallback(w, r, h.Svc.Cancel)
}

// IPN handles POST /payment/ipn.
func (h Handler) IPN(w http.ResponseWriter, r *http.Request) error {
	return h.respondCallback(w, r, h.Svc.IPN)
}

func caller(r *http.Request) string {
	id, _ := common.UserID(r.Context())
	return id
}

// Status handles GET /payment/status/{orderId}.
func (h Handler) Status(w http.ResponseWriter, r *http.Request) error {
	txs, err := h.Svc.Status(r.Context(), caller(r), chi.URLParam(r, "orderId"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, txs)
	return nil
}

// Details handles GET /payment/details/{transactionId}.
func (h Handler) Details(w http.ResponseWriter, r *http.Request) error {
	details, err := h.Svc.Details(r.Context(), caller(r), chi.URLParam(r, "transactionId"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, details)
	return nil
}

type refundRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Reason        string `json:"reason" validate:"required,max=250"`
}

// Refund handles POST /payment/refund.
func (h Handler) Refund(w http.ResponseWriter, r *http.Request) error {
	var req refundRequest
	if err := httpx.Decode(r, &req); err != nil {
		return err
	}
	refund, err := h.Svc.Refund(r.Context(), caller(r), req.TransactionID, req.Amount, req.Reason)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusCreated, refund)
	return nil
}

// RefundStatus handles GET /payment/refund/{refundRefId}.
func (h Handler) RefundStatus(w http.ResponseWriter, r *http.Request) error {
	refund, err := h.Svc.RefundStatus(r.Context(), caller(r), chi.URLParam(r, "refundRefId"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, refund)
	return nil
}

// Routes mounts the payment endpoints. Gateway callbacks stay public; auth
// wraps the customer-facing endpoints and idem the ones that move money.
func (h Handler) Routes(r chi.Router, errs httpx.ErrorHandler, auth, idem func(http.Handler) http.Handler) {
	r.Post("/success", errs.Wrap(h.Success))
	r.Post("/fail", errs.Wrap(h.Fail))
	r.Post("/cancel", errs.Wrap(h.Cancel))
	r.Post("/ipn", errs.Wrap(h.IPN))

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.With(idem).Post("/init", errs.Wrap(h.Init))
		r.Get("/status/{orderId}", errs.Wrap(h.Status))
		r.Get("/details/{transactionId}", errs.Wrap(h.Details))
		r.With(idem).Post("/cod/delivery-fee", errs.Wrap(h.CODDeliveryFee))
		r.With(idem).Post("/cod/complete-product", errs.Wrap(h.CODCompleteProduct))
		r.With(idem).Post("/refund", errs.Wrap(h.Refund))
		r.Get("/refund/{refundRefId}", errs.Wrap(h.RefundStatus))
	})
}
