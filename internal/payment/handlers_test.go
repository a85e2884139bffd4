package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

func passthrough(next http.Handler) http.Handler { return next }

func asUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), id)))
		})
	}
}

func newPaymentRouter(svc *Service) http.Handler {
	return newPaymentRouterFor(svc, "u1")
}

func newPaymentRouterFor(svc *Service, userID string) http.Handler {
	r := chi.NewRouter()
	r.Route("/payment", func(r chi.Router) {
		Handler{Svc: svc}.Routes(r, httpx.ErrorHandler{Logger: zerolog.Nop()}, asUser(userID), passthrough)
	})
	return r
}

func TestInitAndFormCallbackFlow(t *testing.T) {
	gw := &fakeGateway{session: Session{SessionKey: "S", GatewayURL: "https://gw/pay"}}
	svc, store := newTestService(gw)
	router := newPaymentRouter(svc)

	body := `{"orderId":"ORD-1","amount":2500,"customer":{"name":"Karim","email":"k@example.com","phone":"01700000000","address":"Road 1","city":"Dhaka"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/init", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "u1", store.txs["TXN001"].UserID)

	gw.validation = Validation{Valid: true, TransactionID: "TXN001", ValidationID: "V", Amount: 2500, Currency: "BDT"}
	form := url.Values{"tran_id": {"TXN001"}, "val_id": {"V"}, "status": {"VALID"}, "amount": {"25.00"}}
	req := httptest.NewRequest(http.MethodPost, "/payment/success", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Success bool        `json:"success"`
		Data    Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Equal(t, StatusSuccess, env.Data.Status)
}

func TestInitValidationErrors(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	router := newPaymentRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/init", strings.NewReader(`{"orderId":"ORD-1"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env common.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Errors)
}

func TestDetailsNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	rec := httptest.NewRecorder()
	newPaymentRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment/details/TXN404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOtherUserCannotSeeOrRefundPayment(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{Status: StatusRefundPending}}
	svc, _ := newTestService(gw)
	tx := initPaid(t, svc, gw, 5000)
	r, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 500, "damaged")
	require.NoError(t, err)

	owner := newPaymentRouterFor(svc, "u1")
	rec := httptest.NewRecorder()
	owner.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment/details/"+tx.TransactionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	other := newPaymentRouterFor(svc, "u2")
	for _, path := range []string{
		"/payment/status/ORD-1",
		"/payment/details/" + tx.TransactionID,
		"/payment/refund/" + r.RefundRefID,
	} {
		rec := httptest.NewRecorder()
		other.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	body := `{"transactionId":"` + tx.TransactionID + `","amount":500,"reason":"not mine"}`
	rec = httptest.NewRecorder()
	other.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/refund", strings.NewReader(body)))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, gw.refundReqs, 1)
}
