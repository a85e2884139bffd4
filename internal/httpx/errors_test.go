package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

func serve(t *testing.T, h httpx.ErrorHandler, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Wrap(func(http.ResponseWriter, *http.Request) error { return err }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	return rec, body
}

func TestValidationErrorsListed(t *testing.T) {
	h := httpx.ErrorHandler{Logger: zerolog.Nop()}
	err := common.Validation("validation failed", common.FieldError{Field: "amount", Message: "amount is required"})
	rec, body := serve(t, h, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, body["errors"], 1)

	rec, body = serve(t, h, common.Validation("orderId is required"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "orderId is required", body["message"])
	require.NotContains(t, body, "errors")
}

func TestUnauthorizedByKindOrMessage(t *testing.T) {
	h := httpx.ErrorHandler{Logger: zerolog.Nop()}
	rec, _ := serve(t, h, common.Unauthorized("token expired"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = serve(t, h, errors.New("Unauthorized access to merchant"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotFoundMessageWinsOverLaterRules(t *testing.T) {
	h := httpx.ErrorHandler{Logger: zerolog.Nop()}
	for _, err := range []error{
		errors.New("Order NOT FOUND"),
		fmt.Errorf("customer not found: %w", common.Persistence("23505", errors.New("duplicate key"))),
		&common.AppError{Kind: common.KindUpstream, Message: "consignment not found", HTTPStatus: 503},
	} {
		rec, _ := serve(t, h, err)
		require.Equal(t, http.StatusNotFound, rec.Code, err.Error())
	}
}

func TestUpstreamStatusAndPayload(t *testing.T) {
	h := httpx.ErrorHandler{Logger: zerolog.Nop()}
	payload := map[string]any{"reason": "maintenance"}
	rec, body := serve(t, h, common.Upstream("pathao", http.StatusServiceUnavailable, payload, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, payload, body["details"])

	rec, _ = serve(t, h, common.Upstream("pathao", 0, nil, errors.New("dial tcp: refused")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPersistenceIsBadRequest(t *testing.T) {
	h := httpx.ErrorHandler{Logger: zerolog.Nop()}
	rec, body := serve(t, h, common.Persistence("23505", errors.New("duplicate key")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "23505", body["error"])
}

func TestFallbackHidesMessageOutsideDevMode(t *testing.T) {
	rec, body := serve(t, httpx.ErrorHandler{Logger: zerolog.Nop()}, errors.New("pq: secret detail"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", body["message"])
	require.NotContains(t, body, "error")

	rec, body = serve(t, httpx.ErrorHandler{Logger: zerolog.Nop(), DevMode: true}, errors.New("pq: secret detail"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "pq: secret detail", body["message"])
}

func TestStartedResponseIsForwarded(t *testing.T) {
	var forwarded error
	h := httpx.ErrorHandler{Logger: zerolog.Nop(), Forward: func(_ *http.Request, err error) { forwarded = err }}
	boom := errors.New("late failure")
	rec := httptest.NewRecorder()
	h.Wrap(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		return boom
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "partial", rec.Body.String())
	require.ErrorIs(t, forwarded, boom)
}

func TestDecodeReportsFieldErrors(t *testing.T) {
	var dst struct {
		OrderID string `json:"orderId" validate:"required"`
		Amount  int64  `json:"amount" validate:"gt=0"`
	}
	req := httptest.NewRequest(http.MethodPost, "/x", jsonBody(`{"amount":0}`))
	err := httpx.Decode(req, &dst)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.KindValidation, appErr.Kind)
	require.Len(t, appErr.Errors, 2)
	require.Equal(t, "orderId", appErr.Errors[0].Field)
}
