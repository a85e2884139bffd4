package payment

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/common"
)

func initPaid(t *testing.T, svc *Service, gw *fakeGateway, amount int64) Transaction {
	t.Helper()
	res, err := svc.Init(context.Background(), InitInput{UserID: "u1", OrderID: "ORD-1", Amount: amount})
	require.NoError(t, err)
	gw.validation = Validation{Valid: true, Status: "VALID", TransactionID: res.Transaction.TransactionID, ValidationID: "VAL1", BankTranID: "BANK1", Amount: amount, Currency: "BDT"}
	tx, err := svc.Success(context.Background(), Callback{TransactionID: res.Transaction.TransactionID, ValidationID: "VAL1"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, tx.Status)
	return tx
}

func TestInitCreatesPendingTransaction(t *testing.T) {
	gw := &fakeGateway{session: Session{SessionKey: "S1", GatewayURL: "https://gw/pay/S1"}}
	svc, store := newTestService(gw)

	res, err := svc.Init(context.Background(), InitInput{UserID: "u1", OrderID: "ORD-1", Amount: 150000, Currency: "bdt"})
	require.NoError(t, err)
	require.Equal(t, "https://gw/pay/S1", res.GatewayURL)
	require.Equal(t, StatusPending, res.Transaction.Status)
	require.Equal(t, TypeOnline, res.Transaction.PaymentType)
	require.Equal(t, "BDT", res.Transaction.Currency)
	require.Equal(t, "S1", store.txs["TXN001"].GatewaySession)
	require.Equal(t, "https://api.example.com/payment/ipn", gw.lastSession.IPNURL)
}

func TestInitGatewayFailureMarksFailed(t *testing.T) {
	gwErr := common.Upstream("sslcommerz", 502, map[string]any{"failedreason": "bad store"}, nil)
	gw := &fakeGateway{sessionErr: gwErr}
	svc, store := newTestService(gw)

	_, err := svc.Init(context.Background(), InitInput{OrderID: "ORD-1", Amount: 100})
	require.ErrorIs(t, err, gwErr)
	require.Equal(t, StatusFailed, store.txs["TXN001"].Status)
}

func TestSuccessIsIdempotent(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, _ := newTestService(gw)
	tx := initPaid(t, svc, gw, 5000)
	require.Equal(t, "BANK1", tx.BankTranID)

	again, err := svc.IPN(context.Background(), Callback{TransactionID: tx.TransactionID, ValidationID: "VAL1", Status: "VALID"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, again.Status)
	require.Equal(t, 1, gw.validateCalls, "settled transactions are not revalidated")
}

func TestSuccessRejectsAmountMismatch(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, store := newTestService(gw)
	res, err := svc.Init(context.Background(), InitInput{OrderID: "ORD-1", Amount: 5000})
	require.NoError(t, err)

	gw.validation = Validation{Valid: true, TransactionID: res.Transaction.TransactionID, Amount: 100, Currency: "BDT"}
	_, err = svc.Success(context.Background(), Callback{TransactionID: res.Transaction.TransactionID, ValidationID: "V"})
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.KindValidation, appErr.Kind)
	require.Equal(t, "amount", appErr.Errors[0].Field)
	require.Equal(t, StatusPending, store.txs[res.Transaction.TransactionID].Status)
}

func TestSuccessRejectsInvalidValidation(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, _ := newTestService(gw)
	res, err := svc.Init(context.Background(), InitInput{OrderID: "ORD-1", Amount: 5000})
	require.NoError(t, err)

	gw.validation = Validation{Valid: false, Status: "INVALID_TRANSACTION"}
	_, err = svc.Success(context.Background(), Callback{TransactionID: res.Transaction.TransactionID, ValidationID: "V"})
	require.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestFailAndCancelLeaveFinalStatesAlone(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, _ := newTestService(gw)
	tx := initPaid(t, svc, gw, 5000)

	out, err := svc.Fail(context.Background(), Callback{TransactionID: tx.TransactionID})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)

	res, err := svc.Init(context.Background(), InitInput{OrderID: "ORD-2", Amount: 10})
	require.NoError(t, err)
	out, err = svc.IPN(context.Background(), Callback{TransactionID: res.Transaction.TransactionID, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, out.Status)
}

func TestCallbackForUnknownTransaction(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	_, err := svc.Cancel(context.Background(), Callback{TransactionID: "nope"})
	require.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestCODCompleteProductOnlyOnce(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{session: Session{GatewayURL: "u"}})
	_, err := svc.CODDeliveryFee(context.Background(), InitInput{UserID: "u1", OrderID: "ORD-9", Amount: 6000})
	require.NoError(t, err)

	tx, err := svc.CODCompleteProduct(context.Background(), "ORD-9", 2500, "rider-7")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, tx.Status)
	require.Equal(t, TypeCODProduct, tx.PaymentType)
	require.Equal(t, "u1", tx.UserID, "collection belongs to the order's customer")

	_, err = svc.CODCompleteProduct(context.Background(), "ORD-9", 2500, "rider-7")
	require.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = svc.Refund(context.Background(), "u1", tx.TransactionID, 100, "damaged")
	require.Equal(t, common.KindValidation, common.KindOf(err), "cash collections are not refundable online")
}

func TestRefundBoundedByPaidAmount(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{Status: StatusRefundPending}}
	svc, store := newTestService(gw)
	tx := initPaid(t, svc, gw, 10000)

	r1, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 6000, "partial")
	require.NoError(t, err)
	require.Equal(t, StatusRefundPending, r1.Status)
	require.Equal(t, "BANK1", gw.refundReqs[0].BankTranID)
	require.Equal(t, StatusRefundPending, store.txs[tx.TransactionID].Status)

	_, err = svc.Refund(context.Background(), "u1", tx.TransactionID, 4001, "too much")
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.KindValidation, appErr.Kind)
	require.Len(t, gw.refundReqs, 1)

	_, err = svc.Refund(context.Background(), "u1", tx.TransactionID, 4000, "rest")
	require.NoError(t, err)
}

func TestRefundStatusReconcilesTransaction(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{Status: StatusRefundPending}}
	svc, store := newTestService(gw)
	tx := initPaid(t, svc, gw, 10000)

	r, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 10000, "returned")
	require.NoError(t, err)

	gw.refundStatus = RefundResult{RefundRefID: r.RefundRefID, Status: StatusRefunded}
	out, err := svc.RefundStatus(context.Background(), "u1", r.RefundRefID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, out.Status)
	require.Equal(t, StatusRefunded, store.txs[tx.TransactionID].Status)

	_, err = svc.RefundStatus(context.Background(), "u1", "missing")
	require.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestRefundSettledByGatewayReconcilesTransaction(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{Status: StatusRefunded}}
	svc, store := newTestService(gw)
	tx := initPaid(t, svc, gw, 10000)

	_, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 4000, "partial")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, store.txs[tx.TransactionID].Status)

	r, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 6000, "rest")
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, r.Status)
	require.Equal(t, StatusRefunded, store.txs[tx.TransactionID].Status)

	out, err := svc.RefundStatus(context.Background(), "u1", r.RefundRefID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, out.Status)
	require.Equal(t, StatusRefunded, store.txs[tx.TransactionID].Status)
}

func TestRefundUnrecordedKeepsGatewayReference(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{RefundRefID: "RF-77", Status: StatusRefundPending}}
	svc, store := newTestService(gw)
	tx := initPaid(t, svc, gw, 10000)
	store.createRefundErr = errors.New("connection reset")

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	_, err := svc.Refund(ctx, "u1", tx.TransactionID, 1000, "damaged")
	require.ErrorContains(t, err, "RF-77")
	require.Contains(t, buf.String(), `"refund_ref_id":"RF-77"`)
	require.Contains(t, buf.String(), "payment_refund_unrecorded")
	require.Equal(t, StatusSuccess, store.txs[tx.TransactionID].Status)
}

func TestPaymentsAreScopedToCaller(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}, refund: RefundResult{Status: StatusRefundPending}}
	svc, _ := newTestService(gw)
	tx := initPaid(t, svc, gw, 10000)
	r, err := svc.Refund(context.Background(), "u1", tx.TransactionID, 1000, "damaged")
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), "u2", "ORD-1")
	require.Equal(t, common.KindNotFound, common.KindOf(err))
	_, err = svc.Details(context.Background(), "u2", tx.TransactionID)
	require.Equal(t, common.KindNotFound, common.KindOf(err))
	_, err = svc.Refund(context.Background(), "u2", tx.TransactionID, 1000, "mine now")
	require.Equal(t, common.KindNotFound, common.KindOf(err))
	_, err = svc.RefundStatus(context.Background(), "u2", r.RefundRefID)
	require.Equal(t, common.KindNotFound, common.KindOf(err))
	require.Len(t, gw.refundReqs, 1)
}

func TestCancelRefusedWhenGatewayReportsPaid(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, store := newTestService(gw)
	res, err := svc.Init(context.Background(), InitInput{UserID: "u1", OrderID: "ORD-1", Amount: 5000})
	require.NoError(t, err)

	gw.validation = Validation{Valid: true, Status: "VALID", TransactionID: res.Transaction.TransactionID, Amount: 5000, Currency: "BDT"}
	_, err = svc.Cancel(context.Background(), Callback{TransactionID: res.Transaction.TransactionID})
	require.Equal(t, common.KindValidation, common.KindOf(err))
	require.Equal(t, StatusPending, store.txs[res.Transaction.TransactionID].Status)

	gw.validation = Validation{Status: "FAILED", TransactionID: res.Transaction.TransactionID}
	out, err := svc.Fail(context.Background(), Callback{TransactionID: res.Transaction.TransactionID})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, out.Status)
}

func TestStatusAndDetails(t *testing.T) {
	gw := &fakeGateway{session: Session{GatewayURL: "u"}}
	svc, _ := newTestService(gw)
	tx := initPaid(t, svc, gw, 700)

	txs, err := svc.Status(context.Background(), "u1", "ORD-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	_, err = svc.Status(context.Background(), "u1", "ORD-404")
	require.Equal(t, common.KindNotFound, common.KindOf(err))

	details, err := svc.Details(context.Background(), "u1", tx.TransactionID)
	require.NoError(t, err)
	require.Equal(t, tx.TransactionID, details.Transaction.TransactionID)
	require.Empty(t, details.Refunds)
}

func TestAmountHelpers(t *testing.T) {
	require.Equal(t, "1500.05", formatAmount(150005))
	require.Equal(t, "0.10", formatAmount(10))
	for in, want := range map[string]int64{"1500.05": 150005, "1500": 150000, "12.5": 1250, "99.9900": 9999} {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseAmount("1.001")
	require.Error(t, err)
}
