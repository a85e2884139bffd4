package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/toko-commerce/internal/common"
)

type memStore struct {
	mu      sync.Mutex
	txs     map[string]Transaction
	order   []string
	refunds []Refund
	seq     int

	createRefundErr error
}

func newMemStore() *memStore {
	return &memStore{txs: map[string]Transaction{}}
}

func (m *memStore) CreateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("id-%d", m.seq)
	t.CreatedAt = time.Unix(int64(m.seq), 0)
	m.txs[t.TransactionID] = t
	m.order = append(m.order, t.TransactionID)
	return t, nil
}

func (m *memStore) TransactionByTranID(_ context.Context, tranID string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[tranID]
	if !ok {
		return Transaction{}, common.NotFound("payment transaction")
	}
	return t, nil
}

func (m *memStore) TransactionsByOrder(_ context.Context, orderID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Transaction{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if t := m.txs[m.order[i]]; t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, tranID string, upd TransactionUpdate) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[tranID]
	if !ok {
		return Transaction{}, common.NotFound("payment transaction")
	}
	if upd.Status != "" {
		t.Status = upd.Status
	}
	if upd.GatewaySession != "" {
		t.GatewaySession = upd.GatewaySession
	}
	if upd.ValidationID != "" {
		t.ValidationID = upd.ValidationID
	}
	if upd.BankTranID != "" {
		t.BankTranID = upd.BankTranID
	}
	if len(upd.GatewayPayload) > 0 {
		t.GatewayPayload = upd.GatewayPayload
	}
	m.txs[tranID] = t
	return t, nil
}

func (m *memStore) CreateRefund(_ context.Context, r Refund) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRefundErr != nil {
		return Refund{}, m.createRefundErr
	}
	m.refunds = append(m.refunds, r)
	return r, nil
}

func (m *memStore) RefundByRef(_ context.Context, ref string) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.RefundRefID == ref {
			return r, nil
		}
	}
	return Refund{}, common.NotFound("refund")
}

func (m *memStore) RefundsByTransaction(_ context.Context, tranID string) ([]Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Refund{}
	for _, r := range m.refunds {
		if r.TransactionID == tranID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) UpdateRefund(_ context.Context, ref string, status Status, payload json.RawMessage) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.refunds {
		if r.RefundRefID == ref {
			r.Status = status
			r.GatewayPayload = payload
			m.refunds[i] = r
			return r, nil
		}
	}
	return Refund{}, common.NotFound("refund")
}

type fakeGateway struct {
	session       Session
	sessionErr    error
	validation    Validation
	validateCalls int
	refund        RefundResult
	refundReqs    []RefundRequest
	refundStatus  RefundResult
	lastSession   SessionRequest
}

func (g *fakeGateway) InitSession(_ context.Context, req SessionRequest) (Session, error) {
	g.lastSession = req
	return g.session, g.sessionErr
}

func (g *fakeGateway) Validate(context.Context, string) (Validation, error) {
	g.validateCalls++
	return g.validation, nil
}

func (g *fakeGateway) TransactionStatus(context.Context, string) (Validation, error) {
	return g.validation, nil
}

func (g *fakeGateway) InitiateRefund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.refundReqs = append(g.refundReqs, req)
	res := g.refund
	if res.RefundRefID == "" {
		res.RefundRefID = fmt.Sprintf("RF-%d", len(g.refundReqs))
	}
	return res, nil
}

func (g *fakeGateway) RefundStatus(context.Context, string) (RefundResult, error) {
	return g.refundStatus, nil
}

func newTestService(gw *fakeGateway) (*Service, *memStore) {
	store := newMemStore()
	n := 0
	return &Service{
		Store:           store,
		Gateway:         gw,
		CallbackBaseURL: "https://api.example.com/",
		NewID: func() string {
			n++
			return fmt.Sprintf("TXN%03d", n)
		},
	}, store
}
