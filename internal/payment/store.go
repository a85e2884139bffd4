package payment

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-commerce/internal/db"
)

// TransactionUpdate carries the mutable fields of a transaction. Empty
// strings and nil payloads leave the stored value untouched.
type TransactionUpdate struct {
	Status         Status
	GatewaySession string
	ValidationID   string
	BankTranID     string
	GatewayPayload json.RawMessage
}

// Store persists transactions and refunds.
type Store interface {
	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	TransactionByTranID(ctx context.Context, tranID string) (Transaction, error)
	TransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error)
	UpdateTransaction(ctx context.Context, tranID string, upd TransactionUpdate) (Transaction, error)
	CreateRefund(ctx context.Context, r Refund) (Refund, error)
	RefundByRef(ctx context.Context, refundRefID string) (Refund, error)
	RefundsByTransaction(ctx context.Context, tranID string) ([]Refund, error)
	UpdateRefund(ctx context.Context, refundRefID string, status Status, payload json.RawMessage) (Refund, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const transactionColumns = `id::text, transaction_id, order_id, user_id, amount, currency, status, payment_type,
gateway_session, validation_id, bank_tran_id, collected_by, gateway_payload, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var status, typ string
	var payload []byte
	err := row.Scan(&t.ID, &t.TransactionID, &t.OrderID, &t.UserID, &t.Amount, &t.Currency, &status, &typ,
		&t.GatewaySession, &t.ValidationID, &t.BankTranID, &t.CollectedBy, &payload, &t.CreatedAt, &t.UpdatedAt)
	t.Status = Status(status)
	t.PaymentType = Type(typ)
	t.GatewayPayload = payload
	return t, err
}

func jsonOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 || !json.Valid(raw) {
		return []byte(`{}`)
	}
	return raw
}

// CreateTransaction inserts t.
func (s PGStore) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	out, err := scanTransaction(s.Pool.QueryRow(ctx, `INSERT INTO payment_transactions
(transaction_id, order_id, user_id, amount, currency, status, payment_type, collected_by, gateway_payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+transactionColumns,
		t.TransactionID, t.OrderID, t.UserID, t.Amount, t.Currency, string(t.Status), string(t.PaymentType), t.CollectedBy, jsonOrEmpty(t.GatewayPayload)))
	return out, db.Translate(err, "payment transaction")
}

// TransactionByTranID loads a transaction by its merchant transaction id.
func (s PGStore) TransactionByTranID(ctx context.Context, tranID string) (Transaction, error) {
	t, err := scanTransaction(s.Pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE transaction_id = $1`, tranID))
	return t, db.Translate(err, "payment transaction")
}

// TransactionsByOrder lists the transactions of an order, newest first.
func (s PGStore) TransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, db.Translate(err, "payment transaction")
	}
	defer rows.Close()
	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, db.Translate(err, "payment transaction")
		}
		out = append(out, t)
	}
	return out, db.Translate(rows.Err(), "payment transaction")
}

// UpdateTransaction applies upd to the transaction identified by tranID.
func (s PGStore) UpdateTransaction(ctx context.Context, tranID string, upd TransactionUpdate) (Transaction, error) {
	var payload []byte
	if len(upd.GatewayPayload) > 0 {
		payload = jsonOrEmpty(upd.GatewayPayload)
	}
	t, err := scanTransaction(s.Pool.QueryRow(ctx, `UPDATE payment_transactions SET
    status = COALESCE(NULLIF($2, ''), status),
    gateway_session = COALESCE(NULLIF($3, ''), gateway_session),
    validation_id = COALESCE(NULLIF($4, ''), validation_id),
    bank_tran_id = COALESCE(NULLIF($5, ''), bank_tran_id),
    gateway_payload = COALESCE($6::jsonb, gateway_payload),
    updated_at = now()
WHERE transaction_id = $1
RETURNING `+transactionColumns,
		tranID, string(upd.Status), upd.GatewaySession, upd.ValidationID, upd.BankTranID, payload))
	return t, db.Translate(err, "payment transaction")
}

const refundColumns = `id::text, refund_ref_id, transaction_id, amount, reason, status, gateway_payload, created_at, updated_at`

func scanRefund(row pgx.Row) (Refund, error) {
	var r Refund
	var status string
	var payload []byte
	err := row.Scan(&r.ID, &r.RefundRefID, &r.TransactionID, &r.Amount, &r.Reason, &status, &payload, &r.CreatedAt, &r.UpdatedAt)
	r.Status = Status(status)
	r.GatewayPayload = payload
	return r, err
}

// CreateRefund inserts r.
func (s PGStore) CreateRefund(ctx context.Context, r Refund) (Refund, error) {
	out, err := scanRefund(s.Pool.QueryRow(ctx, `INSERT INTO refunds
(refund_ref_id, transaction_id, amount, reason, status, gateway_payload)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+refundColumns,
		r.RefundRefID, r.TransactionID, r.Amount, r.Reason, string(r.Status), jsonOrEmpty(r.GatewayPayload)))
	return out, db.Translate(err, "refund")
}

// RefundByRef loads a refund by its gateway reference.
func (s PGStore) RefundByRef(ctx context.Context, refundRefID string) (Refund, error) {
	r, err := scanRefund(s.Pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE refund_ref_id = $1`, refundRefID))
	return r, db.Translate(err, "refund")
}

// RefundsByTransaction lists the refunds of a transaction, oldest first.
func (s PGStore) RefundsByTransaction(ctx context.Context, tranID string) ([]Refund, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+refundColumns+` FROM refunds WHERE transaction_id = $1 ORDER BY created_at`, tranID)
	if err != nil {
		return nil, db.Translate(err, "refund")
	}
	defer rows.Close()
	out := []Refund{}
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, db.Translate(err, "refund")
		}
		out = append(out, r)
	}
	return out, db.Translate(rows.Err(), "refund")
}

// UpdateRefund records the latest gateway status of a refund.
func (s PGStore) UpdateRefund(ctx context.Context, refundRefID string, status Status, payload json.RawMessage) (Refund, error) {
	r, err := scanRefund(s.Pool.QueryRow(ctx, `UPDATE refunds SET status = $2, gateway_payload = $3, updated_at = now()
WHERE refund_ref_id = $1
RETURNING `+refundColumns, refundRefID, string(status), jsonOrEmpty(payload)))
	return r, db.Translate(err, "refund")
}
