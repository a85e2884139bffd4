package address

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-commerce/internal/db"
)

// Queries are the row-level operations on the address table.
type Queries interface {
	List(ctx context.Context, userID string, limit, offset int) ([]Address, error)
	Count(ctx context.Context, userID string) (int, error)
	Get(ctx context.Context, userID, id string) (Address, error)
	Default(ctx context.Context, userID string) (Address, error)
	// MostRecent returns the most recently updated address of userID other
	// than excludeID.
	MostRecent(ctx context.Context, userID, excludeID string) (Address, error)
	Insert(ctx context.Context, a Address) (Address, error)
	Update(ctx context.Context, a Address) (Address, error)
	SetDefault(ctx context.Context, userID, id string, isDefault bool) (Address, error)
	ClearDefault(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, id string) error
}

// Store is Queries plus transactions.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
	pgQueries
}

// NewPGStore returns a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) PGStore {
	return PGStore{Pool: pool, pgQueries: pgQueries{q: pool}}
}

// InTx runs fn inside one database transaction.
func (s PGStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	return db.InTx(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(pgQueries{q: tx})
	})
}

type pgQueries struct {
	q db.Querier
}

const columns = `id::text, user_id, label, receiver_name, phone, country, division, district, area,
postal_code, line1, line2, is_default, created_at, updated_at`

func scan(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.ReceiverName, &a.Phone, &a.Country, &a.Division,
		&a.District, &a.Area, &a.PostalCode, &a.Line1, &a.Line2, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, db.Translate(err, "address")
}

func (p pgQueries) List(ctx context.Context, userID string, limit, offset int) ([]Address, error) {
	rows, err := p.q.Query(ctx, `SELECT `+columns+` FROM addresses WHERE user_id = $1
ORDER BY is_default DESC, updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, db.Translate(err, "address")
	}
	defer rows.Close()
	out := make([]Address, 0, limit)
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, db.Translate(rows.Err(), "address")
}

func (p pgQueries) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id = $1`, userID).Scan(&n)
	return n, db.Translate(err, "address")
}

func (p pgQueries) Get(ctx context.Context, userID, id string) (Address, error) {
	return scan(p.q.QueryRow(ctx, `SELECT `+columns+` FROM addresses WHERE user_id = $1 AND id = $2::uuid`, userID, id))
}

func (p pgQueries) Default(ctx context.Context, userID string) (Address, error) {
	return scan(p.q.QueryRow(ctx, `SELECT `+columns+` FROM addresses WHERE user_id = $1 AND is_default`, userID))
}

func (p pgQueries) MostRecent(ctx context.Context, userID, excludeID string) (Address, error) {
	return scan(p.q.QueryRow(ctx, `SELECT `+columns+` FROM addresses
WHERE user_id = $1 AND ($2 = '' OR id::text <> $2)
ORDER BY updated_at DESC LIMIT 1`, userID, excludeID))
}

func (p pgQueries) Insert(ctx context.Context, a Address) (Address, error) {
	return scan(p.q.QueryRow(ctx, `INSERT INTO addresses
(user_id, label, receiver_name, phone, country, division, district, area, postal_code, line1, line2, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+columns,
		a.UserID, a.Label, a.ReceiverName, a.Phone, a.Country, a.Division, a.District, a.Area, a.PostalCode, a.Line1, a.Line2, a.IsDefault))
}

func (p pgQueries) Update(ctx context.Context, a Address) (Address, error) {
	return scan(p.q.QueryRow(ctx, `UPDATE addresses SET label = $3, receiver_name = $4, phone = $5, country = $6,
division = $7, district = $8, area = $9, postal_code = $10, line1 = $11, line2 = $12, updated_at = now()
WHERE user_id = $1 AND id = $2::uuid
RETURNING `+columns,
		a.UserID, a.ID, a.Label, a.ReceiverName, a.Phone, a.Country, a.Division, a.District, a.Area, a.PostalCode, a.Line1, a.Line2))
}

func (p pgQueries) SetDefault(ctx context.Context, userID, id string, isDefault bool) (Address, error) {
	return scan(p.q.QueryRow(ctx, `UPDATE addresses SET is_default = $3, updated_at = now()
WHERE user_id = $1 AND id = $2::uuid RETURNING `+columns, userID, id, isDefault))
}

func (p pgQueries) ClearDefault(ctx context.Context, userID string) error {
	_, err := p.q.Exec(ctx, `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, userID)
	return db.Translate(err, "address")
}

func (p pgQueries) Delete(ctx context.Context, userID, id string) error {
	tag, err := p.q.Exec(ctx, `DELETE FROM addresses WHERE user_id = $1 AND id = $2::uuid`, userID, id)
	if err != nil {
		return db.Translate(err, "address")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "address")
	}
	return nil
}
