package courier

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-commerce/internal/db"
)

// Store persists the courier catalogue and consignments. Lookups of absent
// rows return a NotFound-kind error.
type Store interface {
	ProviderByID(ctx context.Context, id string) (Provider, error)
	ProviderByCode(ctx context.Context, code string) (Provider, error)
	ActiveProviders(ctx context.Context) ([]Provider, error)
	CredentialByID(ctx context.Context, id string) (Credential, error)
	ActiveCredential(ctx context.Context, providerID string) (Credential, error)
	CreateConsignment(ctx context.Context, c Consignment) (Consignment, error)
	ConsignmentByID(ctx context.Context, id string) (Consignment, error)
	UpdateConsignmentStatus(ctx context.Context, providerID, trackingCode string, status Status, payload json.RawMessage) (Consignment, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const providerColumns = `id::text, code, name, base_url, is_active, created_at, updated_at`

func scanProvider(row pgx.Row) (Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.BaseURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ProviderByID loads a provider regardless of its active flag.
func (s PGStore) ProviderByID(ctx context.Context, id string) (Provider, error) {
	p, err := scanProvider(s.Pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM courier_providers WHERE id = $1`, id))
	return p, db.Translate(err, "courier provider")
}

// ProviderByCode loads a provider by its short code.
func (s PGStore) ProviderByCode(ctx context.Context, code string) (Provider, error) {
	p, err := scanProvider(s.Pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM courier_providers WHERE code = $1`, code))
	return p, db.Translate(err, "courier provider")
}

// ActiveProviders lists active providers ordered by name.
func (s PGStore) ActiveProviders(ctx context.Context) ([]Provider, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+providerColumns+` FROM courier_providers WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, db.Translate(err, "courier provider")
	}
	defer rows.Close()
	providers := []Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, db.Translate(err, "courier provider")
		}
		providers = append(providers, p)
	}
	return providers, db.Translate(rows.Err(), "courier provider")
}

const credentialColumns = `id::text, courier_provider_id::text, vendor_id, environment, api_key, api_secret, webhook_secret, is_active`

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	var env string
	err := row.Scan(&c.ID, &c.ProviderID, &c.VendorID, &env, &c.APIKey, &c.APISecret, &c.WebhookSecret, &c.IsActive)
	c.Environment = Environment(env)
	return c, err
}

// CredentialByID loads a credential regardless of its active flag.
func (s PGStore) CredentialByID(ctx context.Context, id string) (Credential, error) {
	c, err := scanCredential(s.Pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM courier_credentials WHERE id = $1`, id))
	return c, db.Translate(err, "courier credentials")
}

// ActiveCredential returns the most recently updated active credential of a
// provider, preferring production over sandbox.
func (s PGStore) ActiveCredential(ctx context.Context, providerID string) (Credential, error) {
	c, err := scanCredential(s.Pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM courier_credentials
WHERE courier_provider_id = $1 AND is_active
ORDER BY environment = 'PRODUCTION' DESC, updated_at DESC
LIMIT 1`, providerID))
	return c, db.Translate(err, "courier credentials")
}

const consignmentColumns = `id::text, courier_provider_id::text, credential_id::text, order_id, tracking_code, status, raw_payload, created_at, updated_at`

func scanConsignment(row pgx.Row) (Consignment, error) {
	var c Consignment
	var status string
	var raw []byte
	err := row.Scan(&c.ID, &c.ProviderID, &c.CredentialID, &c.OrderID, &c.TrackingCode, &status, &raw, &c.CreatedAt, &c.UpdatedAt)
	c.Status = Status(status)
	c.RawPayload = raw
	return c, err
}

// CreateConsignment inserts a booked consignment.
func (s PGStore) CreateConsignment(ctx context.Context, c Consignment) (Consignment, error) {
	payload := c.RawPayload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	out, err := scanConsignment(s.Pool.QueryRow(ctx, `INSERT INTO consignments
(courier_provider_id, credential_id, order_id, tracking_code, status, raw_payload)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+consignmentColumns, c.ProviderID, c.CredentialID, c.OrderID, c.TrackingCode, string(c.Status), []byte(payload)))
	return out, db.Translate(err, "consignment")
}

// ConsignmentByID loads a consignment.
func (s PGStore) ConsignmentByID(ctx context.Context, id string) (Consignment, error) {
	c, err := scanConsignment(s.Pool.QueryRow(ctx, `SELECT `+consignmentColumns+` FROM consignments WHERE id = $1`, id))
	return c, db.Translate(err, "consignment")
}

// UpdateConsignmentStatus records the latest provider status for a tracking code.
func (s PGStore) UpdateConsignmentStatus(ctx context.Context, providerID, trackingCode string, status Status, payload json.RawMessage) (Consignment, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	c, err := scanConsignment(s.Pool.QueryRow(ctx, `UPDATE consignments
SET status = $3, raw_payload = $4, updated_at = now()
WHERE courier_provider_id = $1 AND tracking_code = $2
RETURNING `+consignmentColumns, providerID, trackingCode, string(status), []byte(payload)))
	return c, db.Translate(err, "consignment")
}
