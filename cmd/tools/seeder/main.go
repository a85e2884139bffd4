// Command seeder loads a courier provider catalogue into Postgres.
//
//	go run ./cmd/tools/seeder -file couriers.yaml
//
// Values of the form ${NAME} are expanded from the environment so secrets
// stay out of the catalogue file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-commerce/internal/db"
	"github.com/noah-isme/toko-commerce/internal/httpx"
	"github.com/noah-isme/toko-commerce/internal/obs"
)

type catalogue struct {
	Providers []providerEntry `yaml:"providers" validate:"required,min=1,dive"`
}

type providerEntry struct {
	Code        string            `yaml:"code" validate:"required,max=40"`
	Name        string            `yaml:"name" validate:"required"`
	BaseURL     string            `yaml:"base_url" validate:"required,url"`
	Active      *bool             `yaml:"active"`
	Credentials []credentialEntry `yaml:"credentials" validate:"dive"`
}

type credentialEntry struct {
	Environment   string `yaml:"environment" validate:"required,oneof=SANDBOX PRODUCTION"`
	VendorID      string `yaml:"vendor_id"`
	APIKey        string `yaml:"api_key" validate:"required"`
	APISecret     string `yaml:"api_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func (p providerEntry) active() bool {
	return p.Active == nil || *p.Active
}

func loadCatalogue(r io.Reader) (catalogue, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return catalogue{}, err
	}
	var c catalogue
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &c); err != nil {
		return catalogue{}, fmt.Errorf("parse catalogue: %w", err)
	}
	for i := range c.Providers {
		c.Providers[i].Code = strings.ToLower(strings.TrimSpace(c.Providers[i].Code))
		for j := range c.Providers[i].Credentials {
			cred := &c.Providers[i].Credentials[j]
			cred.Environment = strings.ToUpper(strings.TrimSpace(cred.Environment))
		}
	}
	if err := httpx.Validate(c); err != nil {
		return catalogue{}, fmt.Errorf("invalid catalogue: %w", err)
	}
	return c, nil
}

func seed(ctx context.Context, tx pgx.Tx, c catalogue) (int, error) {
	creds := 0
	for _, p := range c.Providers {
		var providerID string
		err := tx.QueryRow(ctx, `INSERT INTO courier_providers (code, name, base_url, is_active)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, base_url = EXCLUDED.base_url,
  is_active = EXCLUDED.is_active, updated_at = now()
RETURNING id::text`, p.Code, p.Name, p.BaseURL, p.active()).Scan(&providerID)
		if err != nil {
			return creds, db.Translate(err, "courier provider")
		}
		for _, cred := range p.Credentials {
			// One active credential per environment; older rows are retired.
			if _, err := tx.Exec(ctx, `UPDATE courier_credentials SET is_active = FALSE, updated_at = now()
WHERE courier_provider_id = $1 AND environment = $2 AND is_active`, providerID, cred.Environment); err != nil {
				return creds, db.Translate(err, "courier credential")
			}
			var vendor *string
			if cred.VendorID != "" {
				vendor = &cred.VendorID
			}
			if _, err := tx.Exec(ctx, `INSERT INTO courier_credentials
(courier_provider_id, vendor_id, environment, api_key, api_secret, webhook_secret, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)`,
				providerID, vendor, cred.Environment, cred.APIKey, cred.APISecret, cred.WebhookSecret); err != nil {
				return creds, db.Translate(err, "courier credential")
			}
			creds++
		}
	}
	return creds, nil
}

func main() {
	file := flag.String("file", "couriers.yaml", "courier catalogue to load")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("open catalogue")
	}
	defer f.Close()

	c, err := loadCatalogue(f)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogue")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, dsn, "toko-commerce-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	var creds int
	err = db.InTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		creds, err = seed(ctx, tx, c)
		return err
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed couriers")
	}
	logEvent(logger.Info(), c).Int("credentials", creds).Msg("seeding completed")
}

func logEvent(ev *zerolog.Event, c catalogue) *zerolog.Event {
	codes := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		codes = append(codes, p.Code)
	}
	return ev.Strs("providers", codes)
}
