package courier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/common"
)

// ProvidersCacheKey is the cache key of the active provider listing.
const ProvidersCacheKey = "courier:providers:active"

// Service implements courier operations on top of a Store and provider API.
type Service struct {
	Store Store
	API   API
	Cache *cache.Store
}

// ActiveProviders lists active providers and refreshes the cached listing.
func (s *Service) ActiveProviders(ctx context.Context) ([]Provider, error) {
	providers, err := s.Store.ActiveProviders(ctx)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, ProvidersCacheKey, providers); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", ProvidersCacheKey).Msg("cache_populate_failed")
		}
	}
	return providers, nil
}

// BookInput describes a parcel to book with a guarded provider.
type BookInput struct {
	OrderID          string
	RecipientName    string
	RecipientPhone   string
	RecipientAddress string
	CODAmount        int64
	Note             string
}

// Book creates a consignment with the provider and records it.
func (s *Service) Book(ctx context.Context, p Provider, cred Credential, in BookInput) (Consignment, error) {
	result, err := s.API.CreateOrder(ctx, p, cred, OrderRequest{
		Invoice:          in.OrderID,
		RecipientName:    in.RecipientName,
		RecipientPhone:   in.RecipientPhone,
		RecipientAddress: in.RecipientAddress,
		CODAmount:        in.CODAmount,
		Note:             in.Note,
	})
	if err != nil {
		return Consignment{}, err
	}
	if result.TrackingCode == "" {
		return Consignment{}, common.Upstream(p.Code, 0, result.Raw, fmt.Errorf("provider returned no tracking code"))
	}
	status := MapExternalStatus(result.Status)
	if status == StatusUnknown {
		status = StatusPending
	}
	return s.Store.CreateConsignment(ctx, Consignment{
		ProviderID:   p.ID,
		CredentialID: cred.ID,
		OrderID:      in.OrderID,
		TrackingCode: result.TrackingCode,
		Status:       status,
		RawPayload:   result.Raw,
	})
}

// Consignment loads a consignment by id.
func (s *Service) Consignment(ctx context.Context, id string) (Consignment, error) {
	return s.Store.ConsignmentByID(ctx, id)
}

// ApplyStatus records a provider status update. Unknown labels are stored
// as StatusUnknown with the raw payload so nothing is lost.
func (s *Service) ApplyStatus(ctx context.Context, providerID, trackingCode, external string, raw json.RawMessage) (Consignment, error) {
	return s.Store.UpdateConsignmentStatus(ctx, providerID, trackingCode, MapExternalStatus(external), raw)
}
