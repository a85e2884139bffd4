package courier

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

// Handler exposes courier routes.
type Handler struct {
	Svc *Service
}

// Providers lists active providers. The route is cache gated; a miss lands
// here and repopulates the cached listing.
func (h Handler) Providers(w http.ResponseWriter, r *http.Request) error {
	providers, err := h.Svc.ActiveProviders(r.Context())
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, providers)
	return nil
}

type bookRequest struct {
	CourierProviderID string `json:"courierProviderId" validate:"required"`
	CredentialID      string `json:"credentialId" validate:"required"`
	OrderID           string `json:"orderId" validate:"required,max=64"`
	RecipientName     string `json:"recipientName" validate:"required,max=100"`
	RecipientPhone    string `json:"recipientPhone" validate:"required,min=6,max=20"`
	RecipientAddress  string `json:"recipientAddress" validate:"required,max=250"`
	CODAmount         int64  `json:"codAmount" validate:"gte=0"`
	Note              string `json:"note" validate:"max=250"`
}

// CreateConsignment books a parcel. It runs behind RequireProvider and
// RequireCredentials.
func (h Handler) CreateConsignment(w http.ResponseWriter, r *http.Request) error {
	provider, ok := ProviderFrom(r.Context())
	if !ok {
		return common.NewAppError(common.KindInternal, "GUARD_MISSING", "courier provider guard not installed", nil)
	}
	cred, ok := CredentialFrom(r.Context())
	if !ok {
		return common.NewAppError(common.KindInternal, "GUARD_MISSING", "courier credentials guard not installed", nil)
	}
	var req bookRequest
	if err := httpx.Decode(r, &req); err != nil {
		return err
	}
	consignment, err := h.Svc.Book(r.Context(), provider, cred, BookInput{
		OrderID:          strings.TrimSpace(req.OrderID),
		RecipientName:    req.RecipientName,
		RecipientPhone:   req.RecipientPhone,
		RecipientAddress: req.RecipientAddress,
		CODAmount:        req.CODAmount,
		Note:             req.Note,
	})
	if err != nil {
		return err
	}
	common.OK(w, http.StatusCreated, consignment)
	return nil
}

// Consignment returns a single consignment.
func (h Handler) Consignment(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("consignment")
	}
	consignment, err := h.Svc.Consignment(r.Context(), id)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, consignment)
	return nil
}
