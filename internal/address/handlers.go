package address

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

// Handler exposes the /addresses routes. Every route expects an
// authenticated user in the request context.
type Handler struct {
	Svc *Service
}

type upsertRequest struct {
	ID string `json:"id"`
	Input
}

func userID(r *http.Request) (string, error) {
	id, ok := common.UserID(r.Context())
	if !ok {
		return "", common.Unauthorized("missing or invalid token")
	}
	return id, nil
}

// List handles GET /addresses.
func (h Handler) List(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	items, p, err := h.Svc.List(r.Context(), uid, common.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		return err
	}
	common.JSON(w, http.StatusOK, common.Envelope{Success: true, Data: items, Pagination: &p})
	return nil
}

// Count handles GET /addresses/count.
func (h Handler) Count(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	n, err := h.Svc.Count(r.Context(), uid)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, map[string]int{"count": n})
	return nil
}

// Default handles GET /addresses/default.
func (h Handler) Default(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	a, err := h.Svc.Default(r.Context(), uid)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// Get handles GET /addresses/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	a, err := h.Svc.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// Create handles POST /addresses.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		return err
	}
	a, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusCreated, a)
	return nil
}

// Upsert handles POST /addresses/upsert.
func (h Handler) Upsert(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	var req upsertRequest
	if err := httpx.Decode(r, &req); err != nil {
		return err
	}
	a, err := h.Svc.Upsert(r.Context(), uid, req.ID, req.Input)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// Update handles PATCH /addresses/{id}.
func (h Handler) Update(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		return err
	}
	a, err := h.Svc.Update(r.Context(), uid, chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// SetDefault handles PATCH /addresses/{id}/set-default.
func (h Handler) SetDefault(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	a, err := h.Svc.SetDefault(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// ToggleDefault handles PATCH /addresses/{id}/toggle-default.
func (h Handler) ToggleDefault(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	a, err := h.Svc.ToggleDefault(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	common.OK(w, http.StatusOK, a)
	return nil
}

// Delete handles DELETE /addresses/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Routes mounts the address book on r.
func (h Handler) Routes(r chi.Router, errs httpx.ErrorHandler) {
	r.Get("/", errs.Wrap(h.List))
	r.Post("/", errs.Wrap(h.Create))
	r.Post("/upsert", errs.Wrap(h.Upsert))
	r.Get("/default", errs.Wrap(h.Default))
	r.Get("/count", errs.Wrap(h.Count))
	r.Get("/{id}", errs.Wrap(h.Get))
	r.Patch("/{id}", errs.Wrap(h.Update))
	r.Patch("/{id}/set-default", errs.Wrap(h.SetDefault))
	r.Patch("/{id}/toggle-default", errs.Wrap(h.ToggleDefault))
	r.Delete("/{id}", errs.Wrap(h.Delete))
}
