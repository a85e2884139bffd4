package address

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// Service applies the address book rules on top of a Store.
type Service struct {
	Store Store
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("address")
	}
	return nil
}

func normalize(in Input) Input {
	trim := strings.TrimSpace
	in.Label = trim(in.Label)
	in.ReceiverName = trim(in.ReceiverName)
	in.Phone = trim(in.Phone)
	in.Country = strings.ToUpper(trim(in.Country))
	in.Division = trim(in.Division)
	in.District = trim(in.District)
	in.Area = trim(in.Area)
	in.PostalCode = trim(in.PostalCode)
	in.Line1 = trim(in.Line1)
	in.Line2 = trim(in.Line2)
	return in
}

// List returns one page of the user's addresses with the default first.
func (s *Service) List(ctx context.Context, userID string, p common.Pagination) ([]Address, common.Pagination, error) {
	total, err := s.Store.Count(ctx, userID)
	if err != nil {
		return nil, p, err
	}
	p.TotalItems = total
	items, err := s.Store.List(ctx, userID, p.PerPage, p.Offset())
	return items, p, err
}

// Count returns how many addresses the user has.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	return s.Store.Count(ctx, userID)
}

// Get returns one address of the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Address, error) {
	if err := checkID(id); err != nil {
		return Address{}, err
	}
	return s.Store.Get(ctx, userID, id)
}

// Default returns the user's default address.
func (s *Service) Default(ctx context.Context, userID string) (Address, error) {
	a, err := s.Store.Default(ctx, userID)
	if common.KindOf(err) == common.KindNotFound {
		return Address{}, common.NotFound("default address")
	}
	return a, err
}

// Create stores a new address. The user's first address always becomes the
// default one.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Address, error) {
	in = normalize(in)
	var out Address
	err := s.Store.InTx(ctx, func(q Queries) error {
		n, err := q.Count(ctx, userID)
		if err != nil {
			return err
		}
		makeDefault := n == 0 || (in.IsDefault != nil && *in.IsDefault)
		if makeDefault && n > 0 {
			if err := q.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		a := in.apply(Address{UserID: userID})
		a.IsDefault = makeDefault
		out, err = q.Insert(ctx, a)
		return err
	})
	return out, err
}

// Update replaces the address fields and applies the default flag when given.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (Address, error) {
	if err := checkID(id); err != nil {
		return Address{}, err
	}
	in = normalize(in)
	var out Address
	err := s.Store.InTx(ctx, func(q Queries) error {
		cur, err := q.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		out, err = q.Update(ctx, in.apply(cur))
		if err != nil || in.IsDefault == nil || *in.IsDefault == cur.IsDefault {
			return err
		}
		if *in.IsDefault {
			out, err = makeDefault(ctx, q, userID, id)
		} else {
			out, err = handOffDefault(ctx, q, out)
		}
		return err
	})
	return out, err
}

// Upsert updates the address when id is set and creates one otherwise.
func (s *Service) Upsert(ctx context.Context, userID, id string, in Input) (Address, error) {
	if strings.TrimSpace(id) == "" {
		return s.Create(ctx, userID, in)
	}
	return s.Update(ctx, userID, id, in)
}

// SetDefault makes the address the user's default.
func (s *Service) SetDefault(ctx context.Context, userID, id string) (Address, error) {
	if err := checkID(id); err != nil {
		return Address{}, err
	}
	var out Address
	err := s.Store.InTx(ctx, func(q Queries) error {
		cur, err := q.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.IsDefault {
			out = cur
			return nil
		}
		out, err = makeDefault(ctx, q, userID, id)
		return err
	})
	return out, err
}

// ToggleDefault flips the default flag. Unsetting the default hands it to the
// most recently updated other address; a lone address stays default.
func (s *Service) ToggleDefault(ctx context.Context, userID, id string) (Address, error) {
	if err := checkID(id); err != nil {
		return Address{}, err
	}
	var out Address
	err := s.Store.InTx(ctx, func(q Queries) error {
		cur, err := q.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if !cur.IsDefault {
			out, err = makeDefault(ctx, q, userID, id)
			return err
		}
		out, err = handOffDefault(ctx, q, cur)
		return err
	})
	return out, err
}

// Delete removes the address and promotes the most recently updated
// remaining one when the default was deleted.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(q Queries) error {
		cur, err := q.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := q.Delete(ctx, userID, id); err != nil {
			return err
		}
		if !cur.IsDefault {
			return nil
		}
		next, err := q.MostRecent(ctx, userID, "")
		if common.KindOf(err) == common.KindNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = q.SetDefault(ctx, userID, next.ID, true)
		return err
	})
}

func makeDefault(ctx context.Context, q Queries, userID, id string) (Address, error) {
	if err := q.ClearDefault(ctx, userID); err != nil {
		return Address{}, err
	}
	return q.SetDefault(ctx, userID, id, true)
}

func handOffDefault(ctx context.Context, q Queries, cur Address) (Address, error) {
	next, err := q.MostRecent(ctx, cur.UserID, cur.ID)
	if common.KindOf(err) == common.KindNotFound {
		return cur, nil
	}
	if err != nil {
		return Address{}, err
	}
	out, err := q.SetDefault(ctx, cur.UserID, cur.ID, false)
	if err != nil {
		return Address{}, err
	}
	if _, err := q.SetDefault(ctx, cur.UserID, next.ID, true); err != nil {
		return Address{}, err
	}
	return out, nil
}
