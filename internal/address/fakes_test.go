package address

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
)

type memStore struct {
	mu    sync.Mutex
	rows  map[string]Address
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]Address{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) InTx(_ context.Context, fn func(q Queries) error) error {
	return fn(m)
}

func (m *memStore) byUser(userID string) []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Address
	for _, a := range m.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (m *memStore) List(_ context.Context, userID string, limit, offset int) ([]Address, error) {
	all := m.byUser(userID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].IsDefault && !all[j].IsDefault })
	if offset >= len(all) {
		return []Address{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memStore) Count(_ context.Context, userID string) (int, error) {
	return len(m.byUser(userID)), nil
}

func (m *memStore) Get(_ context.Context, userID, id string) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.UserID != userID {
		return Address{}, common.NotFound("address")
	}
	return a, nil
}

func (m *memStore) Default(_ context.Context, userID string) (Address, error) {
	for _, a := range m.byUser(userID) {
		if a.IsDefault {
			return a, nil
		}
	}
	return Address{}, common.NotFound("address")
}

func (m *memStore) MostRecent(_ context.Context, userID, excludeID string) (Address, error) {
	for _, a := range m.byUser(userID) {
		if a.ID != excludeID {
			return a, nil
		}
	}
	return Address{}, common.NotFound("address")
}

func (m *memStore) Insert(_ context.Context, a Address) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDefault(a); err != nil {
		return Address{}, err
	}
	a.ID = uuid.NewString()
	a.CreatedAt = m.tick()
	a.UpdatedAt = a.CreatedAt
	m.rows[a.ID] = a
	return a, nil
}

func (m *memStore) Update(_ context.Context, a Address) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[a.ID]
	if !ok || cur.UserID != a.UserID {
		return Address{}, common.NotFound("address")
	}
	a.IsDefault = cur.IsDefault
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = m.tick()
	m.rows[a.ID] = a
	return a, nil
}

func (m *memStore) SetDefault(_ context.Context, userID, id string, isDefault bool) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.UserID != userID {
		return Address{}, common.NotFound("address")
	}
	a.IsDefault = isDefault
	if err := m.checkDefault(a); err != nil {
		return Address{}, err
	}
	a.UpdatedAt = m.tick()
	m.rows[id] = a
	return a, nil
}

func (m *memStore) ClearDefault(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.rows {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			m.rows[id] = a
		}
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.UserID != userID {
		return common.NotFound("address")
	}
	delete(m.rows, id)
	return nil
}

// checkDefault mirrors the partial unique index on (user_id) WHERE is_default.
func (m *memStore) checkDefault(a Address) error {
	if !a.IsDefault {
		return nil
	}
	for id, other := range m.rows {
		if id != a.ID && other.UserID == a.UserID && other.IsDefault {
			return common.Persistence("23505", nil)
		}
	}
	return nil
}

func (m *memStore) defaults(userID string) []string {
	var ids []string
	for _, a := range m.byUser(userID) {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
