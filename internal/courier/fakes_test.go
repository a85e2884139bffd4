package courier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-commerce/internal/common"
)

const (
	activeProviderID   = "0b7e7a52-3a5e-4f4b-9f0e-1a2b3c4d5e01"
	inactiveProviderID = "0b7e7a52-3a5e-4f4b-9f0e-1a2b3c4d5e02"
	otherProviderID    = "0b7e7a52-3a5e-4f4b-9f0e-1a2b3c4d5e03"
	activeCredentialID = "7f1d9c55-0c1e-4b8e-8a3a-000000000001"
	foreignCredential  = "7f1d9c55-0c1e-4b8e-8a3a-000000000002"
	missingID          = "00000000-0000-0000-0000-000000000000"
)

var errContextBroken = errors.New("store unavailable")

type fakeStore struct {
	mu           sync.Mutex
	providers    map[string]Provider
	credentials  map[string]Credential
	consignments map[string]Consignment
	err          error
	lookups      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: map[string]Provider{
			activeProviderID:   {ID: activeProviderID, Code: "steadfast", Name: "Steadfast", IsActive: true},
			inactiveProviderID: {ID: inactiveProviderID, Code: "redx", Name: "RedX", IsActive: false},
			otherProviderID:    {ID: otherProviderID, Code: "pathao", Name: "Pathao", IsActive: true},
		},
		credentials: map[string]Credential{
			activeCredentialID: {ID: activeCredentialID, ProviderID: activeProviderID, Environment: EnvSandbox, APIKey: "k", APISecret: "s", WebhookSecret: "whsec", IsActive: true},
			foreignCredential:  {ID: foreignCredential, ProviderID: otherProviderID, Environment: EnvSandbox, IsActive: true},
		},
		consignments: map[string]Consignment{},
	}
}

func (f *fakeStore) ProviderByID(_ context.Context, id string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return Provider{}, f.err
	}
	p, ok := f.providers[id]
	if !ok {
		return Provider{}, common.NotFound("courier provider")
	}
	return p, nil
}

func (f *fakeStore) ProviderByCode(_ context.Context, code string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Provider{}, f.err
	}
	for _, p := range f.providers {
		if p.Code == code {
			return p, nil
		}
	}
	return Provider{}, common.NotFound("courier provider")
}

func (f *fakeStore) ActiveProviders(context.Context) ([]Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []Provider{}
	for _, id := range []string{activeProviderID, otherProviderID} {
		out = append(out, f.providers[id])
	}
	return out, nil
}

func (f *fakeStore) CredentialByID(_ context.Context, id string) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Credential{}, f.err
	}
	c, ok := f.credentials[id]
	if !ok {
		return Credential{}, common.NotFound("courier credentials")
	}
	return c, nil
}

func (f *fakeStore) ActiveCredential(_ context.Context, providerID string) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.credentials {
		if c.ProviderID == providerID && c.IsActive {
			return c, nil
		}
	}
	return Credential{}, common.NotFound("courier credentials")
}

func (f *fakeStore) CreateConsignment(_ context.Context, c Consignment) (Consignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = "c-" + c.TrackingCode
	f.consignments[c.ID] = c
	return c, nil
}

func (f *fakeStore) ConsignmentByID(_ context.Context, id string) (Consignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consignments[id]
	if !ok {
		return Consignment{}, common.NotFound("consignment")
	}
	return c, nil
}

func (f *fakeStore) UpdateConsignmentStatus(_ context.Context, providerID, trackingCode string, status Status, payload json.RawMessage) (Consignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.consignments {
		if c.ProviderID == providerID && c.TrackingCode == trackingCode {
			c.Status = status
			c.RawPayload = payload
			f.consignments[id] = c
			return c, nil
		}
	}
	return Consignment{}, common.NotFound("consignment")
}

type fakeAPI struct {
	result OrderResult
	err    error
	got    OrderRequest
}

func (f *fakeAPI) CreateOrder(_ context.Context, _ Provider, _ Credential, req OrderRequest) (OrderResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}
