// Package credstore holds per-tenant courier-account secrets and caches
// short-lived bearer tokens. Secrets never leave this package in logs or
// error messages.
package credstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shipstack/courier/pkg/courier"
)

// ErrAccountNotFound indicates the courier account does not exist.
var ErrAccountNotFound = errors.New("courier account not found")

// Account is a tenant-scoped courier-account configuration. Accounts are
// never hard-deleted; deactivation clears Active.
type Account struct {
	ID             string
	TenantID       string
	Type           courier.CourierType
	Label          string
	Credentials    courier.Credentials
	Priority       int
	Default        bool
	Active         bool
	PickupLocation string
	ChannelID      string
	WebhookSecret  string // per-account inbound webhook secret, where used
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is the persistence boundary for courier accounts.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	// ListActive returns a tenant's active accounts ordered by priority.
	ListActive(ctx context.Context, tenantID string) ([]*Account, error)
}

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

func (s *MemoryStore) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	a.UpdatedAt = time.Now()
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context, tenantID string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, a := range s.accounts {
		if a.TenantID == tenantID && a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// Resolve returns call-ready credentials for an account, with the token
// cache key scoped to (tenant, account).
func Resolve(ctx context.Context, store Store, accountID string) (courier.Credentials, *Account, error) {
	a, err := store.Get(ctx, accountID)
	if err != nil {
		return courier.Credentials{}, nil, err
	}
	creds := a.Credentials
	creds.CacheKey = a.TenantID + ":" + a.ID
	return creds, a, nil
}
