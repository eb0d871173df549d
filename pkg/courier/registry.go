package courier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry maps courier types to their adapter implementations. Adapters are
// registered once at startup; selection is a pure lookup, no runtime type
// inspection.
type Registry struct {
	couriers map[CourierType]Courier
	mu       sync.RWMutex
}

// NewRegistry creates a new courier registry.
func NewRegistry() *Registry {
	return &Registry{
		couriers: make(map[CourierType]Courier),
	}
}

// Register adds a courier adapter to the registry.
func (r *Registry) Register(c Courier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.couriers[c.Type()] = c
}

// Get returns an adapter by courier type.
func (r *Registry) Get(t CourierType) (Courier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.couriers[t]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCourierNotFound, t)
}

// Webhook returns the webhook handler for a courier type, if the adapter
// supports inbound callbacks.
func (r *Registry) Webhook(t CourierType) (WebhookHandler, error) {
	c, err := r.Get(t)
	if err != nil {
		return nil, err
	}
	h, ok := c.(WebhookHandler)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no webhook support", ErrCourierNotFound, t)
	}
	return h, nil
}

// Types returns the registered courier types.
func (r *Registry) Types() []CourierType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]CourierType, 0, len(r.couriers))
	for t := range r.couriers {
		types = append(types, t)
	}
	return types
}

// Count returns the number of registered adapters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.couriers)
}

// RateAccount pairs a courier account with resolved credentials for rate
// shopping. Priority breaks ties between equal total charges.
type RateAccount struct {
	AccountID   string
	Type        CourierType
	Credentials Credentials
	Priority    int
}

// ShopRates queries the given accounts' carriers in parallel, merges the
// serviceable options, and returns them sorted ascending by total charge.
// A route no carrier can service yields an empty result and no error;
// transport and credential failures are collected per-account in errs.
func (r *Registry) ShopRates(ctx context.Context, accounts []RateAccount, req *RateRequest) (rates []Rate, errs []error) {
	if len(accounts) == 0 {
		return nil, nil
	}

	rates = make([]Rate, 0, len(accounts))
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)

	for _, acct := range accounts {
		acct := acct
		g.Go(func() error {
			c, err := r.Get(acct.Type)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}

			got, err := c.GetRates(ctx, acct.Credentials, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Non-serviceable is an empty result, not a failure.
				if !errors.Is(err, ErrNotServiceable) {
					errs = append(errs, fmt.Errorf("%s: %w", acct.Type, err))
				}
				return nil
			}
			for _, rate := range got {
				rate.AccountID = acct.AccountID
				rates = append(rates, rate)
			}
			return nil
		})
	}

	g.Wait()

	prio := make(map[string]int, len(accounts))
	for _, acct := range accounts {
		prio[acct.AccountID] = acct.Priority
	}
	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].TotalCharge != rates[j].TotalCharge {
			return rates[i].TotalCharge < rates[j].TotalCharge
		}
		return prio[rates[i].AccountID] < prio[rates[j].AccountID]
	})
	return rates, errs
}
