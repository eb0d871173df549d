package dispatch

import (
	"context"
	"sort"
	"sync"
)

// MemorySubscriptionStore is an in-process SubscriptionStore.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	byID map[string]*Subscription
}

// NewMemorySubscriptionStore creates an empty in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{byID: make(map[string]*Subscription)}
}

func copySubscription(s *Subscription) *Subscription {
	out := *s
	out.Events = append([]EventType(nil), s.Events...)
	return &out
}

// Create stores a new subscription.
func (m *MemorySubscriptionStore) Create(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = copySubscription(s)
	return nil
}

// Get returns a copy of the subscription with the given id.
func (m *MemorySubscriptionStore) Get(ctx context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return copySubscription(s), nil
}

// Update overwrites a stored subscription.
func (m *MemorySubscriptionStore) Update(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.byID[s.ID] = copySubscription(s)
	return nil
}

// ListActive returns active subscriptions of a tenant matching the event.
func (m *MemorySubscriptionStore) ListActive(ctx context.Context, tenantID string, event EventType) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Subscription
	for _, s := range m.byID {
		if s.TenantID == tenantID && s.Active && s.Matches(event) {
			out = append(out, copySubscription(s))
		}
	}
	return out, nil
}

var _ SubscriptionStore = (*MemorySubscriptionStore)(nil)

// MemoryDeliveryStore is an in-process DeliveryStore.
type MemoryDeliveryStore struct {
	mu   sync.RWMutex
	byID map[string]*Delivery
}

// NewMemoryDeliveryStore creates an empty in-memory delivery store.
func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{byID: make(map[string]*Delivery)}
}

func copyDelivery(d *Delivery) *Delivery {
	out := *d
	out.Payload = append([]byte(nil), d.Payload...)
	return &out
}

// Create appends a delivery record.
func (m *MemoryDeliveryStore) Create(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = copyDelivery(d)
	return nil
}

// Get returns a copy of the delivery with the given id.
func (m *MemoryDeliveryStore) Get(ctx context.Context, id string) (*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// Update overwrites a stored delivery.
func (m *MemoryDeliveryStore) Update(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.ID]; !ok {
		return ErrDeliveryNotFound
	}
	m.byID[d.ID] = copyDelivery(d)
	return nil
}

// List returns filtered deliveries, newest first.
func (m *MemoryDeliveryStore) List(ctx context.Context, tenantID string, filter DeliveryFilter) ([]*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Delivery
	for _, d := range m.byID {
		if d.TenantID != tenantID {
			continue
		}
		if filter.SubscriptionID != "" && d.SubscriptionID != filter.SubscriptionID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, copyDelivery(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ DeliveryStore = (*MemoryDeliveryStore)(nil)
