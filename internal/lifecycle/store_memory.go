package lifecycle

import (
	"context"
	"sync"
)

// MemoryShipmentStore is an in-process ShipmentStore.
type MemoryShipmentStore struct {
	mu      sync.RWMutex
	byID    map[string]*Shipment
	idByAWB map[string]string
}

// NewMemoryShipmentStore creates an empty in-memory shipment store.
func NewMemoryShipmentStore() *MemoryShipmentStore {
	return &MemoryShipmentStore{
		byID:    make(map[string]*Shipment),
		idByAWB: make(map[string]string),
	}
}

func copyShipment(s *Shipment) *Shipment {
	out := *s
	out.History = append([]HistoryEntry(nil), s.History...)
	out.RetiredAWBs = append([]RetiredAWB(nil), s.RetiredAWBs...)
	return &out
}

// Create stores a new shipment.
func (m *MemoryShipmentStore) Create(ctx context.Context, s *Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := copyShipment(s)
	stored.Version = 1
	m.byID[stored.ID] = stored
	if stored.AWB != "" {
		m.idByAWB[stored.AWB] = stored.ID
	}
	s.Version = stored.Version
	return nil
}

// Get returns a copy of the shipment with the given id.
func (m *MemoryShipmentStore) Get(ctx context.Context, id string) (*Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrShipmentNotFound
	}
	return copyShipment(s), nil
}

// GetByAWB resolves a shipment by its active tracking number.
func (m *MemoryShipmentStore) GetByAWB(ctx context.Context, awb string) (*Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.idByAWB[awb]
	if !ok {
		return nil, ErrShipmentNotFound
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrShipmentNotFound
	}
	return copyShipment(s), nil
}

// Update applies an optimistic write: the caller's Version must match the
// stored one, and is bumped on success.
func (m *MemoryShipmentStore) Update(ctx context.Context, s *Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[s.ID]
	if !ok {
		return ErrShipmentNotFound
	}
	if stored.Version != s.Version {
		return ErrVersionConflict
	}
	if stored.AWB != "" && stored.AWB != s.AWB {
		delete(m.idByAWB, stored.AWB)
	}
	next := copyShipment(s)
	next.Version = stored.Version + 1
	m.byID[next.ID] = next
	if next.AWB != "" {
		m.idByAWB[next.AWB] = next.ID
	}
	s.Version = next.Version
	return nil
}

// ListByTenant returns all shipments owned by a tenant.
func (m *MemoryShipmentStore) ListByTenant(ctx context.Context, tenantID string) ([]*Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Shipment
	for _, s := range m.byID {
		if s.TenantID == tenantID {
			out = append(out, copyShipment(s))
		}
	}
	return out, nil
}

var _ ShipmentStore = (*MemoryShipmentStore)(nil)

// MemoryNdrStore is an in-process NdrStore.
type MemoryNdrStore struct {
	mu   sync.RWMutex
	byID map[string]*NdrCase
}

// NewMemoryNdrStore creates an empty in-memory NDR store.
func NewMemoryNdrStore() *MemoryNdrStore {
	return &MemoryNdrStore{byID: make(map[string]*NdrCase)}
}

func copyNdr(n *NdrCase) *NdrCase {
	out := *n
	out.Actions = append([]NdrAction(nil), n.Actions...)
	out.Remarks = append([]NdrRemark(nil), n.Remarks...)
	if n.Reattempt != nil {
		plan := *n.Reattempt
		out.Reattempt = &plan
	}
	if n.NextFollowUp != nil {
		t := *n.NextFollowUp
		out.NextFollowUp = &t
	}
	return &out
}

// Create stores a new NDR case.
func (m *MemoryNdrStore) Create(ctx context.Context, n *NdrCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := copyNdr(n)
	stored.Version = 1
	m.byID[stored.ID] = stored
	n.Version = stored.Version
	return nil
}

// Get returns a copy of the case with the given id.
func (m *MemoryNdrStore) Get(ctx context.Context, id string) (*NdrCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, ErrNdrNotFound
	}
	return copyNdr(n), nil
}

// FindOpenByShipment returns the open case for a shipment, if any.
func (m *MemoryNdrStore) FindOpenByShipment(ctx context.Context, shipmentID string) (*NdrCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.byID {
		if n.ShipmentID == shipmentID && n.IsOpen() {
			return copyNdr(n), nil
		}
	}
	return nil, ErrNdrNotFound
}

// Update applies an optimistic write, same semantics as shipment Update.
func (m *MemoryNdrStore) Update(ctx context.Context, n *NdrCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[n.ID]
	if !ok {
		return ErrNdrNotFound
	}
	if stored.Version != n.Version {
		return ErrVersionConflict
	}
	next := copyNdr(n)
	next.Version = stored.Version + 1
	m.byID[next.ID] = next
	n.Version = next.Version
	return nil
}

// ListByShipment returns all cases, open and closed, for a shipment.
func (m *MemoryNdrStore) ListByShipment(ctx context.Context, shipmentID string) ([]*NdrCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*NdrCase
	for _, n := range m.byID {
		if n.ShipmentID == shipmentID {
			out = append(out, copyNdr(n))
		}
	}
	return out, nil
}

var _ NdrStore = (*MemoryNdrStore)(nil)
