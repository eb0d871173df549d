package lifecycle

import (
	"context"
	"errors"
)

var (
	// ErrShipmentNotFound is returned when no shipment matches the lookup.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrNdrNotFound is returned when no NDR case matches the lookup.
	ErrNdrNotFound = errors.New("ndr case not found")
	// ErrVersionConflict is returned when an Update carries a stale version.
	ErrVersionConflict = errors.New("version conflict")
)

// ShipmentStore persists shipments. Update performs an optimistic
// compare-and-swap on Version: it fails with ErrVersionConflict when the
// stored version differs, and bumps Version on success.
type ShipmentStore interface {
	Create(ctx context.Context, s *Shipment) error
	Get(ctx context.Context, id string) (*Shipment, error)
	GetByAWB(ctx context.Context, awb string) (*Shipment, error)
	Update(ctx context.Context, s *Shipment) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Shipment, error)
}

// NdrStore persists NDR cases. Update has the same optimistic semantics
// as ShipmentStore.Update.
type NdrStore interface {
	Create(ctx context.Context, n *NdrCase) error
	Get(ctx context.Context, id string) (*NdrCase, error)
	// FindOpenByShipment returns the single open case for a shipment, or
	// ErrNdrNotFound when none is open.
	FindOpenByShipment(ctx context.Context, shipmentID string) (*NdrCase, error)
	Update(ctx context.Context, n *NdrCase) error
	ListByShipment(ctx context.Context, shipmentID string) ([]*NdrCase, error)
}
