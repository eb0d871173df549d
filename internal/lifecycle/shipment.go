// Package lifecycle owns the shipment and NDR case state machines.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/pkg/courier"
)

// TransitionSource records what drove a status transition.
type TransitionSource string

const (
	SourceCarrier TransitionSource = "carrier"
	SourceManual  TransitionSource = "manual"
)

// HistoryEntry is one immutable status transition.
type HistoryEntry struct {
	Status    courier.ShipmentStatus
	Location  string
	Remarks   string
	Source    TransitionSource
	Timestamp time.Time
}

// RetiredAWB records a tracking number that was cancelled or replaced.
type RetiredAWB struct {
	AWB         string
	CourierName string
	RetiredAt   time.Time
	Reason      string
}

// Shipment is the authoritative per-shipment aggregate. Version supports
// optimistic concurrency: the store rejects an Update whose Version does
// not match the stored one, so a single shipment's transitions serialize
// while distinct shipments update in parallel.
type Shipment struct {
	ID        string
	TenantID  string
	OrderRef  string
	AccountID string // courier account the shipment is booked on, empty if unresolved

	CourierType        courier.CourierType
	CourierName        string
	ExternalOrderID    string
	ExternalShipmentID string
	AWB                string // active tracking number, empty until assigned
	AWBError           string // why AWB assignment failed, for partial successes

	Status      courier.ShipmentStatus
	Consignee   courier.Address
	Pickup      courier.Address
	WeightKG    float64
	Dimensions  courier.Dimensions
	PaymentMode courier.PaymentMode
	CODAmount   float64

	History     []HistoryEntry
	RetiredAWBs []RetiredAWB

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewShipment creates a shipment in the Created state.
func NewShipment(tenantID, orderRef string) *Shipment {
	now := time.Now().UTC()
	s := &Shipment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		OrderRef:  orderRef,
		Status:    courier.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.History = append(s.History, HistoryEntry{
		Status:    courier.StatusCreated,
		Source:    SourceManual,
		Timestamp: now,
	})
	return s
}

// transitions lists the reachable next states per state. Forward skips are
// allowed because carriers drop intermediate scans; regressions are not.
var transitions = map[courier.ShipmentStatus][]courier.ShipmentStatus{
	courier.StatusCreated: {
		courier.StatusAwbAssigned, courier.StatusCancelled,
	},
	courier.StatusAwbAssigned: {
		courier.StatusPickedUp, courier.StatusInTransit, courier.StatusOutForDelivery,
		courier.StatusDelivered, courier.StatusNdrRaised, courier.StatusRtoInitiated,
		courier.StatusCancelled,
	},
	courier.StatusPickedUp: {
		courier.StatusInTransit, courier.StatusOutForDelivery,
		courier.StatusDelivered, courier.StatusNdrRaised, courier.StatusRtoInitiated,
		courier.StatusCancelled,
	},
	courier.StatusInTransit: {
		courier.StatusOutForDelivery,
		courier.StatusDelivered, courier.StatusNdrRaised, courier.StatusRtoInitiated,
		courier.StatusCancelled,
	},
	courier.StatusOutForDelivery: {
		courier.StatusDelivered, courier.StatusNdrRaised, courier.StatusRtoInitiated,
		courier.StatusCancelled,
	},
	// Reattempts move an NDR shipment back onto the delivery path.
	courier.StatusNdrRaised: {
		courier.StatusInTransit, courier.StatusOutForDelivery,
		courier.StatusDelivered, courier.StatusRtoInitiated,
		courier.StatusCancelled,
	},
	courier.StatusRtoInitiated: {
		courier.StatusRtoDelivered,
	},
}

// CanTransition reports whether moving to the given status is legal.
func (s *Shipment) CanTransition(to courier.ShipmentStatus) bool {
	for _, next := range transitions[s.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves the shipment to a new status and appends a history entry.
// Re-applying the current status is a duplicate, not a transition.
func (s *Shipment) Apply(to courier.ShipmentStatus, location, remarks string, source TransitionSource, at time.Time) error {
	if to == s.Status {
		return fmt.Errorf("%w: shipment %s already %s", courier.ErrDuplicateEvent, s.ID, to)
	}
	if !s.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", courier.ErrInvalidTransition, s.Status, to)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	s.History = append(s.History, HistoryEntry{
		Status:    to,
		Location:  location,
		Remarks:   remarks,
		Source:    source,
		Timestamp: at,
	})
	return nil
}

// AssignAWB records a new active tracking number, retiring any prior one
// into history. It drives the Created -> AwbAssigned transition on first
// assignment; on reassignment the status is already past Created and only
// the AWB changes.
func (s *Shipment) AssignAWB(awb, courierName, accountID string, ct courier.CourierType, source TransitionSource) error {
	if awb == "" {
		return fmt.Errorf("%w: empty tracking number", courier.ErrAWBNotAssigned)
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", courier.ErrInvalidTransition, s.Status)
	}
	if s.AWB != "" {
		s.RetiredAWBs = append(s.RetiredAWBs, RetiredAWB{
			AWB:         s.AWB,
			CourierName: s.CourierName,
			RetiredAt:   time.Now().UTC(),
			Reason:      "reassigned",
		})
	}
	s.AWB = awb
	s.AWBError = ""
	s.CourierName = courierName
	s.CourierType = ct
	s.AccountID = accountID
	if s.Status == courier.StatusCreated {
		return s.Apply(courier.StatusAwbAssigned, "", "awb "+awb+" assigned", source, time.Time{})
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel retires the active AWB and moves the shipment to Cancelled.
func (s *Shipment) Cancel(remarks string, source TransitionSource) error {
	if err := s.Apply(courier.StatusCancelled, "", remarks, source, time.Time{}); err != nil {
		return err
	}
	if s.AWB != "" {
		s.RetiredAWBs = append(s.RetiredAWBs, RetiredAWB{
			AWB:         s.AWB,
			CourierName: s.CourierName,
			RetiredAt:   time.Now().UTC(),
			Reason:      "cancelled",
		})
		s.AWB = ""
	}
	return nil
}
