// Package dispatch fans domain events out to tenant webhook subscriptions
// with HMAC signing and bounded retries.
package dispatch

import (
	"time"
)

// EventType names a domain event subscribers can listen for.
type EventType string

const (
	EventShipmentStatusChanged EventType = "shipment.status_changed"
	EventShipmentAwbAssigned   EventType = "shipment.awb_assigned"
	EventShipmentDelivered     EventType = "shipment.delivered"
	EventShipmentCancelled     EventType = "shipment.cancelled"
	EventNdrOpened             EventType = "ndr.opened"
	EventNdrUpdated            EventType = "ndr.updated"
	EventNdrResolved           EventType = "ndr.resolved"
)

// DomainEvent is one state change to broadcast.
type DomainEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"event"`
	TenantID   string                 `json:"-"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data"`
}

// Subscription is a tenant-owned webhook target.
type Subscription struct {
	ID         string
	TenantID   string
	URL        string
	Secret     string
	Events     []EventType
	MaxRetries int           // retries after the first attempt
	Timeout    time.Duration // per-attempt timeout
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Matches reports whether the subscription listens for the event type.
// An empty event set subscribes to everything.
func (s *Subscription) Matches(t EventType) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, ev := range s.Events {
		if ev == t || ev == "*" {
			return true
		}
	}
	return false
}

// DeliveryStatus is the outcome of a delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryExhausted DeliveryStatus = "exhausted"
)

// Delivery is the attempt log for one event sent to one subscription.
type Delivery struct {
	ID             string
	SubscriptionID string
	TenantID       string
	EventID        string
	EventType      EventType
	Payload        []byte
	Attempts       int
	LastStatusCode int
	LastError      string
	Status         DeliveryStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
