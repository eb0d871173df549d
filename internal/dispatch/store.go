package dispatch

import (
	"context"
	"errors"
)

var (
	// ErrSubscriptionNotFound is returned when no subscription matches.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrDeliveryNotFound is returned when no delivery matches.
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// SubscriptionStore persists webhook subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	// ListActive returns the tenant's active subscriptions matching an
	// event type.
	ListActive(ctx context.Context, tenantID string, event EventType) ([]*Subscription, error)
}

// DeliveryFilter narrows a delivery-log query. Zero values match all.
type DeliveryFilter struct {
	SubscriptionID string
	Status         DeliveryStatus
	Limit          int
}

// DeliveryStore persists the outbound delivery log.
type DeliveryStore interface {
	Create(ctx context.Context, d *Delivery) error
	Get(ctx context.Context, id string) (*Delivery, error)
	Update(ctx context.Context, d *Delivery) error
	List(ctx context.Context, tenantID string, filter DeliveryFilter) ([]*Delivery, error)
}
