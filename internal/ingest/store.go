// Package ingest processes inbound carrier webhooks: verify, dedup,
// translate, apply, re-broadcast.
package ingest

import (
	"context"
	"time"
)

// EventStore records inbound idempotency keys. CheckAndRecord must be
// atomic: under concurrent duplicate deliveries exactly one caller sees
// first=true.
type EventStore interface {
	// CheckAndRecord claims an idempotency key. first is true when the key
	// was not recorded before; the claim persists for the retention window.
	CheckAndRecord(ctx context.Context, key string) (first bool, err error)
	// Release drops a claimed key so a carrier retry can reprocess it.
	Release(ctx context.Context, key string) error
}

// DefaultRetention is how long processed keys are kept. Carriers stop
// retrying well within this window.
const DefaultRetention = 7 * 24 * time.Hour
