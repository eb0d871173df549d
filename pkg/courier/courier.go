// Package courier provides an abstraction layer for third-party logistics carriers.
package courier

import (
	"context"
	"net/http"
)

// CourierType identifies a supported carrier integration.
type CourierType string

const (
	TypeShiprocket  CourierType = "shiprocket"
	TypeDelhivery   CourierType = "delhivery"
	TypeBlueDart    CourierType = "bluedart"
	TypeDTDC        CourierType = "dtdc"
	TypeEcomExpress CourierType = "ecomexpress"
	TypeXpressBees  CourierType = "xpressbees"
	TypeShadowfax   CourierType = "shadowfax"
	TypeCustom      CourierType = "custom"
)

// Courier defines the capability set that every carrier adapter must implement.
// Calls are network I/O; implementations apply a bounded timeout and surface
// transport failures as ErrTransport-kinded errors without retrying internally.
type Courier interface {
	// Type returns the carrier identifier (e.g., "shiprocket", "delhivery").
	Type() CourierType

	// ValidateCredentials authenticates against the carrier.
	ValidateCredentials(ctx context.Context, creds Credentials) error

	// GetRates returns available service options for a route, sorted ascending
	// by total charge. An empty result means no serviceable courier, which is
	// not an error.
	GetRates(ctx context.Context, creds Credentials, req *RateRequest) ([]Rate, error)

	// CreateShipment creates the order/shipment on the carrier side and, where
	// supported, assigns a tracking number in the same call. When the carrier
	// creates the order but AWB assignment fails, the response carries the
	// external order id, an empty tracking number, and a non-empty AWBError.
	CreateShipment(ctx context.Context, creds Credentials, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetTracking returns the normalized current status and the ordered event
	// list (oldest first) for a tracking number.
	GetTracking(ctx context.Context, creds Credentials, awb string) (*TrackingResponse, error)

	// CancelShipment cancels an existing shipment.
	CancelShipment(ctx context.Context, creds Credentials, awb string) error

	// SchedulePickup books a pickup with the carrier.
	SchedulePickup(ctx context.Context, creds Credentials, req *PickupRequest) (*PickupResponse, error)

	// GetLabel retrieves the shipping label for a tracking number.
	GetLabel(ctx context.Context, creds Credentials, awb string) ([]byte, error)
}

// WebhookHandler is implemented by adapters for carriers that deliver
// tracking callbacks. Verification and payload translation are part of the
// adapter's contract because signature schemes and status vocabularies
// diverge per carrier.
type WebhookHandler interface {
	// VerifyWebhook checks payload authenticity against the carrier's signing
	// scheme. Carriers without signing return true when no secret is set.
	VerifyWebhook(payload []byte, headers http.Header, secret string) bool

	// ParseWebhook translates a carrier-native callback into a normalized event.
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

// AWBAssigner is an optional capability for aggregator carriers that split
// order creation and tracking-number assignment into separate calls.
// The service layer uses it to retry AWB assignment on a saved shipment.
type AWBAssigner interface {
	AssignAWB(ctx context.Context, creds Credentials, externalShipmentID string, courierID string) (*AWBAssignment, error)
}

// AWBAssignment is the result of a standalone AWB assignment.
type AWBAssignment struct {
	TrackingNumber string
	CourierName    string
	CourierID      string
}
