package courier

import (
	"time"
)

// ShipmentStatus represents the normalized status of a shipment.
// Each adapter owns the mapping from its carrier-native vocabulary.
type ShipmentStatus string

const (
	StatusCreated        ShipmentStatus = "created"
	StatusAwbAssigned    ShipmentStatus = "awb_assigned"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusNdrRaised      ShipmentStatus = "ndr_raised"
	StatusRtoInitiated   ShipmentStatus = "rto_initiated"
	StatusRtoDelivered   ShipmentStatus = "rto_delivered"
	StatusCancelled      ShipmentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s ShipmentStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRtoDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentMode is the shipment payment mode.
type PaymentMode string

const (
	PaymentPrepaid PaymentMode = "prepaid"
	PaymentCOD     PaymentMode = "cod"
)

// Credentials holds the secret material for one courier account. Which
// fields are populated depends on the carrier's authentication scheme.
// The CacheKey scopes cached bearer tokens to the owning account.
type Credentials struct {
	CacheKey string // tenant:account scope for token caching

	Email      string
	Password   string
	APIKey     string
	APISecret  string
	LicenseKey string
	LoginID    string
	ClientName string
}

// Address is a pickup or delivery address snapshot.
type Address struct {
	Name    string
	Phone   string
	Email   string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Country string
}

// Dimensions are package dimensions in centimetres.
type Dimensions struct {
	LengthCM float64
	WidthCM  float64
	HeightCM float64
}

// RateRequest asks a carrier for serviceability and rates on a route.
type RateRequest struct {
	PickupPincode   string
	DeliveryPincode string
	WeightKG        float64
	Dimensions      Dimensions
	COD             bool
	DeclaredValue   float64
}

// Rate is one service option quoted by a carrier. AccountID is filled in by
// the rate shopper so callers can tell which courier account produced it.
type Rate struct {
	CourierType   CourierType
	AccountID     string
	CourierID     string // carrier-native courier/service identifier
	CourierName   string
	FreightCharge float64
	CODCharge     float64
	OtherCharges  float64
	TotalCharge   float64
	Currency      string
	EtaDays       int
	EtaDate       *time.Time
}

// ShipmentRequest creates a shipment on the carrier side.
type ShipmentRequest struct {
	OrderRef       string // merchant order reference
	PickupLocation string // carrier-registered pickup location name
	ChannelID      string // aggregator sales-channel id, where applicable
	CourierID      string // preferred carrier-native courier id, optional
	Consignee      Address
	Pickup         Address
	WeightKG       float64
	Dimensions     Dimensions
	PaymentMode    PaymentMode
	CODAmount      float64
	DeclaredValue  float64
	ProductDesc    string
}

// ShipmentResponse is the outcome of CreateShipment. A partial success has
// ExternalOrderID set, TrackingNumber empty, and AWBError describing why the
// carrier could not assign a tracking number.
type ShipmentResponse struct {
	ExternalOrderID    string
	ExternalShipmentID string
	TrackingNumber     string
	CourierName        string
	CourierID          string
	LabelURL           string
	Status             ShipmentStatus
	AWBError           string
}

// Partial reports whether the order was created but AWB assignment failed.
func (r *ShipmentResponse) Partial() bool {
	return r.TrackingNumber == "" && r.AWBError != ""
}

// TrackingEvent is one entry in a shipment's tracking history.
type TrackingEvent struct {
	Timestamp   time.Time
	Status      ShipmentStatus
	CarrierCode string
	Location    string
	Remarks     string
}

// TrackingResponse is the normalized tracking state for a shipment.
type TrackingResponse struct {
	TrackingNumber   string
	CurrentStatus    ShipmentStatus
	CarrierCode      string
	Location         string
	ExpectedDelivery *time.Time
	DeliveredAt      *time.Time
	Events           []TrackingEvent // oldest first
}

// PickupRequest schedules a pickup with the carrier. Aggregators key pickups
// on their shipment record, direct carriers on the pickup location.
type PickupRequest struct {
	PickupLocation     string
	ExternalShipmentID string
	TrackingNumber     string
	Date               time.Time
	Slot               string
	ExpectedCount      int
}

// PickupResponse confirms a scheduled pickup.
type PickupResponse struct {
	PickupID     string
	ScheduledFor time.Time
	Confirmed    bool
}

// WebhookEvent is the normalized form of a carrier tracking callback.
type WebhookEvent struct {
	EventID        string // carrier-native event id; empty if the carrier has none
	TrackingNumber string
	CarrierCode    string
	Status         ShipmentStatus
	NonDelivery    bool   // a failed delivery attempt was reported
	NdrReason      string // reason code/text for the failed attempt
	Timestamp      time.Time
	Location       string
	Remarks        string
}
