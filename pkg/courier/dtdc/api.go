package dtdc

import (
	"context"
)

// APIClient defines the interface for DTDC API operations. DTDC
// authenticates every call with a static api-key header.
type APIClient interface {
	// CheckServiceability reports whether DTDC serves a route and at what price.
	CheckServiceability(ctx context.Context, apiKey string, req *ServiceabilityRequest) (*ServiceabilityResponse, error)

	// CreateConsignment books a consignment and assigns its number.
	CreateConsignment(ctx context.Context, apiKey string, req *ConsignmentRequest) (*ConsignmentResponse, error)

	// Track returns status and event history for a consignment number.
	Track(ctx context.Context, apiKey, consignmentNo string) (*TrackResponse, error)

	// CancelConsignment cancels a booked consignment.
	CancelConsignment(ctx context.Context, apiKey, consignmentNo string) error

	// SchedulePickup books a pickup.
	SchedulePickup(ctx context.Context, apiKey string, req *PickupRequest) (*PickupResponse, error)

	// GetShippingLabel returns the label document for a consignment number.
	GetShippingLabel(ctx context.Context, apiKey, consignmentNo string) ([]byte, error)
}

// ============================================================================
// API Request/Response Types (match DTDC customer-integration API structure)
// ============================================================================

// ServiceabilityRequest quotes a route.
type ServiceabilityRequest struct {
	OriginPincode      string  `json:"org_pincode"`
	DestinationPincode string  `json:"des_pincode"`
	Weight             float64 `json:"weight"`
	COD                bool    `json:"cod"`
	DeclaredValue      float64 `json:"declared_value,omitempty"`
}

// ServiceabilityResponse lists serviceable DTDC service options.
type ServiceabilityResponse struct {
	Serviceable bool `json:"serviceable"`
	Services    []struct {
		ServiceCode   string  `json:"service_code"`
		ServiceName   string  `json:"service_name"`
		FreightCharge float64 `json:"freight_charge"`
		CODCharge     float64 `json:"cod_charge"`
		TotalCharge   float64 `json:"total_charge"`
		TransitDays   int     `json:"transit_days"`
	} `json:"services"`
}

// ConsignmentRequest books a consignment (softdata upload).
type ConsignmentRequest struct {
	CustomerReferenceNumber string  `json:"customer_reference_number"`
	ServiceTypeID           string  `json:"service_type_id"`
	LoadType                string  `json:"load_type"` // "NON-DOCUMENT"
	CODAmount               float64 `json:"cod_amount,omitempty"`
	CODCollectionMode       string  `json:"cod_collection_mode,omitempty"`
	DeclaredValue           float64 `json:"declared_value"`
	Weight                  float64 `json:"weight"`
	Length                  float64 `json:"length,omitempty"`
	Width                   float64 `json:"width,omitempty"`
	Height                  float64 `json:"height,omitempty"`
	OriginDetails           Address `json:"origin_details"`
	DestinationDetails      Address `json:"destination_details"`
	Description             string  `json:"description,omitempty"`
}

// Address is a DTDC address block.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address_line_1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// ConsignmentResponse reports the booking outcome.
type ConsignmentResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Success           bool   `json:"success"`
		ReferenceNumber   string `json:"reference_number"` // consignment number
		CustomerReference string `json:"customer_reference_number"`
		Message           string `json:"message,omitempty"`
	} `json:"data"`
}

// TrackResponse carries tracking data for one consignment.
type TrackResponse struct {
	StatusCode  int `json:"statusCode"`
	TrackHeader struct {
		ConsignmentNo        string `json:"strShipmentNo"`
		StatusCode           string `json:"strCode"`
		Status               string `json:"strStatus"`
		StatusDate           string `json:"strStatusTransOn"`   // "02012006"
		StatusTime           string `json:"strStatusTransTime"` // "1504"
		Origin               string `json:"strOrigin"`
		Destination          string `json:"strDestination"`
		ExpectedDeliveryDate string `json:"strExpectedDeliveryDate"`
	} `json:"trackHeader"`
	TrackDetails []TrackDetail `json:"trackDetails"`
}

// TrackDetail is one tracking event.
type TrackDetail struct {
	Code       string `json:"strCode"`
	Action     string `json:"strAction"`
	Origin     string `json:"strOrigin"`
	ActionDate string `json:"strActionDate"` // "02012006"
	ActionTime string `json:"strActionTime"` // "1504"
	Remarks    string `json:"strRemarks"`
}

// PickupRequest books a pickup.
type PickupRequest struct {
	CustomerCode string  `json:"customer_code"`
	PickupDate   string  `json:"pickup_date"` // "2006-01-02"
	PickupTime   string  `json:"pickup_time"` // "15:00"
	Address      Address `json:"address"`
	PieceCount   int     `json:"piece_count"`
}

// PickupResponse confirms a booked pickup.
type PickupResponse struct {
	Success    bool   `json:"success"`
	PickupID   string `json:"pickup_id"`
	PickupDate string `json:"pickup_date"`
}

// APIError represents an error returned by the DTDC API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
