package delhivery

import (
	"context"
)

// APIClient defines the interface for Delhivery API operations.
type APIClient interface {
	// CheckPincode returns serviceability data for a delivery pincode.
	CheckPincode(ctx context.Context, token, pincode string) (*PincodeResponse, error)

	// GetShippingCharges quotes the freight charge for a route and weight.
	GetShippingCharges(ctx context.Context, token string, req *ChargesRequest) (*ChargesResponse, error)

	// CreatePackage manifests a shipment and returns its waybill.
	CreatePackage(ctx context.Context, token string, req *ManifestRequest) (*ManifestResponse, error)

	// Track returns the shipment status and scan history for a waybill.
	Track(ctx context.Context, token, waybill string) (*TrackResponse, error)

	// CancelPackage cancels a manifested shipment.
	CancelPackage(ctx context.Context, token, waybill string) error

	// CreatePickup books a pickup at a registered location.
	CreatePickup(ctx context.Context, token string, req *PickupRequest) (*PickupResponse, error)

	// GetPackingSlip returns the label document for a waybill.
	GetPackingSlip(ctx context.Context, token, waybill string) ([]byte, error)
}

// ============================================================================
// API Request/Response Types (match Delhivery REST API structure)
// ============================================================================

// PincodeResponse lists serviceability entries for a pincode.
type PincodeResponse struct {
	DeliveryCodes []struct {
		PostalCode struct {
			Pin      int    `json:"pin"`
			Prepaid  string `json:"pre_paid"` // "Y"/"N"
			COD      string `json:"cod"`
			Pickup   string `json:"pickup"`
			District string `json:"district"`
		} `json:"postal_code"`
	} `json:"delivery_codes"`
}

// ChargesRequest quotes freight for a route.
type ChargesRequest struct {
	OriginPin      string
	DestinationPin string
	WeightGrams    int
	PaymentType    string // "COD" | "Pre-paid"
	DeclaredValue  float64
}

// ChargesResponse is the freight quote.
type ChargesResponse struct {
	Charges []struct {
		TotalAmount float64 `json:"total_amount"`
		ChargeDL    float64 `json:"charge_DL"`
		ChargeCOD   float64 `json:"charge_COD"`
		TaxAmount   float64 `json:"tax_data_total"`
	} `json:"charges"`
}

// ManifestShipment is one shipment row in a manifest request.
type ManifestShipment struct {
	Name           string  `json:"name"`
	Add            string  `json:"add"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Pin            string  `json:"pin"`
	Country        string  `json:"country"`
	Phone          string  `json:"phone"`
	OrderID        string  `json:"order"`
	PaymentMode    string  `json:"payment_mode"` // "COD" | "Prepaid"
	CODAmount      float64 `json:"cod_amount,omitempty"`
	TotalAmount    float64 `json:"total_amount,omitempty"`
	Weight         float64 `json:"weight"` // grams
	ShipmentWidth  float64 `json:"shipment_width,omitempty"`
	ShipmentHeight float64 `json:"shipment_height,omitempty"`
	ShipmentLength float64 `json:"shipment_length,omitempty"`
	ProductsDesc   string  `json:"products_desc,omitempty"`
}

// ManifestRequest creates packages against a pickup location.
type ManifestRequest struct {
	Shipments      []ManifestShipment `json:"shipments"`
	PickupLocation struct {
		Name string `json:"name"`
	} `json:"pickup_location"`
}

// ManifestResponse reports per-package manifest outcomes.
type ManifestResponse struct {
	Success  bool `json:"success"`
	Packages []struct {
		Waybill string `json:"waybill"`
		RefNum  string `json:"refnum"`
		Status  string `json:"status"` // "Success" | "Fail"
		Remarks string `json:"remarks"`
	} `json:"packages"`
	RMK string `json:"rmk,omitempty"`
}

// TrackResponse wraps Delhivery's shipment tracking payload.
type TrackResponse struct {
	ShipmentData []struct {
		Shipment ShipmentData `json:"Shipment"`
	} `json:"ShipmentData"`
}

// ShipmentData is one tracked shipment.
type ShipmentData struct {
	AWB                  string     `json:"AWB"`
	ReferenceNo          string     `json:"ReferenceNo"`
	Status               ScanStatus `json:"Status"`
	ExpectedDeliveryDate string     `json:"ExpectedDeliveryDate"`
	Scans                []struct {
		ScanDetail ScanStatus `json:"ScanDetail"`
	} `json:"Scans"`
}

// ScanStatus is a Delhivery status block.
type ScanStatus struct {
	Status         string `json:"Status"`
	StatusDateTime string `json:"StatusDateTime"`
	StatusType     string `json:"StatusType"` // UD, DL, RT, PP
	StatusLocation string `json:"StatusLocation"`
	Instructions   string `json:"Instructions"`
}

// PickupRequest books a pickup slot.
type PickupRequest struct {
	PickupLocation string `json:"pickup_location"`
	PickupDate     string `json:"pickup_date"` // YYYY-MM-DD
	PickupTime     string `json:"pickup_time"` // HH:MM:SS
	ExpectedCount  int    `json:"expected_package_count"`
}

// PickupResponse confirms a booked pickup.
type PickupResponse struct {
	PickupID   int64  `json:"pickup_id"`
	PickupDate string `json:"pickup_date"`
	Incoming   int    `json:"incoming_center_name,omitempty"`
}

// APIError represents an error returned by the Delhivery API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
