package bluedart

import (
	"context"
)

// APIClient defines the interface for BlueDart API operations.
type APIClient interface {
	// GenerateToken exchanges the license key and login id for a short-lived JWT.
	GenerateToken(ctx context.Context, licenseKey, loginID string) (*TokenResponse, error)

	// GetRateAndTransit quotes the tariff and transit time for a route.
	GetRateAndTransit(ctx context.Context, token string, req *RateRequest) (*RateResponse, error)

	// GenerateWaybill creates a shipment and assigns the AWB number.
	GenerateWaybill(ctx context.Context, token string, req *WaybillRequest) (*WaybillResponse, error)

	// Track returns shipment status and scan history for an AWB number.
	Track(ctx context.Context, token, awbNo string) (*TrackResponse, error)

	// CancelWaybill voids a generated waybill.
	CancelWaybill(ctx context.Context, token, awbNo string) error

	// RegisterPickup books a pickup.
	RegisterPickup(ctx context.Context, token string, req *PickupRegistrationRequest) (*PickupRegistrationResponse, error)

	// GetWaybillPrint returns the label document for an AWB number.
	GetWaybillPrint(ctx context.Context, token, awbNo string) ([]byte, error)
}

// ============================================================================
// API Request/Response Types (match BlueDart REST API structure)
// ============================================================================

// TokenResponse carries the generated JWT.
type TokenResponse struct {
	JWTToken string `json:"JWTToken"`
}

// RateRequest quotes a route.
type RateRequest struct {
	OriginPincode      string  `json:"pOriginPincode"`
	DestinationPincode string  `json:"pDestinationPincode"`
	Weight             float64 `json:"pWeight"`
	ProductCode        string  `json:"pProductCode"`              // "A" air, "E" surface
	SubProductCode     string  `json:"pSubProductCode,omitempty"` // "C" for COD
	DeclaredValue      float64 `json:"pDeclaredValue,omitempty"`
}

// RateResponse is the tariff quote.
type RateResponse struct {
	IsError       bool     `json:"IsError"`
	Status        []string `json:"Status,omitempty"`
	TotalAmount   float64  `json:"TotalAmount"`
	FreightCharge float64  `json:"FreightCharge"`
	CODCharge     float64  `json:"CODCharge"`
	ExpectedDays  int      `json:"ExpectedTransitDays"`
	ExpectedDate  string   `json:"ExpectedDateDelivery"` // "02-Jan-2006"
}

// WaybillRequest creates a shipment.
type WaybillRequest struct {
	Shipper struct {
		CustomerName     string `json:"CustomerName"`
		CustomerAddress1 string `json:"CustomerAddress1"`
		CustomerPincode  string `json:"CustomerPincode"`
		CustomerMobile   string `json:"CustomerMobile"`
		OriginArea       string `json:"OriginArea"`
	} `json:"Shipper"`
	Consignee struct {
		ConsigneeName     string `json:"ConsigneeName"`
		ConsigneeAddress1 string `json:"ConsigneeAddress1"`
		ConsigneeAddress2 string `json:"ConsigneeAddress2,omitempty"`
		ConsigneePincode  string `json:"ConsigneePincode"`
		ConsigneeMobile   string `json:"ConsigneeMobile"`
	} `json:"Consignee"`
	Services struct {
		ProductCode       string  `json:"ProductCode"`
		SubProductCode    string  `json:"SubProductCode,omitempty"`
		ActualWeight      float64 `json:"ActualWeight"`
		CollectableAmount float64 `json:"CollectableAmount,omitempty"`
		DeclaredValue     float64 `json:"DeclaredValue"`
		CreditReferenceNo string  `json:"CreditReferenceNo"`
		PieceCount        int     `json:"PieceCount"`
		Dimensions        []struct {
			Length  float64 `json:"Length"`
			Breadth float64 `json:"Breadth"`
			Height  float64 `json:"Height"`
			Count   int     `json:"Count"`
		} `json:"Dimensions,omitempty"`
	} `json:"Services"`
}

// WaybillResponse is the shipment-creation response.
type WaybillResponse struct {
	IsError             bool     `json:"IsError"`
	Status              []string `json:"Status,omitempty"`
	AWBNo               string   `json:"AWBNo"`
	DestinationArea     string   `json:"DestinationArea"`
	DestinationLocation string   `json:"DestinationLocation"`
	AWBPrintContent     []byte   `json:"AWBPrintContent,omitempty"` // base64 PDF
}

// TrackResponse carries tracking data for one AWB.
type TrackResponse struct {
	Shipments []TrackedShipment `json:"Shipments"`
}

// TrackedShipment is the tracked state of one shipment.
type TrackedShipment struct {
	WaybillNo            string      `json:"WaybillNo"`
	StatusCode           string      `json:"StatusType"` // PU, IT, OD, DL, UD, RT, RD, CA
	Status               string      `json:"Status"`
	StatusDate           string      `json:"StatusDate"` // "02-Jan-2006"
	StatusTime           string      `json:"StatusTime"` // "1504"
	Origin               string      `json:"Origin"`
	Destination          string      `json:"Destination"`
	ExpectedDeliveryDate string      `json:"ExpectedDeliveryDate"`
	Scans                []TrackScan `json:"Scans"`
}

// TrackScan is one scan event.
type TrackScan struct {
	ScanCode        string `json:"ScanType"`
	Scan            string `json:"Scan"`
	ScanDate        string `json:"ScanDate"`
	ScanTime        string `json:"ScanTime"`
	ScannedLocation string `json:"ScannedLocation"`
}

// PickupRegistrationRequest books a pickup.
type PickupRegistrationRequest struct {
	AreaCode           string `json:"AreaCode"`
	ContactPersonName  string `json:"ContactPersonName"`
	CustomerAddress1   string `json:"CustomerAddress1"`
	CustomerPincode    string `json:"CustomerPincode"`
	MobileTelNo        string `json:"MobileTelNo"`
	ShipmentPickupDate string `json:"ShipmentPickupDate"` // "/Date(ms)/" or "2006-01-02"
	ShipmentPickupTime string `json:"ShipmentPickupTime"` // "1600"
	NumberofPieces     int    `json:"NumberofPieces"`
}

// PickupRegistrationResponse confirms a booked pickup.
type PickupRegistrationResponse struct {
	IsError     bool     `json:"IsError"`
	Status      []string `json:"Status,omitempty"`
	TokenNumber string   `json:"TokenNumber"`
	PickupDate  string   `json:"PickupDate"`
}

// APIError represents an error returned by the BlueDart API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
