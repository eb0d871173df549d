package shiprocket

import (
	"context"
)

// APIClient defines the interface for Shiprocket API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// Login authenticates and returns a bearer token.
	Login(ctx context.Context, email, password string) (*LoginResponse, error)

	// CheckServiceability returns available couriers and charges for a route.
	CheckServiceability(ctx context.Context, token string, req *ServiceabilityRequest) (*ServiceabilityResponse, error)

	// CreateAdhocOrder creates an order and its shipment record.
	CreateAdhocOrder(ctx context.Context, token string, req *AdhocOrderRequest) (*AdhocOrderResponse, error)

	// AssignAWB requests a tracking number for a created shipment.
	AssignAWB(ctx context.Context, token string, shipmentID int64, courierID string) (*AssignAWBResponse, error)

	// Track retrieves tracking activities for an AWB.
	Track(ctx context.Context, token, awb string) (*TrackResponse, error)

	// CancelOrders cancels orders by Shiprocket order id.
	CancelOrders(ctx context.Context, token string, orderIDs []int64) error

	// GeneratePickup schedules pickup for shipments.
	GeneratePickup(ctx context.Context, token string, shipmentIDs []int64) (*GeneratePickupResponse, error)

	// GenerateLabel produces a label document for shipments.
	GenerateLabel(ctx context.Context, token string, shipmentIDs []int64) (*GenerateLabelResponse, error)

	// FetchLabelDocument downloads the label bytes from a generated label URL.
	FetchLabelDocument(ctx context.Context, url string) ([]byte, error)
}

// ============================================================================
// API Request/Response Types (match Shiprocket external API v1 structure)
// ============================================================================

// LoginResponse is the auth response carrying a JWT bearer token.
type LoginResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// ServiceabilityRequest asks for couriers serviceable on a route.
type ServiceabilityRequest struct {
	PickupPostcode   string  `json:"pickup_postcode"`
	DeliveryPostcode string  `json:"delivery_postcode"`
	Weight           float64 `json:"weight"`
	COD              int     `json:"cod"` // 1 = cash on delivery
	DeclaredValue    float64 `json:"declared_value,omitempty"`
}

// ServiceabilityResponse lists available courier companies.
type ServiceabilityResponse struct {
	Status int `json:"status"`
	Data   struct {
		AvailableCourierCompanies []AvailableCourier `json:"available_courier_companies"`
	} `json:"data"`
}

// AvailableCourier is one serviceable courier option.
type AvailableCourier struct {
	CourierCompanyID  int     `json:"courier_company_id"`
	CourierName       string  `json:"courier_name"`
	FreightCharge     float64 `json:"freight_charge"`
	CODCharges        float64 `json:"cod_charges"`
	OtherCharges      float64 `json:"other_charges"`
	Rate              float64 `json:"rate"`
	EstimatedDelivery string  `json:"etd"` // e.g. "Aug 30, 2026"
	EtdDays           int     `json:"estimated_delivery_days,string,omitempty"`
}

// OrderItem is a line item on an adhoc order.
type OrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// AdhocOrderRequest creates a quick (channel-less) order.
type AdhocOrderRequest struct {
	OrderID           string      `json:"order_id"`
	OrderDate         string      `json:"order_date"`
	PickupLocation    string      `json:"pickup_location"`
	ChannelID         string      `json:"channel_id,omitempty"`
	BillingName       string      `json:"billing_customer_name"`
	BillingAddress    string      `json:"billing_address"`
	BillingCity       string      `json:"billing_city"`
	BillingPincode    string      `json:"billing_pincode"`
	BillingState      string      `json:"billing_state"`
	BillingCountry    string      `json:"billing_country"`
	BillingEmail      string      `json:"billing_email"`
	BillingPhone      string      `json:"billing_phone"`
	ShippingIsBilling bool        `json:"shipping_is_billing"`
	OrderItems        []OrderItem `json:"order_items"`
	PaymentMethod     string      `json:"payment_method"` // "Prepaid" | "COD"
	SubTotal          float64     `json:"sub_total"`
	Length            float64     `json:"length"`
	Breadth           float64     `json:"breadth"`
	Height            float64     `json:"height"`
	Weight            float64     `json:"weight"`
}

// AdhocOrderResponse is the order-creation response.
type AdhocOrderResponse struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
}

// AssignAWBResponse is the AWB-assignment response. AWBAssignStatus 0 with a
// populated Error means the order exists but no courier could be assigned.
type AssignAWBResponse struct {
	AWBAssignStatus int `json:"awb_assign_status"`
	Response        struct {
		Data struct {
			AWBCode          string `json:"awb_code"`
			CourierCompanyID int    `json:"courier_company_id"`
			CourierName      string `json:"courier_name"`
		} `json:"data"`
	} `json:"response"`
	Message string `json:"message,omitempty"`
}

// TrackResponse carries tracking data for one AWB.
type TrackResponse struct {
	TrackingData struct {
		TrackStatus             int             `json:"track_status"`
		ShipmentTrack           []ShipmentTrack `json:"shipment_track"`
		ShipmentTrackActivities []TrackActivity `json:"shipment_track_activities"`
		ETD                     string          `json:"etd"`
	} `json:"tracking_data"`
}

// ShipmentTrack is the summary row of a tracked shipment.
type ShipmentTrack struct {
	ShipmentID      int64  `json:"shipment_id"`
	OrderID         int64  `json:"order_id"`
	AWBCode         string `json:"awb_code"`
	CurrentStatus   string `json:"current_status"`
	CurrentStatusID int    `json:"current_status_id"`
	Destination     string `json:"destination"`
	DeliveredDate   string `json:"delivered_date"`
	EDD             string `json:"edd"`
	CourierName     string `json:"courier_name"`
}

// TrackActivity is one scan event.
type TrackActivity struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	Activity string `json:"activity"`
	Location string `json:"location"`
	SRStatus int    `json:"sr-status,string"`
}

// GeneratePickupResponse confirms a pickup request.
type GeneratePickupResponse struct {
	PickupStatus int `json:"pickup_status"`
	Response     struct {
		PickupScheduledDate string `json:"pickup_scheduled_date"`
		PickupTokenNumber   string `json:"pickup_token_number"`
	} `json:"response"`
}

// GenerateLabelResponse carries the label document URL.
type GenerateLabelResponse struct {
	LabelCreated int    `json:"label_created"`
	LabelURL     string `json:"label_url"`
}

// APIError represents an error returned by the Shiprocket API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
