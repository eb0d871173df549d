// Package dtdc provides integration with the DTDC shipping API.
package dtdc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const courierType = courier.TypeDTDC

// Config holds DTDC configuration.
type Config struct {
	BaseURL string
	UseMock bool
}

// Client is the DTDC courier adapter. DTDC uses a static api-key, so there
// is no token lifecycle to manage.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new DTDC client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: 30 * time.Second,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new DTDC client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Type returns the courier type.
func (c *Client) Type() courier.CourierType {
	return courierType
}

// ValidateCredentials probes the API key with a serviceability call.
// DTDC has no dedicated auth endpoint; a 401 here means a bad key.
func (c *Client) ValidateCredentials(ctx context.Context, creds courier.Credentials) error {
	_, err := c.apiClient.CheckServiceability(ctx, creds.APIKey, &ServiceabilityRequest{
		OriginPincode:      "110001",
		DestinationPincode: "400001",
		Weight:             0.5,
	})
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// GetRates quotes DTDC service options for a route.
func (c *Client) GetRates(ctx context.Context, creds courier.Credentials, req *courier.RateRequest) ([]courier.Rate, error) {
	apiResp, err := c.apiClient.CheckServiceability(ctx, creds.APIKey, &ServiceabilityRequest{
		OriginPincode:      req.PickupPincode,
		DestinationPincode: req.DeliveryPincode,
		Weight:             req.WeightKG,
		COD:                req.COD,
		DeclaredValue:      req.DeclaredValue,
	})
	if err != nil {
		c.logger.Error("DTDC serviceability error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if !apiResp.Serviceable {
		return nil, nil
	}

	rates := make([]courier.Rate, 0, len(apiResp.Services))
	for _, svc := range apiResp.Services {
		var eta *time.Time
		if svc.TransitDays > 0 {
			t := time.Now().AddDate(0, 0, svc.TransitDays)
			eta = &t
		}
		rates = append(rates, courier.Rate{
			CourierType:   courierType,
			CourierID:     svc.ServiceCode,
			CourierName:   svc.ServiceName,
			FreightCharge: svc.FreightCharge,
			CODCharge:     svc.CODCharge,
			TotalCharge:   svc.TotalCharge,
			Currency:      "INR",
			EtaDays:       svc.TransitDays,
			EtaDate:       eta,
		})
	}
	return rates, nil
}

// CreateShipment books a consignment. DTDC assigns the consignment number
// atomically with booking, so there is no partial-success path here.
func (c *Client) CreateShipment(ctx context.Context, creds courier.Credentials, req *courier.ShipmentRequest) (*courier.ShipmentResponse, error) {
	c.logger.Info("Booking DTDC consignment", zap.String("order_ref", req.OrderRef))

	apiResp, err := c.apiClient.CreateConsignment(ctx, creds.APIKey, consignmentFromRequest(req))
	if err != nil {
		c.logger.Error("DTDC consignment error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if len(apiResp.Data) == 0 {
		return nil, courier.NewCourierError(courierType, "BOOKING_FAILED", "empty consignment response")
	}
	booked := apiResp.Data[0]
	if !booked.Success || booked.ReferenceNumber == "" {
		return nil, courier.NewCourierError(courierType, "BOOKING_FAILED", booked.Message)
	}

	return &courier.ShipmentResponse{
		ExternalOrderID: req.OrderRef,
		TrackingNumber:  booked.ReferenceNumber,
		CourierName:     "DTDC",
		Status:          courier.StatusAwbAssigned,
	}, nil
}

// GetTracking returns the normalized tracking state for a consignment number.
func (c *Client) GetTracking(ctx context.Context, creds courier.Credentials, awb string) (*courier.TrackingResponse, error) {
	apiResp, err := c.apiClient.Track(ctx, creds.APIKey, awb)
	if err != nil {
		c.logger.Error("DTDC tracking error", zap.Error(err), zap.String("awb", awb))
		return nil, wrapAPIError(err)
	}
	if apiResp.TrackHeader.ConsignmentNo == "" {
		return nil, courier.NewCourierError(courierType, "AWB_NOT_FOUND", "no consignment found for awb "+awb)
	}
	return trackResponseToCourier(apiResp), nil
}

// CancelShipment cancels a booked consignment.
func (c *Client) CancelShipment(ctx context.Context, creds courier.Credentials, awb string) error {
	if err := c.apiClient.CancelConsignment(ctx, creds.APIKey, awb); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// SchedulePickup books a pickup.
func (c *Client) SchedulePickup(ctx context.Context, creds courier.Credentials, req *courier.PickupRequest) (*courier.PickupResponse, error) {
	slot := req.Slot
	if slot == "" {
		slot = "15:00"
	}
	apiResp, err := c.apiClient.SchedulePickup(ctx, creds.APIKey, &PickupRequest{
		CustomerCode: creds.ClientName,
		PickupDate:   req.Date.Format("2006-01-02"),
		PickupTime:   slot,
		PieceCount:   req.ExpectedCount,
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if !apiResp.Success {
		return nil, courier.NewCourierError(courierType, "PICKUP_FAILED", "pickup was not accepted")
	}
	scheduled, _ := time.Parse("2006-01-02", apiResp.PickupDate)
	return &courier.PickupResponse{
		PickupID:     apiResp.PickupID,
		ScheduledFor: scheduled,
		Confirmed:    true,
	}, nil
}

// GetLabel returns the label document for a consignment number.
func (c *Client) GetLabel(ctx context.Context, creds courier.Credentials, awb string) ([]byte, error) {
	data, err := c.apiClient.GetShippingLabel(ctx, creds.APIKey, awb)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return data, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func consignmentFromRequest(req *courier.ShipmentRequest) *ConsignmentRequest {
	out := &ConsignmentRequest{
		CustomerReferenceNumber: req.OrderRef,
		ServiceTypeID:           "B2C PRIORITY",
		LoadType:                "NON-DOCUMENT",
		DeclaredValue:           req.DeclaredValue,
		Weight:                  req.WeightKG,
		Length:                  req.Dimensions.LengthCM,
		Width:                   req.Dimensions.WidthCM,
		Height:                  req.Dimensions.HeightCM,
		Description:             req.ProductDesc,
		OriginDetails: Address{
			Name:    req.Pickup.Name,
			Phone:   req.Pickup.Phone,
			Address: req.Pickup.Line1,
			City:    req.Pickup.City,
			State:   req.Pickup.State,
			Pincode: req.Pickup.Pincode,
		},
		DestinationDetails: Address{
			Name:    req.Consignee.Name,
			Phone:   req.Consignee.Phone,
			Address: strings.TrimSpace(req.Consignee.Line1 + " " + req.Consignee.Line2),
			City:    req.Consignee.City,
			State:   req.Consignee.State,
			Pincode: req.Consignee.Pincode,
		},
	}
	if req.PaymentMode == courier.PaymentCOD {
		out.CODAmount = req.CODAmount
		out.CODCollectionMode = "cash"
	}
	return out
}

func trackResponseToCourier(resp *TrackResponse) *courier.TrackingResponse {
	out := &courier.TrackingResponse{
		TrackingNumber: resp.TrackHeader.ConsignmentNo,
		CarrierCode:    resp.TrackHeader.StatusCode,
		Location:       resp.TrackHeader.Destination,
	}
	if mapped, ok := MapStatusCode(resp.TrackHeader.StatusCode); ok {
		out.CurrentStatus = mapped
	}
	if t, err := time.Parse("02012006", resp.TrackHeader.ExpectedDeliveryDate); err == nil {
		out.ExpectedDelivery = &t
	}

	events := make([]courier.TrackingEvent, 0, len(resp.TrackDetails))
	for _, detail := range resp.TrackDetails {
		tstamp := parseActionTimestamp(detail.ActionDate, detail.ActionTime)
		status := courier.ShipmentStatus("")
		if mapped, ok := MapStatusCode(detail.Code); ok {
			status = mapped
		}
		events = append(events, courier.TrackingEvent{
			Timestamp:   tstamp,
			Status:      status,
			CarrierCode: detail.Code,
			Location:    detail.Origin,
			Remarks:     detail.Remarks,
		})
		if status == courier.StatusDelivered {
			t := tstamp
			out.DeliveredAt = &t
		}
	}
	out.Events = events
	return out
}

// parseActionTimestamp combines DTDC's "02012006" date and "1504" time.
func parseActionTimestamp(date, clock string) time.Time {
	if len(clock) == 4 {
		if t, err := time.Parse("02012006 1504", date+" "+clock); err == nil {
			return t
		}
	}
	t, _ := time.Parse("02012006", date)
	return t
}

// wrapAPIError translates API failures into the shared error taxonomy.
func wrapAPIError(err error) error {
	if apiErr, ok := err.(*APIError); ok {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return courier.NewCourierError(courierType, "AUTH", apiErr.Message).
				WithStatusCode(apiErr.StatusCode).WithCause(courier.ErrInvalidCredentials)
		case apiErr.StatusCode >= 500:
			return courier.NewCourierError(courierType, apiErr.Code, apiErr.Message).
				WithStatusCode(apiErr.StatusCode).WithRetryable(true).WithCause(courier.ErrTransport)
		default:
			return courier.NewCourierError(courierType, apiErr.Code, apiErr.Message).
				WithStatusCode(apiErr.StatusCode)
		}
	}
	return courier.NewCourierError(courierType, "TRANSPORT", "request failed").
		WithRetryable(true).WithCause(fmt.Errorf("%w: %v", courier.ErrTransport, err))
}

// MapStatusCode translates DTDC action codes into the shared vocabulary.
// Unknown codes report ok=false and leave state unchanged.
func MapStatusCode(code string) (courier.ShipmentStatus, bool) {
	switch strings.ToUpper(code) {
	case "BKD":
		return courier.StatusAwbAssigned, true
	case "PKP":
		return courier.StatusPickedUp, true
	case "ITR":
		return courier.StatusInTransit, true
	case "OFD":
		return courier.StatusOutForDelivery, true
	case "DLV":
		return courier.StatusDelivered, true
	case "NDL":
		return courier.StatusNdrRaised, true
	case "RTO":
		return courier.StatusRtoInitiated, true
	case "RTD":
		return courier.StatusRtoDelivered, true
	case "CAN":
		return courier.StatusCancelled, true
	default:
		return "", false
	}
}

var _ courier.Courier = (*Client)(nil)
