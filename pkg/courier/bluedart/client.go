// Package bluedart provides integration with the BlueDart shipping API.
package bluedart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/credstore"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const courierType = courier.TypeBlueDart

// BlueDart JWTs expire quickly; the fallback applies when the token body
// carries no exp claim.
const tokenFallbackTTL = 12 * time.Hour

// Config holds BlueDart configuration.
type Config struct {
	BaseURL string
	UseMock bool
}

// Client is the BlueDart courier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	tokens    *credstore.TokenCache
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new BlueDart client.
func New(cfg Config, tokens *credstore.TokenCache, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: 30 * time.Second,
		})
	}
	return NewWithAPIClient(cfg, apiClient, tokens, logger, tracer)
}

// NewWithAPIClient creates a new BlueDart client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, tokens *credstore.TokenCache, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		tokens:    tokens,
		logger:    logger,
		tracer:    tracer,
	}
}

// Type returns the courier type.
func (c *Client) Type() courier.CourierType {
	return courierType
}

func (c *Client) token(ctx context.Context, creds courier.Credentials) (string, error) {
	return c.tokens.Token(ctx, string(courierType)+":"+creds.CacheKey, func(ctx context.Context) (string, time.Time, error) {
		resp, err := c.apiClient.GenerateToken(ctx, creds.LicenseKey, creds.LoginID)
		if err != nil {
			return "", time.Time{}, wrapAPIError(err)
		}
		return resp.JWTToken, credstore.ExpiryFromJWT(resp.JWTToken, tokenFallbackTTL), nil
	})
}

// ValidateCredentials authenticates against BlueDart.
func (c *Client) ValidateCredentials(ctx context.Context, creds courier.Credentials) error {
	_, err := c.apiClient.GenerateToken(ctx, creds.LicenseKey, creds.LoginID)
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// GetRates quotes the tariff and transit time for a route.
func (c *Client) GetRates(ctx context.Context, creds courier.Credentials, req *courier.RateRequest) ([]courier.Rate, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	apiReq := &RateRequest{
		OriginPincode:      req.PickupPincode,
		DestinationPincode: req.DeliveryPincode,
		Weight:             req.WeightKG,
		ProductCode:        "E", // surface
		DeclaredValue:      req.DeclaredValue,
	}
	if req.COD {
		apiReq.SubProductCode = "C"
	}
	apiResp, err := c.apiClient.GetRateAndTransit(ctx, token, apiReq)
	if err != nil {
		c.logger.Error("BlueDart rate error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if apiResp.IsError {
		// An error block with no tariff means the route is not serviceable.
		return nil, nil
	}

	var eta *time.Time
	if t, err := time.Parse("02-Jan-2006", apiResp.ExpectedDate); err == nil {
		eta = &t
	}
	return []courier.Rate{
		{
			CourierType:   courierType,
			CourierName:   "BlueDart Surface",
			CourierID:     "E",
			FreightCharge: apiResp.FreightCharge,
			CODCharge:     apiResp.CODCharge,
			TotalCharge:   apiResp.TotalAmount,
			Currency:      "INR",
			EtaDays:       apiResp.ExpectedDays,
			EtaDate:       eta,
		},
	}, nil
}

// CreateShipment generates a waybill. BlueDart assigns the AWB atomically
// with shipment creation, so there is no partial-success path here.
func (c *Client) CreateShipment(ctx context.Context, creds courier.Credentials, req *courier.ShipmentRequest) (*courier.ShipmentResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Generating BlueDart waybill", zap.String("order_ref", req.OrderRef))

	apiResp, err := c.apiClient.GenerateWaybill(ctx, token, waybillFromRequest(req))
	if err != nil {
		c.logger.Error("BlueDart waybill error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if apiResp.IsError || apiResp.AWBNo == "" {
		return nil, courier.NewCourierError(courierType, "WAYBILL_FAILED", strings.Join(apiResp.Status, "; "))
	}

	return &courier.ShipmentResponse{
		ExternalOrderID: req.OrderRef,
		TrackingNumber:  apiResp.AWBNo,
		CourierName:     "BlueDart",
		Status:          courier.StatusAwbAssigned,
	}, nil
}

// GetTracking returns the normalized tracking state for an AWB number.
func (c *Client) GetTracking(ctx context.Context, creds courier.Credentials, awb string) (*courier.TrackingResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	apiResp, err := c.apiClient.Track(ctx, token, awb)
	if err != nil {
		c.logger.Error("BlueDart tracking error", zap.Error(err), zap.String("awb", awb))
		return nil, wrapAPIError(err)
	}
	if len(apiResp.Shipments) == 0 {
		return nil, courier.NewCourierError(courierType, "AWB_NOT_FOUND", "no shipment found for awb "+awb)
	}
	return trackedShipmentToCourier(&apiResp.Shipments[0]), nil
}

// CancelShipment voids a generated waybill.
func (c *Client) CancelShipment(ctx context.Context, creds courier.Credentials, awb string) error {
	token, err := c.token(ctx, creds)
	if err != nil {
		return err
	}
	if err := c.apiClient.CancelWaybill(ctx, token, awb); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// SchedulePickup books a pickup.
func (c *Client) SchedulePickup(ctx context.Context, creds courier.Credentials, req *courier.PickupRequest) (*courier.PickupResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	slot := req.Slot
	if slot == "" {
		slot = "1600"
	}
	apiResp, err := c.apiClient.RegisterPickup(ctx, token, &PickupRegistrationRequest{
		AreaCode:           req.PickupLocation,
		ShipmentPickupDate: req.Date.Format("2006-01-02"),
		ShipmentPickupTime: slot,
		NumberofPieces:     maxInt(req.ExpectedCount, 1),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if apiResp.IsError {
		return nil, courier.NewCourierError(courierType, "PICKUP_FAILED", strings.Join(apiResp.Status, "; "))
	}
	scheduled, _ := time.Parse("2006-01-02", apiResp.PickupDate)
	return &courier.PickupResponse{
		PickupID:     apiResp.TokenNumber,
		ScheduledFor: scheduled,
		Confirmed:    true,
	}, nil
}

// GetLabel returns the waybill print document for an AWB number.
func (c *Client) GetLabel(ctx context.Context, creds courier.Credentials, awb string) ([]byte, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}
	data, err := c.apiClient.GetWaybillPrint(ctx, token, awb)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return data, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func waybillFromRequest(req *courier.ShipmentRequest) *WaybillRequest {
	out := &WaybillRequest{}
	out.Shipper.CustomerName = req.Pickup.Name
	out.Shipper.CustomerAddress1 = req.Pickup.Line1
	out.Shipper.CustomerPincode = req.Pickup.Pincode
	out.Shipper.CustomerMobile = req.Pickup.Phone
	out.Shipper.OriginArea = req.PickupLocation

	out.Consignee.ConsigneeName = req.Consignee.Name
	out.Consignee.ConsigneeAddress1 = req.Consignee.Line1
	out.Consignee.ConsigneeAddress2 = req.Consignee.Line2
	out.Consignee.ConsigneePincode = req.Consignee.Pincode
	out.Consignee.ConsigneeMobile = req.Consignee.Phone

	out.Services.ProductCode = "E"
	if req.PaymentMode == courier.PaymentCOD {
		out.Services.SubProductCode = "C"
		out.Services.CollectableAmount = req.CODAmount
	}
	out.Services.ActualWeight = req.WeightKG
	out.Services.DeclaredValue = req.DeclaredValue
	out.Services.CreditReferenceNo = req.OrderRef
	out.Services.PieceCount = 1
	if req.Dimensions.LengthCM > 0 {
		out.Services.Dimensions = append(out.Services.Dimensions, struct {
			Length  float64 `json:"Length"`
			Breadth float64 `json:"Breadth"`
			Height  float64 `json:"Height"`
			Count   int     `json:"Count"`
		}{req.Dimensions.LengthCM, req.Dimensions.WidthCM, req.Dimensions.HeightCM, 1})
	}
	return out
}

func trackedShipmentToCourier(ts *TrackedShipment) *courier.TrackingResponse {
	out := &courier.TrackingResponse{
		TrackingNumber: ts.WaybillNo,
		CarrierCode:    ts.StatusCode,
		Location:       ts.Destination,
	}
	if mapped, ok := MapStatusCode(ts.StatusCode); ok {
		out.CurrentStatus = mapped
	}
	if t, err := time.Parse("02-Jan-2006", ts.ExpectedDeliveryDate); err == nil {
		out.ExpectedDelivery = &t
	}

	events := make([]courier.TrackingEvent, 0, len(ts.Scans))
	for _, scan := range ts.Scans {
		tstamp := parseScanTimestamp(scan.ScanDate, scan.ScanTime)
		status := courier.ShipmentStatus("")
		if mapped, ok := MapStatusCode(scan.ScanCode); ok {
			status = mapped
		}
		events = append(events, courier.TrackingEvent{
			Timestamp:   tstamp,
			Status:      status,
			CarrierCode: scan.ScanCode,
			Location:    scan.ScannedLocation,
			Remarks:     scan.Scan,
		})
		if status == courier.StatusDelivered {
			t := tstamp
			out.DeliveredAt = &t
		}
	}
	out.Events = events
	return out
}

// parseScanTimestamp combines BlueDart's "02-Jan-2006" date and "1504" time.
func parseScanTimestamp(date, clock string) time.Time {
	if len(clock) == 4 {
		if t, err := time.Parse("02-Jan-2006 1504", date+" "+clock); err == nil {
			return t
		}
	}
	t, _ := time.Parse("02-Jan-2006", date)
	return t
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
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

// MapStatusCode translates BlueDart two-letter status codes into the shared
// vocabulary. Unknown codes report ok=false and leave state unchanged.
func MapStatusCode(code string) (courier.ShipmentStatus, bool) {
	switch strings.ToUpper(code) {
	case "PU":
		return courier.StatusPickedUp, true
	case "IT":
		return courier.StatusInTransit, true
	case "OD":
		return courier.StatusOutForDelivery, true
	case "DL":
		return courier.StatusDelivered, true
	case "UD":
		return courier.StatusNdrRaised, true
	case "RT":
		return courier.StatusRtoInitiated, true
	case "RD":
		return courier.StatusRtoDelivered, true
	case "CA":
		return courier.StatusCancelled, true
	default:
		return "", false
	}
}

var _ courier.Courier = (*Client)(nil)
