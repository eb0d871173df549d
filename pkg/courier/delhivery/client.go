// Package delhivery provides integration with the Delhivery logistics API.
package delhivery

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

const courierType = courier.TypeDelhivery

// Config holds Delhivery configuration.
type Config struct {
	BaseURL string
	UseMock bool
}

// Client is the Delhivery courier adapter. Delhivery uses a static API
// token per account, so no token cache is involved.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Delhivery client.
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

// NewWithAPIClient creates a new Delhivery client with a custom API client.
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

// ValidateCredentials verifies the API token with a lightweight pincode call.
func (c *Client) ValidateCredentials(ctx context.Context, creds courier.Credentials) error {
	_, err := c.apiClient.CheckPincode(ctx, creds.APIKey, "110001")
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// GetRates checks pincode serviceability and quotes the surface freight
// charge. An unserviceable destination yields an empty result, not an error.
func (c *Client) GetRates(ctx context.Context, creds courier.Credentials, req *courier.RateRequest) ([]courier.Rate, error) {
	pin, err := c.apiClient.CheckPincode(ctx, creds.APIKey, req.DeliveryPincode)
	if err != nil {
		c.logger.Error("Delhivery pincode check error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if !pincodeServiceable(pin, req.COD) {
		return nil, nil
	}

	payment := "Pre-paid"
	if req.COD {
		payment = "COD"
	}
	charges, err := c.apiClient.GetShippingCharges(ctx, creds.APIKey, &ChargesRequest{
		OriginPin:      req.PickupPincode,
		DestinationPin: req.DeliveryPincode,
		WeightGrams:    int(req.WeightKG * 1000),
		PaymentType:    payment,
		DeclaredValue:  req.DeclaredValue,
	})
	if err != nil {
		c.logger.Error("Delhivery charges error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if len(charges.Charges) == 0 {
		return nil, nil
	}

	ch := charges.Charges[0]
	return []courier.Rate{
		{
			CourierType:   courierType,
			CourierName:   "Delhivery Surface",
			CourierID:     "surface",
			FreightCharge: ch.ChargeDL,
			CODCharge:     ch.ChargeCOD,
			OtherCharges:  ch.TaxAmount,
			TotalCharge:   ch.TotalAmount,
			Currency:      "INR",
			EtaDays:       4,
		},
	}, nil
}

// CreateShipment manifests a package. Delhivery assigns the waybill in the
// same call; a manifest accepted without a waybill is a partial success.
func (c *Client) CreateShipment(ctx context.Context, creds courier.Credentials, req *courier.ShipmentRequest) (*courier.ShipmentResponse, error) {
	c.logger.Info("Manifesting Delhivery package",
		zap.String("order_ref", req.OrderRef),
		zap.String("pickup_location", req.PickupLocation),
	)

	apiReq := manifestFromRequest(req)
	apiResp, err := c.apiClient.CreatePackage(ctx, creds.APIKey, apiReq)
	if err != nil {
		c.logger.Error("Delhivery manifest error", zap.Error(err))
		return nil, wrapAPIError(err)
	}
	if len(apiResp.Packages) == 0 {
		msg := apiResp.RMK
		if msg == "" {
			msg = "manifest returned no packages"
		}
		return nil, courier.NewCourierError(courierType, "MANIFEST_FAILED", msg)
	}

	pkg := apiResp.Packages[0]
	resp := &courier.ShipmentResponse{
		ExternalOrderID: pkg.RefNum,
		CourierName:     "Delhivery",
		Status:          courier.StatusCreated,
	}
	if pkg.Status != "Success" || pkg.Waybill == "" {
		remarks := pkg.Remarks
		if remarks == "" {
			remarks = "waybill not assigned"
		}
		resp.AWBError = remarks
		return resp, nil
	}
	resp.TrackingNumber = pkg.Waybill
	resp.Status = courier.StatusAwbAssigned
	return resp, nil
}

// GetTracking returns the normalized tracking state for a waybill.
func (c *Client) GetTracking(ctx context.Context, creds courier.Credentials, awb string) (*courier.TrackingResponse, error) {
	apiResp, err := c.apiClient.Track(ctx, creds.APIKey, awb)
	if err != nil {
		c.logger.Error("Delhivery tracking error", zap.Error(err), zap.String("awb", awb))
		return nil, wrapAPIError(err)
	}
	if len(apiResp.ShipmentData) == 0 {
		return nil, courier.NewCourierError(courierType, "AWB_NOT_FOUND", "no shipment found for waybill "+awb)
	}
	return shipmentDataToCourier(&apiResp.ShipmentData[0].Shipment), nil
}

// CancelShipment cancels a manifested package.
func (c *Client) CancelShipment(ctx context.Context, creds courier.Credentials, awb string) error {
	if err := c.apiClient.CancelPackage(ctx, creds.APIKey, awb); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// SchedulePickup books a pickup at a registered location.
func (c *Client) SchedulePickup(ctx context.Context, creds courier.Credentials, req *courier.PickupRequest) (*courier.PickupResponse, error) {
	slot := req.Slot
	if slot == "" {
		slot = "11:00:00"
	}
	apiResp, err := c.apiClient.CreatePickup(ctx, creds.APIKey, &PickupRequest{
		PickupLocation: req.PickupLocation,
		PickupDate:     req.Date.Format("2006-01-02"),
		PickupTime:     slot,
		ExpectedCount:  max(req.ExpectedCount, 1),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	scheduled, _ := time.Parse("2006-01-02", apiResp.PickupDate)
	return &courier.PickupResponse{
		PickupID:     fmt.Sprintf("%d", apiResp.PickupID),
		ScheduledFor: scheduled,
		Confirmed:    apiResp.PickupID != 0,
	}, nil
}

// GetLabel returns the packing slip for a waybill.
func (c *Client) GetLabel(ctx context.Context, creds courier.Credentials, awb string) ([]byte, error) {
	data, err := c.apiClient.GetPackingSlip(ctx, creds.APIKey, awb)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return data, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func pincodeServiceable(resp *PincodeResponse, cod bool) bool {
	if len(resp.DeliveryCodes) == 0 {
		return false
	}
	pc := resp.DeliveryCodes[0].PostalCode
	if cod {
		return pc.COD == "Y"
	}
	return pc.Prepaid == "Y"
}

func manifestFromRequest(req *courier.ShipmentRequest) *ManifestRequest {
	payment := "Prepaid"
	if req.PaymentMode == courier.PaymentCOD {
		payment = "COD"
	}
	out := &ManifestRequest{
		Shipments: []ManifestShipment{
			{
				Name:           req.Consignee.Name,
				Add:            strings.TrimSpace(req.Consignee.Line1 + " " + req.Consignee.Line2),
				City:           req.Consignee.City,
				State:          req.Consignee.State,
				Pin:            req.Consignee.Pincode,
				Country:        orDefault(req.Consignee.Country, "India"),
				Phone:          req.Consignee.Phone,
				OrderID:        req.OrderRef,
				PaymentMode:    payment,
				CODAmount:      req.CODAmount,
				TotalAmount:    req.DeclaredValue,
				Weight:         req.WeightKG * 1000,
				ShipmentLength: req.Dimensions.LengthCM,
				ShipmentWidth:  req.Dimensions.WidthCM,
				ShipmentHeight: req.Dimensions.HeightCM,
				ProductsDesc:   req.ProductDesc,
			},
		},
	}
	out.PickupLocation.Name = req.PickupLocation
	return out
}

func shipmentDataToCourier(sd *ShipmentData) *courier.TrackingResponse {
	out := &courier.TrackingResponse{
		TrackingNumber: sd.AWB,
		CarrierCode:    sd.Status.Status,
		Location:       sd.Status.StatusLocation,
	}
	if mapped, ok := MapStatus(sd.Status.Status, sd.Status.StatusType); ok {
		out.CurrentStatus = mapped
	}
	if t, err := parseScanTime(sd.ExpectedDeliveryDate); err == nil {
		out.ExpectedDelivery = &t
	}

	events := make([]courier.TrackingEvent, 0, len(sd.Scans))
	for _, scan := range sd.Scans {
		detail := scan.ScanDetail
		ts, _ := parseScanTime(detail.StatusDateTime)
		status := courier.ShipmentStatus("")
		if mapped, ok := MapStatus(detail.Status, detail.StatusType); ok {
			status = mapped
		}
		events = append(events, courier.TrackingEvent{
			Timestamp:   ts,
			Status:      status,
			CarrierCode: detail.Status,
			Location:    detail.StatusLocation,
			Remarks:     detail.Instructions,
		})
		if status == courier.StatusDelivered {
			t := ts
			out.DeliveredAt = &t
		}
	}
	out.Events = events
	return out
}

func parseScanTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable scan time %q", s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func max(a, b int) int {
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

// MapStatus translates Delhivery's free-text status vocabulary, with the
// scan StatusType (UD forward, DL delivered, RT return) breaking ties.
// Unknown statuses report ok=false and leave state unchanged.
func MapStatus(status, statusType string) (courier.ShipmentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "manifested", "not picked":
		return courier.StatusAwbAssigned, true
	case "picked", "picked up":
		return courier.StatusPickedUp, true
	case "in transit":
		if strings.EqualFold(statusType, "RT") {
			return courier.StatusRtoInitiated, true
		}
		return courier.StatusInTransit, true
	case "dispatched", "out for delivery":
		return courier.StatusOutForDelivery, true
	case "delivered":
		if strings.EqualFold(statusType, "RT") {
			return courier.StatusRtoDelivered, true
		}
		return courier.StatusDelivered, true
	case "pending":
		// A pending scan on a forward shipment is a failed delivery attempt.
		return courier.StatusNdrRaised, true
	case "rto", "rto initiated", "returned":
		return courier.StatusRtoInitiated, true
	case "canceled", "cancelled":
		return courier.StatusCancelled, true
	default:
		switch strings.ToUpper(statusType) {
		case "DL":
			return courier.StatusDelivered, true
		case "RT":
			return courier.StatusRtoInitiated, true
		}
		return "", false
	}
}

var _ courier.Courier = (*Client)(nil)
