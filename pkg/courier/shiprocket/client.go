// Package shiprocket provides integration with the Shiprocket aggregator API.
package shiprocket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/credstore"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const courierType = courier.TypeShiprocket

// Shiprocket bearer tokens are JWTs valid for ten days; the fallback only
// applies when the token is not parseable.
const tokenFallbackTTL = 24 * time.Hour

// Config holds Shiprocket configuration.
type Config struct {
	BaseURL string
	UseMock bool
}

// Client is the Shiprocket courier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	tokens    *credstore.TokenCache
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Shiprocket client.
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

// NewWithAPIClient creates a new Shiprocket client with a custom API client.
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

// token returns a cached bearer token for the account, logging in when the
// cache holds none. Concurrent refreshes for one account are coalesced by
// the token cache.
func (c *Client) token(ctx context.Context, creds courier.Credentials) (string, error) {
	return c.tokens.Token(ctx, string(courierType)+":"+creds.CacheKey, func(ctx context.Context) (string, time.Time, error) {
		resp, err := c.apiClient.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return "", time.Time{}, wrapAPIError(err)
		}
		return resp.Token, credstore.ExpiryFromJWT(resp.Token, tokenFallbackTTL), nil
	})
}

// ValidateCredentials authenticates against Shiprocket.
func (c *Client) ValidateCredentials(ctx context.Context, creds courier.Credentials) error {
	_, err := c.apiClient.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// GetRates returns serviceable courier options sorted by total charge.
func (c *Client) GetRates(ctx context.Context, creds courier.Credentials, req *courier.RateRequest) ([]courier.Rate, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	cod := 0
	if req.COD {
		cod = 1
	}
	apiResp, err := c.apiClient.CheckServiceability(ctx, token, &ServiceabilityRequest{
		PickupPostcode:   req.PickupPincode,
		DeliveryPostcode: req.DeliveryPincode,
		Weight:           req.WeightKG,
		COD:              cod,
		DeclaredValue:    req.DeclaredValue,
	})
	if err != nil {
		c.logger.Error("Shiprocket serviceability error", zap.Error(err))
		return nil, wrapAPIError(err)
	}

	rates := make([]courier.Rate, 0, len(apiResp.Data.AvailableCourierCompanies))
	for _, ac := range apiResp.Data.AvailableCourierCompanies {
		var eta *time.Time
		if t, err := time.Parse("Jan 2, 2006", ac.EstimatedDelivery); err == nil {
			eta = &t
		}
		rates = append(rates, courier.Rate{
			CourierType:   courierType,
			CourierID:     strconv.Itoa(ac.CourierCompanyID),
			CourierName:   ac.CourierName,
			FreightCharge: ac.FreightCharge,
			CODCharge:     ac.CODCharges,
			OtherCharges:  ac.OtherCharges,
			TotalCharge:   ac.Rate,
			Currency:      "INR",
			EtaDays:       ac.EtdDays,
			EtaDate:       eta,
		})
	}
	return rates, nil
}

// CreateShipment creates an adhoc order and assigns an AWB. When order
// creation succeeds but AWB assignment fails (no serviceable courier,
// insufficient wallet balance) the response is a partial success carrying
// the external order id and an AWB error instead of a tracking number.
func (c *Client) CreateShipment(ctx context.Context, creds courier.Credentials, req *courier.ShipmentRequest) (*courier.ShipmentResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Creating Shiprocket order",
		zap.String("order_ref", req.OrderRef),
		zap.String("pickup_location", req.PickupLocation),
	)

	orderResp, err := c.apiClient.CreateAdhocOrder(ctx, token, adhocOrderFromRequest(req))
	if err != nil {
		c.logger.Error("Shiprocket order creation error", zap.Error(err))
		return nil, wrapAPIError(err)
	}

	resp := &courier.ShipmentResponse{
		ExternalOrderID:    strconv.FormatInt(orderResp.OrderID, 10),
		ExternalShipmentID: strconv.FormatInt(orderResp.ShipmentID, 10),
		Status:             courier.StatusCreated,
	}

	awbResp, err := c.apiClient.AssignAWB(ctx, token, orderResp.ShipmentID, req.CourierID)
	if err != nil {
		// Order exists; surface the assignment failure as a partial success
		// so the caller can save the shipment and assign a courier later.
		c.logger.Warn("Shiprocket AWB assignment failed after order creation",
			zap.String("order_ref", req.OrderRef),
			zap.Int64("shipment_id", orderResp.ShipmentID),
		)
		resp.AWBError = awbErrorMessage(err)
		return resp, nil
	}
	if awbResp.AWBAssignStatus != 1 || awbResp.Response.Data.AWBCode == "" {
		msg := awbResp.Message
		if msg == "" {
			msg = "no courier could be assigned"
		}
		resp.AWBError = msg
		return resp, nil
	}

	resp.TrackingNumber = awbResp.Response.Data.AWBCode
	resp.CourierName = awbResp.Response.Data.CourierName
	resp.CourierID = strconv.Itoa(awbResp.Response.Data.CourierCompanyID)
	resp.Status = courier.StatusAwbAssigned
	return resp, nil
}

// AssignAWB retries tracking-number assignment for an already-created order.
func (c *Client) AssignAWB(ctx context.Context, creds courier.Credentials, externalShipmentID string, courierID string) (*courier.AWBAssignment, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}
	shipmentID, err := strconv.ParseInt(externalShipmentID, 10, 64)
	if err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_SHIPMENT_ID", "external shipment id is not numeric").WithCause(err)
	}

	awbResp, err := c.apiClient.AssignAWB(ctx, token, shipmentID, courierID)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if awbResp.AWBAssignStatus != 1 || awbResp.Response.Data.AWBCode == "" {
		msg := awbResp.Message
		if msg == "" {
			msg = "no courier could be assigned"
		}
		return nil, courier.NewCourierError(courierType, "AWB_ASSIGN_FAILED", msg)
	}
	return &courier.AWBAssignment{
		TrackingNumber: awbResp.Response.Data.AWBCode,
		CourierName:    awbResp.Response.Data.CourierName,
		CourierID:      strconv.Itoa(awbResp.Response.Data.CourierCompanyID),
	}, nil
}

// GetTracking returns the normalized tracking state for an AWB.
func (c *Client) GetTracking(ctx context.Context, creds courier.Credentials, awb string) (*courier.TrackingResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	apiResp, err := c.apiClient.Track(ctx, token, awb)
	if err != nil {
		c.logger.Error("Shiprocket tracking error", zap.Error(err), zap.String("awb", awb))
		return nil, wrapAPIError(err)
	}
	return trackResponseToCourier(awb, apiResp), nil
}

// CancelShipment cancels the order owning an AWB.
func (c *Client) CancelShipment(ctx context.Context, creds courier.Credentials, awb string) error {
	token, err := c.token(ctx, creds)
	if err != nil {
		return err
	}

	trackResp, err := c.apiClient.Track(ctx, token, awb)
	if err != nil {
		return wrapAPIError(err)
	}
	if len(trackResp.TrackingData.ShipmentTrack) == 0 {
		return courier.NewCourierError(courierType, "AWB_NOT_FOUND", "no shipment found for awb "+awb)
	}
	orderID := trackResp.TrackingData.ShipmentTrack[0].OrderID

	if err := c.apiClient.CancelOrders(ctx, token, []int64{orderID}); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// SchedulePickup books a pickup for a shipment.
func (c *Client) SchedulePickup(ctx context.Context, creds courier.Credentials, req *courier.PickupRequest) (*courier.PickupResponse, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	shipmentIDs, err := pickupShipmentIDs(req)
	if err != nil {
		return nil, err
	}
	apiResp, err := c.apiClient.GeneratePickup(ctx, token, shipmentIDs)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	scheduled, _ := time.Parse("2006-01-02 15:04:05", apiResp.Response.PickupScheduledDate)
	return &courier.PickupResponse{
		PickupID:     apiResp.Response.PickupTokenNumber,
		ScheduledFor: scheduled,
		Confirmed:    apiResp.PickupStatus == 1,
	}, nil
}

// GetLabel downloads the shipping label for an AWB.
func (c *Client) GetLabel(ctx context.Context, creds courier.Credentials, awb string) ([]byte, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	trackResp, err := c.apiClient.Track(ctx, token, awb)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(trackResp.TrackingData.ShipmentTrack) == 0 {
		return nil, courier.NewCourierError(courierType, "AWB_NOT_FOUND", "no shipment found for awb "+awb)
	}

	labelResp, err := c.apiClient.GenerateLabel(ctx, token, []int64{trackResp.TrackingData.ShipmentTrack[0].ShipmentID})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if labelResp.LabelCreated != 1 || labelResp.LabelURL == "" {
		return nil, courier.NewCourierError(courierType, "LABEL_UNAVAILABLE", "label not generated")
	}
	data, err := c.apiClient.FetchLabelDocument(ctx, labelResp.LabelURL)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return data, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func adhocOrderFromRequest(req *courier.ShipmentRequest) *AdhocOrderRequest {
	payment := "Prepaid"
	if req.PaymentMode == courier.PaymentCOD {
		payment = "COD"
	}
	subTotal := req.DeclaredValue
	if req.PaymentMode == courier.PaymentCOD && req.CODAmount > 0 {
		subTotal = req.CODAmount
	}
	desc := req.ProductDesc
	if desc == "" {
		desc = "Shipment " + req.OrderRef
	}
	return &AdhocOrderRequest{
		OrderID:           req.OrderRef,
		OrderDate:         time.Now().Format("2006-01-02 15:04"),
		PickupLocation:    req.PickupLocation,
		ChannelID:         req.ChannelID,
		BillingName:       req.Consignee.Name,
		BillingAddress:    req.Consignee.Line1,
		BillingCity:       req.Consignee.City,
		BillingPincode:    req.Consignee.Pincode,
		BillingState:      req.Consignee.State,
		BillingCountry:    orDefault(req.Consignee.Country, "India"),
		BillingEmail:      req.Consignee.Email,
		BillingPhone:      req.Consignee.Phone,
		ShippingIsBilling: true,
		OrderItems: []OrderItem{
			{Name: desc, SKU: req.OrderRef, Units: 1, SellingPrice: subTotal},
		},
		PaymentMethod: payment,
		SubTotal:      subTotal,
		Length:        req.Dimensions.LengthCM,
		Breadth:       req.Dimensions.WidthCM,
		Height:        req.Dimensions.HeightCM,
		Weight:        req.WeightKG,
	}
}

func trackResponseToCourier(awb string, resp *TrackResponse) *courier.TrackingResponse {
	out := &courier.TrackingResponse{TrackingNumber: awb}

	if len(resp.TrackingData.ShipmentTrack) > 0 {
		st := resp.TrackingData.ShipmentTrack[0]
		out.CarrierCode = strconv.Itoa(st.CurrentStatusID)
		if mapped, ok := MapStatusID(st.CurrentStatusID); ok {
			out.CurrentStatus = mapped
		}
		out.Location = st.Destination
		if t, err := time.Parse("2006-01-02 15:04:05", st.DeliveredDate); err == nil {
			out.DeliveredAt = &t
		}
		if t, err := time.Parse("2006-01-02", st.EDD); err == nil {
			out.ExpectedDelivery = &t
		}
	}

	// Shiprocket returns activities newest first; normalize to oldest first.
	acts := resp.TrackingData.ShipmentTrackActivities
	events := make([]courier.TrackingEvent, 0, len(acts))
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		ts, _ := time.Parse("2006-01-02 15:04:05", a.Date)
		status := courier.ShipmentStatus("")
		if mapped, ok := MapStatusID(a.SRStatus); ok {
			status = mapped
		}
		events = append(events, courier.TrackingEvent{
			Timestamp:   ts,
			Status:      status,
			CarrierCode: a.Status,
			Location:    a.Location,
			Remarks:     a.Activity,
		})
	}
	out.Events = events
	return out
}

func pickupShipmentIDs(req *courier.PickupRequest) ([]int64, error) {
	// Shiprocket keys pickups on its shipment record, not the location.
	id, err := strconv.ParseInt(req.ExternalShipmentID, 10, 64)
	if err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_PICKUP", "external shipment id required for pickup").WithCause(err)
	}
	return []int64{id}, nil
}

func awbErrorMessage(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Message
	}
	return err.Error()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
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

// MapStatusID translates Shiprocket numeric shipment status ids into the
// shared vocabulary. Unknown ids report ok=false and leave state unchanged.
func MapStatusID(id int) (courier.ShipmentStatus, bool) {
	switch id {
	case 1, 2, 3, 4, 5, 13, 15, 20:
		// AWB assigned, label generated, pickup scheduled/queued, manifest
		// generated, pickup error/rescheduled/exception.
		return courier.StatusAwbAssigned, true
	case 6, 19:
		return courier.StatusPickedUp, true
	case 18, 22:
		return courier.StatusInTransit, true
	case 17:
		return courier.StatusOutForDelivery, true
	case 7:
		return courier.StatusDelivered, true
	case 8, 16:
		return courier.StatusCancelled, true
	case 21:
		return courier.StatusNdrRaised, true
	case 9, 14:
		return courier.StatusRtoInitiated, true
	case 10:
		return courier.StatusRtoDelivered, true
	default:
		return "", false
	}
}

var _ courier.Courier = (*Client)(nil)
var _ courier.AWBAssigner = (*Client)(nil)
