// Package mock provides a mock courier implementation for testing.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shipstack/courier/pkg/courier"
)

// Client is a mock courier for testing. It keeps created shipments in
// memory so GetTracking and CancelShipment can see them.
type Client struct {
	name string

	mu        sync.Mutex
	seq       int64
	shipments map[string]courier.ShipmentStatus // awb -> status
}

// New creates a new mock courier.
func New(name string) *Client {
	if name == "" {
		name = "mock"
	}
	return &Client{
		name:      name,
		shipments: make(map[string]courier.ShipmentStatus),
	}
}

// Type returns the courier type.
func (c *Client) Type() courier.CourierType {
	return courier.TypeCustom
}

// ValidateCredentials accepts any non-empty API key.
func (c *Client) ValidateCredentials(ctx context.Context, creds courier.Credentials) error {
	if creds.APIKey == "" {
		return courier.NewCourierError(courier.TypeCustom, "AUTH", "api key required").
			WithCause(courier.ErrInvalidCredentials)
	}
	return nil
}

// GetRates returns a fixed pair of mock rates.
func (c *Client) GetRates(ctx context.Context, creds courier.Credentials, req *courier.RateRequest) ([]courier.Rate, error) {
	standard := time.Now().AddDate(0, 0, 4)
	express := time.Now().AddDate(0, 0, 2)
	return []courier.Rate{
		{
			CourierType:   courier.TypeCustom,
			CourierID:     "standard",
			CourierName:   fmt.Sprintf("%s Standard", c.name),
			FreightCharge: 60.0,
			CODCharge:     codCharge(req.COD, 25.0),
			TotalCharge:   60.0 + codCharge(req.COD, 25.0),
			Currency:      "INR",
			EtaDays:       4,
			EtaDate:       &standard,
		},
		{
			CourierType:   courier.TypeCustom,
			CourierID:     "express",
			CourierName:   fmt.Sprintf("%s Express", c.name),
			FreightCharge: 110.0,
			CODCharge:     codCharge(req.COD, 25.0),
			TotalCharge:   110.0 + codCharge(req.COD, 25.0),
			Currency:      "INR",
			EtaDays:       2,
			EtaDate:       &express,
		},
	}, nil
}

// CreateShipment books a mock shipment and assigns a synthetic AWB.
func (c *Client) CreateShipment(ctx context.Context, creds courier.Credentials, req *courier.ShipmentRequest) (*courier.ShipmentResponse, error) {
	c.mu.Lock()
	c.seq++
	awb := fmt.Sprintf("MOCK%09d", c.seq)
	c.shipments[awb] = courier.StatusAwbAssigned
	c.mu.Unlock()

	return &courier.ShipmentResponse{
		ExternalOrderID:    req.OrderRef,
		ExternalShipmentID: fmt.Sprintf("%s-shipment-%s", c.name, awb),
		TrackingNumber:     awb,
		CourierName:        c.name,
		CourierID:          "standard",
		LabelURL:           fmt.Sprintf("https://labels.%s.test/%s.pdf", c.name, awb),
		Status:             courier.StatusAwbAssigned,
	}, nil
}

// GetTracking reports the stored status for a mock AWB.
func (c *Client) GetTracking(ctx context.Context, creds courier.Credentials, awb string) (*courier.TrackingResponse, error) {
	c.mu.Lock()
	status, ok := c.shipments[awb]
	c.mu.Unlock()
	if !ok {
		return nil, courier.NewCourierError(courier.TypeCustom, "AWB_NOT_FOUND", "no shipment found for awb "+awb)
	}
	now := time.Now()
	return &courier.TrackingResponse{
		TrackingNumber: awb,
		CurrentStatus:  status,
		Events: []courier.TrackingEvent{
			{Timestamp: now, Status: status, Location: "Mock Hub"},
		},
	}, nil
}

// AdvanceTo sets the stored status for an AWB. Tests drive state with it.
func (c *Client) AdvanceTo(awb string, status courier.ShipmentStatus) {
	c.mu.Lock()
	c.shipments[awb] = status
	c.mu.Unlock()
}

// CancelShipment cancels a mock shipment unless it is already terminal.
func (c *Client) CancelShipment(ctx context.Context, creds courier.Credentials, awb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.shipments[awb]
	if !ok {
		return courier.NewCourierError(courier.TypeCustom, "AWB_NOT_FOUND", "no shipment found for awb "+awb)
	}
	if status.IsTerminal() {
		return courier.NewCourierError(courier.TypeCustom, "ALREADY_TERMINAL", "shipment is "+string(status))
	}
	c.shipments[awb] = courier.StatusCancelled
	return nil
}

// SchedulePickup confirms any requested pickup.
func (c *Client) SchedulePickup(ctx context.Context, creds courier.Credentials, req *courier.PickupRequest) (*courier.PickupResponse, error) {
	return &courier.PickupResponse{
		PickupID:     fmt.Sprintf("%s-pickup-%d", c.name, time.Now().UnixNano()),
		ScheduledFor: req.Date,
		Confirmed:    true,
	}, nil
}

// GetLabel returns a mock label document.
func (c *Client) GetLabel(ctx context.Context, creds courier.Credentials, awb string) ([]byte, error) {
	return []byte("%PDF-1.4 mock label " + awb), nil
}

// VerifyWebhook accepts every payload; the mock carrier signs nothing.
func (c *Client) VerifyWebhook(payload []byte, headers http.Header, secret string) bool {
	return true
}

// ParseWebhook reads the same event shape the mock carrier emits.
func (c *Client) ParseWebhook(payload []byte) (*courier.WebhookEvent, error) {
	var ev courier.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, courier.NewCourierError(courier.TypeCustom, "BAD_PAYLOAD", "malformed webhook body").WithCause(err)
	}
	if ev.TrackingNumber == "" {
		return nil, courier.NewCourierError(courier.TypeCustom, "BAD_PAYLOAD", "webhook missing tracking number")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return &ev, nil
}

func codCharge(cod bool, amount float64) float64 {
	if cod {
		return amount
	}
	return 0
}

var (
	_ courier.Courier        = (*Client)(nil)
	_ courier.WebhookHandler = (*Client)(nil)
)
