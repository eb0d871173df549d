package dtdc_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/dtdc"
)

func newTestClient(mockAPI *dtdc.MockAPIClient) *dtdc.Client {
	logger := otelzap.New(zap.NewNop())
	return dtdc.NewWithAPIClient(dtdc.Config{}, mockAPI, logger, nil)
}

func testCreds() courier.Credentials {
	return courier.Credentials{
		CacheKey:   "tenant-1:dt-1",
		APIKey:     "dtdc-api-key",
		ClientName: "GL017",
	}
}

func TestClient_GetRates(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	rates, err := client.GetRates(context.Background(), testCreds(), &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKG:        1.0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rates)
	assert.Equal(t, courier.TypeDTDC, rates[0].CourierType)
	assert.Equal(t, "INR", rates[0].Currency)
	assert.Greater(t, rates[0].TotalCharge, 0.0)
}

func TestClient_GetRates_Unserviceable(t *testing.T) {
	mockAPI := dtdc.NewMockAPIClient()
	mockAPI.OnCheckServiceability = func(ctx context.Context, apiKey string, req *dtdc.ServiceabilityRequest) (*dtdc.ServiceabilityResponse, error) {
		return &dtdc.ServiceabilityResponse{Serviceable: false}, nil
	}
	client := newTestClient(mockAPI)

	rates, err := client.GetRates(context.Background(), testCreds(), &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "999999",
		WeightKG:        1.0,
	})
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestClient_CreateShipment(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	resp, err := client.CreateShipment(context.Background(), testCreds(), &courier.ShipmentRequest{
		OrderRef:    "ORD-4001",
		WeightKG:    1.2,
		PaymentMode: courier.PaymentCOD,
		CODAmount:   799,
	})
	require.NoError(t, err)
	assert.Equal(t, "D1005012345", resp.TrackingNumber)
	assert.Equal(t, "ORD-4001", resp.ExternalOrderID)
	assert.Equal(t, courier.StatusAwbAssigned, resp.Status)
}

func TestClient_CreateShipment_BookingFailed(t *testing.T) {
	mockAPI := dtdc.NewMockAPIClient()
	mockAPI.OnCreateConsignment = func(ctx context.Context, apiKey string, req *dtdc.ConsignmentRequest) (*dtdc.ConsignmentResponse, error) {
		return &dtdc.ConsignmentResponse{}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateShipment(context.Background(), testCreds(), &courier.ShipmentRequest{OrderRef: "ORD-4002"})
	require.Error(t, err)
	var courierErr *courier.CourierError
	require.ErrorAs(t, err, &courierErr)
	assert.Equal(t, "BOOKING_FAILED", courierErr.Code)
}

func TestClient_GetTracking(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	tracking, err := client.GetTracking(context.Background(), testCreds(), "D1005012345")
	require.NoError(t, err)
	assert.Equal(t, "D1005012345", tracking.TrackingNumber)
	assert.Equal(t, courier.StatusInTransit, tracking.CurrentStatus)
	require.NotEmpty(t, tracking.Events)
}

func TestClient_AuthErrorMapped(t *testing.T) {
	mockAPI := dtdc.NewMockAPIClient()
	mockAPI.OnCheckServiceability = func(ctx context.Context, apiKey string, req *dtdc.ServiceabilityRequest) (*dtdc.ServiceabilityResponse, error) {
		return nil, &dtdc.APIError{StatusCode: 401, Message: "invalid api key"}
	}
	client := newTestClient(mockAPI)

	err := client.ValidateCredentials(context.Background(), testCreds())
	require.Error(t, err)
	assert.ErrorIs(t, err, courier.ErrInvalidCredentials)
}

func TestClient_ServerErrorRetryable(t *testing.T) {
	mockAPI := dtdc.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetTracking(context.Background(), testCreds(), "D1005012345")
	require.Error(t, err)
	assert.True(t, courier.IsRetryable(err))
}

func TestMapStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want courier.ShipmentStatus
	}{
		{"BKD", courier.StatusAwbAssigned},
		{"PKP", courier.StatusPickedUp},
		{"ITR", courier.StatusInTransit},
		{"OFD", courier.StatusOutForDelivery},
		{"DLV", courier.StatusDelivered},
		{"NDL", courier.StatusNdrRaised},
		{"RTO", courier.StatusRtoInitiated},
		{"RTD", courier.StatusRtoDelivered},
		{"CAN", courier.StatusCancelled},
		{"dlv", courier.StatusDelivered},
	}
	for _, tt := range tests {
		got, ok := dtdc.MapStatusCode(tt.code)
		require.True(t, ok, tt.code)
		assert.Equal(t, tt.want, got, tt.code)
	}

	_, ok := dtdc.MapStatusCode("XXX")
	assert.False(t, ok)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestClient_VerifyWebhook(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())
	body := []byte(`{"event_id":"evt-1","consignment_number":"D1005012345","status_code":"DLV"}`)

	headers := http.Header{}
	headers.Set(dtdc.SignatureHeader, signBody("whsecret", body))
	assert.True(t, client.VerifyWebhook(body, headers, "whsecret"))
	assert.False(t, client.VerifyWebhook(body, headers, "wrong"))
	assert.True(t, client.VerifyWebhook(body, http.Header{}, ""))
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	ev, err := client.ParseWebhook([]byte(`{
		"event_id": "evt-7f3a",
		"consignment_number": "D1005012345",
		"status_code": "OFD",
		"status": "Out for delivery",
		"timestamp": "2026-08-22T09:15:00Z",
		"location": "Mumbai Andheri",
		"remarks": "With delivery agent"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "evt-7f3a", ev.EventID)
	assert.Equal(t, "D1005012345", ev.TrackingNumber)
	assert.Equal(t, courier.StatusOutForDelivery, ev.Status)
	assert.Equal(t, time.Date(2026, 8, 22, 9, 15, 0, 0, time.UTC), ev.Timestamp)
	assert.False(t, ev.NonDelivery)
}

func TestClient_ParseWebhook_NDR(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	ev, err := client.ParseWebhook([]byte(`{
		"event_id": "evt-9c21",
		"consignment_number": "D1005012345",
		"status_code": "NDL",
		"status": "Not delivered",
		"timestamp": "2026-08-22T18:40:00Z",
		"ndr_reason": "Address incomplete"
	}`))
	require.NoError(t, err)
	assert.Equal(t, courier.StatusNdrRaised, ev.Status)
	assert.True(t, ev.NonDelivery)
	assert.Equal(t, "Address incomplete", ev.NdrReason)
}

func TestClient_ParseWebhook_UnknownStatus(t *testing.T) {
	client := newTestClient(dtdc.NewMockAPIClient())

	_, err := client.ParseWebhook([]byte(`{"event_id":"evt-1","consignment_number":"D1005012345","status_code":"XXX"}`))
	require.Error(t, err)
	var courierErr *courier.CourierError
	require.ErrorAs(t, err, &courierErr)
	assert.Equal(t, "UNKNOWN_STATUS", courierErr.Code)
}
