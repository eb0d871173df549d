package delhivery_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/delhivery"
)

func newTestClient(mockAPI *delhivery.MockAPIClient) *delhivery.Client {
	logger := otelzap.New(zap.NewNop())
	return delhivery.NewWithAPIClient(delhivery.Config{}, mockAPI, logger, nil)
}

func testCreds() courier.Credentials {
	return courier.Credentials{CacheKey: "tenant-1:dl-1", APIKey: "dl-api-token"}
}

func TestClient_GetRates(t *testing.T) {
	client := newTestClient(delhivery.NewMockAPIClient())

	rates, err := client.GetRates(context.Background(), testCreds(), &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "560001",
		WeightKG:        1.0,
		COD:             true,
	})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, courier.TypeDelhivery, rates[0].CourierType)
	assert.Equal(t, 92.5, rates[0].TotalCharge)
	assert.Equal(t, 18.5, rates[0].CODCharge)
	assert.Equal(t, "INR", rates[0].Currency)
}

func TestClient_GetRates_Unserviceable(t *testing.T) {
	mockAPI := delhivery.NewMockAPIClient()
	mockAPI.OnCheckPincode = func(ctx context.Context, token, pincode string) (*delhivery.PincodeResponse, error) {
		return &delhivery.PincodeResponse{}, nil
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

func TestClient_GetRates_CODNotOffered(t *testing.T) {
	mockAPI := delhivery.NewMockAPIClient()
	mockAPI.OnCheckPincode = func(ctx context.Context, token, pincode string) (*delhivery.PincodeResponse, error) {
		out, _ := delhivery.NewMockAPIClient().CheckPincode(ctx, token, pincode)
		out.DeliveryCodes[0].PostalCode.COD = "N"
		return out, nil
	}
	client := newTestClient(mockAPI)

	rates, err := client.GetRates(context.Background(), testCreds(), &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "560001",
		WeightKG:        1.0,
		COD:             true,
	})
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestClient_CreateShipment(t *testing.T) {
	client := newTestClient(delhivery.NewMockAPIClient())

	resp, err := client.CreateShipment(context.Background(), testCreds(), &courier.ShipmentRequest{
		OrderRef:       "ORD-2001",
		PickupLocation: "WH-BLR",
		WeightKG:       0.75,
		PaymentMode:    courier.PaymentCOD,
		CODAmount:      499,
	})
	require.NoError(t, err)
	assert.Equal(t, "DLV0001234567", resp.TrackingNumber)
	assert.Equal(t, "ORD-2001", resp.ExternalOrderID)
	assert.Equal(t, courier.StatusAwbAssigned, resp.Status)
	assert.False(t, resp.Partial())
}

func TestClient_CreateShipment_PartialWithoutWaybill(t *testing.T) {
	mockAPI := delhivery.NewMockAPIClient()
	mockAPI.OnCreatePackage = func(ctx context.Context, token string, req *delhivery.ManifestRequest) (*delhivery.ManifestResponse, error) {
		out, _ := delhivery.NewMockAPIClient().CreatePackage(ctx, token, req)
		out.Packages[0].Waybill = ""
		out.Packages[0].Status = "Fail"
		out.Packages[0].Remarks = "pickup location not registered"
		return out, nil
	}
	client := newTestClient(mockAPI)

	resp, err := client.CreateShipment(context.Background(), testCreds(), &courier.ShipmentRequest{OrderRef: "ORD-2002"})
	require.NoError(t, err)
	assert.True(t, resp.Partial())
	assert.Equal(t, "pickup location not registered", resp.AWBError)
	assert.Equal(t, courier.StatusCreated, resp.Status)
}

func TestClient_GetTracking(t *testing.T) {
	client := newTestClient(delhivery.NewMockAPIClient())

	tracking, err := client.GetTracking(context.Background(), testCreds(), "DLV0001234567")
	require.NoError(t, err)
	assert.Equal(t, "DLV0001234567", tracking.TrackingNumber)
	assert.Equal(t, courier.StatusInTransit, tracking.CurrentStatus)
}

func TestClient_AuthErrorMapped(t *testing.T) {
	mockAPI := delhivery.NewMockAPIClient()
	mockAPI.OnCheckPincode = func(ctx context.Context, token, pincode string) (*delhivery.PincodeResponse, error) {
		return nil, &delhivery.APIError{StatusCode: 401, Message: "invalid token"}
	}
	client := newTestClient(mockAPI)

	err := client.ValidateCredentials(context.Background(), testCreds())
	require.Error(t, err)
	assert.ErrorIs(t, err, courier.ErrInvalidCredentials)
}

func TestClient_ServerErrorRetryable(t *testing.T) {
	mockAPI := delhivery.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetTracking(context.Background(), testCreds(), "DLV0001234567")
	require.Error(t, err)
	assert.True(t, courier.IsRetryable(err))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status     string
		statusType string
		want       courier.ShipmentStatus
	}{
		{"Manifested", "UD", courier.StatusAwbAssigned},
		{"Picked", "UD", courier.StatusPickedUp},
		{"In Transit", "UD", courier.StatusInTransit},
		{"In Transit", "RT", courier.StatusRtoInitiated},
		{"Dispatched", "UD", courier.StatusOutForDelivery},
		{"Delivered", "DL", courier.StatusDelivered},
		{"Delivered", "RT", courier.StatusRtoDelivered},
		{"Pending", "UD", courier.StatusNdrRaised},
		{"RTO", "RT", courier.StatusRtoInitiated},
		{"Cancelled", "UD", courier.StatusCancelled},
		// Unknown text falls back to the scan type.
		{"Consignee refused", "DL", courier.StatusDelivered},
		{"Returned to origin", "RT", courier.StatusRtoInitiated},
	}
	for _, tt := range tests {
		got, ok := delhivery.MapStatus(tt.status, tt.statusType)
		require.True(t, ok, "%s/%s", tt.status, tt.statusType)
		assert.Equal(t, tt.want, got, "%s/%s", tt.status, tt.statusType)
	}

	_, ok := delhivery.MapStatus("Something else", "UD")
	assert.False(t, ok)
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newTestClient(delhivery.NewMockAPIClient())

	payload := []byte(`{
		"Shipment": {
			"AWB": "DLV0001234567",
			"ReferenceNo": "ORD-2001",
			"NSLCode": "EOD-74",
			"Status": {
				"Status": "Pending",
				"StatusDateTime": "2026-08-21T18:05:00",
				"StatusType": "UD",
				"StatusLocation": "Bangalore_Hub (Karnataka)",
				"Instructions": "Consignee unavailable"
			}
		}
	}`)

	ev, err := client.ParseWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, "DLV0001234567:EOD-74:2026-08-21T18:05:00", ev.EventID)
	assert.Equal(t, "DLV0001234567", ev.TrackingNumber)
	assert.Equal(t, courier.StatusNdrRaised, ev.Status)
	assert.True(t, ev.NonDelivery)
	assert.Equal(t, "Consignee unavailable", ev.NdrReason)
	assert.Equal(t, time.Date(2026, 8, 21, 18, 5, 0, 0, time.UTC), ev.Timestamp)
}

func TestClient_VerifyWebhook_SecretHeader(t *testing.T) {
	client := newTestClient(delhivery.NewMockAPIClient())

	headers := http.Header{}
	headers.Set("X-Webhook-Secret", "topsecret")
	assert.True(t, client.VerifyWebhook(nil, headers, "topsecret"))
	assert.False(t, client.VerifyWebhook(nil, headers, "different"))
	assert.True(t, client.VerifyWebhook(nil, nil, ""))
}
