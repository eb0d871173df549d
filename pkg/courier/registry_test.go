package courier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/credstore"
	"github.com/shipstack/courier/pkg/courier/mock"
	"github.com/shipstack/courier/pkg/courier/shiprocket"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestRegistry_Register(t *testing.T) {
	registry := courier.NewRegistry()

	registry.Register(mock.New("test-carrier"))

	got, err := registry.Get(courier.TypeCustom)
	require.NoError(t, err, "carrier should be registered")
	assert.Equal(t, courier.TypeCustom, got.Type())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := courier.NewRegistry()

	registry.Register(mock.New("first"))
	assert.Equal(t, 1, registry.Count())

	// Same type registers over the previous one
	registry.Register(mock.New("second"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := courier.NewRegistry()

	_, err := registry.Get(courier.TypeBlueDart)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, courier.ErrCourierNotFound))
}

func TestRegistry_Webhook(t *testing.T) {
	registry := courier.NewRegistry()
	registry.Register(mock.New("test-carrier"))

	handler, err := registry.Webhook(courier.TypeCustom)
	require.NoError(t, err)
	assert.True(t, handler.VerifyWebhook(nil, nil, ""))

	_, err = registry.Webhook(courier.TypeDTDC)
	assert.True(t, errors.Is(err, courier.ErrCourierNotFound))
}

func TestRegistry_Types(t *testing.T) {
	registry := courier.NewRegistry()
	registry.Register(mock.New("test-carrier"))

	types := registry.Types()
	assert.Len(t, types, 1)
	assert.Contains(t, types, courier.TypeCustom)
}

func newShiprocketClient(mockAPI *shiprocket.MockAPIClient) *shiprocket.Client {
	logger := otelzap.New(zap.NewNop())
	tokens := credstore.NewTokenCache(credstore.NewMemoryBackend(), 0)
	return shiprocket.NewWithAPIClient(shiprocket.Config{}, mockAPI, tokens, logger, nil)
}

func TestRegistry_ShopRates_Sorted(t *testing.T) {
	registry := courier.NewRegistry()
	registry.Register(mock.New("test-carrier"))

	accounts := []courier.RateAccount{
		{AccountID: "acc-1", Type: courier.TypeCustom, Priority: 1},
		{AccountID: "acc-2", Type: courier.TypeCustom, Priority: 2},
	}
	req := &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "400001",
		WeightKG:        1.5,
	}

	rates, errs := registry.ShopRates(context.Background(), accounts, req)
	assert.Empty(t, errs)
	require.Len(t, rates, 4) // two options per account

	for i := 1; i < len(rates); i++ {
		assert.LessOrEqual(t, rates[i-1].TotalCharge, rates[i].TotalCharge,
			"rates must be sorted ascending by total charge")
	}
	// Ties on charge break by account priority
	assert.Equal(t, "acc-1", rates[0].AccountID)
}

func TestRegistry_ShopRates_NoneServiceable(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnCheckServiceability = func(ctx context.Context, token string, req *shiprocket.ServiceabilityRequest) (*shiprocket.ServiceabilityResponse, error) {
		return &shiprocket.ServiceabilityResponse{}, nil
	}

	registry := courier.NewRegistry()
	registry.Register(newShiprocketClient(mockAPI))

	accounts := []courier.RateAccount{
		{AccountID: "acc-1", Type: courier.TypeShiprocket},
	}
	rates, errs := registry.ShopRates(context.Background(), accounts, &courier.RateRequest{
		PickupPincode:   "110001",
		DeliveryPincode: "999999",
		WeightKG:        1.0,
	})

	assert.Empty(t, errs, "no serviceable carrier is not an error")
	assert.Empty(t, rates)
}
