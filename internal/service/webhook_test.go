package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/service"
	"github.com/shipstack/courier/pkg/courier"
)

func TestService_CreateWebhookSubscription(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.CreateWebhookSubscription(context.Background(), service.CreateSubscriptionInput{
		TenantID:   "tenant-1",
		URL:        "https://merchant.example.com/hooks/shipping",
		Secret:     "whsec_abc",
		Events:     []dispatch.EventType{dispatch.EventShipmentDelivered},
		MaxRetries: 5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.True(t, sub.Active)

	stored, err := f.subs.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://merchant.example.com/hooks/shipping", stored.URL)
}

func TestService_CreateWebhookSubscription_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []service.CreateSubscriptionInput{
		{TenantID: "tenant-1", URL: "not a url", Secret: "s"},
		{TenantID: "tenant-1", URL: "ftp://example.com/hook", Secret: "s"},
		{TenantID: "tenant-1", URL: "https://example.com/hook", Secret: ""},
		{TenantID: "tenant-1", URL: "https://example.com/hook", Secret: "s", MaxRetries: -1},
	}
	for _, in := range cases {
		_, err := f.svc.CreateWebhookSubscription(context.Background(), in)
		assert.Error(t, err, in.URL)
	}
}

func TestService_DeactivateWebhookSubscription(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.CreateWebhookSubscription(context.Background(), service.CreateSubscriptionInput{
		TenantID: "tenant-1",
		URL:      "https://example.com/hook",
		Secret:   "whsec_abc",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeactivateWebhookSubscription(context.Background(), sub.ID))

	stored, err := f.subs.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	active, err := f.subs.ListActive(context.Background(), "tenant-1", dispatch.EventShipmentDelivered)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestService_TestWebhookUrl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newFixture(t)

	result, err := f.svc.TestWebhookUrl(context.Background(), srv.URL, "whsec_abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
	assert.Empty(t, result.Err)

	_, err = f.svc.TestWebhookUrl(context.Background(), "nonsense", "")
	assert.Error(t, err)
}

func TestService_GetWebhookDeliveries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t)
	f.seedAccount(t, "acc-sr", courier.TypeShiprocket)
	_, err := f.svc.CreateWebhookSubscription(context.Background(), service.CreateSubscriptionInput{
		TenantID: "tenant-1",
		URL:      srv.URL,
		Secret:   "whsec_abc",
	})
	require.NoError(t, err)

	_, err = f.svc.CreateShipment(context.Background(), createInput("acc-sr"))
	require.NoError(t, err)
	f.dispatcher.Wait()

	recorded, err := f.svc.GetWebhookDeliveries(context.Background(), "tenant-1", dispatch.DeliveryFilter{})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.EventShipmentAwbAssigned, recorded[0].EventType)
	assert.Equal(t, dispatch.DeliveryDelivered, recorded[0].Status)
}
