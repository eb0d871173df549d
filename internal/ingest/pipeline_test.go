package ingest_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/ingest"
	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/internal/telemetry"
	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/dtdc"
	"github.com/shipstack/courier/pkg/courier/mock"
)

var testMetrics = telemetry.NewMetrics()

type fixture struct {
	pipeline   *ingest.Pipeline
	shipments  *lifecycle.MemoryShipmentStore
	ndrs       *lifecycle.MemoryNdrStore
	deliveries *dispatch.MemoryDeliveryStore
	subs       *dispatch.MemorySubscriptionStore
	dispatcher *dispatch.Dispatcher
}

func newFixture(t *testing.T, secrets map[courier.CourierType]string) *fixture {
	t.Helper()
	logger := otelzap.New(zap.NewNop())

	registry := courier.NewRegistry()
	registry.Register(mock.New("mock"))
	registry.Register(dtdc.NewWithAPIClient(dtdc.Config{}, dtdc.NewMockAPIClient(), logger, nil))

	shipments := lifecycle.NewMemoryShipmentStore()
	ndrs := lifecycle.NewMemoryNdrStore()
	subs := dispatch.NewMemorySubscriptionStore()
	deliveries := dispatch.NewMemoryDeliveryStore()
	dispatcher := dispatch.New(dispatch.Config{
		RetryInterval:  5 * time.Millisecond,
		DefaultTimeout: 2 * time.Second,
	}, subs, deliveries, logger, testMetrics)

	resolver := func(ct courier.CourierType) string { return secrets[ct] }
	pipeline := ingest.NewPipeline(registry, shipments, ndrs, ingest.NewMemoryEventStore(ingest.DefaultRetention),
		dispatcher, resolver, logger, testMetrics)

	return &fixture{
		pipeline:   pipeline,
		shipments:  shipments,
		ndrs:       ndrs,
		deliveries: deliveries,
		subs:       subs,
		dispatcher: dispatcher,
	}
}

// seedShipment stores a shipment already carrying an AWB.
func (f *fixture) seedShipment(t *testing.T, awb string, status courier.ShipmentStatus) *lifecycle.Shipment {
	t.Helper()
	s := lifecycle.NewShipment("tenant-1", "ORD-100")
	require.NoError(t, s.AssignAWB(awb, "Mock Express", "acc-1", courier.TypeCustom, lifecycle.SourceCarrier))
	if status != courier.StatusAwbAssigned {
		require.NoError(t, s.Apply(status, "", "", lifecycle.SourceCarrier, time.Time{}))
	}
	require.NoError(t, f.shipments.Create(context.Background(), s))
	return s
}

func (f *fixture) subscribe(t *testing.T, url string) *dispatch.Subscription {
	t.Helper()
	sub := &dispatch.Subscription{
		ID:       uuid.NewString(),
		TenantID: "tenant-1",
		URL:      url,
		Secret:   "whsec_test",
		Active:   true,
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return sub
}

func mockPayload(t *testing.T, awb string, status courier.ShipmentStatus, extra func(*courier.WebhookEvent)) []byte {
	t.Helper()
	ev := courier.WebhookEvent{
		TrackingNumber: awb,
		Status:         status,
		Timestamp:      time.Now().UTC(),
	}
	if extra != nil {
		extra(&ev)
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return payload
}

func TestPipeline_AppliesTransition(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusAwbAssigned)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f.subscribe(t, srv.URL)

	payload := mockPayload(t, "MOCK000000001", courier.StatusInTransit, nil)
	result := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})
	f.dispatcher.Wait()

	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.True(t, result.Success)

	got, err := f.shipments.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusInTransit, got.Status)
	assert.Equal(t, int64(1), hits.Load())
}

func TestPipeline_ReplayedPayloadAppliesOnce(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusAwbAssigned)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f.subscribe(t, srv.URL)

	payload := mockPayload(t, "MOCK000000001", courier.StatusInTransit, nil)

	first := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})
	assert.Equal(t, "processed", first.Message)

	second := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})
	assert.Equal(t, http.StatusOK, second.HTTPStatus)
	assert.Equal(t, "duplicate ignored", second.Message)
	f.dispatcher.Wait()

	got, err := f.shipments.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusInTransit, got.Status)
	// One transition in history beyond creation and AWB assignment.
	assert.Len(t, got.History, 3)

	recorded, err := f.deliveries.List(context.Background(), "tenant-1", dispatch.DeliveryFilter{})
	require.NoError(t, err)
	assert.Len(t, recorded, 1)
}

func TestPipeline_StaleEventAcked(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusOutForDelivery)

	payload := mockPayload(t, "MOCK000000001", courier.StatusPickedUp, nil)
	result := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})
	f.dispatcher.Wait()

	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Equal(t, "stale event ignored", result.Message)

	got, err := f.shipments.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusOutForDelivery, got.Status)
}

func TestPipeline_UnknownAWBAcked(t *testing.T) {
	f := newFixture(t, nil)

	payload := mockPayload(t, "MOCK999999999", courier.StatusInTransit, nil)
	result := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})

	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.True(t, result.Success)
	assert.Equal(t, "tracking number not found", result.Message)
}

func TestPipeline_UnknownCarrierRejected(t *testing.T) {
	f := newFixture(t, nil)

	result := f.pipeline.Handle(context.Background(), courier.TypeEcomExpress, []byte(`{}`), http.Header{})
	assert.Equal(t, http.StatusNotFound, result.HTTPStatus)
	assert.False(t, result.Success)
}

func dtdcPayload(eventID, consignment, statusCode string) []byte {
	payload, _ := json.Marshal(map[string]string{
		"event_id":           eventID,
		"consignment_number": consignment,
		"status_code":        statusCode,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

func signDtdc(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPipeline_InvalidSignatureRejected(t *testing.T) {
	f := newFixture(t, map[courier.CourierType]string{courier.TypeDTDC: "dtdc-secret"})
	f.seedShipment(t, "D1005012345", courier.StatusAwbAssigned)

	payload := dtdcPayload("evt-1", "D1005012345", "ITR")

	headers := http.Header{}
	headers.Set(dtdc.SignatureHeader, "deadbeef")
	result := f.pipeline.Handle(context.Background(), courier.TypeDTDC, payload, headers)
	assert.Equal(t, http.StatusUnauthorized, result.HTTPStatus)
	assert.False(t, result.Success)

	// A rejected push must not claim the idempotency key: the carrier's
	// retry with a valid signature still applies.
	headers.Set(dtdc.SignatureHeader, signDtdc("dtdc-secret", payload))
	result = f.pipeline.Handle(context.Background(), courier.TypeDTDC, payload, headers)
	f.dispatcher.Wait()
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Equal(t, "processed", result.Message)
}

func TestPipeline_NativeEventIDDedup(t *testing.T) {
	f := newFixture(t, nil)
	f.seedShipment(t, "D1005012345", courier.StatusAwbAssigned)

	result := f.pipeline.Handle(context.Background(), courier.TypeDTDC, dtdcPayload("evt-1", "D1005012345", "PKP"), http.Header{})
	assert.Equal(t, "processed", result.Message)

	// Same event id, different body bytes. Still a duplicate.
	result = f.pipeline.Handle(context.Background(), courier.TypeDTDC, dtdcPayload("evt-1", "D1005012345", "ITR"), http.Header{})
	f.dispatcher.Wait()
	assert.Equal(t, "duplicate ignored", result.Message)
}

func TestPipeline_UnmappedStatusAcked(t *testing.T) {
	f := newFixture(t, nil)
	f.seedShipment(t, "D1005012345", courier.StatusAwbAssigned)

	result := f.pipeline.Handle(context.Background(), courier.TypeDTDC, dtdcPayload("evt-2", "D1005012345", "XYZ"), http.Header{})
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Equal(t, "status not tracked", result.Message)
}

func TestPipeline_MalformedPayloadRejected(t *testing.T) {
	f := newFixture(t, nil)

	result := f.pipeline.Handle(context.Background(), courier.TypeDTDC, []byte(`not json`), http.Header{})
	assert.Equal(t, http.StatusBadRequest, result.HTTPStatus)
	assert.False(t, result.Success)
}

func TestPipeline_NdrOpensCase(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusOutForDelivery)

	payload := mockPayload(t, "MOCK000000001", courier.StatusNdrRaised, func(ev *courier.WebhookEvent) {
		ev.NonDelivery = true
		ev.NdrReason = "CONSIGNEE_UNAVAILABLE"
		ev.Remarks = "customer not answering"
	})
	result := f.pipeline.Handle(context.Background(), courier.TypeCustom, payload, http.Header{})
	f.dispatcher.Wait()
	assert.Equal(t, "processed", result.Message)

	open, err := f.ndrs.FindOpenByShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.NdrOpen, open.Status)
	assert.Equal(t, "CONSIGNEE_UNAVAILABLE", open.ReasonCode)
	assert.Equal(t, 1, open.AttemptCount)
	require.Len(t, open.Remarks, 1)
}

func TestPipeline_BackToBackNdrSignals(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusOutForDelivery)

	first := mockPayload(t, "MOCK000000001", courier.StatusNdrRaised, func(ev *courier.WebhookEvent) {
		ev.NonDelivery = true
		ev.NdrReason = "CONSIGNEE_UNAVAILABLE"
		ev.Remarks = "customer not answering"
	})
	require.Equal(t, "processed", f.pipeline.Handle(context.Background(), courier.TypeCustom, first, http.Header{}).Message)

	// Second failed attempt arrives with no movement scan in between; the
	// shipment is still NdrRaised but the case must record the signal.
	second := mockPayload(t, "MOCK000000001", courier.StatusNdrRaised, func(ev *courier.WebhookEvent) {
		ev.NonDelivery = true
		ev.NdrReason = "ADDRESS_ISSUE"
		ev.Remarks = "pincode mismatch"
	})
	require.Equal(t, "processed", f.pipeline.Handle(context.Background(), courier.TypeCustom, second, http.Header{}).Message)
	f.dispatcher.Wait()

	cases, err := f.ndrs.ListByShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, 2, cases[0].AttemptCount)
	assert.Equal(t, "ADDRESS_ISSUE", cases[0].ReasonCode)
	assert.Len(t, cases[0].Remarks, 2)

	got, err := f.shipments.Get(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusNdrRaised, got.Status)
	assert.Len(t, got.History, 4)
}

func TestPipeline_RepeatNdrUpdatesOpenCase(t *testing.T) {
	f := newFixture(t, nil)
	shipment := f.seedShipment(t, "MOCK000000001", courier.StatusOutForDelivery)

	first := mockPayload(t, "MOCK000000001", courier.StatusNdrRaised, func(ev *courier.WebhookEvent) {
		ev.NonDelivery = true
		ev.NdrReason = "CONSIGNEE_UNAVAILABLE"
	})
	require.Equal(t, "processed", f.pipeline.Handle(context.Background(), courier.TypeCustom, first, http.Header{}).Message)

	// Reattempt goes back out, then fails again.
	reattempt := mockPayload(t, "MOCK000000001", courier.StatusOutForDelivery, nil)
	require.Equal(t, "processed", f.pipeline.Handle(context.Background(), courier.TypeCustom, reattempt, http.Header{}).Message)

	second := mockPayload(t, "MOCK000000001", courier.StatusNdrRaised, func(ev *courier.WebhookEvent) {
		ev.NonDelivery = true
		ev.NdrReason = "ADDRESS_ISSUE"
	})
	require.Equal(t, "processed", f.pipeline.Handle(context.Background(), courier.TypeCustom, second, http.Header{}).Message)
	f.dispatcher.Wait()

	cases, err := f.ndrs.ListByShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, 2, cases[0].AttemptCount)
	assert.Equal(t, "ADDRESS_ISSUE", cases[0].ReasonCode)
}
