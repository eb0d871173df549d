package dispatch_test

import (
	"context"
	"errors"
	"io"
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
	"github.com/shipstack/courier/internal/telemetry"
)

var testMetrics = telemetry.NewMetrics()

type fixture struct {
	dispatcher *dispatch.Dispatcher
	subs       *dispatch.MemorySubscriptionStore
	deliveries *dispatch.MemoryDeliveryStore
}

func newFixture() *fixture {
	subs := dispatch.NewMemorySubscriptionStore()
	deliveries := dispatch.NewMemoryDeliveryStore()
	d := dispatch.New(dispatch.Config{
		RetryInterval:  5 * time.Millisecond,
		DefaultTimeout: 2 * time.Second,
	}, subs, deliveries, otelzap.New(zap.NewNop()), testMetrics)
	return &fixture{dispatcher: d, subs: subs, deliveries: deliveries}
}

func (f *fixture) subscribe(t *testing.T, url string, maxRetries int, events ...dispatch.EventType) *dispatch.Subscription {
	t.Helper()
	sub := &dispatch.Subscription{
		ID:         uuid.NewString(),
		TenantID:   "tenant-1",
		URL:        url,
		Secret:     "whsec_test",
		Events:     events,
		MaxRetries: maxRetries,
		Active:     true,
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return sub
}

func testEvent() *dispatch.DomainEvent {
	return &dispatch.DomainEvent{
		ID:         uuid.NewString(),
		Type:       dispatch.EventShipmentStatusChanged,
		TenantID:   "tenant-1",
		OccurredAt: time.Now().UTC(),
		Data:       map[string]interface{}{"trackingNumber": "AWB001", "status": "in_transit"},
	}
}

func (f *fixture) deliveriesFor(t *testing.T, subID string) []*dispatch.Delivery {
	t.Helper()
	out, err := f.deliveries.List(context.Background(), "tenant-1", dispatch.DeliveryFilter{SubscriptionID: subID})
	require.NoError(t, err)
	return out
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(dispatch.SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture()
	sub := f.subscribe(t, srv.URL, 3)

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	f.dispatcher.Wait()

	recorded := f.deliveriesFor(t, sub.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.DeliveryDelivered, recorded[0].Status)
	assert.Equal(t, 1, recorded[0].Attempts)
	assert.Equal(t, http.StatusOK, recorded[0].LastStatusCode)

	require.NotEmpty(t, gotSig)
	assert.True(t, dispatch.VerifySignature(sub.Secret, gotBody, gotSig))
}

func TestDispatcher_RetriesUntilExhausted(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture()
	sub := f.subscribe(t, srv.URL, 3)

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	f.dispatcher.Wait()

	// First attempt plus MaxRetries retries.
	assert.Equal(t, int64(4), hits.Load())

	recorded := f.deliveriesFor(t, sub.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.DeliveryExhausted, recorded[0].Status)
	assert.Equal(t, 4, recorded[0].Attempts)
	assert.Equal(t, http.StatusInternalServerError, recorded[0].LastStatusCode)
	assert.Contains(t, recorded[0].LastError, "500")
}

func TestDispatcher_SucceedsMidRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture()
	sub := f.subscribe(t, srv.URL, 5)

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	f.dispatcher.Wait()

	assert.Equal(t, int64(3), hits.Load())
	recorded := f.deliveriesFor(t, sub.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.DeliveryDelivered, recorded[0].Status)
	assert.Equal(t, 3, recorded[0].Attempts)
	assert.Empty(t, recorded[0].LastError)
}

func TestDispatcher_EventFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture()
	ndrOnly := f.subscribe(t, srv.URL, 0, dispatch.EventNdrOpened)
	everything := f.subscribe(t, srv.URL, 0)

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	f.dispatcher.Wait()

	assert.Empty(t, f.deliveriesFor(t, ndrOnly.ID))
	assert.Len(t, f.deliveriesFor(t, everything.ID), 1)
}

func TestDispatcher_CancelSubscriptionStopsRetries(t *testing.T) {
	started := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture()
	// Long retry interval keeps the delivery in backoff while we cancel.
	f.dispatcher = dispatch.New(dispatch.Config{
		RetryInterval:  time.Minute,
		DefaultTimeout: 2 * time.Second,
	}, f.subs, f.deliveries, otelzap.New(zap.NewNop()), testMetrics)
	sub := f.subscribe(t, srv.URL, 10)

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	<-started
	f.dispatcher.CancelSubscription(sub.ID)
	f.dispatcher.Wait()

	recorded := f.deliveriesFor(t, sub.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.DeliveryFailed, recorded[0].Status)
	assert.Less(t, recorded[0].Attempts, 11)
}

// faultyDeliveryStore fails Create for one subscription and delegates
// everything else to the memory store.
type faultyDeliveryStore struct {
	*dispatch.MemoryDeliveryStore
	failSubID string
}

func (s *faultyDeliveryStore) Create(ctx context.Context, d *dispatch.Delivery) error {
	if d.SubscriptionID == s.failSubID {
		return errors.New("store unavailable")
	}
	return s.MemoryDeliveryStore.Create(ctx, d)
}

func TestDispatcher_RecordFailureDoesNotStarveOthers(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture()
	broken := f.subscribe(t, srv.URL, 0)
	healthy := f.subscribe(t, srv.URL, 0)
	store := &faultyDeliveryStore{MemoryDeliveryStore: f.deliveries, failSubID: broken.ID}
	f.dispatcher = dispatch.New(dispatch.Config{
		RetryInterval:  5 * time.Millisecond,
		DefaultTimeout: 2 * time.Second,
	}, f.subs, store, otelzap.New(zap.NewNop()), testMetrics)

	err := f.dispatcher.Dispatch(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID)
	f.dispatcher.Wait()

	assert.Equal(t, int64(1), hits.Load())
	recorded := f.deliveriesFor(t, healthy.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, dispatch.DeliveryDelivered, recorded[0].Status)
	assert.Empty(t, f.deliveriesFor(t, broken.ID))
}

func TestDispatcher_NoMatchingSubscriptions(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), testEvent()))
	f.dispatcher.Wait()

	all, err := f.deliveries.List(context.Background(), "tenant-1", dispatch.DeliveryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDispatcher_TestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(dispatch.SignatureHeader))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newFixture()
	result := f.dispatcher.TestURL(context.Background(), srv.URL, "whsec_test")

	assert.Equal(t, http.StatusAccepted, result.StatusCode)
	assert.Equal(t, `{"ok":true}`, result.Body)
	assert.Empty(t, result.Err)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestDispatcher_TestURL_Unreachable(t *testing.T) {
	f := newFixture()

	result := f.dispatcher.TestURL(context.Background(), "http://127.0.0.1:1", "")
	assert.NotEmpty(t, result.Err)
	assert.Zero(t, result.StatusCode)
}

func TestSignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"event":"shipment.delivered"}`)

	sig := dispatch.Sign("whsec_test", payload)
	assert.True(t, len(sig) > len("sha256="))
	assert.Equal(t, "sha256=", sig[:7])

	assert.True(t, dispatch.VerifySignature("whsec_test", payload, sig))
	assert.False(t, dispatch.VerifySignature("other", payload, sig))
	assert.False(t, dispatch.VerifySignature("whsec_test", []byte(`tampered`), sig))
}
