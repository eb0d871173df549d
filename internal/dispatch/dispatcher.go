package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shipstack/courier/internal/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	defaultRetryInterval  = 2 * time.Second
	defaultAttemptTimeout = 10 * time.Second
	maxBodySnippet        = 512
)

// Config holds dispatcher configuration.
type Config struct {
	// RetryInterval is the initial backoff between attempts. Subsequent
	// intervals grow exponentially.
	RetryInterval time.Duration
	// DefaultTimeout applies to subscriptions that carry none.
	DefaultTimeout time.Duration
}

// Dispatcher fans domain events out to matching subscriptions. Each
// delivery runs in its own goroutine with its own retry schedule, so a
// slow subscriber never blocks an unrelated one.
type Dispatcher struct {
	config     Config
	subs       SubscriptionStore
	deliveries DeliveryStore
	httpClient *http.Client
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics

	wg sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]map[string]context.CancelFunc // subscription id -> delivery id -> cancel
}

// New creates a dispatcher.
func New(cfg Config, subs SubscriptionStore, deliveries DeliveryStore, logger *otelzap.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = defaultAttemptTimeout
	}
	return &Dispatcher{
		config:     cfg,
		subs:       subs,
		deliveries: deliveries,
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics,
		cancels:    make(map[string]map[string]context.CancelFunc),
	}
}

// Dispatch fans an event out to every active matching subscription of its
// tenant. It returns after the deliveries are enqueued; attempts run in
// the background.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *DomainEvent) error {
	subs, err := d.subs.ListActive(ctx, ev.TenantID, ev.Type)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// One store failure must not starve the remaining subscriptions.
	var errs []error
	for _, sub := range subs {
		delivery := &Delivery{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
			EventID:        ev.ID,
			EventType:      ev.Type,
			Payload:        payload,
			Status:         DeliveryPending,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := d.deliveries.Create(ctx, delivery); err != nil {
			errs = append(errs, fmt.Errorf("record delivery for subscription %s: %w", sub.ID, err))
			continue
		}

		deliveryCtx, cancel := context.WithCancel(context.Background())
		d.track(sub.ID, delivery.ID, cancel)

		d.wg.Add(1)
		go func(sub *Subscription, delivery *Delivery) {
			defer d.wg.Done()
			defer d.untrack(sub.ID, delivery.ID)
			d.deliver(deliveryCtx, sub, delivery)
		}(sub, delivery)
	}
	return errors.Join(errs...)
}

// deliver runs the attempt/retry loop for one delivery.
func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, delivery *Delivery) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.config.RetryInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(sub.MaxRetries)), ctx)

	err := backoff.Retry(func() error {
		return d.attempt(ctx, sub, delivery)
	}, policy)

	switch {
	case err == nil:
		delivery.Status = DeliveryDelivered
	case ctx.Err() != nil:
		// Cancelled mid-flight; keep the recorded attempts, mark failed.
		delivery.Status = DeliveryFailed
	default:
		delivery.Status = DeliveryExhausted
	}
	delivery.UpdatedAt = time.Now().UTC()
	if err := d.deliveries.Update(context.Background(), delivery); err != nil {
		d.logger.Error("Failed to record delivery outcome",
			zap.String("delivery_id", delivery.ID), zap.Error(err))
	}
	d.metrics.RecordDelivery(string(delivery.EventType), string(delivery.Status))

	if delivery.Status != DeliveryDelivered {
		d.logger.Warn("Webhook delivery did not succeed",
			zap.String("delivery_id", delivery.ID),
			zap.String("subscription_id", sub.ID),
			zap.String("status", string(delivery.Status)),
			zap.Int("attempts", delivery.Attempts))
	}
}

// attempt posts the payload once and records the outcome on the delivery.
func (d *Dispatcher) attempt(ctx context.Context, sub *Subscription, delivery *Delivery) error {
	timeout := sub.Timeout
	if timeout == 0 {
		timeout = d.config.DefaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delivery.Attempts++

	statusCode, err := d.post(attemptCtx, sub, delivery.Payload)
	delivery.LastStatusCode = statusCode
	if err != nil {
		delivery.LastError = err.Error()
		d.metrics.RecordAttempt("error")
	} else if statusCode < 200 || statusCode >= 300 {
		err = fmt.Errorf("endpoint returned %d", statusCode)
		delivery.LastError = err.Error()
		d.metrics.RecordAttempt("rejected")
	} else {
		delivery.LastError = ""
		d.metrics.RecordAttempt("ok")
	}
	delivery.UpdatedAt = time.Now().UTC()
	if updateErr := d.deliveries.Update(context.Background(), delivery); updateErr != nil {
		d.logger.Error("Failed to record delivery attempt",
			zap.String("delivery_id", delivery.ID), zap.Error(updateErr))
	}
	return err
}

func (d *Dispatcher) post(ctx context.Context, sub *Subscription, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(sub.Secret, payload))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// CancelSubscription stops future retries for the subscription's in-flight
// deliveries. Recorded outcomes stay as they are.
func (d *Dispatcher) CancelSubscription(subscriptionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cancel := range d.cancels[subscriptionID] {
		cancel()
	}
	delete(d.cancels, subscriptionID)
}

// Wait blocks until all in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) track(subID, deliveryID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancels[subID] == nil {
		d.cancels[subID] = make(map[string]context.CancelFunc)
	}
	d.cancels[subID][deliveryID] = cancel
}

func (d *Dispatcher) untrack(subID, deliveryID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m := d.cancels[subID]; m != nil {
		delete(m, deliveryID)
		if len(m) == 0 {
			delete(d.cancels, subID)
		}
	}
}

// TestResult reports a one-shot test delivery.
type TestResult struct {
	StatusCode int           `json:"statusCode"`
	Latency    time.Duration `json:"latency"`
	Body       string        `json:"body"`
	Err        string        `json:"error,omitempty"`
}

// TestURL performs a single best-effort delivery outside the retry
// machinery and reports latency, status, and a body snippet.
func (d *Dispatcher) TestURL(ctx context.Context, url, secret string) *TestResult {
	ev := &DomainEvent{
		ID:         uuid.NewString(),
		Type:       "test.ping",
		OccurredAt: time.Now().UTC(),
		Data:       map[string]interface{}{"test": true},
	}
	payload, _ := json.Marshal(ev)

	attemptCtx, cancel := context.WithTimeout(ctx, d.config.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &TestResult{Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, payload))
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &TestResult{Latency: latency, Err: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	return &TestResult{
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Body:       string(body),
	}
}
