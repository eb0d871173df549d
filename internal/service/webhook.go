package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/internal/dispatch"
)

// CreateSubscriptionInput is the request for CreateWebhookSubscription.
type CreateSubscriptionInput struct {
	TenantID   string
	URL        string
	Secret     string
	Events     []dispatch.EventType
	MaxRetries int
	Timeout    time.Duration
}

// CreateWebhookSubscription registers an outbound webhook target.
func (s *Service) CreateWebhookSubscription(ctx context.Context, in CreateSubscriptionInput) (*dispatch.Subscription, error) {
	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", in.URL)
	}
	if in.Secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if in.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}

	sub := &dispatch.Subscription{
		ID:         uuid.NewString(),
		TenantID:   in.TenantID,
		URL:        in.URL,
		Secret:     in.Secret,
		Events:     in.Events,
		MaxRetries: in.MaxRetries,
		Timeout:    in.Timeout,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// DeactivateWebhookSubscription stops a subscription: no new deliveries,
// and in-flight retries are cancelled without rolling back their records.
func (s *Service) DeactivateWebhookSubscription(ctx context.Context, subscriptionID string) error {
	sub, err := s.subs.Get(ctx, subscriptionID)
	if err != nil {
		return err
	}
	sub.Active = false
	sub.UpdatedAt = time.Now().UTC()
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}
	s.dispatcher.CancelSubscription(subscriptionID)
	return nil
}

// TestWebhookUrl performs a single best-effort delivery to a URL and
// reports latency, status, and a body snippet.
func (s *Service) TestWebhookUrl(ctx context.Context, targetURL, secret string) (*dispatch.TestResult, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", targetURL)
	}
	return s.dispatcher.TestURL(ctx, targetURL, secret), nil
}

// GetWebhookDeliveries returns the tenant's delivery log, filtered.
func (s *Service) GetWebhookDeliveries(ctx context.Context, tenantID string, filter dispatch.DeliveryFilter) ([]*dispatch.Delivery, error) {
	return s.deliveries.List(ctx, tenantID, filter)
}
