package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/internal/telemetry"
	"github.com/shipstack/courier/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// applyRetries bounds reload-and-reapply rounds on version conflicts.
const applyRetries = 3

// Result is what the HTTP layer returns to the carrier.
type Result struct {
	HTTPStatus int
	Success    bool
	Message    string
}

// SecretResolver returns the webhook verification secret for a carrier.
// Empty means the carrier pushes unsigned.
type SecretResolver func(t courier.CourierType) string

// Pipeline is the inbound webhook pipeline, identical shape for every
// carrier: verify, dedup, parse, resolve, apply, re-broadcast.
type Pipeline struct {
	registry   *courier.Registry
	shipments  lifecycle.ShipmentStore
	ndrs       lifecycle.NdrStore
	events     EventStore
	dispatcher *dispatch.Dispatcher
	secrets    SecretResolver
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
}

// NewPipeline creates the ingestion pipeline.
func NewPipeline(
	registry *courier.Registry,
	shipments lifecycle.ShipmentStore,
	ndrs lifecycle.NdrStore,
	events EventStore,
	dispatcher *dispatch.Dispatcher,
	secrets SecretResolver,
	logger *otelzap.Logger,
	metrics *telemetry.Metrics,
) *Pipeline {
	return &Pipeline{
		registry:   registry,
		shipments:  shipments,
		ndrs:       ndrs,
		events:     events,
		dispatcher: dispatcher,
		secrets:    secrets,
		logger:     logger,
		metrics:    metrics,
	}
}

func ack(msg string) *Result {
	return &Result{HTTPStatus: http.StatusOK, Success: true, Message: msg}
}

func reject(status int, msg string) *Result {
	return &Result{HTTPStatus: status, Success: false, Message: msg}
}

// Handle processes one inbound carrier callback. Failures that are ours
// (lookup, storage) are acknowledged so the carrier does not retry-storm;
// unauthenticated or malformed requests are the carrier's and get a 4xx.
func (p *Pipeline) Handle(ctx context.Context, t courier.CourierType, payload []byte, headers http.Header) *Result {
	carrier := string(t)

	handler, err := p.registry.Webhook(t)
	if err != nil {
		p.metrics.RecordInboundWebhook(carrier, "unknown_carrier")
		return reject(http.StatusNotFound, "unknown carrier")
	}

	if !handler.VerifyWebhook(payload, headers, p.secrets(t)) {
		p.metrics.RecordInboundWebhook(carrier, "unauthorized")
		p.logger.Warn("Rejected webhook with invalid signature", zap.String("carrier", carrier))
		return reject(http.StatusUnauthorized, "invalid signature")
	}

	ev, err := handler.ParseWebhook(payload)
	if err != nil {
		var cerr *courier.CourierError
		if errors.As(err, &cerr) && cerr.Code == "UNKNOWN_STATUS" {
			// Our mapping gap, not the carrier's problem.
			p.metrics.RecordInboundWebhook(carrier, "unmapped_status")
			p.logger.Warn("Acknowledged webhook with unmapped status",
				zap.String("carrier", carrier), zap.Error(err))
			return ack("status not tracked")
		}
		p.metrics.RecordInboundWebhook(carrier, "malformed")
		return reject(http.StatusBadRequest, "malformed payload")
	}

	key := idempotencyKey(t, ev.EventID, payload)
	first, err := p.events.CheckAndRecord(ctx, key)
	if err != nil {
		p.metrics.RecordInboundWebhook(carrier, "dedup_error")
		p.logger.Error("Idempotency check failed", zap.String("carrier", carrier), zap.Error(err))
		return ack("accepted")
	}
	if !first {
		p.metrics.RecordInboundWebhook(carrier, "duplicate")
		return ack("duplicate ignored")
	}

	shipment, err := p.shipments.GetByAWB(ctx, ev.TrackingNumber)
	if err != nil {
		if errors.Is(err, lifecycle.ErrShipmentNotFound) {
			p.metrics.RecordInboundWebhook(carrier, "unknown_awb")
			p.logger.Info("Acknowledged webhook for unknown tracking number",
				zap.String("carrier", carrier), zap.String("awb", ev.TrackingNumber))
			return ack("tracking number not found")
		}
		p.releaseKey(key)
		p.metrics.RecordInboundWebhook(carrier, "lookup_error")
		p.logger.Error("Shipment lookup failed", zap.String("carrier", carrier), zap.Error(err))
		return ack("accepted")
	}

	applied, err := p.apply(ctx, shipment, ev)
	if err != nil {
		p.releaseKey(key)
		p.metrics.RecordInboundWebhook(carrier, "apply_error")
		p.logger.Error("Failed to apply webhook transition",
			zap.String("carrier", carrier),
			zap.String("shipment_id", shipment.ID),
			zap.Error(err))
		return ack("accepted")
	}
	if !applied {
		// Stale or replayed status; the state machine already moved on.
		p.metrics.RecordInboundWebhook(carrier, "stale")
		return ack("stale event ignored")
	}

	p.metrics.RecordInboundWebhook(carrier, "applied")
	return ack("processed")
}

// apply drives the shipment and NDR state machines for one event. It
// reloads and retries on version conflicts with concurrent transitions.
// applied=false means the event was stale or duplicated.
func (p *Pipeline) apply(ctx context.Context, shipment *lifecycle.Shipment, ev *courier.WebhookEvent) (bool, error) {
	var applyErr error
	for i := 0; i < applyRetries; i++ {
		applyErr = shipment.Apply(ev.Status, ev.Location, ev.Remarks, lifecycle.SourceCarrier, ev.Timestamp)
		if applyErr != nil {
			break
		}
		err := p.shipments.Update(ctx, shipment)
		if err == nil {
			applyErr = nil
			break
		}
		if !errors.Is(err, lifecycle.ErrVersionConflict) {
			return false, err
		}
		reloaded, err := p.shipments.Get(ctx, shipment.ID)
		if err != nil {
			return false, err
		}
		shipment = reloaded
		applyErr = lifecycle.ErrVersionConflict
	}
	if applyErr != nil {
		if errors.Is(applyErr, courier.ErrDuplicateEvent) && isNdrSignal(ev) {
			// Carriers push consecutive failed-attempt scans without an
			// intervening movement scan; the open case records each one.
			if err := p.openOrUpdateNdr(ctx, shipment, ev); err != nil {
				return false, err
			}
			return true, nil
		}
		if errors.Is(applyErr, courier.ErrDuplicateEvent) || errors.Is(applyErr, courier.ErrInvalidTransition) {
			return false, nil
		}
		return false, applyErr
	}

	if isNdrSignal(ev) {
		if err := p.openOrUpdateNdr(ctx, shipment, ev); err != nil {
			p.logger.Error("Failed to record NDR signal",
				zap.String("shipment_id", shipment.ID), zap.Error(err))
		}
	}

	p.emit(ctx, shipment, ev)
	return true, nil
}

// isNdrSignal reports whether the event is a non-delivery signal.
func isNdrSignal(ev *courier.WebhookEvent) bool {
	return ev.NonDelivery || ev.Status == courier.StatusNdrRaised
}

// openOrUpdateNdr appends the signal to the open case or opens a new one.
func (p *Pipeline) openOrUpdateNdr(ctx context.Context, shipment *lifecycle.Shipment, ev *courier.WebhookEvent) error {
	ndrEvent := dispatch.EventNdrUpdated
	open, err := p.ndrs.FindOpenByShipment(ctx, shipment.ID)
	switch {
	case err == nil:
		if err := open.RecordSignal(ev.NdrReason, ev.Remarks); err != nil {
			return err
		}
		if err := p.ndrs.Update(ctx, open); err != nil {
			return err
		}
	case errors.Is(err, lifecycle.ErrNdrNotFound):
		ndrEvent = dispatch.EventNdrOpened
		ndr := lifecycle.NewNdrCase(shipment.ID, shipment.TenantID, shipment.AWB, ev.NdrReason)
		if ev.Remarks != "" {
			ndr.Remarks = append(ndr.Remarks, lifecycle.NdrRemark{
				Text:      ev.Remarks,
				Author:    string(lifecycle.SourceCarrier),
				Timestamp: time.Now().UTC(),
			})
		}
		if err := p.ndrs.Create(ctx, ndr); err != nil {
			return err
		}
	default:
		return err
	}

	return p.dispatcher.Dispatch(ctx, &dispatch.DomainEvent{
		ID:         uuid.NewString(),
		Type:       ndrEvent,
		TenantID:   shipment.TenantID,
		OccurredAt: time.Now().UTC(),
		Data: map[string]interface{}{
			"shipmentId":     shipment.ID,
			"trackingNumber": shipment.AWB,
			"reason":         ev.NdrReason,
		},
	})
}

// emit broadcasts the applied transition to outbound subscribers.
func (p *Pipeline) emit(ctx context.Context, shipment *lifecycle.Shipment, ev *courier.WebhookEvent) {
	domainEvent := &dispatch.DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventTypeFor(ev.Status),
		TenantID:   shipment.TenantID,
		OccurredAt: time.Now().UTC(),
		Data: map[string]interface{}{
			"shipmentId":     shipment.ID,
			"orderRef":       shipment.OrderRef,
			"trackingNumber": shipment.AWB,
			"status":         string(ev.Status),
			"location":       ev.Location,
			"remarks":        ev.Remarks,
			"timestamp":      ev.Timestamp.UTC().Format(time.RFC3339),
		},
	}
	if err := p.dispatcher.Dispatch(ctx, domainEvent); err != nil {
		p.logger.Error("Failed to dispatch domain event",
			zap.String("shipment_id", shipment.ID), zap.Error(err))
	}
}

func (p *Pipeline) releaseKey(key string) {
	if err := p.events.Release(context.Background(), key); err != nil {
		p.logger.Error("Failed to release idempotency key", zap.Error(err))
	}
}

func eventTypeFor(status courier.ShipmentStatus) dispatch.EventType {
	switch status {
	case courier.StatusAwbAssigned:
		return dispatch.EventShipmentAwbAssigned
	case courier.StatusDelivered:
		return dispatch.EventShipmentDelivered
	case courier.StatusCancelled:
		return dispatch.EventShipmentCancelled
	default:
		return dispatch.EventShipmentStatusChanged
	}
}

// idempotencyKey is the carrier-scoped dedup key: the carrier-native event
// id when present, otherwise a hash of the raw payload.
func idempotencyKey(t courier.CourierType, eventID string, payload []byte) string {
	if eventID != "" {
		return fmt.Sprintf("%s:%s", t, eventID)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:sha256:%s", t, hex.EncodeToString(sum[:]))
}
