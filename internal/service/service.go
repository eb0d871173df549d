// Package service is the collaborator-facing core: the operations the
// surrounding request-routing layer invokes.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/internal/telemetry"
	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/credstore"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service wires the registry, stores, and dispatcher behind the exposed
// operations.
type Service struct {
	registry   *courier.Registry
	accounts   credstore.Store
	shipments  lifecycle.ShipmentStore
	ndrs       lifecycle.NdrStore
	subs       dispatch.SubscriptionStore
	deliveries dispatch.DeliveryStore
	dispatcher *dispatch.Dispatcher
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
}

// New creates the core service.
func New(
	registry *courier.Registry,
	accounts credstore.Store,
	shipments lifecycle.ShipmentStore,
	ndrs lifecycle.NdrStore,
	subs dispatch.SubscriptionStore,
	deliveries dispatch.DeliveryStore,
	dispatcher *dispatch.Dispatcher,
	logger *otelzap.Logger,
	metrics *telemetry.Metrics,
	tracer trace.Tracer,
) *Service {
	return &Service{
		registry:   registry,
		accounts:   accounts,
		shipments:  shipments,
		ndrs:       ndrs,
		subs:       subs,
		deliveries: deliveries,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// CreateShipmentInput is the request for CreateShipment.
type CreateShipmentInput struct {
	TenantID  string
	AccountID string
	Request   courier.ShipmentRequest
}

// CreateShipment books a shipment on the account's carrier. A carrier
// partial success (order created, AWB pending) is saved as a Created
// shipment with the AWB error stored, ready for a later AssignCourier.
func (s *Service) CreateShipment(ctx context.Context, in CreateShipmentInput) (*lifecycle.Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateShipment")
	defer span.End()

	creds, account, err := credstore.Resolve(ctx, s.accounts, in.AccountID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(account.Type)
	if err != nil {
		return nil, err
	}
	if in.Request.PickupLocation == "" {
		in.Request.PickupLocation = account.PickupLocation
	}
	if in.Request.ChannelID == "" {
		in.Request.ChannelID = account.ChannelID
	}

	start := time.Now()
	resp, err := adapter.CreateShipment(ctx, creds, &in.Request)
	s.metrics.RecordRequest("create_shipment", string(account.Type), statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(string(account.Type), errorLabel(err))
		return nil, err
	}

	shipment := lifecycle.NewShipment(in.TenantID, in.Request.OrderRef)
	shipment.AccountID = in.AccountID
	shipment.CourierType = account.Type
	shipment.CourierName = resp.CourierName
	shipment.ExternalOrderID = resp.ExternalOrderID
	shipment.ExternalShipmentID = resp.ExternalShipmentID
	shipment.Consignee = in.Request.Consignee
	shipment.Pickup = in.Request.Pickup
	shipment.WeightKG = in.Request.WeightKG
	shipment.Dimensions = in.Request.Dimensions
	shipment.PaymentMode = in.Request.PaymentMode
	shipment.CODAmount = in.Request.CODAmount

	if resp.Partial() {
		shipment.AWBError = resp.AWBError
		s.logger.Warn("Shipment created without AWB",
			zap.String("order_ref", in.Request.OrderRef),
			zap.String("awb_error", resp.AWBError))
	} else {
		if err := shipment.AssignAWB(resp.TrackingNumber, resp.CourierName, in.AccountID, account.Type, lifecycle.SourceCarrier); err != nil {
			return nil, err
		}
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, fmt.Errorf("save shipment: %w", err)
	}

	if shipment.AWB != "" {
		s.emitShipmentEvent(ctx, shipment, dispatch.EventShipmentAwbAssigned, nil)
	}
	return shipment, nil
}

// GetTracking returns the carrier's normalized tracking state for a
// shipment's active AWB.
func (s *Service) GetTracking(ctx context.Context, shipmentID string) (*courier.TrackingResponse, error) {
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.AWB == "" {
		return nil, courier.ErrAWBNotAssigned
	}
	creds, account, err := credstore.Resolve(ctx, s.accounts, shipment.AccountID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(account.Type)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tracking, err := adapter.GetTracking(ctx, creds, shipment.AWB)
	s.metrics.RecordRequest("get_tracking", string(account.Type), statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(string(account.Type), errorLabel(err))
		return nil, err
	}
	return tracking, nil
}

// CancelShipment cancels on the carrier side, then retires the AWB and
// moves the shipment to Cancelled with source "manual".
func (s *Service) CancelShipment(ctx context.Context, shipmentID, remarks string) (*lifecycle.Shipment, error) {
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	// Reject locally before touching the carrier; a delivered or already
	// cancelled shipment must not fire a live cancel call.
	if !shipment.CanTransition(courier.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", courier.ErrInvalidTransition, shipment.Status, courier.StatusCancelled)
	}
	if shipment.AWB != "" {
		creds, account, err := credstore.Resolve(ctx, s.accounts, shipment.AccountID)
		if err != nil {
			return nil, err
		}
		adapter, err := s.registry.Get(account.Type)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		err = adapter.CancelShipment(ctx, creds, shipment.AWB)
		s.metrics.RecordRequest("cancel_shipment", string(account.Type), statusLabel(err), time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordError(string(account.Type), errorLabel(err))
			return nil, err
		}
	}

	if err := shipment.Cancel(remarks, lifecycle.SourceManual); err != nil {
		return nil, err
	}
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, err
	}
	s.emitShipmentEvent(ctx, shipment, dispatch.EventShipmentCancelled, map[string]interface{}{"remarks": remarks})
	return shipment, nil
}

// GetAvailableCouriers rate-shops the tenant's active courier accounts.
// Zero serviceable carriers is an empty result, not an error.
func (s *Service) GetAvailableCouriers(ctx context.Context, tenantID string, req *courier.RateRequest) ([]courier.Rate, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetAvailableCouriers")
	defer span.End()

	accounts, err := s.accounts.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rateAccounts := make([]courier.RateAccount, 0, len(accounts))
	for _, a := range accounts {
		creds := a.Credentials
		creds.CacheKey = a.TenantID + ":" + a.ID
		rateAccounts = append(rateAccounts, courier.RateAccount{
			AccountID:   a.ID,
			Type:        a.Type,
			Credentials: creds,
			Priority:    a.Priority,
		})
	}

	rates, errs := s.registry.ShopRates(ctx, rateAccounts, req)
	for _, err := range errs {
		s.logger.Warn("Rate shopping carrier error", zap.Error(err))
	}
	return rates, nil
}

// AssignCourier assigns an AWB to a shipment that has none, or moves it
// to a different account. Carriers that support standalone assignment get
// that call; others get a fresh booking.
func (s *Service) AssignCourier(ctx context.Context, shipmentID, accountID, courierID string) (*lifecycle.Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "service.AssignCourier")
	defer span.End()

	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	creds, account, err := credstore.Resolve(ctx, s.accounts, accountID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(account.Type)
	if err != nil {
		return nil, err
	}

	var awb, courierName string
	assigner, ok := adapter.(courier.AWBAssigner)
	if ok && shipment.ExternalShipmentID != "" && account.Type == shipment.CourierType {
		assignment, err := assigner.AssignAWB(ctx, creds, shipment.ExternalShipmentID, courierID)
		if err != nil {
			s.metrics.RecordError(string(account.Type), errorLabel(err))
			return nil, err
		}
		awb, courierName = assignment.TrackingNumber, assignment.CourierName
	} else {
		req := courier.ShipmentRequest{
			OrderRef:       shipment.OrderRef,
			PickupLocation: account.PickupLocation,
			ChannelID:      account.ChannelID,
			CourierID:      courierID,
			Consignee:      shipment.Consignee,
			Pickup:         shipment.Pickup,
			WeightKG:       shipment.WeightKG,
			Dimensions:     shipment.Dimensions,
			PaymentMode:    shipment.PaymentMode,
			CODAmount:      shipment.CODAmount,
		}
		resp, err := adapter.CreateShipment(ctx, creds, &req)
		if err != nil {
			s.metrics.RecordError(string(account.Type), errorLabel(err))
			return nil, err
		}
		if resp.Partial() {
			shipment.AWBError = resp.AWBError
			if err := s.shipments.Update(ctx, shipment); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", courier.ErrAWBNotAssigned, resp.AWBError)
		}
		awb, courierName = resp.TrackingNumber, resp.CourierName
		shipment.ExternalOrderID = resp.ExternalOrderID
		shipment.ExternalShipmentID = resp.ExternalShipmentID
	}

	if err := shipment.AssignAWB(awb, courierName, accountID, account.Type, lifecycle.SourceManual); err != nil {
		return nil, err
	}
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, err
	}
	s.emitShipmentEvent(ctx, shipment, dispatch.EventShipmentAwbAssigned, nil)
	return shipment, nil
}

// SchedulePickup books a carrier pickup for a shipment's account.
func (s *Service) SchedulePickup(ctx context.Context, shipmentID string, date time.Time, slot string, count int) (*courier.PickupResponse, error) {
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	creds, account, err := credstore.Resolve(ctx, s.accounts, shipment.AccountID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(account.Type)
	if err != nil {
		return nil, err
	}
	return adapter.SchedulePickup(ctx, creds, &courier.PickupRequest{
		PickupLocation:     account.PickupLocation,
		ExternalShipmentID: shipment.ExternalShipmentID,
		TrackingNumber:     shipment.AWB,
		Date:               date,
		Slot:               slot,
		ExpectedCount:      count,
	})
}

// GetLabel fetches the label document for a shipment's active AWB.
func (s *Service) GetLabel(ctx context.Context, shipmentID string) ([]byte, error) {
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.AWB == "" {
		return nil, courier.ErrAWBNotAssigned
	}
	creds, account, err := credstore.Resolve(ctx, s.accounts, shipment.AccountID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(account.Type)
	if err != nil {
		return nil, err
	}
	return adapter.GetLabel(ctx, creds, shipment.AWB)
}

func (s *Service) emitShipmentEvent(ctx context.Context, shipment *lifecycle.Shipment, t dispatch.EventType, extra map[string]interface{}) {
	data := map[string]interface{}{
		"shipmentId":     shipment.ID,
		"orderRef":       shipment.OrderRef,
		"trackingNumber": shipment.AWB,
		"status":         string(shipment.Status),
	}
	for k, v := range extra {
		data[k] = v
	}
	err := s.dispatcher.Dispatch(ctx, &dispatch.DomainEvent{
		ID:         uuid.NewString(),
		Type:       t,
		TenantID:   shipment.TenantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		s.logger.Error("Failed to dispatch event",
			zap.String("shipment_id", shipment.ID), zap.Error(err))
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, courier.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, courier.ErrTransport):
		return "transport"
	case errors.Is(err, courier.ErrNotServiceable):
		return "not_serviceable"
	default:
		return "other"
	}
}
