package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/pkg/courier"
	"go.uber.org/zap"
)

// AssignNdrAgent records the agent working an open case.
func (s *Service) AssignNdrAgent(ctx context.Context, ndrID, agent string) (*lifecycle.NdrCase, error) {
	return s.mutateNdr(ctx, ndrID, func(n *lifecycle.NdrCase) error {
		return n.Assign(agent)
	})
}

// LogNdrAction appends an outreach attempt (call, sms, whatsapp, email)
// with its outcome to an open case.
func (s *Service) LogNdrAction(ctx context.Context, ndrID string, channel lifecycle.ActionChannel, outcome, agent string) (*lifecycle.NdrCase, error) {
	switch channel {
	case lifecycle.ChannelCall, lifecycle.ChannelSMS, lifecycle.ChannelWhatsApp, lifecycle.ChannelEmail:
	default:
		return nil, fmt.Errorf("unknown action channel %q", channel)
	}
	return s.mutateNdr(ctx, ndrID, func(n *lifecycle.NdrCase) error {
		return n.LogAction(channel, outcome, agent)
	})
}

// AddNdrRemark appends a free-text note to an open case.
func (s *Service) AddNdrRemark(ctx context.Context, ndrID, text, author string) (*lifecycle.NdrCase, error) {
	return s.mutateNdr(ctx, ndrID, func(n *lifecycle.NdrCase) error {
		return n.AddRemark(text, author)
	})
}

// ScheduleReattempt plans a future redelivery, optionally with a corrected
// consignee address.
func (s *Service) ScheduleReattempt(ctx context.Context, ndrID string, at time.Time, corrected *courier.Address) (*lifecycle.NdrCase, error) {
	ndr, err := s.mutateNdr(ctx, ndrID, func(n *lifecycle.NdrCase) error {
		return n.ScheduleReattempt(at, corrected)
	})
	if err != nil {
		return nil, err
	}
	s.emitNdrEvent(ctx, ndr, dispatch.EventNdrUpdated, map[string]interface{}{
		"reattemptAt": at.UTC().Format(time.RFC3339),
	})
	return ndr, nil
}

// UpdateNdrOutcome closes a case as resolved or escalated.
func (s *Service) UpdateNdrOutcome(ctx context.Context, ndrID string, escalate bool, outcome string) (*lifecycle.NdrCase, error) {
	ndr, err := s.mutateNdr(ctx, ndrID, func(n *lifecycle.NdrCase) error {
		if escalate {
			return n.Escalate(outcome)
		}
		return n.Resolve(outcome)
	})
	if err != nil {
		return nil, err
	}
	s.emitNdrEvent(ctx, ndr, dispatch.EventNdrResolved, map[string]interface{}{
		"resolution": outcome,
		"escalated":  escalate,
	})
	return ndr, nil
}

// OpenNdrCase opens a case manually for a shipment with no open case; a
// second signal on an open case appends instead.
func (s *Service) OpenNdrCase(ctx context.Context, shipmentID, reasonCode, remarks string) (*lifecycle.NdrCase, error) {
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if open, err := s.ndrs.FindOpenByShipment(ctx, shipmentID); err == nil {
		if err := open.RecordSignal(reasonCode, remarks); err != nil {
			return nil, err
		}
		if err := s.ndrs.Update(ctx, open); err != nil {
			return nil, err
		}
		return open, nil
	}

	ndr := lifecycle.NewNdrCase(shipment.ID, shipment.TenantID, shipment.AWB, reasonCode)
	if remarks != "" {
		ndr.Remarks = append(ndr.Remarks, lifecycle.NdrRemark{
			Text:      remarks,
			Author:    string(lifecycle.SourceManual),
			Timestamp: time.Now().UTC(),
		})
	}
	if err := s.ndrs.Create(ctx, ndr); err != nil {
		return nil, err
	}
	s.emitNdrEvent(ctx, ndr, dispatch.EventNdrOpened, nil)
	return ndr, nil
}

// mutateNdr loads, mutates, and saves a case, retrying version conflicts.
func (s *Service) mutateNdr(ctx context.Context, ndrID string, mutate func(*lifecycle.NdrCase) error) (*lifecycle.NdrCase, error) {
	for i := 0; ; i++ {
		ndr, err := s.ndrs.Get(ctx, ndrID)
		if err != nil {
			return nil, err
		}
		if err := mutate(ndr); err != nil {
			return nil, err
		}
		err = s.ndrs.Update(ctx, ndr)
		if err == nil {
			return ndr, nil
		}
		if !errors.Is(err, lifecycle.ErrVersionConflict) || i >= 2 {
			return nil, err
		}
	}
}

func (s *Service) emitNdrEvent(ctx context.Context, ndr *lifecycle.NdrCase, t dispatch.EventType, extra map[string]interface{}) {
	data := map[string]interface{}{
		"ndrId":          ndr.ID,
		"shipmentId":     ndr.ShipmentID,
		"trackingNumber": ndr.AWB,
		"reason":         ndr.ReasonCode,
		"status":         string(ndr.Status),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.dispatcher.Dispatch(ctx, &dispatch.DomainEvent{
		ID:         uuid.NewString(),
		Type:       t,
		TenantID:   ndr.TenantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}); err != nil {
		s.logger.Error("Failed to dispatch NDR event",
			zap.String("ndr_id", ndr.ID), zap.Error(err))
	}
}
