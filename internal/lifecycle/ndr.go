package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipstack/courier/pkg/courier"
)

// NdrStatus is the state of a non-delivery case.
type NdrStatus string

const (
	NdrOpen               NdrStatus = "open"
	NdrAssigned           NdrStatus = "assigned"
	NdrReattemptScheduled NdrStatus = "reattempt_scheduled"
	NdrResolved           NdrStatus = "resolved"
	NdrEscalated          NdrStatus = "escalated"
)

// ActionChannel is how an agent reached out about a failed delivery.
type ActionChannel string

const (
	ChannelCall     ActionChannel = "call"
	ChannelSMS      ActionChannel = "sms"
	ChannelWhatsApp ActionChannel = "whatsapp"
	ChannelEmail    ActionChannel = "email"
)

// NdrAction is one logged outreach attempt. Actions are additive and do
// not change the case state.
type NdrAction struct {
	Channel   ActionChannel
	Outcome   string
	Agent     string
	Timestamp time.Time
}

// NdrRemark is one free-text note on the case.
type NdrRemark struct {
	Text      string
	Author    string
	Timestamp time.Time
}

// ReattemptPlan carries a scheduled redelivery and an optional corrected
// address.
type ReattemptPlan struct {
	ScheduledFor     time.Time
	CorrectedAddress *courier.Address
}

// NdrCase tracks one failed-delivery episode for a shipment. A shipment
// has at most one open case; further NDR signals append to it.
type NdrCase struct {
	ID           string
	ShipmentID   string
	TenantID     string
	AWB          string
	ReasonCode   string
	Agent        string
	Status       NdrStatus
	Actions      []NdrAction
	Remarks      []NdrRemark
	Reattempt    *ReattemptPlan
	NextFollowUp *time.Time
	Resolution   string
	AttemptCount int // NDR signals recorded on this case

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewNdrCase opens a case for a failed delivery attempt.
func NewNdrCase(shipmentID, tenantID, awb, reasonCode string) *NdrCase {
	now := time.Now().UTC()
	return &NdrCase{
		ID:           uuid.NewString(),
		ShipmentID:   shipmentID,
		TenantID:     tenantID,
		AWB:          awb,
		ReasonCode:   reasonCode,
		Status:       NdrOpen,
		AttemptCount: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsOpen reports whether the case still accepts signals and edits.
func (n *NdrCase) IsOpen() bool {
	return n.Status != NdrResolved && n.Status != NdrEscalated
}

func (n *NdrCase) touch() {
	n.UpdatedAt = time.Now().UTC()
}

func (n *NdrCase) guardOpen() error {
	if !n.IsOpen() {
		return fmt.Errorf("%w: ndr case %s is %s", courier.ErrInvalidTransition, n.ID, n.Status)
	}
	return nil
}

// Assign records the agent working the case.
func (n *NdrCase) Assign(agent string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.Agent = agent
	if n.Status == NdrOpen {
		n.Status = NdrAssigned
	}
	n.touch()
	return nil
}

// LogAction appends an outreach attempt without changing state.
func (n *NdrCase) LogAction(channel ActionChannel, outcome, agent string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.Actions = append(n.Actions, NdrAction{
		Channel:   channel,
		Outcome:   outcome,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
	})
	n.touch()
	return nil
}

// AddRemark appends a free-text note.
func (n *NdrCase) AddRemark(text, author string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.Remarks = append(n.Remarks, NdrRemark{
		Text:      text,
		Author:    author,
		Timestamp: time.Now().UTC(),
	})
	n.touch()
	return nil
}

// ScheduleReattempt records a future redelivery. The timestamp must be in
// the future; the corrected address is optional.
func (n *NdrCase) ScheduleReattempt(at time.Time, corrected *courier.Address) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	if !at.After(time.Now()) {
		return fmt.Errorf("reattempt must be scheduled in the future, got %s", at.Format(time.RFC3339))
	}
	n.Reattempt = &ReattemptPlan{ScheduledFor: at, CorrectedAddress: corrected}
	n.NextFollowUp = &at
	n.Status = NdrReattemptScheduled
	n.touch()
	return nil
}

// RecordSignal appends a further NDR signal from the carrier. A scheduled
// reattempt that fails again reopens the case.
func (n *NdrCase) RecordSignal(reasonCode, remarks string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.AttemptCount++
	if reasonCode != "" {
		n.ReasonCode = reasonCode
	}
	if remarks != "" {
		n.Remarks = append(n.Remarks, NdrRemark{
			Text:      remarks,
			Author:    string(SourceCarrier),
			Timestamp: time.Now().UTC(),
		})
	}
	if n.Status == NdrReattemptScheduled {
		n.Status = NdrOpen
		n.Reattempt = nil
	}
	n.touch()
	return nil
}

// Resolve closes the case with an outcome. Terminal.
func (n *NdrCase) Resolve(outcome string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.Status = NdrResolved
	n.Resolution = outcome
	n.touch()
	return nil
}

// Escalate closes the case as escalated. Terminal.
func (n *NdrCase) Escalate(reason string) error {
	if err := n.guardOpen(); err != nil {
		return err
	}
	n.Status = NdrEscalated
	n.Resolution = reason
	n.touch()
	return nil
}
