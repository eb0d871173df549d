package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/pkg/courier"
)

func newCase() *lifecycle.NdrCase {
	return lifecycle.NewNdrCase("ship-1", "tenant-1", "AWB001", "CONSIGNEE_UNAVAILABLE")
}

func TestNdrCase_New(t *testing.T) {
	n := newCase()

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, lifecycle.NdrOpen, n.Status)
	assert.Equal(t, 1, n.AttemptCount)
	assert.True(t, n.IsOpen())
}

func TestNdrCase_Assign(t *testing.T) {
	n := newCase()

	require.NoError(t, n.Assign("agent-7"))
	assert.Equal(t, "agent-7", n.Agent)
	assert.Equal(t, lifecycle.NdrAssigned, n.Status)

	// Reassignment keeps the assigned state.
	require.NoError(t, n.Assign("agent-9"))
	assert.Equal(t, "agent-9", n.Agent)
	assert.Equal(t, lifecycle.NdrAssigned, n.Status)
}

func TestNdrCase_LogActionAndRemarks(t *testing.T) {
	n := newCase()

	require.NoError(t, n.LogAction(lifecycle.ChannelCall, "no answer", "agent-7"))
	require.NoError(t, n.LogAction(lifecycle.ChannelWhatsApp, "customer replied", "agent-7"))
	require.NoError(t, n.AddRemark("customer travelling until Friday", "agent-7"))

	assert.Len(t, n.Actions, 2)
	assert.Len(t, n.Remarks, 1)
	// Actions are additive, never state changing.
	assert.Equal(t, lifecycle.NdrOpen, n.Status)
}

func TestNdrCase_ScheduleReattempt(t *testing.T) {
	n := newCase()
	at := time.Now().Add(24 * time.Hour)

	require.NoError(t, n.ScheduleReattempt(at, &courier.Address{Line1: "12 MG Road", City: "Bengaluru"}))
	assert.Equal(t, lifecycle.NdrReattemptScheduled, n.Status)
	require.NotNil(t, n.Reattempt)
	assert.Equal(t, at, n.Reattempt.ScheduledFor)
	require.NotNil(t, n.Reattempt.CorrectedAddress)
	require.NotNil(t, n.NextFollowUp)
}

func TestNdrCase_ScheduleReattempt_PastRejected(t *testing.T) {
	n := newCase()

	err := n.ScheduleReattempt(time.Now().Add(-time.Hour), nil)
	require.Error(t, err)
	assert.Equal(t, lifecycle.NdrOpen, n.Status)
}

func TestNdrCase_RecordSignal(t *testing.T) {
	n := newCase()

	require.NoError(t, n.RecordSignal("ADDRESS_ISSUE", "house locked"))
	assert.Equal(t, 2, n.AttemptCount)
	assert.Equal(t, "ADDRESS_ISSUE", n.ReasonCode)
	require.Len(t, n.Remarks, 1)
	assert.Equal(t, "house locked", n.Remarks[0].Text)
}

func TestNdrCase_RecordSignal_ReopensReattempt(t *testing.T) {
	n := newCase()
	require.NoError(t, n.ScheduleReattempt(time.Now().Add(24*time.Hour), nil))

	require.NoError(t, n.RecordSignal("", "second attempt failed"))
	assert.Equal(t, lifecycle.NdrOpen, n.Status)
	assert.Nil(t, n.Reattempt)
	assert.Equal(t, 2, n.AttemptCount)
}

func TestNdrCase_Resolve(t *testing.T) {
	n := newCase()

	require.NoError(t, n.Resolve("delivered on reattempt"))
	assert.Equal(t, lifecycle.NdrResolved, n.Status)
	assert.Equal(t, "delivered on reattempt", n.Resolution)
	assert.False(t, n.IsOpen())
}

func TestNdrCase_Escalate(t *testing.T) {
	n := newCase()

	require.NoError(t, n.Escalate("three failed attempts"))
	assert.Equal(t, lifecycle.NdrEscalated, n.Status)
	assert.False(t, n.IsOpen())
}

func TestNdrCase_ClosedRejectsEdits(t *testing.T) {
	n := newCase()
	require.NoError(t, n.Resolve("rto accepted"))

	for _, err := range []error{
		n.Assign("agent-7"),
		n.LogAction(lifecycle.ChannelSMS, "x", "agent-7"),
		n.AddRemark("x", "agent-7"),
		n.ScheduleReattempt(time.Now().Add(time.Hour), nil),
		n.RecordSignal("", ""),
		n.Resolve("again"),
		n.Escalate("again"),
	} {
		require.Error(t, err)
		assert.ErrorIs(t, err, courier.ErrInvalidTransition)
	}
}
