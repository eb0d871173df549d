package shiprocket

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shipstack/courier/pkg/courier"
)

// webhookPayload is the Shiprocket status-update callback body.
type webhookPayload struct {
	AWB              string `json:"awb"`
	CurrentStatus    string `json:"current_status"`
	CurrentStatusID  int    `json:"current_status_id"`
	OrderID          string `json:"order_id"`
	CurrentTimestamp string `json:"current_timestamp"`
	ETD              string `json:"etd"`
	Scans            []struct {
		Date     string `json:"date"`
		Activity string `json:"activity"`
		Location string `json:"location"`
	} `json:"scans"`
}

// VerifyWebhook checks the shared token Shiprocket echoes in the x-api-key
// header. Comparison is constant time. An empty configured secret means the
// tenant has not enabled verification.
func (c *Client) VerifyWebhook(payload []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	got := headers.Get("x-api-key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// ParseWebhook translates a Shiprocket callback into a normalized event.
// Shiprocket supplies no native event id; the ingestion layer falls back to
// a payload hash for deduplication.
func (c *Client) ParseWebhook(payload []byte) (*courier.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "malformed webhook body").WithCause(err)
	}
	if p.AWB == "" {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "webhook missing awb")
	}

	ev := &courier.WebhookEvent{
		TrackingNumber: p.AWB,
		CarrierCode:    strconv.Itoa(p.CurrentStatusID),
		Timestamp:      time.Now(),
		Remarks:        p.CurrentStatus,
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", p.CurrentTimestamp); err == nil {
		ev.Timestamp = ts
	}
	if len(p.Scans) > 0 {
		last := p.Scans[len(p.Scans)-1]
		ev.Location = last.Location
		if last.Activity != "" {
			ev.Remarks = last.Activity
		}
	}

	status, ok := MapStatusID(p.CurrentStatusID)
	if !ok {
		return nil, courier.NewCourierError(courierType, "UNKNOWN_STATUS",
			"unmapped status id "+strconv.Itoa(p.CurrentStatusID))
	}
	ev.Status = status
	if status == courier.StatusNdrRaised {
		ev.NonDelivery = true
		ev.NdrReason = p.CurrentStatus
	}
	return ev, nil
}

var _ courier.WebhookHandler = (*Client)(nil)
