package dtdc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shipstack/courier/pkg/courier"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Dtdc-Signature"

// webhookPayload is the DTDC status-push callback body. DTDC assigns each
// push a unique event id.
type webhookPayload struct {
	EventID       string `json:"event_id"`
	ConsignmentNo string `json:"consignment_number"`
	StatusCode    string `json:"status_code"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"` // RFC 3339
	Location      string `json:"location"`
	Remarks       string `json:"remarks"`
	NDRReason     string `json:"ndr_reason,omitempty"`
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw body.
func (c *Client) VerifyWebhook(payload []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(headers.Get(SignatureHeader)), []byte(want))
}

// ParseWebhook translates a DTDC status push into a normalized event,
// keeping the carrier-assigned event id for deduplication.
func (c *Client) ParseWebhook(payload []byte) (*courier.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "malformed webhook body").WithCause(err)
	}
	if p.ConsignmentNo == "" {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "webhook missing consignment_number")
	}

	status, ok := MapStatusCode(p.StatusCode)
	if !ok {
		return nil, courier.NewCourierError(courierType, "UNKNOWN_STATUS", "unmapped status code "+p.StatusCode)
	}

	ts, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	ev := &courier.WebhookEvent{
		EventID:        p.EventID,
		TrackingNumber: p.ConsignmentNo,
		CarrierCode:    p.StatusCode,
		Status:         status,
		Timestamp:      ts,
		Location:       p.Location,
		Remarks:        p.Remarks,
	}
	if status == courier.StatusNdrRaised {
		ev.NonDelivery = true
		ev.NdrReason = p.NDRReason
		if ev.NdrReason == "" {
			ev.NdrReason = p.Remarks
		}
	}
	return ev, nil
}

var _ courier.WebhookHandler = (*Client)(nil)
