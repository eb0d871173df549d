package bluedart

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/shipstack/courier/pkg/courier"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-BlueDart-Signature"

// webhookPayload is the BlueDart status-push callback body.
type webhookPayload struct {
	AWBNo      string `json:"AWBNo"`
	StatusCode string `json:"StatusType"`
	Status     string `json:"Status"`
	StatusDate string `json:"StatusDate"`
	StatusTime string `json:"StatusTime"`
	Location   string `json:"Location"`
	Remarks    string `json:"Remarks"`
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

// ParseWebhook translates a BlueDart status push into a normalized event.
// The (awb, status code, scan time) triple serves as the event id.
func (c *Client) ParseWebhook(payload []byte) (*courier.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "malformed webhook body").WithCause(err)
	}
	if p.AWBNo == "" {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "webhook missing AWBNo")
	}

	status, ok := MapStatusCode(p.StatusCode)
	if !ok {
		return nil, courier.NewCourierError(courierType, "UNKNOWN_STATUS", "unmapped status code "+p.StatusCode)
	}

	ev := &courier.WebhookEvent{
		EventID:        p.AWBNo + ":" + p.StatusCode + ":" + p.StatusDate + p.StatusTime,
		TrackingNumber: p.AWBNo,
		CarrierCode:    p.StatusCode,
		Status:         status,
		Timestamp:      parseScanTimestamp(p.StatusDate, p.StatusTime),
		Location:       p.Location,
		Remarks:        orDefault(p.Remarks, p.Status),
	}
	if status == courier.StatusNdrRaised {
		ev.NonDelivery = true
		ev.NdrReason = orDefault(p.Remarks, p.Status)
	}
	return ev, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var _ courier.WebhookHandler = (*Client)(nil)
