package delhivery

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shipstack/courier/pkg/courier"
)

// webhookPayload is the Delhivery scan-push callback body.
type webhookPayload struct {
	Shipment struct {
		AWB         string     `json:"AWB"`
		ReferenceNo string     `json:"ReferenceNo"`
		Status      ScanStatus `json:"Status"`
		NSLCode     string     `json:"NSLCode"`
	} `json:"Shipment"`
}

// VerifyWebhook checks the optional shared-secret header. Delhivery does not
// sign payloads; tenants that configure a secret get a constant-time header
// comparison, others accept all callbacks.
func (c *Client) VerifyWebhook(payload []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	got := headers.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// ParseWebhook translates a Delhivery scan push into a normalized event.
// The NSL scan code doubles as the carrier-native event discriminator.
func (c *Client) ParseWebhook(payload []byte) (*courier.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "malformed webhook body").WithCause(err)
	}
	if p.Shipment.AWB == "" {
		return nil, courier.NewCourierError(courierType, "BAD_PAYLOAD", "webhook missing AWB")
	}

	st := p.Shipment.Status
	ev := &courier.WebhookEvent{
		TrackingNumber: p.Shipment.AWB,
		CarrierCode:    st.Status,
		Location:       st.StatusLocation,
		Remarks:        st.Instructions,
		Timestamp:      time.Now(),
	}
	if p.Shipment.NSLCode != "" {
		ev.EventID = p.Shipment.AWB + ":" + p.Shipment.NSLCode + ":" + st.StatusDateTime
	}
	if ts, err := parseScanTime(st.StatusDateTime); err == nil {
		ev.Timestamp = ts
	}

	status, ok := MapStatus(st.Status, st.StatusType)
	if !ok {
		return nil, courier.NewCourierError(courierType, "UNKNOWN_STATUS", "unmapped status "+st.Status)
	}
	ev.Status = status
	if status == courier.StatusNdrRaised {
		ev.NonDelivery = true
		ev.NdrReason = orDefault(st.Instructions, st.Status)
	}
	return ev, nil
}

var _ courier.WebhookHandler = (*Client)(nil)
