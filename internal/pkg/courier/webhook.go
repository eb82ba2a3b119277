package courier

import (
	"encoding/json"
	"io"
	"strings"
)

// DeliveryWebhook represents a courier status callback. Couriers disagree on
// field names and codes, so every field is optional and unknown fields are
// ignored.
type DeliveryWebhook struct {
	TrackingCode string `json:"tracking_code"`
	OrderNo      string `json:"order_no"`
	Status       string `json:"status"`
	StatusCode   string `json:"status_code"`
}

// ParseDeliveryWebhook decodes a webhook body. A malformed body yields an
// empty payload, not an error; the webhook endpoint always answers success.
func ParseDeliveryWebhook(body io.Reader) DeliveryWebhook {
	var payload DeliveryWebhook
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return DeliveryWebhook{}
	}
	return payload
}

// IsDelivered reports whether the payload carries a delivered status.
func (w DeliveryWebhook) IsDelivered() bool {
	status := strings.ToLower(strings.TrimSpace(w.Status))
	if status == "delivered" || status == "completed" {
		return true
	}
	// Some couriers only send a numeric code; "5" is delivered.
	return strings.TrimSpace(w.StatusCode) == "5"
}

// Reference returns the identifier to match an order by: tracking code first,
// then the platform's own order number.
func (w DeliveryWebhook) Reference() (trackingCode, orderNo string) {
	return strings.TrimSpace(w.TrackingCode), strings.TrimSpace(w.OrderNo)
}
