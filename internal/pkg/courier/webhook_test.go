package courier

import (
	"strings"
	"testing"
)

func TestParseDeliveryWebhook(t *testing.T) {
	body := `{"tracking_code":"TRK123","order_no":"ORD-1","status":"delivered","status_code":"5"}`
	w := ParseDeliveryWebhook(strings.NewReader(body))
	if w.TrackingCode != "TRK123" || w.OrderNo != "ORD-1" {
		t.Errorf("parsed = %+v", w)
	}
	if !w.IsDelivered() {
		t.Error("expected delivered")
	}
}

func TestParseDeliveryWebhookMalformed(t *testing.T) {
	w := ParseDeliveryWebhook(strings.NewReader("not json"))
	if w.TrackingCode != "" || w.IsDelivered() {
		t.Errorf("malformed body should yield empty payload, got %+v", w)
	}
}

func TestIsDelivered(t *testing.T) {
	cases := []struct {
		hook DeliveryWebhook
		want bool
	}{
		{DeliveryWebhook{Status: "delivered"}, true},
		{DeliveryWebhook{Status: "COMPLETED"}, true},
		{DeliveryWebhook{StatusCode: "5"}, true},
		{DeliveryWebhook{Status: "in_transit"}, false},
		{DeliveryWebhook{Status: "picked_up", StatusCode: "2"}, false},
		{DeliveryWebhook{}, false},
	}
	for _, tc := range cases {
		if got := tc.hook.IsDelivered(); got != tc.want {
			t.Errorf("IsDelivered(%+v) = %v, want %v", tc.hook, got, tc.want)
		}
	}
}
