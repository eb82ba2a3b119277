package vnpay

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBuildPaymentURL_SignedAndMinorUnits(t *testing.T) {
	client := NewClient(Config{
		TmnCode:    "NEXMART1",
		HashSecret: "secret",
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://nexmart.example/payments/return",
	})

	raw, err := client.BuildPaymentURL(PaymentRequest{
		TxnRef:    "ORD-1001",
		Amount:    decimal.RequireFromString("500000"),
		OrderInfo: "Order ORD-1001",
		IPAddr:    "203.0.113.9",
		CreatedAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	q := parsed.Query()

	if got := q.Get("vnp_Amount"); got != "50000000" {
		t.Fatalf("expected amount x100 minor units, got %s", got)
	}
	if got := q.Get("vnp_CreateDate"); got != "20250601103000" {
		t.Fatalf("unexpected create date: %s", got)
	}

	params := map[string]string{}
	for k := range q {
		params[k] = q.Get(k)
	}
	if !VerifySecureHash(params, "secret") {
		t.Fatal("payment URL checksum does not verify")
	}
}

func TestBuildPaymentURL_Validation(t *testing.T) {
	client := NewClient(Config{TmnCode: "NEXMART1", HashSecret: "secret"})

	if _, err := client.BuildPaymentURL(PaymentRequest{TxnRef: "", Amount: decimal.NewFromInt(1)}); err == nil {
		t.Fatal("expected error for empty txn_ref")
	}
	if _, err := client.BuildPaymentURL(PaymentRequest{TxnRef: "ORD-1", Amount: decimal.Zero}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestFromMinorUnits(t *testing.T) {
	amount, err := FromMinorUnits("50000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("500000")) {
		t.Fatalf("expected 500000, got %s", amount)
	}

	if _, err := FromMinorUnits("not-a-number"); err == nil {
		t.Fatal("expected parse error")
	}
}
