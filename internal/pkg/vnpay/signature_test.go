package vnpay

import "testing"

func TestBuildSignatureBase_SortedAndEncoded(t *testing.T) {
	base := BuildSignatureBase(map[string]string{
		"vnp_TxnRef":     "ORD-42",
		"vnp_Amount":     "50000000",
		"vnp_OrderInfo":  "Order #42 payment",
		"vnp_SecureHash": "should-be-excluded",
	})

	expected := "vnp_Amount=50000000&vnp_OrderInfo=Order+%2342+payment&vnp_TxnRef=ORD-42"
	if base != expected {
		t.Fatalf("unexpected base string:\nwant %s\ngot  %s", expected, base)
	}
}

func TestVerifySecureHash_RoundTrip(t *testing.T) {
	secret := "test-secret"
	params := map[string]string{
		"vnp_TxnRef":       "ORD-7",
		"vnp_Amount":       "100000",
		"vnp_ResponseCode": "00",
	}
	params[ParamSecureHash] = HashParams(params, secret)

	if !VerifySecureHash(params, secret) {
		t.Fatal("expected checksum to verify")
	}
}

func TestVerifySecureHash_RejectsTamperedParams(t *testing.T) {
	secret := "test-secret"
	params := map[string]string{
		"vnp_TxnRef": "ORD-7",
		"vnp_Amount": "100000",
	}
	params[ParamSecureHash] = HashParams(params, secret)

	params["vnp_Amount"] = "1"
	if VerifySecureHash(params, secret) {
		t.Fatal("expected tampered params to fail verification")
	}
}

func TestVerifySecureHash_MissingHashOrSecret(t *testing.T) {
	if VerifySecureHash(map[string]string{"vnp_TxnRef": "x"}, "secret") {
		t.Fatal("expected missing hash to fail")
	}
	if VerifySecureHash(map[string]string{ParamSecureHash: "abc"}, "") {
		t.Fatal("expected empty secret to fail closed")
	}
}
