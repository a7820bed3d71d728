package payment

import "testing"

func TestVerifySignature(t *testing.T) {
	const secret = "test-key-secret"
	sig := ExpectedSignature("order_abc", "pay_xyz", secret)

	if !VerifySignature("order_abc", "pay_xyz", sig, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifySignature("order_abc", "pay_other", sig, secret) {
		t.Fatal("expected signature over a different payment to fail")
	}
	if VerifySignature("order_abc", "pay_xyz", sig, "wrong-secret") {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifySignature("order_abc", "pay_xyz", "", secret) {
		t.Fatal("expected empty signature to fail")
	}
	if VerifySignature("", "pay_xyz", sig, secret) {
		t.Fatal("expected empty order id to fail")
	}
}
