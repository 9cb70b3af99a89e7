package security

import (
	"encoding/base32"
	"testing"
	"time"
)

// base32 of the RFC 4226 test secret "12345678901234567890".
const rfcTestSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestVerifyTOTP_RFCVector(t *testing.T) {
	// At t=59s the step counter is 1; the RFC 4226 6-digit code for counter 1 is 287082.
	ok, err := VerifyTOTP(rfcTestSecret, "287082", time.Unix(59, 0))
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !ok {
		t.Error("expected RFC vector code to verify")
	}
}

func TestVerifyTOTP_SkewWindow(t *testing.T) {
	// Counter 0's code is 755224; at t=59s (counter 1) it is one step behind and
	// must still verify within the skew window.
	ok, err := VerifyTOTP(rfcTestSecret, "755224", time.Unix(59, 0))
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !ok {
		t.Error("expected previous-step code to verify within skew")
	}

	// Counter 5's code (254676) is far outside the window at counter 1.
	ok, err = VerifyTOTP(rfcTestSecret, "254676", time.Unix(59, 0))
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if ok {
		t.Error("code four steps ahead must not verify")
	}
}

func TestVerifyTOTP_RejectsMalformed(t *testing.T) {
	if ok, _ := VerifyTOTP(rfcTestSecret, "12345", time.Unix(59, 0)); ok {
		t.Error("short code must not verify")
	}
	if _, err := VerifyTOTP("not base32 !!", "123456", time.Unix(59, 0)); err == nil {
		t.Error("bad secret should error")
	}
}

func TestGenerateTOTPSecret_RoundTrip(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		t.Fatalf("secret is not valid base32: %v", err)
	}
	now := time.Now()
	code := hotp(key, uint64(now.Unix())/30)
	ok, err := VerifyTOTP(secret, code, now)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !ok {
		t.Error("live code for freshly generated secret must verify")
	}
}
