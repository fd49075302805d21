package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"
)

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(name string) (string, error) {
	secret, ok := s[name]
	if !ok {
		return "", Validationf("secret %s is not configured", name)
	}
	return secret, nil
}

func signVersioned(msgID, timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.%s", msgID, timestamp, body)
	return versionedSignaturePrefix + "," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyVersionedSignature(t *testing.T) {
	body := []byte(`{"event_id":"evt_1"}`)
	secret := "whsec_test"
	v := NewVerifier(staticSecrets{"WEBHOOK_SECRET": secret}, "WEBHOOK_SECRET", SchemeVersioned)

	header := SignatureHeader{
		MsgID:     "msg_1",
		Timestamp: "1700000000",
		Signature: signVersioned("msg_1", "1700000000", body, secret),
	}
	if !v.Verify(body, header) {
		t.Fatalf("expected valid signature to verify")
	}

	// Any matching candidate among several is accepted.
	header.Signature = "v1,Zm9vYmFy " + header.Signature
	if !v.Verify(body, header) {
		t.Fatalf("expected multi-candidate header to verify")
	}

	header.Signature = "v2," + base64.StdEncoding.EncodeToString([]byte("wrong-version"))
	if v.Verify(body, header) {
		t.Fatalf("expected unrecognized version to be rejected")
	}

	header.Signature = signVersioned("msg_other", "1700000000", body, secret)
	if v.Verify(body, header) {
		t.Fatalf("expected signature over different msg id to be rejected")
	}
}

func TestVerifyVersionedSignature_MissingMaterial(t *testing.T) {
	body := []byte(`{}`)
	secret := "whsec_test"
	v := NewVerifier(staticSecrets{"WEBHOOK_SECRET": secret}, "WEBHOOK_SECRET", SchemeVersioned)

	valid := signVersioned("msg_1", "1700000000", body, secret)
	tests := []struct {
		name   string
		header SignatureHeader
	}{
		{name: "no signature", header: SignatureHeader{MsgID: "msg_1", Timestamp: "1700000000"}},
		{name: "no msg id", header: SignatureHeader{Timestamp: "1700000000", Signature: valid}},
		{name: "no timestamp", header: SignatureHeader{MsgID: "msg_1", Signature: valid}},
	}
	for _, tt := range tests {
		if v.Verify(body, tt.header) {
			t.Fatalf("%s: expected rejection", tt.name)
		}
	}
}

func TestVerifyVersionedSignature_MissingSecret(t *testing.T) {
	body := []byte(`{}`)
	v := NewVerifier(staticSecrets{}, "WEBHOOK_SECRET", SchemeVersioned)
	header := SignatureHeader{
		MsgID:     "msg_1",
		Timestamp: "1700000000",
		Signature: signVersioned("msg_1", "1700000000", body, "whsec_test"),
	}
	if v.Verify(body, header) {
		t.Fatalf("expected rejection when secret is unavailable")
	}
}

func TestVerifyPlainHexSignature(t *testing.T) {
	body := []byte(`{"foo":"bar"}`)
	secret := "top-secret"
	v := NewVerifier(staticSecrets{"WEBHOOK_SECRET": secret}, "WEBHOOK_SECRET", SchemePlainHex)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !v.Verify(body, SignatureHeader{Signature: validSig}) {
		t.Fatalf("expected signature to validate")
	}
	if v.Verify(body, SignatureHeader{Signature: "deadbeef"}) {
		t.Fatalf("expected invalid signature to fail")
	}
	if v.Verify(body, SignatureHeader{Signature: "not-hex!"}) {
		t.Fatalf("expected undecodable signature to fail")
	}
}

func TestCachedSecretStore(t *testing.T) {
	inner := staticSecrets{"S": "first"}
	store := NewCachedSecretStore(inner, 0)

	got, err := store.GetSecret("S")
	if err != nil || got != "first" {
		t.Fatalf("GetSecret = %q, %v", got, err)
	}

	// Within TTL the cached value is served even after rotation.
	inner["S"] = "second"
	got, _ = store.GetSecret("S")
	if got != "first" {
		t.Fatalf("expected cached secret, got %q", got)
	}

	// A failing backend falls back to the stale cached entry.
	delete(inner, "S")
	store.entries["S"] = cachedSecret{value: "first"}
	got, err = store.GetSecret("S")
	if err != nil || got != "first" {
		t.Fatalf("expected stale fallback, got %q, %v", got, err)
	}

	if _, err := store.GetSecret("MISSING"); err == nil {
		t.Fatalf("expected error for unknown secret")
	}
}
