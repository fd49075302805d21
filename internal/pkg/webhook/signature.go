package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureScheme selects how the billing provider signs webhook bodies.
type SignatureScheme string

const (
	// SchemeVersioned signs "{msgId}.{timestamp}.{body}" with HMAC-SHA256
	// and sends one or more space-separated "version,signature" candidates
	// (Standard-Webhooks style).
	SchemeVersioned SignatureScheme = "versioned"
	// SchemePlainHex signs the raw body with HMAC-SHA256 and sends a single
	// hex-encoded digest.
	SchemePlainHex SignatureScheme = "plain_hex"
)

const versionedSignaturePrefix = "v1"

// SignatureHeader carries the provider-supplied signature material for one
// request. MsgID and Timestamp are only consulted by the versioned scheme.
type SignatureHeader struct {
	MsgID     string
	Timestamp string
	Signature string
}

// Verifier authenticates that an inbound notification body truly originates
// from the billing provider. It is a pure check: no side effects, no retry.
type Verifier struct {
	secrets    SecretStore
	secretName string
	scheme     SignatureScheme
}

// NewVerifier builds a verifier resolving its secret from store by name.
func NewVerifier(store SecretStore, secretName string, scheme SignatureScheme) *Verifier {
	return &Verifier{secrets: store, secretName: secretName, scheme: scheme}
}

// Verify reports whether the signature header authenticates the raw body.
// Missing headers, a missing secret, or no matching candidate all reject.
func (v *Verifier) Verify(body []byte, header SignatureHeader) bool {
	sig := strings.TrimSpace(header.Signature)
	if sig == "" {
		return false
	}
	secret, err := v.secrets.GetSecret(v.secretName)
	if err != nil {
		return false
	}

	switch v.scheme {
	case SchemePlainHex:
		return verifyPlainHex(body, sig, secret)
	default:
		return verifyVersioned(body, header, secret)
	}
}

// verifyVersioned checks space-separated "version,signature" candidates
// against an HMAC-SHA256 of "{msgId}.{timestamp}.{body}", accepting on any
// exact match for a recognized version. Equality on the fixed-length digest
// is sufficient because the msg id and timestamp are bound into the signed
// content.
func verifyVersioned(body []byte, header SignatureHeader, secret string) bool {
	msgID := strings.TrimSpace(header.MsgID)
	timestamp := strings.TrimSpace(header.Timestamp)
	if msgID == "" || timestamp == "" {
		return false
	}

	signedContent := fmt.Sprintf("%s.%s.%s", msgID, timestamp, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedContent))
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(header.Signature) {
		version, value, ok := strings.Cut(candidate, ",")
		if !ok || version != versionedSignaturePrefix {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}

func verifyPlainHex(body []byte, signature, secret string) bool {
	decoded, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}
