// Package signature authenticates request bodies with HMAC-SHA256.
//
// Two canonicalizations are supported. RawBody signs the exact request bytes
// and renders "sha256=<hex>" (GitHub-style hooks). StringForm signs the
// canonical string form of the parsed JSON document (see Canonical) and
// renders a bare hex digest.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Mode selects how the signed payload is canonicalized and rendered.
type Mode int

const (
	// RawBody signs the raw body bytes; signatures carry the "sha256=" prefix.
	RawBody Mode = iota + 1
	// StringForm signs Canonical(body); signatures are bare lowercase hex.
	StringForm
)

// RawBodyPrefix is prepended to raw-body signatures.
const RawBodyPrefix = "sha256="

func (m Mode) String() string {
	switch m {
	case RawBody:
		return "raw"
	case StringForm:
		return "string"
	default:
		return "unknown"
	}
}

// ParseMode maps "raw" or "string" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "raw-body", "body":
		return RawBody, nil
	case "string", "string-form", "str":
		return StringForm, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Verifier signs and verifies payloads with one shared secret.
type Verifier struct {
	secret []byte
	mode   Mode
}

// NewVerifier returns a Verifier for secret in the given mode.
func NewVerifier(secret []byte, mode Mode) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if mode != RawBody && mode != StringForm {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Verifier{secret: s, mode: mode}, nil
}

// Mode reports the verifier's canonicalization mode.
func (v *Verifier) Mode() Mode { return v.mode }

// Sign computes the signature string for an already canonicalized payload.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	digest := hex.EncodeToString(mac.Sum(nil))
	if v.mode == RawBody {
		return RawBodyPrefix + digest
	}
	return digest
}

// Verify checks supplied against the signature of payload. The payload is
// used as given: raw-body callers pass the exact bytes they read off the
// wire, never a re-serialized form.
func (v *Verifier) Verify(payload []byte, supplied string) error {
	if len(payload) == 0 || supplied == "" {
		return ErrMissingCredentials
	}
	if !ConstantTimeEqual([]byte(v.Sign(payload)), []byte(supplied)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignJSON canonicalizes body according to the verifier's mode and signs it.
func (v *Verifier) SignJSON(body []byte) (string, error) {
	payload, err := v.payload(body)
	if err != nil {
		return "", err
	}
	return v.Sign(payload), nil
}

// VerifyJSON canonicalizes body according to the verifier's mode and verifies it.
func (v *Verifier) VerifyJSON(body []byte, supplied string) error {
	if len(body) == 0 || supplied == "" {
		return ErrMissingCredentials
	}
	payload, err := v.payload(body)
	if err != nil {
		return err
	}
	return v.Verify(payload, supplied)
}

func (v *Verifier) payload(body []byte) ([]byte, error) {
	if v.mode == RawBody {
		return body, nil
	}
	return Canonical(body)
}
