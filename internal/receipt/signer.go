package receipt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/trashure/kiosk/internal/session"
)

// SignedReceipt is a session record plus the HMAC signature over its
// canonical serialization. Any mutation of any field invalidates the
// signature under Verify.
type SignedReceipt struct {
	session.Record
	Signature string `json:"signature"`
}

// Payload returns the self-contained JSON string that gets encoded into the
// scannable QR code.
func (sr SignedReceipt) Payload() (string, error) {
	data, err := json.Marshal(sr)
	if err != nil {
		return "", fmt.Errorf("marshaling signed receipt: %w", err)
	}
	return string(data), nil
}

// Signer produces and verifies tamper-evident receipts using a pre-shared
// secret. The secret is process-wide read-only configuration.
type Signer struct {
	secret []byte
}

// NewSigner creates a new Signer. A missing secret is a configuration
// error: the kiosk must not start without one.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Signer{secret: secret}, nil
}

// Sign computes the HMAC-SHA256 of the record's canonical serialization and
// returns the record augmented with the hex-encoded signature. Signing never
// fails for a well-formed record.
func (s *Signer) Sign(rec session.Record) SignedReceipt {
	return SignedReceipt{
		Record:    rec,
		Signature: hex.EncodeToString(s.mac(rec)),
	}
}

// Verify recomputes the MAC over the embedded record fields and compares it
// to the embedded signature in constant time.
func (s *Signer) Verify(sr SignedReceipt) bool {
	sig, err := hex.DecodeString(sr.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(s.mac(sr.Record), sig)
}

// mac computes the keyed MAC over the canonical byte form of a record. The
// canonical form is the record's JSON with the field order fixed by the
// struct definition, so the same logical record always serializes
// identically.
func (s *Signer) mac(rec session.Record) []byte {
	// A Record is plain strings and ints; marshaling cannot fail.
	payload, _ := json.Marshal(rec)
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil)
}
