package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Inbound notification headers.
const (
	HeaderSignature = "X-Signature"
	HeaderRequestID = "X-Request-Id"
)

// Signature is a parsed signature header of the form "ts=<ts>,v1=<hex>".
type Signature struct {
	Timestamp string
	V1        string
}

// ParseSignature parses a signature header. Parts may come in any order and
// may be surrounded by whitespace.
func ParseSignature(header string) (*Signature, error) {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			sig.Timestamp = strings.TrimSpace(value)
		case "v1":
			sig.V1 = strings.TrimSpace(value)
		}
	}
	if sig.Timestamp == "" || sig.V1 == "" {
		return nil, fmt.Errorf("%w: ts and v1 are required", ErrInvalidSignature)
	}
	return &sig, nil
}

// Time returns the signing time. Timestamps in milliseconds are accepted.
func (s *Signature) Time() (time.Time, error) {
	n, err := strconv.ParseInt(s.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: ts is not a unix timestamp", ErrInvalidSignature)
	}
	if n >= 1e12 {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}

// Manifest returns the signed string for a notification.
func Manifest(dataID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
}

// ComputeSignature returns the hex HMAC-SHA256 of the manifest.
func ComputeSignature(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Manifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header against the notification's data
// id and request id. The timestamp is only checked as part of the manifest.
func VerifySignature(secret, header, dataID, requestID string) error {
	_, err := verifySignature(secret, header, dataID, requestID)
	return err
}

func verifySignature(secret, header, dataID, requestID string) (*Signature, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	sig, err := ParseSignature(header)
	if err != nil {
		return nil, err
	}
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidSignature)
	}

	got, err := hex.DecodeString(sig.V1)
	if err != nil {
		return nil, fmt.Errorf("%w: v1 is not hex", ErrInvalidSignature)
	}
	want, _ := hex.DecodeString(ComputeSignature(secret, dataID, requestID, sig.Timestamp))
	if !hmac.Equal(got, want) {
		return nil, ErrInvalidSignature
	}
	return sig, nil
}

// Verifier checks notification signatures and rejects signing times further
// than MaxSkew from now. A zero MaxSkew accepts any signing time.
type Verifier struct {
	Secret  string
	MaxSkew time.Duration
	Now     func() time.Time
}

// Verify checks header for a notification.
func (v *Verifier) Verify(header, dataID, requestID string) error {
	sig, err := verifySignature(v.Secret, header, dataID, requestID)
	if err != nil {
		return err
	}
	if v.MaxSkew <= 0 {
		return nil
	}

	signedAt, err := sig.Time()
	if err != nil {
		return err
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	skew := now().Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.MaxSkew {
		return fmt.Errorf("%w: signed %s from now, tolerance %s", ErrInvalidSignature, skew.Round(time.Second), v.MaxSkew)
	}
	return nil
}
