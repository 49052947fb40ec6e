package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr bool
	}{
		{name: "string id", body: `{"action":"payment.updated","type":"payment","data":{"id":"123"}}`, wantID: "123"},
		{name: "numeric id", body: `{"action":"payment.created","type":"payment","data":{"id":98765432101}}`, wantID: "98765432101"},
		{name: "missing id", body: `{"action":"payment.updated","data":{}}`, wantErr: true},
		{name: "null id", body: `{"action":"payment.updated","data":{"id":null}}`, wantErr: true},
		{name: "blank id", body: `{"action":"payment.updated","data":{"id":"  "}}`, wantErr: true},
		{name: "object id", body: `{"action":"payment.updated","data":{"id":{}}}`, wantErr: true},
		{name: "not json", body: `action=payment.updated`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedNotification)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, n.DataID)
		})
	}
}

func TestNotification_IsPaymentChange(t *testing.T) {
	assert.True(t, (&Notification{Action: ActionPaymentCreated}).IsPaymentChange())
	assert.True(t, (&Notification{Action: ActionPaymentUpdated}).IsPaymentChange())
	assert.False(t, (&Notification{Action: "merchant_order.updated"}).IsPaymentChange())
	assert.False(t, (&Notification{}).IsPaymentChange())
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("ts=1704908010,v1=abc123")
	require.NoError(t, err)
	assert.Equal(t, "1704908010", sig.Timestamp)
	assert.Equal(t, "abc123", sig.V1)

	sig, err = ParseSignature(" v1 = abc123 , ts = 1704908010 ")
	require.NoError(t, err)
	assert.Equal(t, "1704908010", sig.Timestamp)
	assert.Equal(t, "abc123", sig.V1)

	for _, header := range []string{"", "ts=1", "v1=abc", "garbage", "ts=,v1="} {
		_, err := ParseSignature(header)
		assert.ErrorIs(t, err, ErrInvalidSignature, header)
	}
}

func TestManifest(t *testing.T) {
	assert.Equal(t, "id:123;request-id:req-1;ts:1704908010;", Manifest("123", "req-1", "1704908010"))
}

func TestVerifySignature(t *testing.T) {
	const secret = "provider-secret"
	valid := "ts=1704908010,v1=" + ComputeSignature(secret, "123", "req-1", "1704908010")

	assert.NoError(t, VerifySignature(secret, valid, "123", "req-1"))

	tests := []struct {
		name      string
		secret    string
		header    string
		dataID    string
		requestID string
	}{
		{name: "altered data id", secret: secret, header: valid, dataID: "124", requestID: "req-1"},
		{name: "altered request id", secret: secret, header: valid, dataID: "123", requestID: "req-2"},
		{name: "altered timestamp", secret: secret, header: "ts=1704908011,v1=" + ComputeSignature(secret, "123", "req-1", "1704908010"), dataID: "123", requestID: "req-1"},
		{name: "wrong secret", secret: "other", header: valid, dataID: "123", requestID: "req-1"},
		{name: "missing request id", secret: secret, header: valid, dataID: "123"},
		{name: "non hex", secret: secret, header: "ts=1704908010,v1=zz", dataID: "123", requestID: "req-1"},
		{name: "no secret", header: valid, dataID: "123", requestID: "req-1"},
		{name: "no header", secret: secret, dataID: "123", requestID: "req-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifySignature(tt.secret, tt.header, tt.dataID, tt.requestID), ErrInvalidSignature)
		})
	}
}

func TestSignature_Time(t *testing.T) {
	seconds, err := (&Signature{Timestamp: "1704908010"}).Time()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1704908010, 0), seconds)

	millis, err := (&Signature{Timestamp: "1704908010123"}).Time()
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1704908010123), millis)

	_, err = (&Signature{Timestamp: "yesterday"}).Time()
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_Verify(t *testing.T) {
	const secret = "provider-secret"
	signedAt := time.Unix(1704908010, 0)
	sign := func(ts string) string {
		return "ts=" + ts + ",v1=" + ComputeSignature(secret, "123", "req-1", ts)
	}

	tests := []struct {
		name    string
		maxSkew time.Duration
		now     time.Time
		header  string
		wantErr bool
	}{
		{name: "fresh", maxSkew: 5 * time.Minute, now: signedAt.Add(time.Minute), header: sign("1704908010")},
		{name: "slightly early", maxSkew: 5 * time.Minute, now: signedAt.Add(-time.Minute), header: sign("1704908010")},
		{name: "fresh millis", maxSkew: 5 * time.Minute, now: signedAt.Add(time.Minute), header: sign("1704908010000")},
		{name: "stale", maxSkew: 5 * time.Minute, now: signedAt.Add(6 * time.Minute), header: sign("1704908010"), wantErr: true},
		{name: "future", maxSkew: 5 * time.Minute, now: signedAt.Add(-6 * time.Minute), header: sign("1704908010"), wantErr: true},
		{name: "unparsable ts", maxSkew: 5 * time.Minute, now: signedAt, header: sign("soon"), wantErr: true},
		{name: "check disabled", now: signedAt.Add(24 * time.Hour), header: sign("1704908010")},
		{name: "bad signature", now: signedAt, header: "ts=1704908010,v1=00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Verifier{Secret: secret, MaxSkew: tt.maxSkew, Now: func() time.Time { return tt.now }}
			err := v.Verify(tt.header, "123", "req-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}
