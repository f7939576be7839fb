package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned by ParseWebhook when the X-Line-Signature
// header does not match the request body. The server answers such
// deliveries with 400 and drops them.
var ErrInvalidSignature = errors.New("line: invalid webhook signature")

// VerifySignature reports whether signature is the valid X-Line-Signature
// for body: the base64 of an HMAC-SHA256 over the raw body, keyed with
// the channel secret.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac.Sum(nil), got)
}

// ParseWebhook verifies the delivery signature and decodes the event
// batch. The signature check runs over the raw body bytes before any
// JSON handling; callers must not re-serialize the body first.
func ParseWebhook(channelSecret string, body []byte, signature string) ([]Event, error) {
	if !VerifySignature(channelSecret, body, signature) {
		return nil, ErrInvalidSignature
	}
	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("line: decode webhook body: %w", err)
	}
	return req.Events, nil
}
