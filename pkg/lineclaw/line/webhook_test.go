package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"destination":"U0000","events":[]}`)
	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{
			name:      "valid",
			secret:    "channel-secret",
			body:      body,
			signature: sign("channel-secret", body),
			want:      true,
		},
		{
			name:      "wrong secret",
			secret:    "channel-secret",
			body:      body,
			signature: sign("other-secret", body),
			want:      false,
		},
		{
			name:      "tampered body",
			secret:    "channel-secret",
			body:      []byte(`{"destination":"U0000","events":[{}]}`),
			signature: sign("channel-secret", body),
			want:      false,
		},
		{
			name:      "not base64",
			secret:    "channel-secret",
			body:      body,
			signature: "%%%not-base64%%%",
			want:      false,
		},
		{
			name:      "empty signature",
			secret:    "channel-secret",
			body:      body,
			signature: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseWebhookDecodesEvents(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"destination": "U0deadbeef",
		"events": [
			{
				"type": "message",
				"timestamp": 1730617445000,
				"source": {"type": "user", "userId": "U1111"},
				"replyToken": "rt-1",
				"message": {"id": "m-1", "type": "text", "text": "hello bot"}
			},
			{
				"type": "message",
				"timestamp": 1730617446000,
				"source": {"type": "user", "userId": "U2222"},
				"replyToken": "rt-2",
				"message": {"id": "m-2", "type": "image", "contentProvider": {"type": "line"}}
			},
			{
				"type": "follow",
				"timestamp": 1730617447000,
				"source": {"type": "user", "userId": "U3333"},
				"replyToken": "rt-3"
			}
		]
	}`)

	events, err := ParseWebhook("secret", body, sign("secret", body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	text := events[0]
	if text.Type != EventTypeMessage || text.Message == nil {
		t.Fatalf("unexpected first event: %+v", text)
	}
	if text.Message.Type != MessageTypeText || text.Message.Text != "hello bot" {
		t.Errorf("unexpected text message: %+v", text.Message)
	}
	if text.Source.UserID != "U1111" || text.ReplyToken != "rt-1" {
		t.Errorf("unexpected source/token: %+v", text)
	}

	image := events[1]
	if image.Message == nil || image.Message.Type != MessageTypeImage {
		t.Fatalf("unexpected image event: %+v", image)
	}
	if image.Message.ID != "m-2" {
		t.Errorf("expected message ID m-2, got %q", image.Message.ID)
	}

	follow := events[2]
	if follow.Type != "follow" || follow.Message != nil {
		t.Errorf("unexpected follow event: %+v", follow)
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"events":[]}`)
	_, err := ParseWebhook("secret", body, sign("wrong", body))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestParseWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	body := []byte(`{"events":`)
	_, err := ParseWebhook("secret", body, sign("secret", body))
	if err == nil {
		t.Fatal("expected a decode error")
	}
	if errors.Is(err, ErrInvalidSignature) {
		t.Error("a correctly signed body must not be reported as a signature failure")
	}
}
