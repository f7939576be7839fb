// Package line implements the slice of the LINE Messaging API the bot
// needs: webhook signature verification and event decoding inbound, and
// reply, push, profile, content and loading-indicator calls outbound.
package line

// Event and message types the dispatcher switches on. Everything else
// coming over the webhook is ignored by design.
const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// WebhookRequest is the decoded body of a webhook POST from the LINE
// platform.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Fields beyond the message essentials
// are kept only where the bot reads them.
type Event struct {
	Type           string   `json:"type"`
	Mode           string   `json:"mode,omitempty"`
	Timestamp      int64    `json:"timestamp"` // epoch milliseconds
	WebhookEventID string   `json:"webhookEventId,omitempty"`
	ReplyToken     string   `json:"replyToken,omitempty"`
	Source         Source   `json:"source"`
	Message        *Message `json:"message,omitempty"`
}

// Source identifies where an event came from. The bot only answers
// one-on-one chats, so UserID is the field that matters.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message attached to a message event.
type Message struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Text            string           `json:"text,omitempty"`
	ContentProvider *ContentProvider `json:"contentProvider,omitempty"`
}

// ContentProvider says where a media message's bytes live. Type "line"
// means they are fetched from the data API with the message ID.
type ContentProvider struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
}

// Profile is the response of the profile endpoint.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// textMessage is the outbound message object for reply and push payloads.
type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
