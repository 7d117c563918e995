package line

import "time"

// WebhookPayload is the body LINE posts to the webhook URL.
type WebhookPayload struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only the fields the bot reads are decoded.
type Event struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	Source          Source           `json:"source"`
	Message         *Message         `json:"message,omitempty"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
}

// Source identifies who sent the event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DeliveryContext flags redelivered events.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Identifier is the conversation key: the user, falling back to the group
// or room for sources without a user ID.
func (s Source) Identifier() string {
	switch {
	case s.UserID != "":
		return s.UserID
	case s.GroupID != "":
		return s.GroupID
	default:
		return s.RoomID
	}
}

// PushTarget is where a push message for this source must go.
func (s Source) PushTarget() string {
	switch s.Type {
	case "group":
		if s.GroupID != "" {
			return s.GroupID
		}
	case "room":
		if s.RoomID != "" {
			return s.RoomID
		}
	}
	return s.Identifier()
}

// IsText reports a text message event.
func (e Event) IsText() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text"
}

// IsRedelivery reports an event LINE is sending again.
func (e Event) IsRedelivery() bool {
	return e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery
}

// SentAt converts the millisecond timestamp.
func (e Event) SentAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
