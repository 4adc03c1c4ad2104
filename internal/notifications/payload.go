package notifications

import (
	"time"

	"github.com/allopieces/push-dispatch/internal/config"
)

// maxMessageBodyLen is the visible length limit of a message notification
// body; longer content is cut to 97 characters plus an ellipsis marker.
const maxMessageBodyLen = 100

// PayloadBuilder constructs OneSignal payloads from normalized requests.
// It performs no I/O; given the same inputs it always produces the same
// payload, which keeps it independently testable.
type PayloadBuilder struct {
	appID    string
	delivery *config.DeliveryConfig
}

// NewPayloadBuilder creates a builder for the given OneSignal application.
func NewPayloadBuilder(appID string, delivery *config.DeliveryConfig) *PayloadBuilder {
	if delivery == nil {
		delivery = config.DefaultDelivery()
	}
	return &PayloadBuilder{
		appID:    appID,
		delivery: delivery,
	}
}

// BuildGeneric builds the payload of the generic path. The caller-supplied
// data bag is forwarded verbatim, plus the category and a dispatch timestamp.
func (b *PayloadBuilder) BuildGeneric(req *NotificationRequest, targets []string, now time.Time) *Payload {
	data := make(map[string]interface{}, len(req.Data)+2)
	for k, v := range req.Data {
		data[k] = v
	}
	data["type"] = string(req.Type)
	data["timestamp"] = now.UTC().Format(time.RFC3339)

	return &Payload{
		AppID:            b.appID,
		IncludePlayerIDs: targets,
		Headings:         map[string]string{"en": req.Title, "fr": req.Title},
		Contents:         map[string]string{"en": req.Message, "fr": req.Message},
		Data:             data,

		Priority:           b.delivery.Priority,
		AndroidAccentColor: b.delivery.AndroidAccentColor,
		SmallIcon:          b.delivery.SmallIcon,
		LargeIcon:          b.delivery.LargeIcon,
		AndroidVisibility:  b.delivery.AndroidVisibility,
		Sound:              b.delivery.Sound,
		AndroidGroup:       b.delivery.AndroidGroup,
		CollapseID:         b.delivery.CollapseID(string(req.Type)),
	}
}

// BuildMessage builds the payload of the message path: a sender-prefixed
// heading, a truncated body, and the fixed navigation data bag.
func (b *PayloadBuilder) BuildMessage(event *MessageEvent, target string) *Payload {
	return &Payload{
		AppID:            b.appID,
		IncludePlayerIDs: []string{target},
		Headings:         map[string]string{"en": "💬 " + event.SenderName},
		Contents:         map[string]string{"en": truncateBody(event.Content)},
		Data: map[string]interface{}{
			"type":            "new_message",
			"message_id":      event.MessageID,
			"sender_id":       event.SenderID,
			"conversation_id": event.ConversationID,
			"click_action":    "OPEN_CONVERSATION",
		},

		Priority:         b.delivery.Priority,
		TTL:              b.delivery.MessageTTLSeconds,
		AndroidChannelID: b.delivery.MessageChannelID,
		AndroidSound:     b.delivery.Sound,
		IOSSound:         b.delivery.Sound,
	}
}

// truncateBody cuts content to the visible limit, counting characters
// rather than bytes so multi-byte text is not split mid-rune.
func truncateBody(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageBodyLen {
		return content
	}
	return string(runes[:maxMessageBodyLen-3]) + "..."
}
