package notifications

import "fmt"

// Category tags a notification with its delivery channel.
// The set is closed; per-category delivery hints live in the config table.
type Category string

const (
	CategoryMessage      Category = "message"
	CategoryPartRequest  Category = "part_request"
	CategoryPartResponse Category = "part_response"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryMessage, CategoryPartRequest, CategoryPartResponse:
		return true
	}
	return false
}

// NotificationRequest is the inbound body of the generic dispatch path.
// Recipients may be given as raw OneSignal player IDs, application user IDs,
// or device IDs; at least one list must be non-empty.
type NotificationRequest struct {
	PlayerIDs []string               `json:"player_ids"`
	UserIDs   []string               `json:"user_ids"`
	DeviceIDs []string               `json:"device_ids"`
	Title     string                 `json:"title" binding:"required"`
	Message   string                 `json:"message" binding:"required"`
	Data      map[string]interface{} `json:"data"`
	Type      Category               `json:"type"`
}

// Normalize applies the category default.
func (r *NotificationRequest) Normalize() {
	if r.Type == "" {
		r.Type = CategoryMessage
	}
}

// Validate checks the fields binding cannot express.
func (r *NotificationRequest) Validate() error {
	if len(r.PlayerIDs) == 0 && len(r.UserIDs) == 0 && len(r.DeviceIDs) == 0 {
		return fmt.Errorf("at least one of player_ids, user_ids or device_ids is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unknown notification type %q", r.Type)
	}
	return nil
}

// defaultSenderName is used when a message event carries no sender name.
const defaultSenderName = "Quelqu'un"

// MessageEvent is the inbound body of the message dispatch path,
// fired when a new direct message is created.
type MessageEvent struct {
	MessageID      string `json:"message_id" binding:"required"`
	SenderID       string `json:"sender_id" binding:"required"`
	RecipientID    string `json:"recipient_id" binding:"required"`
	Content        string `json:"content" binding:"required"`
	SenderName     string `json:"sender_name"`
	ConversationID string `json:"conversation_id"`
}

// Normalize applies the sender name placeholder.
func (e *MessageEvent) Normalize() {
	if e.SenderName == "" {
		e.SenderName = defaultSenderName
	}
}

// Payload is the OneSignal notification wire shape.
// Constructed fresh per dispatch, never persisted.
type Payload struct {
	AppID            string                 `json:"app_id"`
	IncludePlayerIDs []string               `json:"include_player_ids"`
	Headings         map[string]string      `json:"headings"`
	Contents         map[string]string      `json:"contents"`
	Data             map[string]interface{} `json:"data,omitempty"`

	// Delivery hints
	Priority           int    `json:"priority,omitempty"`
	TTL                int    `json:"ttl,omitempty"`
	CollapseID         string `json:"collapse_id,omitempty"`
	Sound              string `json:"sound,omitempty"`
	AndroidSound       string `json:"android_sound,omitempty"`
	IOSSound           string `json:"ios_sound,omitempty"`
	AndroidChannelID   string `json:"android_channel_id,omitempty"`
	AndroidGroup       string `json:"android_group,omitempty"`
	AndroidAccentColor string `json:"android_accent_color,omitempty"`
	AndroidVisibility  int    `json:"android_visibility,omitempty"`
	SmallIcon          string `json:"small_icon,omitempty"`
	LargeIcon          string `json:"large_icon,omitempty"`
}

// DispatchResult reports acceptance of a notification by the gateway.
// Acceptance, not confirmation of delivery, is the guarantee.
type DispatchResult struct {
	NotificationID string
	Recipients     int
}

// GenericResponse is the success body of the generic path.
type GenericResponse struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notification_id"`
	Recipients     int    `json:"recipients"`
}

// MessageResponse is the success body of the message path. Delivered is
// false when the recipient has no registered device and the event was
// accepted as a no-op.
type MessageResponse struct {
	Success        bool   `json:"success"`
	Delivered      bool   `json:"delivered"`
	NotificationID string `json:"notification_id,omitempty"`
	Recipients     int    `json:"recipients,omitempty"`
	Reason         string `json:"reason,omitempty"`
}
