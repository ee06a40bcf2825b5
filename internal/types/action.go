package types

// ActionRequest is the body of POST /api/discord. Token is validated
// before any action-specific handling; the remaining fields are required
// per action.
type ActionRequest struct {
	Action      string `json:"action" validate:"required"`
	Token       string `json:"token"`
	GuildID     string `json:"guildId,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	Content     string `json:"content,omitempty"`
}

// ActionResult carries everything the HTTP layer needs to render a
// response envelope.
type ActionResult struct {
	Status  int
	Data    interface{}
	Warning string
	Err     string
	Details string
}

type SuccessEnvelope struct {
	Data    interface{} `json:"data"`
	Warning string      `json:"warning,omitempty"`
}

type ErrorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type EventHandler func(Event)

// EventBroker fan-outs gateway events to in-process subscribers and,
// when configured, an outbound publisher.
type EventBroker interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (string, error)
	Unsubscribe(subscriptionID string) error
}
