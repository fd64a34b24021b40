package message

// Wire shapes observed from the platform webhook. The same logical message can
// arrive as an entry-level messaging[] event or wrapped in a changes[] field
// update; both resolve here, once, instead of leaking shape branches into the
// pipeline.

// PushPayload is the top-level webhook POST body.
type PushPayload struct {
	Object string      `json:"object"`
	Entry  []PushEntry `json:"entry"`
}

// PushEntry is one webhook entry, carrying either messaging events or changes.
type PushEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
	Changes   []ChangeEvent    `json:"changes,omitempty"`
}

// MessagingEvent is a single sender→recipient message event.
type MessagingEvent struct {
	Sender    IDRef        `json:"sender"`
	Recipient IDRef        `json:"recipient"`
	Timestamp int64        `json:"timestamp,omitempty"`
	Message   *MessageBody `json:"message,omitempty"`
}

// IDRef wraps an opaque platform user id.
type IDRef struct {
	ID string `json:"id"`
}

// MessageBody carries the platform message id, text, and echo marker.
type MessageBody struct {
	MID    string `json:"mid"`
	Text   string `json:"text,omitempty"`
	IsEcho bool   `json:"is_echo,omitempty"`
}

// ChangeEvent is the alternative field-update layout for message deliveries.
type ChangeEvent struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the messaging events nested inside a change.
type ChangeValue struct {
	Messages []MessagingEvent `json:"messages,omitempty"`
}
