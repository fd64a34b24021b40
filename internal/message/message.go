// Package message defines the canonical inbound message model and the
// normalizer that maps raw platform payloads onto it.
package message

import "time"

// Transport identifies how an inbound message reached the bot.
type Transport string

const (
	// TransportPush marks messages delivered by a platform webhook callback.
	TransportPush Transport = "push"
	// TransportPoll marks messages fetched from the conversations API.
	TransportPoll Transport = "poll"
)

// Inbound is the single shape the pipeline operates on, regardless of which
// transport or payload layout delivered the event. ID is the sole dedup key:
// two Inbound values with the same ID are the same logical message.
type Inbound struct {
	ID             string
	SenderID       string
	RecipientID    string
	Text           string
	ObservedAt     time.Time
	Transport      Transport
	ConversationID string
}
