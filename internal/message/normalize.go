package message

import (
	"log/slog"
	"time"

	"github.com/getvoyage/summy/internal/platform"
)

// Normalizer converts raw transport payloads into canonical Inbound values.
// Entries whose shape matches neither known layout are dropped, not errored;
// echoes of the bot's own messages are filtered here because they carry no
// signal beyond their id.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{logger: log.With(slog.String("service", "normalizer"))}
}

// NormalizeEntry resolves one webhook entry, covering both the messaging[]
// layout and the changes[] field-update layout.
func (n *Normalizer) NormalizeEntry(entry PushEntry) []Inbound {
	var out []Inbound
	for _, ev := range entry.Messaging {
		if msg := n.normalizeMessaging(ev); msg != nil {
			out = append(out, *msg)
		}
	}
	for _, change := range entry.Changes {
		if change.Field != "messages" {
			n.logger.Debug("skipping change", slog.String("field", change.Field))
			continue
		}
		for _, ev := range change.Value.Messages {
			if msg := n.normalizeMessaging(ev); msg != nil {
				out = append(out, *msg)
			}
		}
	}
	if len(out) == 0 && len(entry.Messaging) == 0 && len(entry.Changes) == 0 {
		n.logger.Warn("unrecognized entry shape", slog.String("entry_id", entry.ID))
	}
	return out
}

func (n *Normalizer) normalizeMessaging(ev MessagingEvent) *Inbound {
	if ev.Message == nil || ev.Message.MID == "" {
		n.logger.Debug("skipping messaging event without message body")
		return nil
	}
	if ev.Message.IsEcho {
		return nil
	}
	observed := time.Now().UTC()
	if ev.Timestamp > 0 {
		observed = time.UnixMilli(ev.Timestamp).UTC()
	}
	return &Inbound{
		ID:          ev.Message.MID,
		SenderID:    ev.Sender.ID,
		RecipientID: ev.Recipient.ID,
		Text:        ev.Message.Text,
		ObservedAt:  observed,
		Transport:   TransportPush,
	}
}

// NormalizePoll maps one fetched conversation message. Messages without an id
// are dropped.
func (n *Normalizer) NormalizePoll(conversationID string, raw platform.ConversationMessage) *Inbound {
	if raw.ID == "" {
		n.logger.Debug("skipping polled message without id", slog.String("conversation_id", conversationID))
		return nil
	}
	observed := time.Now().UTC()
	if raw.CreatedTime != "" {
		if ts, ok := parseGraphTime(raw.CreatedTime); ok {
			observed = ts
		}
	}
	return &Inbound{
		ID:             raw.ID,
		SenderID:       raw.From.ID,
		Text:           raw.Message,
		ObservedAt:     observed,
		Transport:      TransportPoll,
		ConversationID: conversationID,
	}
}

// parseGraphTime accepts both RFC 3339 and the Graph API's compact offset
// variant (no colon in the zone).
func parseGraphTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
