package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getvoyage/summy/internal/message"
)

var errConversationNotFound = errors.New("conversation not found")

// dispatch routes the reply. Polled messages already know their conversation;
// pushed messages are answered directly, with conversation discovery as
// fallback when the direct endpoint refuses the recipient.
func (p *Pipeline) dispatch(ctx context.Context, msg message.Inbound, replyText string) error {
	if msg.ConversationID != "" {
		return p.client.SendConversationMessage(ctx, msg.ConversationID, replyText)
	}

	directErr := p.client.SendMessage(ctx, msg.SenderID, replyText)
	if directErr == nil {
		return nil
	}
	p.logger.Warn("direct send failed, trying conversation discovery",
		slog.String("message_id", msg.ID),
		slog.Any("error", directErr),
	)

	conversationID, ok := p.discoverConversation(ctx, msg.SenderID, msg.ID)
	if !ok {
		return errConversationNotFound
	}
	return p.client.SendConversationMessage(ctx, conversationID, replyText)
}

// discoverConversation scans recent conversations for the sender, first by
// participant, then by locating the message id in each thread's recent
// messages. The scan is bounded by Params so many open conversations cannot
// stall a reply indefinitely.
func (p *Pipeline) discoverConversation(ctx context.Context, senderID, messageID string) (string, bool) {
	conversations, err := p.client.GetConversations(ctx)
	if err != nil {
		p.logger.Warn("conversation listing failed", slog.Any("error", err))
		return "", false
	}
	if len(conversations) > p.params.MaxConversations {
		conversations = conversations[:p.params.MaxConversations]
	}

	for _, conv := range conversations {
		if conv.HasParticipant(senderID) {
			return conv.ID, true
		}
	}
	for _, conv := range conversations {
		messages, err := p.client.GetConversationMessages(ctx, conv.ID, p.params.MessagesPerConversation)
		if err != nil {
			p.logger.Warn("conversation scan failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
			continue
		}
		for _, m := range messages {
			if m.ID == messageID {
				return conv.ID, true
			}
		}
	}
	return "", false
}
