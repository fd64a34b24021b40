// Package pipeline orchestrates handling of one inbound message: filtering,
// dedup, reply generation, dispatch, and transcript recording. Both transports
// feed this single entry point so dedup logic exists exactly once.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/getvoyage/summy/internal/dedup"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/platform"
	"github.com/getvoyage/summy/internal/reply"
)

// Outcome is the terminal result of handling one message.
type Outcome string

const (
	// OutcomeSkippedSelf marks messages from the bot's own account (or with no
	// sender), dropped before any side effect beyond dedup registration.
	OutcomeSkippedSelf Outcome = "skipped_self"
	// OutcomeSkippedDuplicate marks ids already handled; no side effects.
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	// OutcomeReplied marks a dispatched reply, recorded in the transcript.
	OutcomeReplied Outcome = "replied"
	// OutcomeReplyFailed marks a failed dispatch; the message is still marked
	// processed and recorded so it is never retried with a duplicate reply.
	OutcomeReplyFailed Outcome = "reply_failed"
)

// Placeholder transcript values carried over from the deployed bot's log
// format; the dashboards parse these lines back.
const (
	emptyTextPlaceholder   = "[Webhook message - no text]"
	sendFailedMarker       = "Failed to send reply"
	conversationLostMarker = "Could not send reply - conversation not found"
)

// PlatformAPI is the outbound surface the pipeline needs from the platform
// client.
type PlatformAPI interface {
	GetUserInfo(ctx context.Context, userID string) (platform.User, error)
	SendMessage(ctx context.Context, recipientID, text string) error
	SendConversationMessage(ctx context.Context, conversationID, text string) error
	GetConversations(ctx context.Context) ([]platform.Conversation, error)
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]platform.ConversationMessage, error)
}

// Recorder is the transcript sink.
type Recorder interface {
	Record(username, text, reply string, ts time.Time) error
}

// Params bounds the conversation discovery scan.
type Params struct {
	// SelfID is the bot's own platform account id for the self filter.
	SelfID string
	// MaxConversations caps how many conversations discovery inspects.
	MaxConversations int
	// MessagesPerConversation caps the per-conversation message scan.
	MessagesPerConversation int
}

// Pipeline handles canonical inbound messages.
type Pipeline struct {
	logger  *slog.Logger
	params  Params
	store   *dedup.Store
	replies *reply.Generator
	client  PlatformAPI
	book    Recorder
}

// New creates a pipeline.
func New(log *slog.Logger, params Params, store *dedup.Store, replies *reply.Generator, client PlatformAPI, book Recorder) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if params.MaxConversations <= 0 {
		params.MaxConversations = 10
	}
	if params.MessagesPerConversation <= 0 {
		params.MessagesPerConversation = 20
	}
	return &Pipeline{
		logger:  log.With(slog.String("service", "pipeline")),
		params:  params,
		store:   store,
		replies: replies,
		client:  client,
		book:    book,
	}
}

// Handle runs one message through the pipeline and returns its outcome.
// Ordering is load-bearing: the self filter runs before the dedup test-and-set
// so self messages are registered but never replied to, and the dedup entry is
// never rolled back even when dispatch fails.
func (p *Pipeline) Handle(ctx context.Context, msg message.Inbound) Outcome {
	if msg.SenderID == "" || msg.SenderID == p.params.SelfID {
		p.store.MarkIfNew(msg.ID)
		p.logger.Debug("skipping own message", slog.String("message_id", msg.ID))
		return OutcomeSkippedSelf
	}

	if !p.store.MarkIfNew(msg.ID) {
		p.logger.Debug("skipping duplicate", slog.String("message_id", msg.ID), slog.String("transport", string(msg.Transport)))
		return OutcomeSkippedDuplicate
	}

	p.logger.Info("new message",
		slog.String("message_id", msg.ID),
		slog.String("sender_id", msg.SenderID),
		slog.String("transport", string(msg.Transport)),
	)

	username := p.resolveUsername(ctx, msg.SenderID)
	replyText := p.replies.Generate(username, msg.Text)

	dispatchErr := p.dispatch(ctx, msg, replyText)

	recorded := replyText
	outcome := OutcomeReplied
	if dispatchErr != nil {
		outcome = OutcomeReplyFailed
		recorded = sendFailedMarker
		if dispatchErr == errConversationNotFound {
			recorded = conversationLostMarker
		}
		p.logger.Warn("reply dispatch failed",
			slog.String("message_id", msg.ID),
			slog.Any("error", dispatchErr),
		)
	}

	displayText := msg.Text
	if displayText == "" {
		displayText = emptyTextPlaceholder
	}
	ts := msg.ObservedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := p.book.Record(username, displayText, recorded, ts); err != nil {
		p.logger.Error("transcript record failed", slog.String("message_id", msg.ID), slog.Any("error", err))
	}
	return outcome
}

// resolveUsername looks up the sender's profile; a failed lookup must never
// prevent a reply, so it falls back to a synthesized handle.
func (p *Pipeline) resolveUsername(ctx context.Context, senderID string) string {
	user, err := p.client.GetUserInfo(ctx, senderID)
	if err != nil {
		p.logger.Warn("user lookup failed", slog.String("sender_id", senderID), slog.Any("error", err))
		return "User_" + senderID
	}
	if name := user.DisplayName(); name != "" {
		return name
	}
	return "User_" + senderID
}
