// Package poller periodically fetches recent conversations so the bot keeps
// working when webhook deliveries are delayed or lost. Polled messages go
// through the same pipeline as pushed ones; dedup makes the overlap harmless.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/getvoyage/summy/internal/config"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/pipeline"
	"github.com/getvoyage/summy/internal/platform"
)

// Source is the platform surface the poller reads from.
type Source interface {
	GetConversations(ctx context.Context) ([]platform.Conversation, error)
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]platform.ConversationMessage, error)
}

// Handler consumes normalized inbound messages.
type Handler interface {
	Handle(ctx context.Context, msg message.Inbound) pipeline.Outcome
}

// Poller drives the polling loop on a cron schedule.
type Poller struct {
	source     Source
	normalizer *message.Normalizer
	pipe       Handler
	logger     *slog.Logger

	interval        time.Duration
	backoff         time.Duration
	maxConvs        int
	messagesPerConv int

	cron *cron.Cron

	mu            sync.Mutex
	active        bool
	running       bool
	cooldownUntil time.Time
}

// New creates a poller from the polling config.
func New(log *slog.Logger, cfg config.PollerConfig, source Source, normalizer *message.Normalizer, pipe Handler) *Poller {
	if log == nil {
		log = slog.Default()
	}
	maxConvs := cfg.MaxConvs
	if maxConvs <= 0 {
		maxConvs = 10
	}
	messagesPerConv := cfg.MessagesPerCnv
	if messagesPerConv <= 0 {
		messagesPerConv = 20
	}
	return &Poller{
		source:          source,
		normalizer:      normalizer,
		pipe:            pipe,
		logger:          log.With(slog.String("service", "poller")),
		interval:        cfg.Interval(),
		backoff:         cfg.Backoff(),
		maxConvs:        maxConvs,
		messagesPerConv: messagesPerConv,
		cron:            cron.New(),
	}
}

// Start schedules the polling loop.
func (p *Poller) Start() error {
	if _, err := p.cron.AddFunc("@every "+p.interval.String(), func() {
		p.runCycle(context.Background())
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.active = true
	p.mu.Unlock()
	p.cron.Start()
	p.logger.Info("polling started", slog.Duration("interval", p.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish, bounded
// by ctx.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()

	stopped := p.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether the polling loop is scheduled.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// runCycle fetches one round of conversations. At most one cycle runs at a
// time; after an API failure the loop cools down for the backoff window
// instead of hammering a broken endpoint every tick.
func (p *Poller) runCycle(ctx context.Context) {
	p.mu.Lock()
	if p.running || time.Now().Before(p.cooldownUntil) {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	conversations, err := p.source.GetConversations(ctx)
	if err != nil {
		p.logger.Warn("conversation poll failed", slog.Any("error", err))
		p.coolDown()
		return
	}
	if len(conversations) > p.maxConvs {
		conversations = conversations[:p.maxConvs]
	}

	handled := 0
	for _, conv := range conversations {
		raw, err := p.source.GetConversationMessages(ctx, conv.ID, p.messagesPerConv)
		if err != nil {
			p.logger.Warn("message poll failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
			p.coolDown()
			continue
		}
		for _, item := range raw {
			msg := p.normalizer.NormalizePoll(conv.ID, item)
			if msg == nil {
				continue
			}
			outcome := p.pipe.Handle(ctx, *msg)
			if outcome == pipeline.OutcomeReplied || outcome == pipeline.OutcomeReplyFailed {
				handled++
			}
		}
	}
	if handled > 0 {
		p.logger.Info("poll cycle handled messages", slog.Int("count", handled))
	}
}

func (p *Poller) coolDown() {
	p.mu.Lock()
	p.cooldownUntil = time.Now().Add(p.backoff)
	p.mu.Unlock()
}
