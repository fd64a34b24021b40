package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getvoyage/summy/internal/config"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/pipeline"
	"github.com/getvoyage/summy/internal/platform"
)

type fakeSource struct {
	mu            sync.Mutex
	conversations []platform.Conversation
	convErr       error
	messages      map[string][]platform.ConversationMessage
	listCalls     int
}

func (f *fakeSource) GetConversations(context.Context) ([]platform.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.conversations, f.convErr
}

func (f *fakeSource) GetConversationMessages(_ context.Context, conversationID string, _ int) ([]platform.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[conversationID], nil
}

type countingPipe struct {
	mu      sync.Mutex
	handled []message.Inbound
}

func (c *countingPipe) Handle(_ context.Context, msg message.Inbound) pipeline.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handled = append(c.handled, msg)
	return pipeline.OutcomeReplied
}

func newTestPoller(source *fakeSource, pipe *countingPipe) *Poller {
	cfg := config.PollerConfig{Enabled: true, MaxConvs: 10, MessagesPerCnv: 20}
	return New(nil, cfg, source, message.NewNormalizer(nil), pipe)
}

func TestRunCycleHandlesPolledMessages(t *testing.T) {
	source := &fakeSource{
		conversations: []platform.Conversation{{ID: "c1"}, {ID: "c2"}},
		messages: map[string][]platform.ConversationMessage{
			"c1": {{ID: "m1", From: platform.User{ID: "u1"}, Message: "hi"}},
			"c2": {{ID: "m2", From: platform.User{ID: "u2"}, Message: "yo"}},
		},
	}
	pipe := &countingPipe{}
	p := newTestPoller(source, pipe)

	p.runCycle(context.Background())

	if len(pipe.handled) != 2 {
		t.Fatalf("handled %d messages, want 2", len(pipe.handled))
	}
	for _, msg := range pipe.handled {
		if msg.Transport != message.TransportPoll {
			t.Fatalf("transport = %q", msg.Transport)
		}
		if msg.ConversationID == "" {
			t.Fatalf("conversation id missing on %+v", msg)
		}
	}
}

func TestRunCycleCapsConversations(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 30; i++ {
		source.conversations = append(source.conversations, platform.Conversation{ID: "c"})
	}
	pipe := &countingPipe{}
	cfg := config.PollerConfig{MaxConvs: 3, MessagesPerCnv: 5}
	p := New(nil, cfg, source, message.NewNormalizer(nil), pipe)

	p.runCycle(context.Background())

	// No messages configured, just make sure the scan terminated without
	// visiting all 30 conversations' message lists.
	if len(pipe.handled) != 0 {
		t.Fatalf("handled = %d", len(pipe.handled))
	}
}

func TestRunCycleBacksOffAfterFailure(t *testing.T) {
	source := &fakeSource{convErr: errors.New("rate limited")}
	pipe := &countingPipe{}
	p := newTestPoller(source, pipe)

	p.runCycle(context.Background())
	p.runCycle(context.Background())
	p.runCycle(context.Background())

	if source.listCalls != 1 {
		t.Fatalf("listCalls = %d, want 1 (cooldown must skip cycles)", source.listCalls)
	}

	// Expire the cooldown and confirm polling resumes.
	p.mu.Lock()
	p.cooldownUntil = time.Now().Add(-time.Second)
	p.mu.Unlock()
	p.runCycle(context.Background())
	if source.listCalls != 2 {
		t.Fatalf("listCalls = %d, want 2 after cooldown", source.listCalls)
	}
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{}
	pipe := &countingPipe{}
	p := newTestPoller(source, pipe)

	if p.Active() {
		t.Fatal("poller must be inactive before Start")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.Active() {
		t.Fatal("poller must be active after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Active() {
		t.Fatal("poller must be inactive after Stop")
	}
}
