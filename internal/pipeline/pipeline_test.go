package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/getvoyage/summy/internal/dedup"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/platform"
	"github.com/getvoyage/summy/internal/reply"
)

type fakeClient struct {
	mu sync.Mutex

	user    platform.User
	userErr error

	sendErr     error
	convSendErr error

	conversations []platform.Conversation
	convErr       error
	convMessages  map[string][]platform.ConversationMessage

	directSends []string
	convSends   []string
	sentTexts   []string
}

func (f *fakeClient) GetUserInfo(_ context.Context, userID string) (platform.User, error) {
	if f.userErr != nil {
		return platform.User{}, f.userErr
	}
	if f.user.ID == "" {
		return platform.User{ID: userID, Username: "user_" + userID}, nil
	}
	return f.user, nil
}

func (f *fakeClient) SendMessage(_ context.Context, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.directSends = append(f.directSends, recipientID)
	f.sentTexts = append(f.sentTexts, text)
	return nil
}

func (f *fakeClient) SendConversationMessage(_ context.Context, conversationID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convSendErr != nil {
		return f.convSendErr
	}
	f.convSends = append(f.convSends, conversationID)
	f.sentTexts = append(f.sentTexts, text)
	return nil
}

func (f *fakeClient) GetConversations(context.Context) ([]platform.Conversation, error) {
	return f.conversations, f.convErr
}

func (f *fakeClient) GetConversationMessages(_ context.Context, conversationID string, _ int) ([]platform.ConversationMessage, error) {
	return f.convMessages[conversationID], nil
}

func (f *fakeClient) totalSends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.directSends) + len(f.convSends)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *fakeRecorder) Record(username, text, replyText string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, username+"|"+text+"|"+replyText)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newTestPipeline(client *fakeClient, recorder *fakeRecorder) (*Pipeline, *dedup.Store) {
	store := dedup.NewStore()
	p := New(nil, Params{SelfID: "bot17841"}, store, reply.NewGenerator(), client, recorder)
	return p, store
}

func pushMessage(id, sender, text string) message.Inbound {
	return message.Inbound{
		ID:         id,
		SenderID:   sender,
		Text:       text,
		ObservedAt: time.Now().UTC(),
		Transport:  message.TransportPush,
	}
}

func TestHandleRepliesAndRecords(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, store := newTestPipeline(client, recorder)

	outcome := p.Handle(context.Background(), pushMessage("m1", "u1", "hello"))

	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, []string{"u1"}, client.directSends)
	assert.Equal(t, 1, recorder.count())
	assert.True(t, store.Seen("m1"))
	if !strings.Contains(recorder.entries[0], "user_u1|hello|") {
		t.Fatalf("record = %q", recorder.entries[0])
	}
}

func TestHandleDedupSequential(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	msg := pushMessage("m1", "u1", "hello")
	assert.Equal(t, OutcomeReplied, p.Handle(context.Background(), msg))
	for i := 0; i < 5; i++ {
		assert.Equal(t, OutcomeSkippedDuplicate, p.Handle(context.Background(), msg))
	}
	assert.Equal(t, 1, client.totalSends())
	assert.Equal(t, 1, recorder.count())
}

func TestHandleDedupConcurrent(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	msg := pushMessage("m1", "u1", "hello")
	var wg sync.WaitGroup
	outcomes := make([]Outcome, 16)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = p.Handle(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	replied := 0
	for _, o := range outcomes {
		if o != OutcomeSkippedDuplicate {
			replied++
		}
	}
	assert.Equal(t, 1, replied, "exactly one handler must win the test-and-set")
	assert.Equal(t, 1, client.totalSends())
	assert.Equal(t, 1, recorder.count())
}

func TestHandleSkipsSelf(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, store := newTestPipeline(client, recorder)

	cases := []struct {
		name   string
		sender string
	}{
		{name: "own account", sender: "bot17841"},
		{name: "empty sender", sender: ""},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := pushMessage("self-m"+tc.name, tc.sender, "hi")
			outcome := p.Handle(context.Background(), msg)
			assert.Equal(t, OutcomeSkippedSelf, outcome)
			assert.Equal(t, 0, client.totalSends())
			assert.Equal(t, 0, recorder.count())
			assert.Equal(t, i+1, store.Len(), "self messages are still registered")
		})
	}
}

func TestHandleUserLookupFailureFallsBack(t *testing.T) {
	client := &fakeClient{userErr: errors.New("api down")}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	outcome := p.Handle(context.Background(), pushMessage("m1", "u9", "hello"))

	assert.Equal(t, OutcomeReplied, outcome)
	if !strings.Contains(client.sentTexts[0], "User_u9") {
		t.Fatalf("reply %q must contain fallback display name", client.sentTexts[0])
	}
}

func TestHandleDispatchFailureStillRecordsAndMarks(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("send refused"), convErr: errors.New("listing down")}
	recorder := &fakeRecorder{}
	p, store := newTestPipeline(client, recorder)

	msg := pushMessage("m1", "u1", "hello")
	outcome := p.Handle(context.Background(), msg)

	assert.Equal(t, OutcomeReplyFailed, outcome)
	assert.True(t, store.Seen("m1"))
	assert.Equal(t, 1, recorder.count())
	if !strings.Contains(recorder.entries[0], "Could not send reply - conversation not found") {
		t.Fatalf("record = %q", recorder.entries[0])
	}

	// A failed send is handled, not retried: the duplicate is skipped.
	assert.Equal(t, OutcomeSkippedDuplicate, p.Handle(context.Background(), msg))
	assert.Equal(t, 1, recorder.count())
}

func TestHandlePollSendsIntoConversation(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	msg := message.Inbound{
		ID:             "m5",
		SenderID:       "u2",
		Text:           "polled",
		Transport:      message.TransportPoll,
		ConversationID: "c7",
	}
	outcome := p.Handle(context.Background(), msg)

	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, []string{"c7"}, client.convSends)
	assert.Empty(t, client.directSends)
}

func TestHandleDiscoveryByParticipant(t *testing.T) {
	client := &fakeClient{
		sendErr: errors.New("direct send unsupported"),
		conversations: []platform.Conversation{
			{ID: "c1", Participants: platform.ParticipantList{Data: []platform.User{{ID: "other"}}}},
			{ID: "c2", Participants: platform.ParticipantList{Data: []platform.User{{ID: "u1"}}}},
		},
	}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	outcome := p.Handle(context.Background(), pushMessage("m1", "u1", "hello"))

	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, []string{"c2"}, client.convSends)
}

func TestHandleDiscoveryByMessageScan(t *testing.T) {
	client := &fakeClient{
		sendErr: errors.New("direct send unsupported"),
		conversations: []platform.Conversation{
			{ID: "c1"},
			{ID: "c2"},
		},
		convMessages: map[string][]platform.ConversationMessage{
			"c2": {{ID: "m1", From: platform.User{ID: "u1"}}},
		},
	}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	outcome := p.Handle(context.Background(), pushMessage("m1", "u1", "hello"))

	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, []string{"c2"}, client.convSends)
}

func TestHandleEmptyTextRecordsPlaceholder(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p, _ := newTestPipeline(client, recorder)

	p.Handle(context.Background(), pushMessage("m1", "u1", ""))

	if !strings.Contains(recorder.entries[0], "[Webhook message - no text]") {
		t.Fatalf("record = %q", recorder.entries[0])
	}
}
