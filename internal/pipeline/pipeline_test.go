package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkboard-ai/chalkboard/internal/convstore"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/mailbox"
	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// fakeCompleter scripts completion results and records concurrency.
type fakeCompleter struct {
	mu        sync.Mutex
	replies   []string
	err       error
	title     string
	calls     int
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	block     chan struct{} // when set, Complete waits on it
}

func (f *fakeCompleter) Complete(ctx context.Context, modelID string, msgs []model.Message, systemPrompt string, onProgress func(string), backend model.Backend) (string, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxFlight.Load()
		if cur <= max || f.maxFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	reply := "ok"
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	if onProgress != nil {
		for i := 1; i <= len(reply); i++ {
			onProgress(reply[:i])
		}
	}
	return reply, nil
}

func (f *fakeCompleter) Summarize(ctx context.Context, msgs []model.Message) (string, error) {
	if f.title == "" {
		return "Some Short Title", nil
	}
	return f.title, nil
}

// harness wires a real store and mailbox around the pipeline.
type harness struct {
	conv *convstore.Store
	pipe *Pipeline
	box  *mailbox.Mailbox
}

func (h *harness) Generating() bool               { return h.pipe.Generating() }
func (h *harness) HasConversation(id string) bool { return h.conv.Has(id) }

func newHarness(t *testing.T, comp Completer) *harness {
	t.Helper()
	conv, err := convstore.New(context.Background(), kv.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	h := &harness{conv: conv}
	h.pipe = New(conv, comp, 0, zerolog.Nop())
	h.box = mailbox.New(h, zerolog.Nop())
	h.pipe.SetMailbox(h.box)
	t.Cleanup(h.box.Stop)
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.box.Barrier(ctx))
}

func TestSendWithoutActiveConversation(t *testing.T) {
	h := newHarness(t, &fakeCompleter{})
	ok := h.pipe.Send(context.Background(), "hello", model.SenderUser, "", "")
	assert.False(t, ok)
}

func TestUserSendGeneratesReply(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{replies: []string{"Bonjour!"}, title: "French Greetings Chat"}
	h := newHarness(t, comp)

	id, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o", AsstName: "Tutor"})
	require.NoError(t, err)

	require.True(t, h.pipe.Send(ctx, "bonjour", model.SenderUser, "", ""))
	h.flush(t)

	msgs, err := h.conv.LoadLog(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "Bonjour!", msgs[1].Text)
	assert.Equal(t, model.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "Tutor", msgs[1].SenderName)

	c, _ := h.conv.Get(id)
	assert.Equal(t, "Bonjour!", c.LastMessage)
	assert.Equal(t, "French Greetings Chat", c.Title, "first turn should retitle the conversation")
}

func TestAssistantSendDoesNotGenerate(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{}
	h := newHarness(t, comp)

	id, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)

	require.True(t, h.pipe.Send(ctx, "welcome", model.SenderAssistant, "Bot", ""))
	h.flush(t)

	msgs, err := h.conv.LoadLog(ctx, id)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Zero(t, comp.calls)
}

func TestGenerationFailurePersistsApology(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{err: errors.New("provider down")}
	h := newHarness(t, comp)

	id, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)

	require.True(t, h.pipe.Send(ctx, "hi", model.SenderUser, "", ""))
	h.flush(t)

	msgs, err := h.conv.LoadLog(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, failureReply, msgs[1].Text)
	assert.False(t, h.pipe.Generating(), "gate must be released after failure")
}

func TestDeletionMidFlightDiscardsTurn(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{block: make(chan struct{})}
	h := newHarness(t, comp)

	id, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)
	require.True(t, h.pipe.Send(ctx, "hi", model.SenderUser, "", ""))

	// Wait for the turn to enter the completer, then delete underneath it.
	require.Eventually(t, func() bool { return comp.inFlight.Load() == 1 }, time.Second, time.Millisecond)
	require.True(t, h.conv.Delete(ctx, id))
	close(comp.block)

	h.flush(t)
	assert.False(t, h.conv.Has(id), "discarded turn must not resurrect the conversation")
}

// midStreamCompleter delivers one partial delta on its first call, then
// holds the turn open until released. Later calls return immediately.
type midStreamCompleter struct {
	calls    atomic.Int32
	streamed chan struct{}
	release  chan struct{}
}

func (c *midStreamCompleter) Complete(ctx context.Context, modelID string, msgs []model.Message, systemPrompt string, onProgress func(string), backend model.Backend) (string, error) {
	if c.calls.Add(1) > 1 {
		return "second answer", nil
	}
	onProgress("partial ans")
	close(c.streamed)
	<-c.release
	return "final answer", nil
}

func (c *midStreamCompleter) Summarize(ctx context.Context, msgs []model.Message) (string, error) {
	return "T", nil
}

func TestMessageSentMidStreamKeepsItsText(t *testing.T) {
	ctx := context.Background()
	comp := &midStreamCompleter{streamed: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, comp)

	id, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)
	require.True(t, h.pipe.Send(ctx, "first question", model.SenderUser, "", ""))

	// Wait for the first delta to land, then send while the turn streams.
	<-comp.streamed
	require.True(t, h.pipe.Send(ctx, "second question", model.SenderUser, "", ""))
	close(comp.release)
	h.flush(t)

	msgs, err := h.conv.LoadLog(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "first question", msgs[0].Text)
	assert.Equal(t, "final answer", msgs[1].Text)
	assert.Equal(t, "second question", msgs[2].Text, "stream deltas must not overwrite a message sent mid-turn")
	assert.Equal(t, "second answer", msgs[3].Text)
}

func TestGenerationsAreSingleFlight(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{replies: []string{"one", "two", "three"}, title: "T"}
	h := newHarness(t, comp)

	_, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, h.pipe.Send(ctx, "again", model.SenderUser, "", ""))
	}
	h.flush(t)

	assert.Equal(t, int32(1), comp.maxFlight.Load(), "completions overlapped")
	assert.Equal(t, 3, comp.calls)
}

type recordingObserver struct {
	mu    sync.Mutex
	turns []model.Conversation
}

func (r *recordingObserver) OnAssistantTurn(conv model.Conversation, msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, conv)
}

func TestObserverOnlyForTeacherConversations(t *testing.T) {
	ctx := context.Background()
	comp := &fakeCompleter{title: "T"}
	h := newHarness(t, comp)
	obs := &recordingObserver{}
	h.pipe.SetObserver(obs)

	plain, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o"})
	require.NoError(t, err)
	require.True(t, h.pipe.Send(ctx, "hi", model.SenderUser, "", ""))
	h.flush(t)

	owned, err := h.conv.Add(ctx, convstore.AddParams{Model: "openai/gpt-4o", TeacherID: "t1"})
	require.NoError(t, err)
	require.True(t, h.pipe.Send(ctx, "hi teacher", model.SenderUser, "", ""))
	h.flush(t)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.turns, 1)
	assert.Equal(t, owned, obs.turns[0].ID)
	assert.NotEqual(t, plain, obs.turns[0].ID)
}
