package chalkboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/config"
	"github.com/chalkboard-ai/chalkboard/internal/identity"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// scriptedCompleter feeds canned replies to the pipeline in order.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (f *scriptedCompleter) Complete(ctx context.Context, modelID string, msgs []model.Message, systemPrompt string, onProgress func(string), backend model.Backend) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := "ok"
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	if onProgress != nil {
		onProgress(reply)
	}
	return reply, nil
}

func (f *scriptedCompleter) Summarize(ctx context.Context, msgs []model.Message) (string, error) {
	return "Scripted Test Title", nil
}

func newTestClient(t *testing.T, comp Completer) *Client {
	t.Helper()
	c, err := New(
		WithConfig(config.NewForTesting()),
		WithStore(kv.NewMemoryStore()),
		WithCompleter(comp),
		WithIdentityProvider(identity.NewLocalProvider()),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func flush(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &scriptedCompleter{replies: []string{"Hello there!"}})

	id, err := c.AddConversation(ctx, AddConversationRequest{Model: "openai/gpt-4o"})
	if err != nil {
		t.Fatalf("AddConversation: %v", err)
	}

	active, ok := c.ActiveConversation()
	if !ok || active.ID != id {
		t.Fatalf("active = %v, %v", active.ID, ok)
	}
	if active.Title != DefaultTitle {
		t.Fatalf("title = %q", active.Title)
	}

	if !c.SendMessage(ctx, "hi") {
		t.Fatal("SendMessage returned false")
	}
	flush(t, c)

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[1].Text != "Hello there!" || msgs[1].Sender != SenderAssistant {
		t.Fatalf("reply = %+v", msgs[1])
	}

	// First completed turn retitles.
	active, _ = c.ActiveConversation()
	if active.Title != "Scripted Test Title" {
		t.Fatalf("title after turn = %q", active.Title)
	}

	if !c.DeleteConversation(ctx, id) {
		t.Fatal("DeleteConversation returned false")
	}
	if _, ok := c.ActiveConversation(); ok {
		t.Fatal("conversation still active after delete")
	}
	if c.SendMessage(ctx, "into the void") {
		t.Fatal("send succeeded with no active conversation")
	}
}

func TestInitialMessageTriggersTurn(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &scriptedCompleter{replies: []string{"First reply"}})

	if _, err := c.AddConversation(ctx, AddConversationRequest{
		Model:          "openai/gpt-4o",
		InitialMessage: "kick things off",
	}); err != nil {
		t.Fatalf("AddConversation: %v", err)
	}
	flush(t, c)

	msgs := c.Messages()
	if len(msgs) != 2 || msgs[0].Text != "kick things off" || msgs[1].Text != "First reply" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestRegenerateMessage(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &scriptedCompleter{replies: []string{"first answer", "second answer"}})

	if _, err := c.AddConversation(ctx, AddConversationRequest{Model: "openai/gpt-4o"}); err != nil {
		t.Fatalf("AddConversation: %v", err)
	}
	c.SendMessage(ctx, "question")
	flush(t, c)

	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Text != "first answer" {
		t.Fatalf("messages = %+v", msgs)
	}

	if !c.RegenerateMessage(ctx, msgs[1].ID) {
		t.Fatal("RegenerateMessage returned false")
	}
	flush(t, c)

	msgs = c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages after regenerate = %d", len(msgs))
	}
	if msgs[1].Text != "second answer" {
		t.Fatalf("regenerated reply = %q", msgs[1].Text)
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	ctx := context.Background()
	comp := &scriptedCompleter{replies: []string{"answer"}}
	c := newTestClient(t, comp)

	if _, err := c.AddConversation(ctx, AddConversationRequest{Model: "openai/gpt-4o"}); err != nil {
		t.Fatalf("AddConversation: %v", err)
	}
	c.SendMessage(ctx, "question")
	flush(t, c)

	msgs := c.Messages()
	calls := comp.calls
	if !c.EditMessage(ctx, msgs[0].ID, "revised question") {
		t.Fatal("EditMessage returned false")
	}
	flush(t, c)
	if comp.calls != calls {
		t.Fatal("edit must not trigger regeneration")
	}
	msgs = c.Messages()
	if msgs[0].Text != "revised question" || len(msgs) != 2 {
		t.Fatalf("messages after edit = %+v", msgs)
	}

	if !c.DeleteMessage(ctx, msgs[1].ID) {
		t.Fatal("DeleteMessage returned false")
	}
	if got := len(c.Messages()); got != 1 {
		t.Fatalf("messages after delete = %d", got)
	}
}

func TestTeacherScriptThroughFacade(t *testing.T) {
	ctx := context.Background()
	comp := &scriptedCompleter{replies: []string{
		"I am from Kyoto and have taught calligraphy for twenty years.",
		`{"lessons": ["Hiragana: basic strokes", "Katakana: loan words"]}`,
		"Plan: trace each character, then write from memory.",
		"Welcome! Pick up your brush.",
	}}
	c := newTestClient(t, comp)

	id, err := c.AddTeacher(ctx, AddTeacherRequest{
		Subject:      "Japanese",
		Personality:  PersonalityCasual,
		StudentLevel: LevelBeginner,
		Model:        "openai/gpt-4o",
	})
	if err != nil {
		t.Fatalf("AddTeacher: %v", err)
	}
	flush(t, c)

	tc, ok := c.GetTeacher(id)
	if !ok {
		t.Fatal("teacher not found")
	}
	if tc.Stage != StageLessonActive {
		t.Fatalf("stage = %q", tc.Stage)
	}
	if !strings.Contains(tc.PersonalHistory, "Kyoto") {
		t.Fatalf("history = %q", tc.PersonalHistory)
	}
	if len(tc.PastTopics) != 1 || !strings.HasPrefix(tc.PastTopics[0], "Hiragana") {
		t.Fatalf("past topics = %v", tc.PastTopics)
	}

	// Agent plus one lesson conversation, lesson active.
	convs := c.Conversations()
	if len(convs) != 2 {
		t.Fatalf("conversations = %d", len(convs))
	}
	active, _ := c.ActiveConversation()
	if !strings.HasPrefix(active.Title, "Hiragana") {
		t.Fatalf("active = %q", active.Title)
	}

	if !c.DeleteTeacher(ctx, id) {
		t.Fatal("DeleteTeacher returned false")
	}
	if got := len(c.Conversations()); got != 0 {
		t.Fatalf("conversations after teacher delete = %d", got)
	}
}

func TestModelChoices(t *testing.T) {
	c := newTestClient(t, &scriptedCompleter{})
	choices := c.ModelChoices()
	if len(choices) == 0 {
		t.Fatal("empty catalog")
	}
	var tunnel bool
	for _, m := range choices {
		if m.Backend == BackendTunnel {
			tunnel = true
		}
	}
	if !tunnel {
		t.Fatal("catalog has no tunnel-backed model")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestClient(t, &scriptedCompleter{})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
