// Package pipeline drives message sends and assistant generations. At most
// one generation is in flight at a time; everything that must wait for an
// idle pipeline goes through the mailbox as a gated action.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/convstore"
	"github.com/chalkboard-ai/chalkboard/internal/mailbox"
	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// failureReply is persisted as the assistant turn when generation fails.
// The turn still completes so the conversation is never left with a
// dangling placeholder.
const failureReply = "I'm sorry, something went wrong while generating a response. Please try again."

// Completer produces assistant text. Satisfied by completion.Client.
type Completer interface {
	Complete(ctx context.Context, modelID string, msgs []model.Message, systemPrompt string, onProgress func(string), backend model.Backend) (string, error)
	Summarize(ctx context.Context, msgs []model.Message) (string, error)
}

// Observer is notified after each successful assistant turn in a
// teacher-owned conversation, before title summarization runs.
type Observer interface {
	OnAssistantTurn(conv model.Conversation, msgs []model.Message)
}

// Pipeline owns the single-flight generation gate.
type Pipeline struct {
	conv     *convstore.Store
	comp     Completer
	log      zerolog.Logger
	debounce time.Duration

	box      *mailbox.Mailbox
	observer Observer

	inFlight atomic.Bool
}

// New builds a Pipeline. The mailbox and observer are attached afterwards;
// both sides reference each other through the facade.
func New(conv *convstore.Store, comp Completer, debounce time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{conv: conv, comp: comp, debounce: debounce, log: log}
}

// SetMailbox attaches the action queue. Must be called before Send.
func (p *Pipeline) SetMailbox(box *mailbox.Mailbox) { p.box = box }

// SetObserver attaches the post-turn observer.
func (p *Pipeline) SetObserver(o Observer) { p.observer = o }

// Generating reports whether an assistant turn is in flight.
func (p *Pipeline) Generating() bool { return p.inFlight.Load() }

// Send appends a message to the active conversation. User messages
// schedule a debounced generation. Returns false, without side effects,
// when no conversation is active.
func (p *Pipeline) Send(ctx context.Context, text string, sender model.Sender, senderName, logoURL string) bool {
	activeID, ok := p.conv.ActiveID()
	if !ok {
		p.log.Warn().Msg("send with no active conversation")
		return false
	}
	return p.SendTo(ctx, activeID, text, sender, senderName, logoURL)
}

// SendTo appends a message to a specific conversation. Scripted teacher
// prompts use this to address the agent conversation regardless of focus.
func (p *Pipeline) SendTo(ctx context.Context, convID, text string, sender model.Sender, senderName, logoURL string) bool {
	if !p.conv.Has(convID) {
		p.log.Warn().Str("conversation", convID).Msg("send to unknown conversation")
		return false
	}
	msg := model.Message{
		ID:         uuid.NewString(),
		Text:       text,
		Sender:     sender,
		SenderName: senderName,
		Timestamp:  time.Now(),
		LogoURL:    logoURL,
	}
	if err := p.conv.Append(ctx, convID, msg); err != nil {
		p.log.Error().Str("conversation", convID).Err(err).Msg("append message")
		return false
	}
	p.conv.Touch(ctx, convID, text)

	if sender == model.SenderUser {
		p.ScheduleGenerate(convID, p.debounce)
	}
	return true
}

// ScheduleGenerate queues an assistant turn for the conversation. The
// action waits for pipeline idle and evaporates if the conversation is
// deleted first.
func (p *Pipeline) ScheduleGenerate(convID string, delay time.Duration) {
	a := mailbox.Action{
		Name:        "generate",
		NeedsIdle:   true,
		RequireConv: convID,
		Run: func(ctx context.Context) error {
			p.generate(ctx, convID)
			return nil
		},
	}
	if delay > 0 {
		a.NotBefore = time.Now().Add(delay)
	}
	if err := p.box.Enqueue(a); err != nil {
		p.log.Warn().Str("conversation", convID).Err(err).Msg("schedule generate")
	}
}

// generate runs one assistant turn: placeholder append, completion with
// streaming into the live view, final persistence, then observer and
// title summarization.
func (p *Pipeline) generate(ctx context.Context, convID string) {
	if !p.inFlight.CompareAndSwap(false, true) {
		// The mailbox serializes actions; hitting this means a second
		// entry point scheduled a turn directly. Re-queue it.
		p.ScheduleGenerate(convID, 0)
		return
	}
	defer func() {
		p.inFlight.Store(false)
		p.box.Kick()
	}()

	start := time.Now()
	c, ok := p.conv.Get(convID)
	if !ok {
		generationsTotal.WithLabelValues("dropped").Inc()
		return
	}
	history, err := p.conv.LoadLog(ctx, convID)
	if err != nil {
		p.log.Error().Str("conversation", convID).Err(err).Msg("load history")
		generationsTotal.WithLabelValues("error").Inc()
		return
	}

	backend := model.BackendOpenRouter
	if choice, ok := model.CatalogModel(c.Model); ok {
		backend = choice.Backend
	}

	placeholder := model.Message{
		ID:         uuid.NewString(),
		Sender:     model.SenderAssistant,
		SenderName: c.AsstName,
		Timestamp:  time.Now(),
		LogoURL:    c.LogoURL,
	}
	if err := p.conv.Append(ctx, convID, placeholder); err != nil {
		p.log.Error().Str("conversation", convID).Err(err).Msg("append placeholder")
		generationsTotal.WithLabelValues("error").Inc()
		return
	}

	text, err := p.comp.Complete(ctx, c.Model, history, c.SystemPrompt, func(s string) {
		p.conv.StreamText(convID, placeholder.ID, s)
	}, backend)

	// The conversation may have been deleted while the request was in
	// flight. Its log is gone; writing the result would resurrect it.
	if !p.conv.Has(convID) {
		p.log.Info().Str("conversation", convID).Msg("discarding turn for deleted conversation")
		generationsTotal.WithLabelValues("dropped").Inc()
		return
	}

	if err != nil {
		p.log.Warn().Str("conversation", convID).Err(err).Msg("generation failed")
		text = failureReply
	}
	p.conv.EditMessage(ctx, convID, placeholder.ID, text)
	p.conv.Touch(ctx, convID, text)

	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		return
	}
	generationsTotal.WithLabelValues("ok").Inc()
	generationDuration.Observe(time.Since(start).Seconds())

	final, err := p.conv.LoadLog(ctx, convID)
	if err != nil {
		p.log.Error().Str("conversation", convID).Err(err).Msg("reload history")
		return
	}
	if c.TeacherID != "" && p.observer != nil {
		if cur, ok := p.conv.Get(convID); ok {
			p.observer.OnAssistantTurn(cur, final)
		}
	}
	p.maybeSummarize(ctx, convID, final)
}

// maybeSummarize retitles the conversation on its first completed turn and
// refreshes the title every ten turns after that.
func (p *Pipeline) maybeSummarize(ctx context.Context, convID string, msgs []model.Message) {
	c, ok := p.conv.Get(convID)
	if !ok {
		return
	}
	if c.Title != model.DefaultTitle && len(msgs)%20 >= 2 {
		return
	}
	title, err := p.comp.Summarize(ctx, msgs)
	if err != nil {
		p.log.Warn().Str("conversation", convID).Err(err).Msg("summarize failed")
		return
	}
	if title == "" {
		return
	}
	p.conv.Update(ctx, convID, model.ConversationUpdate{Title: &title})
}
