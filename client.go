// Package chalkboard is the embeddable core of a browser-style LLM chat
// client: conversations, streamed completions and scripted teacher
// personas, persisted through a pluggable key-value store. The package is
// UI-agnostic; a presentation layer renders Conversations() and Messages()
// and calls the operations below.
package chalkboard

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/completion"
	"github.com/chalkboard-ai/chalkboard/internal/config"
	"github.com/chalkboard-ai/chalkboard/internal/convstore"
	"github.com/chalkboard-ai/chalkboard/internal/identity"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/logger"
	"github.com/chalkboard-ai/chalkboard/internal/mailbox"
	"github.com/chalkboard-ai/chalkboard/internal/model"
	"github.com/chalkboard-ai/chalkboard/internal/pipeline"
	"github.com/chalkboard-ai/chalkboard/internal/teacher"
)

// Completer produces assistant turns. The default talks to OpenRouter and
// the local tunnel; tests substitute fakes via WithCompleter.
type Completer = pipeline.Completer

// Client is the facade over the chat core. Construct with New, release
// with Close. All methods are safe for concurrent use.
type Client struct {
	cfg   *config.Config
	log   zerolog.Logger
	store kv.Store
	comp  Completer
	ident identity.Provider

	conv *convstore.Store
	pipe *pipeline.Pipeline
	box  *mailbox.Mailbox
	orch *teacher.Orchestrator

	sqlite *kv.SQLiteStore // set when persistence is file-backed

	// option overrides, consumed during New
	logSet      bool
	httpTimeout time.Duration
	debug       bool

	closedOnce uint32
}

// New constructs a Client. Without options it reads CHALKBOARD_-prefixed
// environment variables, persists in memory (or SQLite when
// CHALKBOARD_SQLITE_PATH is set) and talks to the real completion and
// identity endpoints.
func New(opts ...Option) (*Client, error) {
	c := &Client{}

	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.cfg == nil {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		c.cfg = cfg
	}
	if c.httpTimeout > 0 {
		c.cfg.HTTPTimeout = c.httpTimeout
	}
	if !c.logSet {
		c.log = logger.New("chalkboard")
	}

	if c.store == nil {
		if c.cfg.SQLitePath != "" {
			st, err := kv.NewSQLiteStore(c.cfg.SQLitePath)
			if err != nil {
				return nil, fmt.Errorf("open sqlite store: %w", err)
			}
			c.sqlite = st
			c.store = st
		} else {
			c.store = kv.NewMemoryStore()
		}
	}

	ctx := context.Background()
	conv, err := convstore.New(ctx, c.store, c.log)
	if err != nil {
		return nil, err
	}
	c.conv = conv

	if c.comp == nil {
		var transport http.RoundTripper
		if c.debug {
			transport = &debugTransport{base: http.DefaultTransport, log: c.log}
		}
		c.comp = completion.New(completion.Config{
			OpenRouterAPIKey: c.cfg.OpenRouterAPIKey,
			OpenRouterURL:    c.cfg.OpenRouterURL,
			TunnelURL:        c.cfg.TunnelURL,
			SiteURL:          c.cfg.SiteURL,
			SiteName:         c.cfg.SiteName,
			Timeout:          c.cfg.HTTPTimeout,
			Transport:        transport,
		}, c.log)
	}
	if c.ident == nil {
		c.ident = identity.Fallback(
			identity.NewHTTPProvider(c.cfg.IdentityURL, c.cfg.HTTPTimeout, c.log),
			identity.NewLocalProvider(),
		)
	}

	c.pipe = pipeline.New(conv, c.comp, c.cfg.SendDebounce, c.log)
	c.box = mailbox.New(c, c.log)
	c.pipe.SetMailbox(c.box)

	orch, err := teacher.New(ctx, c.store, conv, c.pipe, c.box, c.ident, c.cfg.LessonAdvanceDelay, c.log)
	if err != nil {
		return nil, err
	}
	c.orch = orch
	c.pipe.SetObserver(orch)

	return c, nil
}

// Generating reports whether an assistant turn is in flight. Part of the
// mailbox's eligibility view.
func (c *Client) Generating() bool { return c.pipe.Generating() }

// HasConversation reports whether the conversation exists. Part of the
// mailbox's eligibility view.
func (c *Client) HasConversation(id string) bool { return c.conv.Has(id) }

// Close stops the background dispatcher and releases the store. Pending
// mailbox actions are dropped; call Flush first to let them run. Safe to
// call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.box.Stop()
	if c.sqlite != nil {
		return c.sqlite.Close()
	}
	return nil
}

// Flush blocks until every queued action (scheduled generations, scripted
// teacher steps) has run or been dropped.
func (c *Client) Flush(ctx context.Context) error {
	return c.box.Barrier(ctx)
}

// --------------------------------------------------------------------
// Conversation operations
// --------------------------------------------------------------------

// AddConversationRequest describes a conversation to create.
type AddConversationRequest struct {
	Title        string
	Model        string
	LogoURL      string
	AsstName     string
	SystemPrompt string

	// InitialMessage, when set, is sent into the new conversation as a
	// user message, which triggers the first assistant turn.
	InitialMessage string
}

// AddConversation creates a conversation and makes it active.
func (c *Client) AddConversation(ctx context.Context, req AddConversationRequest) (string, error) {
	id, err := c.conv.Add(ctx, convstore.AddParams{
		Title:        req.Title,
		Model:        req.Model,
		LogoURL:      req.LogoURL,
		AsstName:     req.AsstName,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return "", err
	}
	if req.InitialMessage != "" {
		c.pipe.SendTo(ctx, id, req.InitialMessage, model.SenderUser, "", "")
	}
	return id, nil
}

// Conversations returns all conversations in creation order.
func (c *Client) Conversations() []Conversation { return c.conv.Conversations() }

// ActiveConversation returns the active conversation, if any.
func (c *Client) ActiveConversation() (Conversation, bool) {
	id, ok := c.conv.ActiveID()
	if !ok {
		return Conversation{}, false
	}
	return c.conv.Get(id)
}

// Messages returns the active conversation's messages, including any
// streaming turn's partial text.
func (c *Client) Messages() []Message { return c.conv.Messages() }

// ActivateConversation switches focus and loads the conversation's log.
func (c *Client) ActivateConversation(ctx context.Context, id string) bool {
	ok := c.conv.Activate(ctx, id)
	if ok {
		c.box.Kick()
	}
	return ok
}

// UpdateConversation applies a partial update.
func (c *Client) UpdateConversation(ctx context.Context, id string, u ConversationUpdate) bool {
	return c.conv.Update(ctx, id, u)
}

// DeleteConversation removes a conversation and its log. A generation in
// flight for it is discarded when it completes; queued actions for it are
// dropped.
func (c *Client) DeleteConversation(ctx context.Context, id string) bool {
	ok := c.conv.Delete(ctx, id)
	if ok {
		c.box.Kick()
	}
	return ok
}

// --------------------------------------------------------------------
// Message operations
// --------------------------------------------------------------------

// SendMessage appends a user message to the active conversation and
// schedules a generation. Returns false when nothing is active.
func (c *Client) SendMessage(ctx context.Context, text string) bool {
	return c.pipe.Send(ctx, text, model.SenderUser, "", "")
}

// SendMessageAs appends a message with an explicit sender. Non-user
// senders do not trigger generation.
func (c *Client) SendMessageAs(ctx context.Context, text string, sender Sender, senderName, logoURL string) bool {
	return c.pipe.Send(ctx, text, sender, senderName, logoURL)
}

// EditMessage replaces a message's text in the active conversation. The
// edit does not truncate history or trigger regeneration.
func (c *Client) EditMessage(ctx context.Context, msgID, text string) bool {
	id, ok := c.conv.ActiveID()
	if !ok {
		return false
	}
	return c.conv.EditMessage(ctx, id, msgID, text)
}

// DeleteMessage removes a single message from the active conversation.
func (c *Client) DeleteMessage(ctx context.Context, msgID string) bool {
	id, ok := c.conv.ActiveID()
	if !ok {
		return false
	}
	return c.conv.DeleteMessage(ctx, id, msgID)
}

// RegenerateMessage rewinds the active conversation to just before the
// given message and generates a fresh reply from the remaining history.
func (c *Client) RegenerateMessage(ctx context.Context, msgID string) bool {
	id, ok := c.conv.ActiveID()
	if !ok {
		return false
	}
	if !c.conv.TruncateBefore(ctx, id, msgID) {
		return false
	}
	c.pipe.ScheduleGenerate(id, 0)
	return true
}

// --------------------------------------------------------------------
// Teacher operations
// --------------------------------------------------------------------

// AddTeacherRequest describes a teacher persona to create. The name and
// portrait come from the identity provider.
type AddTeacherRequest struct {
	Subject        string
	Personality    Personality
	StudentLevel   StudentLevel
	NativeLanguage string
	Model          string
}

// AddTeacher creates a teacher persona and starts its scripted onboarding
// in a fresh agent conversation.
func (c *Client) AddTeacher(ctx context.Context, req AddTeacherRequest) (string, error) {
	return c.orch.AddTeacher(ctx, teacher.AddParams{
		Subject:        req.Subject,
		Personality:    req.Personality,
		StudentLevel:   req.StudentLevel,
		NativeLanguage: req.NativeLanguage,
		Model:          req.Model,
	})
}

// Teachers returns all teacher personas.
func (c *Client) Teachers() []Teacher { return c.orch.Teachers() }

// GetTeacher returns one teacher persona.
func (c *Client) GetTeacher(id string) (Teacher, bool) { return c.orch.Get(id) }

// UpdateTeacher applies a partial update.
func (c *Client) UpdateTeacher(ctx context.Context, id string, u TeacherUpdate) bool {
	return c.orch.Update(ctx, id, u)
}

// DeleteTeacher removes the teacher and every conversation it owns.
func (c *Client) DeleteTeacher(ctx context.Context, id string) bool {
	return c.orch.DeleteTeacher(ctx, id)
}

// --------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------

// ModelChoices returns the static model catalog.
func (c *Client) ModelChoices() []ModelChoice { return model.Catalog() }
