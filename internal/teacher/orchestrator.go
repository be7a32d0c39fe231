// Package teacher runs the scripted lifecycle behind teacher personas:
// onboarding, curriculum design, per-lesson planning and lesson handoff.
// Every step reacts to a finished assistant turn and queues its follow-up
// through the mailbox, so script progress never races a live generation.
package teacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/convstore"
	"github.com/chalkboard-ai/chalkboard/internal/identity"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/mailbox"
	"github.com/chalkboard-ai/chalkboard/internal/model"
	"github.com/chalkboard-ai/chalkboard/internal/pipeline"
)

const teachersKey = "teachers"

// Orchestrator owns the teacher registry and advances each teacher's
// scripted stage machine.
type Orchestrator struct {
	mu       sync.Mutex
	teachers []model.Teacher

	kv           kv.Store
	conv         *convstore.Store
	pipe         *pipeline.Pipeline
	box          *mailbox.Mailbox
	ident        identity.Provider
	advanceDelay time.Duration
	log          zerolog.Logger
}

// New builds an Orchestrator and hydrates the teacher registry.
func New(ctx context.Context, store kv.Store, conv *convstore.Store, pipe *pipeline.Pipeline, box *mailbox.Mailbox, ident identity.Provider, advanceDelay time.Duration, log zerolog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		kv:           store,
		conv:         conv,
		pipe:         pipe,
		box:          box,
		ident:        ident,
		advanceDelay: advanceDelay,
		log:          log,
	}

	raw, err := store.Get(ctx, teachersKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load teachers: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &o.teachers); err != nil {
			return nil, fmt.Errorf("decode teachers: %w", err)
		}
	}
	return o, nil
}

// AddParams describes a teacher to create. Name and portrait come from the
// identity provider, not the caller.
type AddParams struct {
	Subject        string
	Personality    model.Personality
	StudentLevel   model.StudentLevel
	NativeLanguage string
	Model          string
}

// AddTeacher creates the persona, its agent conversation, and queues the
// onboarding prompt. The agent conversation becomes active so the user
// watches the script unfold.
func (o *Orchestrator) AddTeacher(ctx context.Context, p AddParams) (string, error) {
	if p.Subject == "" {
		return "", fmt.Errorf("teacher subject is required")
	}

	id, err := o.ident.Random(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch identity: %w", err)
	}

	t := model.Teacher{
		ID:             uuid.NewString(),
		Name:           id.Name,
		Subject:        p.Subject,
		Personality:    p.Personality,
		StudentLevel:   p.StudentLevel,
		LogoURL:        id.LogoURL,
		NativeLanguage: p.NativeLanguage,
		Model:          p.Model,
		PastTopics:     []string{},
		CurrentTopics:  []string{},
		FutureTopics:   []string{},
		Stage:          model.StageOnboarding,
	}

	agentID, err := o.conv.Add(ctx, convstore.AddParams{
		Title:        model.AgentTitle,
		Model:        t.Model,
		LogoURL:      t.LogoURL,
		AsstName:     t.Name,
		SystemPrompt: personaPrompt(t),
		TeacherID:    t.ID,
	})
	if err != nil {
		return "", fmt.Errorf("create agent conversation: %w", err)
	}
	t.AgentConversationID = agentID

	o.mu.Lock()
	o.teachers = append(o.teachers, t)
	err = o.persistLocked(ctx)
	o.mu.Unlock()
	if err != nil {
		return "", err
	}

	o.enqueueSend("teacher-onboard", agentID, historyPrompt)
	o.log.Info().Str("teacher", t.ID).Str("subject", t.Subject).Str("name", t.Name).Msg("teacher created")
	return t.ID, nil
}

// Teachers returns a copy of the registry.
func (o *Orchestrator) Teachers() []model.Teacher {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Teacher, len(o.teachers))
	copy(out, o.teachers)
	return out
}

// Get returns a copy of one teacher.
func (o *Orchestrator) Get(id string) (model.Teacher, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.teachers {
		if t.ID == id {
			return t, true
		}
	}
	return model.Teacher{}, false
}

// Update applies a partial update and persists the registry.
func (o *Orchestrator) Update(ctx context.Context, id string, u model.TeacherUpdate) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.teachers {
		if o.teachers[i].ID == id {
			u.Apply(&o.teachers[i])
			if err := o.persistLocked(ctx); err != nil {
				o.log.Error().Str("teacher", id).Err(err).Msg("persist teacher update")
			}
			return true
		}
	}
	return false
}

// DeleteTeacher removes the teacher and every conversation it owns,
// the agent conversation included.
func (o *Orchestrator) DeleteTeacher(ctx context.Context, id string) bool {
	o.mu.Lock()
	idx := -1
	for i := range o.teachers {
		if o.teachers[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		o.mu.Unlock()
		return false
	}
	o.teachers = append(o.teachers[:idx], o.teachers[idx+1:]...)
	if err := o.persistLocked(ctx); err != nil {
		o.log.Error().Str("teacher", id).Err(err).Msg("persist teacher delete")
	}
	o.mu.Unlock()

	for _, c := range o.conv.ByTeacher(id) {
		o.conv.Delete(ctx, c.ID)
	}
	return true
}

// OnAssistantTurn advances the script after a completed assistant turn in
// a teacher-owned conversation. Satisfies pipeline.Observer.
func (o *Orchestrator) OnAssistantTurn(conv model.Conversation, msgs []model.Message) {
	t, ok := o.Get(conv.TeacherID)
	if !ok {
		return
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Sender != model.SenderAssistant {
		return
	}
	last := msgs[len(msgs)-1]

	if conv.ID == t.AgentConversationID {
		o.onAgentTurn(t, conv, last)
		return
	}
	o.onLessonTurn(t, last)
}

// onAgentTurn is the agent-conversation stage machine. Each completed turn
// is that stage's answer; the follow-up prompt is queued gated on idle.
func (o *Orchestrator) onAgentTurn(t model.Teacher, conv model.Conversation, last model.Message) {
	ctx := context.Background()

	switch t.Stage {
	case model.StageOnboarding:
		// The reply is the invented personal history. Fold it into the
		// persona so every later prompt carries it.
		o.mutate(ctx, t.ID, func(t *model.Teacher) {
			t.PersonalHistory = last.Text
			t.Stage = model.StageCurriculumPending
		})
		if cur, ok := o.Get(t.ID); ok {
			sys := personaPrompt(cur)
			o.conv.Update(ctx, conv.ID, model.ConversationUpdate{SystemPrompt: &sys})
			o.enqueueSend("teacher-curriculum", conv.ID, curriculumPrompt(cur))
		}

	case model.StageCurriculumPending:
		lessons, err := parseCurriculum(last.Text)
		if err != nil {
			// Stay in this stage; the user can ask the agent to try again
			// and the next turn is parsed the same way.
			o.log.Warn().Str("teacher", t.ID).Err(err).Msg("curriculum parse failed")
			return
		}
		o.mutate(ctx, t.ID, func(t *model.Teacher) {
			t.CurrentTopics = lessons[:1]
			t.FutureTopics = lessons[1:]
			t.Stage = model.StageLessonPlanPending
		})
		// Replace the raw JSON with the readable list the user sees.
		o.conv.EditMessage(ctx, conv.ID, last.ID, formatCurriculum(lessons))
		o.enqueueSend("teacher-lesson-plan", conv.ID, lessonPlanPrompt(lessons[0]))

	case model.StageLessonPlanPending:
		topic := ""
		if len(t.CurrentTopics) > 0 {
			topic = t.CurrentTopics[0]
		}
		plan := last.Text
		a := mailbox.Action{
			Name:        "teacher-start-lesson",
			NeedsIdle:   true,
			RequireConv: conv.ID,
			Run: func(ctx context.Context) error {
				return o.startLesson(ctx, t.ID, topic, plan)
			},
		}
		if err := o.box.Enqueue(a); err != nil {
			o.log.Warn().Str("teacher", t.ID).Err(err).Msg("queue lesson start")
		}
	}
}

// startLesson opens the lesson conversation, activates it and sends the
// scripted opener, then advances the topic queue so the next plan request
// targets the following lesson.
func (o *Orchestrator) startLesson(ctx context.Context, teacherID, topic, plan string) error {
	t, ok := o.Get(teacherID)
	if !ok {
		return nil
	}

	lessonID, err := o.conv.Add(ctx, convstore.AddParams{
		Title:        topic,
		Model:        t.Model,
		LogoURL:      t.LogoURL,
		AsstName:     t.Name,
		SystemPrompt: lessonSystemPrompt(t, topic, plan),
		TeacherID:    t.ID,
	})
	if err != nil {
		return fmt.Errorf("create lesson conversation: %w", err)
	}

	o.mutate(ctx, teacherID, func(t *model.Teacher) {
		if len(t.CurrentTopics) > 0 {
			t.PastTopics = append(t.PastTopics, t.CurrentTopics[0])
		}
		if len(t.FutureTopics) > 0 {
			t.CurrentTopics = t.FutureTopics[:1]
			t.FutureTopics = t.FutureTopics[1:]
		} else {
			t.CurrentTopics = []string{}
		}
		t.Stage = model.StageLessonActive
	})

	o.pipe.SendTo(ctx, lessonID, startLessonText, model.SenderUser, "", "")
	o.log.Info().Str("teacher", teacherID).Str("lesson", topic).Msg("lesson started")
	return nil
}

// onLessonTurn watches lesson conversations for the end-of-lesson marker
// and hands control back to the agent conversation.
func (o *Orchestrator) onLessonTurn(t model.Teacher, last model.Message) {
	if t.Stage != model.StageLessonActive || !containsMarker(last.Text) {
		return
	}
	ctx := context.Background()

	if len(t.CurrentTopics) == 0 {
		o.log.Info().Str("teacher", t.ID).Msg("curriculum complete")
		return
	}
	next := t.CurrentTopics[0]

	o.mutate(ctx, t.ID, func(t *model.Teacher) {
		t.Stage = model.StageLessonPlanPending
	})
	o.enqueueSend("teacher-lesson-plan", t.AgentConversationID, lessonPlanPrompt(next))

	// Bring the agent conversation back into focus after a beat, so the
	// student sees the lesson close before the planning chatter resumes.
	agentID := t.AgentConversationID
	a := mailbox.Action{
		Name:        "teacher-refocus-agent",
		RequireConv: agentID,
		NotBefore:   time.Now().Add(o.advanceDelay),
		Run: func(ctx context.Context) error {
			o.conv.Activate(ctx, agentID)
			return nil
		},
	}
	if err := o.box.Enqueue(a); err != nil {
		o.log.Warn().Str("teacher", t.ID).Err(err).Msg("queue agent refocus")
	}
}

func containsMarker(text string) bool {
	return strings.Contains(text, EndOfLessonMarker)
}

// enqueueSend queues a scripted user-role prompt into a conversation,
// gated on pipeline idle and dropped if the conversation disappears.
func (o *Orchestrator) enqueueSend(name, convID, text string) {
	a := mailbox.Action{
		Name:        name,
		NeedsIdle:   true,
		RequireConv: convID,
		Run: func(ctx context.Context) error {
			o.pipe.SendTo(ctx, convID, text, model.SenderUser, "", "")
			return nil
		},
	}
	if err := o.box.Enqueue(a); err != nil {
		o.log.Warn().Str("conversation", convID).Str("action", name).Err(err).Msg("queue scripted send")
	}
}

// mutate applies fn to the stored teacher under the lock and persists.
func (o *Orchestrator) mutate(ctx context.Context, id string, fn func(*model.Teacher)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.teachers {
		if o.teachers[i].ID == id {
			fn(&o.teachers[i])
			if err := o.persistLocked(ctx); err != nil {
				o.log.Error().Str("teacher", id).Err(err).Msg("persist teacher")
			}
			return
		}
	}
}

func (o *Orchestrator) persistLocked(ctx context.Context) error {
	blob, err := json.Marshal(o.teachers)
	if err != nil {
		return fmt.Errorf("encode teachers: %w", err)
	}
	return o.kv.Set(ctx, teachersKey, string(blob))
}
