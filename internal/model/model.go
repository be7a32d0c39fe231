// Package model holds the domain entities shared across the core:
// messages, conversations, teachers and the static model catalog.
// JSON tags match the shapes the browser UI persists, so blobs written
// by this core stay readable by the presentation layer.
package model

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Role maps a sender onto the wire role expected by completion providers.
func (s Sender) Role() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderSystem:
		return "system"
	default:
		return "assistant"
	}
}

// Message is a single turn in a conversation log. Messages are immutable
// once written except for in-place text replacement of the last message
// while a generation streams, and full replacement on edit.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Sender     Sender    `json:"sender"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
	LogoURL    string    `json:"logoURL,omitempty"`
}

// DefaultTitle is the placeholder title given to conversations that have
// not been summarized yet.
const DefaultTitle = "New Conversation"

// AgentTitle is the display title of a teacher's scripted agent
// conversation. Dispatch uses Teacher.AgentConversationID, not this title.
const AgentTitle = "Teacher Agent"

// Conversation is the metadata record for one message thread. The message
// log itself lives under ContentPointer in the key-value store; the
// pointer is derived from the id at creation and never changes.
type Conversation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	LastUpdated    time.Time `json:"lastUpdated"`
	LastMessage    string    `json:"lastMessage"`
	IsPinned       bool      `json:"isPinned"`
	ContentPointer string    `json:"contentPointer"`
	Model          string    `json:"model"`
	LogoURL        string    `json:"logoURL,omitempty"`
	AsstName       string    `json:"asstName,omitempty"`
	SystemPrompt   string    `json:"systemPrompt,omitempty"`
	TeacherID      string    `json:"teacherId,omitempty"`
}

// ContentPointerFor derives the message-log storage key for a conversation id.
func ContentPointerFor(id string) string { return "messages_" + id }

// ConversationUpdate carries a partial update; nil fields are left untouched.
type ConversationUpdate struct {
	Title        *string
	LastUpdated  *time.Time
	LastMessage  *string
	IsPinned     *bool
	Model        *string
	LogoURL      *string
	AsstName     *string
	SystemPrompt *string
}

// Apply merges the update into c.
func (u ConversationUpdate) Apply(c *Conversation) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.LastUpdated != nil {
		c.LastUpdated = *u.LastUpdated
	}
	if u.LastMessage != nil {
		c.LastMessage = *u.LastMessage
	}
	if u.IsPinned != nil {
		c.IsPinned = *u.IsPinned
	}
	if u.Model != nil {
		c.Model = *u.Model
	}
	if u.LogoURL != nil {
		c.LogoURL = *u.LogoURL
	}
	if u.AsstName != nil {
		c.AsstName = *u.AsstName
	}
	if u.SystemPrompt != nil {
		c.SystemPrompt = *u.SystemPrompt
	}
}

// Personality selects the tone a teacher persona speaks with.
type Personality string

const (
	PersonalityProfessional Personality = "professional"
	PersonalityCasual       Personality = "casual"
	PersonalityRobotic      Personality = "robotic"
	PersonalityTechnical    Personality = "technical"
)

// StudentLevel describes the student a teacher plans lessons for.
type StudentLevel string

const (
	LevelBeginner     StudentLevel = "beginner"
	LevelIntermediate StudentLevel = "intermediate"
	LevelExpert       StudentLevel = "expert"
)

// Stage is the explicit lifecycle state of a teacher's scripted sequence.
// It replaces the message-count inference the original client used, which
// diverged as soon as a message was deleted or a step retried.
type Stage string

const (
	StageOnboarding        Stage = "onboarding"
	StageCurriculumPending Stage = "curriculum_pending"
	StageLessonPlanPending Stage = "lesson_plan_pending"
	StageLessonActive      Stage = "lesson_active"
)

// Teacher is an agent persona that drives a curriculum of lesson
// conversations. A teacher owns its conversations through the TeacherID
// back-reference: deleting the teacher cascades, but conversations never
// keep a teacher alive.
type Teacher struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Subject             string       `json:"subject"`
	Personality         Personality  `json:"personality"`
	StudentLevel        StudentLevel `json:"studentLevel"`
	LogoURL             string       `json:"logoURL,omitempty"`
	PastTopics          []string     `json:"pastTopics"`
	CurrentTopics       []string     `json:"currentTopics"`
	FutureTopics        []string     `json:"futureTopics"`
	NativeLanguage      string       `json:"nativeLanguage,omitempty"`
	PersonalHistory     string       `json:"personalHistory,omitempty"`
	Model               string       `json:"model,omitempty"`
	Stage               Stage        `json:"stage"`
	AgentConversationID string       `json:"agentConversationId,omitempty"`
}

// TeacherUpdate carries a partial teacher update; nil fields are untouched.
type TeacherUpdate struct {
	Name           *string
	Subject        *string
	Personality    *Personality
	StudentLevel   *StudentLevel
	NativeLanguage *string
	Model          *string
	PastTopics     *[]string
	CurrentTopics  *[]string
	FutureTopics   *[]string
}

// Apply merges the update into t.
func (u TeacherUpdate) Apply(t *Teacher) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Subject != nil {
		t.Subject = *u.Subject
	}
	if u.Personality != nil {
		t.Personality = *u.Personality
	}
	if u.StudentLevel != nil {
		t.StudentLevel = *u.StudentLevel
	}
	if u.NativeLanguage != nil {
		t.NativeLanguage = *u.NativeLanguage
	}
	if u.Model != nil {
		t.Model = *u.Model
	}
	if u.PastTopics != nil {
		t.PastTopics = *u.PastTopics
	}
	if u.CurrentTopics != nil {
		t.CurrentTopics = *u.CurrentTopics
	}
	if u.FutureTopics != nil {
		t.FutureTopics = *u.FutureTopics
	}
}
