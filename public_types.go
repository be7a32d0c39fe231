package chalkboard

import "github.com/chalkboard-ai/chalkboard/internal/model"

// Public type aliases so embedders can import only this package.
type (
	Message            = model.Message
	Sender             = model.Sender
	Conversation       = model.Conversation
	ConversationUpdate = model.ConversationUpdate
	Teacher            = model.Teacher
	TeacherUpdate      = model.TeacherUpdate
	Personality        = model.Personality
	StudentLevel       = model.StudentLevel
	Stage              = model.Stage
	ModelChoice        = model.ModelChoice
	Backend            = model.Backend
)

// Re-exported enum values.
const (
	SenderUser      = model.SenderUser
	SenderAssistant = model.SenderAssistant
	SenderSystem    = model.SenderSystem

	PersonalityProfessional = model.PersonalityProfessional
	PersonalityCasual       = model.PersonalityCasual
	PersonalityRobotic      = model.PersonalityRobotic
	PersonalityTechnical    = model.PersonalityTechnical

	LevelBeginner     = model.LevelBeginner
	LevelIntermediate = model.LevelIntermediate
	LevelExpert       = model.LevelExpert

	StageOnboarding        = model.StageOnboarding
	StageCurriculumPending = model.StageCurriculumPending
	StageLessonPlanPending = model.StageLessonPlanPending
	StageLessonActive      = model.StageLessonActive

	BackendOpenRouter = model.BackendOpenRouter
	BackendTunnel     = model.BackendTunnel
)

// DefaultTitle is the placeholder title before the first summarization.
const DefaultTitle = model.DefaultTitle
