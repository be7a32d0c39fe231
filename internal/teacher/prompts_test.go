package teacher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chalkboard-ai/chalkboard/internal/model"
)

func teacherFixture() model.Teacher {
	return model.Teacher{
		ID:             "t1",
		Name:           "Claire Dupont",
		Subject:        "French",
		Personality:    model.PersonalityCasual,
		StudentLevel:   model.LevelBeginner,
		NativeLanguage: "French",
	}
}

func TestPersonaPrompt(t *testing.T) {
	tc := teacherFixture()
	got := personaPrompt(tc)
	assert.Contains(t, got, "Claire Dupont")
	assert.Contains(t, got, "casual")
	assert.Contains(t, got, "French")
	assert.Contains(t, got, "beginner")
	assert.NotContains(t, got, "personal history", "no history section before onboarding")

	tc.PersonalHistory = "Raised in Lyon."
	got = personaPrompt(tc)
	assert.Contains(t, got, "Raised in Lyon.")
}

func TestCurriculumPromptDemandsJSON(t *testing.T) {
	got := curriculumPrompt(teacherFixture())
	assert.Contains(t, got, `"lessons"`)
	assert.Contains(t, got, "French")
}
