package teacher

import (
	"fmt"
	"strings"

	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// EndOfLessonMarker is the token a lesson persona emits when the topic is
// exhausted. Detecting it in an assistant turn advances the curriculum.
const EndOfLessonMarker = "[END OF LESSON]"

// startLessonText is the scripted opener sent into every new lesson
// conversation to provoke the first teaching turn.
const startLessonText = "Let's get started."

// historyPrompt asks the fresh persona to invent a backstory. The answer
// is stored on the teacher and folded into later prompts.
const historyPrompt = "Introduce yourself with a two sentence personal history: where you are from and how you came to teach your subject. Reply with only those two sentences."

func personaPrompt(t model.Teacher) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s %s teacher", t.Name, t.Personality, t.Subject)
	if t.NativeLanguage != "" {
		fmt.Fprintf(&b, " whose native language is %s", t.NativeLanguage)
	}
	fmt.Fprintf(&b, ". You are teaching a %s student. Stay in character at all times.", t.StudentLevel)
	if t.PersonalHistory != "" {
		fmt.Fprintf(&b, "\n\nYour personal history: %s", t.PersonalHistory)
	}
	return b.String()
}

func curriculumPrompt(t model.Teacher) string {
	return fmt.Sprintf(
		"Design a curriculum of 5 to 10 lessons for a %s student of %s. "+
			"Respond with only a JSON object of the form "+
			`{"lessons": ["Lesson Name: topic, topic, topic", ...]}`+
			" and no other text.",
		t.StudentLevel, t.Subject)
}

func lessonPlanPrompt(topic string) string {
	return fmt.Sprintf(
		"Write a concise lesson plan for the lesson %q: the concepts to cover in order, "+
			"one short exercise per concept, and how to tell the student is ready to move on.",
		topic)
}

func lessonSystemPrompt(t model.Teacher, topic, plan string) string {
	var b strings.Builder
	b.WriteString(personaPrompt(t))
	fmt.Fprintf(&b, "\n\nYou are teaching the lesson %q. Follow this plan:\n%s", topic, plan)
	fmt.Fprintf(&b, "\n\nTeach one step at a time and wait for the student between steps. "+
		"When the student has worked through the whole lesson, end your final message with %s on its own line.",
		EndOfLessonMarker)
	return b.String()
}
