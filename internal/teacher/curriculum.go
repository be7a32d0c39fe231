package teacher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseCurriculum extracts the lesson list from a model reply. Models wrap
// JSON in prose and code fences despite instructions, so everything outside
// the outermost braces is ignored.
func parseCurriculum(text string) ([]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in curriculum reply")
	}

	var body struct {
		Lessons []string `json:"lessons"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &body); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}

	lessons := make([]string, 0, len(body.Lessons))
	for _, l := range body.Lessons {
		if s := strings.TrimSpace(l); s != "" {
			lessons = append(lessons, s)
		}
	}
	if len(lessons) == 0 {
		return nil, fmt.Errorf("curriculum reply had no lessons")
	}
	return lessons, nil
}

// formatCurriculum renders the lesson list as the markdown shown in place
// of the raw JSON reply.
func formatCurriculum(lessons []string) string {
	var b strings.Builder
	b.WriteString("Here is our curriculum:\n")
	for _, l := range lessons {
		fmt.Fprintf(&b, "\n**%s**", l)
	}
	return b.String()
}
