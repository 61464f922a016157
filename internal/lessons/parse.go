package lessons

import (
	"encoding/json"
	"fmt"
	"strings"

	"lingua-backend/internal/models"
)

// BuildPrompt asks the model for one lesson as a JSON object.
func BuildPrompt(topic string, focus GrammarFocus, level string) string {
	var b strings.Builder

	b.WriteString("You are an experienced English teacher. Write one short lesson for English learners.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Learner level: %s\n", level)
	fmt.Fprintf(&b, "Grammar focus: %s. %s\n", focus.Title(), GrammarRule(focus))

	b.WriteString(`
JSON schema:
{"title": "string", "content": "string", "vocabulary": ["string"], "exercises": [{"type": "multiple_choice"|"fill_blank"|"speaking", "prompt": "string", "options": ["string"], "correct_index": int, "answer": "string", "explanation": "string"}]}

Include 5 to 8 vocabulary words and 3 to 5 exercises. multiple_choice needs exactly 4 options.
`)
	return b.String()
}

// ParseLesson decodes model output. When the output is unusable it returns
// FallbackLesson and ok=false, so callers always get content.
func ParseLesson(raw, topic string, focus GrammarFocus, level string) (lesson Generated, ok bool) {
	cleaned := stripFences(raw)

	var out Generated
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return FallbackLesson(topic, focus, level), false
	}

	out.Title = strings.TrimSpace(out.Title)
	out.Content = strings.TrimSpace(out.Content)
	out.Exercises = validateExercises(out.Exercises)
	if out.Title == "" || out.Content == "" || len(out.Exercises) == 0 {
		return FallbackLesson(topic, focus, level), false
	}
	if len(out.Vocabulary) == 0 {
		out.Vocabulary = VocabularyFor(topic)
	}
	return out, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func validateExercises(exercises []models.Exercise) []models.Exercise {
	var valid []models.Exercise
	for _, e := range exercises {
		if strings.TrimSpace(e.Prompt) == "" {
			continue
		}
		switch e.Type {
		case "multiple_choice":
			if len(e.Options) < 2 {
				continue
			}
			if e.CorrectIndex < 0 || e.CorrectIndex >= len(e.Options) {
				e.CorrectIndex = 0
			}
		case "fill_blank", "speaking":
			e.Options = nil
		default:
			continue
		}
		valid = append(valid, e)
	}
	return valid
}
