package lessons

import (
	"fmt"
	"strings"

	"lingua-backend/internal/models"
)

// Generated is a lesson body ready to be stored.
type Generated struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Vocabulary []string          `json:"vocabulary"`
	Exercises  []models.Exercise `json:"exercises"`
}

var topicVocabulary = map[string][]string{
	"travel":   {"airport", "ticket", "luggage", "passport", "journey", "hotel"},
	"food":     {"breakfast", "recipe", "delicious", "menu", "order", "vegetable"},
	"work":     {"meeting", "colleague", "deadline", "office", "salary", "project"},
	"family":   {"parents", "sibling", "cousin", "grandmother", "relative", "wedding"},
	"shopping": {"price", "receipt", "discount", "cashier", "size", "refund"},
	"health":   {"doctor", "medicine", "appointment", "headache", "exercise", "healthy"},
}

var defaultVocabulary = []string{"hello", "question", "answer", "practice", "sentence", "friend"}

// VocabularyFor returns the word list for a topic, falling back to a general list.
func VocabularyFor(topic string) []string {
	words, ok := topicVocabulary[strings.ToLower(strings.TrimSpace(topic))]
	if !ok {
		words = defaultVocabulary
	}
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// FallbackLesson builds a complete lesson from templates alone. The result is
// deterministic for the same inputs.
func FallbackLesson(topic string, focus GrammarFocus, level string) Generated {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "Everyday English"
	}
	if level == "" {
		level = "beginner"
	}
	vocab := VocabularyFor(topic)

	var content strings.Builder
	fmt.Fprintf(&content, "Grammar: %s\n\n%s\n\n", focus.Title(), GrammarRule(focus))
	fmt.Fprintf(&content, "Vocabulary for %s (%s):\n", topic, level)
	for _, w := range vocab {
		fmt.Fprintf(&content, "- %s\n", w)
	}

	exercises := []models.Exercise{
		{
			Type:        "fill_blank",
			Prompt:      QuestionForGrammar(focus),
			Answer:      answerForGrammar(focus),
			Explanation: GrammarRule(focus),
		},
		vocabularyExercise(vocab),
		{
			Type:   "speaking",
			Prompt: fmt.Sprintf("Say three sentences about %s using the words %s.", strings.ToLower(topic), strings.Join(vocab[:3], ", ")),
		},
	}

	return Generated{
		Title:      fmt.Sprintf("%s: %s", topic, focus.Title()),
		Content:    strings.TrimSpace(content.String()),
		Vocabulary: vocab,
		Exercises:  exercises,
	}
}

// vocabularyExercise asks which word belongs to the topic list; the correct
// option rotates so it is not always first.
func vocabularyExercise(vocab []string) models.Exercise {
	distractors := []string{"purple", "seventeen", "quickly"}
	correct := len(vocab[0]) % 4
	options := make([]string, 0, 4)
	for i, d := 0, 0; i < 4; i++ {
		if i == correct {
			options = append(options, vocab[0])
			continue
		}
		options = append(options, distractors[d])
		d++
	}
	return models.Exercise{
		Type:         "multiple_choice",
		Prompt:       "Which word belongs to this lesson's vocabulary?",
		Options:      options,
		CorrectIndex: correct,
		Explanation:  fmt.Sprintf("%q is one of the lesson words.", vocab[0]),
	}
}
