package lessons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownFocusReturnsDefaults(t *testing.T) {
	unknown := GrammarFocus("subjunctive_mood")

	rule := GrammarRule(unknown)
	question := QuestionForGrammar(unknown)

	assert.NotEmpty(t, rule)
	assert.NotEmpty(t, question)
	assert.Equal(t, rule, GrammarRule(unknown))
	assert.Equal(t, question, QuestionForGrammar(unknown))
	assert.Equal(t, GrammarRule(FocusGeneral), rule)
}

func TestEveryKnownFocusHasOwnTemplates(t *testing.T) {
	general := GrammarRule(FocusGeneral)
	for _, f := range knownFocuses {
		assert.NotEqual(t, general, GrammarRule(f), f)
		assert.NotEmpty(t, QuestionForGrammar(f), f)
		assert.NotEmpty(t, answerForGrammar(f), f)
	}
}

func TestParseGrammarFocus(t *testing.T) {
	assert.Equal(t, FocusPastSimple, ParseGrammarFocus("Past Simple"))
	assert.Equal(t, FocusModalVerbs, ParseGrammarFocus("modal-verbs"))
	assert.Equal(t, FocusGeneral, ParseGrammarFocus("phrasal verbs"))
	assert.Equal(t, "Past Simple", FocusPastSimple.Title())
	assert.Equal(t, "English Basics", GrammarFocus("x").Title())
}

func TestFallbackLessonDeterministic(t *testing.T) {
	a := FallbackLesson("Travel", FocusPastSimple, "beginner")
	b := FallbackLesson("Travel", FocusPastSimple, "beginner")

	assert.Equal(t, a, b)
	assert.Equal(t, "Travel: Past Simple", a.Title)
	assert.Contains(t, a.Content, GrammarRule(FocusPastSimple))
	assert.Contains(t, a.Vocabulary, "passport")
	require.Len(t, a.Exercises, 3)

	mc := a.Exercises[1]
	require.Len(t, mc.Options, 4)
	assert.Equal(t, a.Vocabulary[0], mc.Options[mc.CorrectIndex])
}

func TestFallbackLessonEmptyTopic(t *testing.T) {
	l := FallbackLesson("", GrammarFocus("nope"), "")

	assert.Equal(t, "Everyday English: English Basics", l.Title)
	assert.Equal(t, defaultVocabulary, l.Vocabulary)
}

func TestParseLessonValid(t *testing.T) {
	raw := "```json\n" + `{"title":"At the airport","content":"Read the dialogue.","vocabulary":["gate"],
"exercises":[{"type":"multiple_choice","prompt":"Pick one","options":["a","b"],"correct_index":7},
{"type":"essay","prompt":"dropped"},{"type":"speaking","prompt":"Talk","options":["x"]}]}` + "\n```"

	l, ok := ParseLesson(raw, "travel", FocusPastSimple, "beginner")

	require.True(t, ok)
	assert.Equal(t, "At the airport", l.Title)
	require.Len(t, l.Exercises, 2)
	assert.Equal(t, 0, l.Exercises[0].CorrectIndex)
	assert.Nil(t, l.Exercises[1].Options)
}

func TestParseLessonFallsBack(t *testing.T) {
	cases := []string{
		"",
		"Sorry, I cannot help with that.",
		`{"title":"","content":"x","exercises":[{"type":"speaking","prompt":"p"}]}`,
		`{"title":"t","content":"c","exercises":[]}`,
	}
	want := FallbackLesson("food", FocusArticles, "intermediate")
	for _, raw := range cases {
		l, ok := ParseLesson(raw, "food", FocusArticles, "intermediate")
		assert.False(t, ok, raw)
		assert.Equal(t, want, l, raw)
	}
}

func TestParseLessonFillsVocabulary(t *testing.T) {
	l, ok := ParseLesson(`{"title":"t","content":"c","exercises":[{"type":"speaking","prompt":"p"}]}`, "work", FocusFuture, "beginner")

	require.True(t, ok)
	assert.Equal(t, VocabularyFor("work"), l.Vocabulary)
}

func TestBuildPromptMentionsFocus(t *testing.T) {
	p := BuildPrompt("food", FocusComparatives, "advanced")

	assert.Contains(t, p, "Comparatives")
	assert.Contains(t, p, "advanced")
	assert.Contains(t, p, "ONLY a valid JSON object")
}
