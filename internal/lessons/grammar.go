// Package lessons holds the deterministic lesson templates used when the AI
// output cannot be used, plus parsing of AI-generated lessons.
package lessons

import "strings"

// GrammarFocus identifies the grammar point a lesson drills.
type GrammarFocus string

const (
	FocusPresentSimple     GrammarFocus = "present_simple"
	FocusPresentContinuous GrammarFocus = "present_continuous"
	FocusPastSimple        GrammarFocus = "past_simple"
	FocusPresentPerfect    GrammarFocus = "present_perfect"
	FocusFuture            GrammarFocus = "future"
	FocusArticles          GrammarFocus = "articles"
	FocusPrepositions      GrammarFocus = "prepositions"
	FocusModalVerbs        GrammarFocus = "modal_verbs"
	FocusConditionals      GrammarFocus = "conditionals"
	FocusComparatives      GrammarFocus = "comparatives"
	FocusGeneral           GrammarFocus = "general"
)

var knownFocuses = []GrammarFocus{
	FocusPresentSimple,
	FocusPresentContinuous,
	FocusPastSimple,
	FocusPresentPerfect,
	FocusFuture,
	FocusArticles,
	FocusPrepositions,
	FocusModalVerbs,
	FocusConditionals,
	FocusComparatives,
}

// ParseGrammarFocus normalizes free text ("Past Simple", "past-simple") to a
// GrammarFocus. Anything unrecognized becomes FocusGeneral.
func ParseGrammarFocus(s string) GrammarFocus {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, f := range knownFocuses {
		if string(f) == norm {
			return f
		}
	}
	return FocusGeneral
}

// Known reports whether f has its own rule and question templates.
func (f GrammarFocus) Known() bool {
	for _, k := range knownFocuses {
		if k == f {
			return true
		}
	}
	return false
}

// GrammarRule explains the grammar point in one or two sentences.
func GrammarRule(f GrammarFocus) string {
	switch f {
	case FocusPresentSimple:
		return "Use the present simple for habits, routines and facts. Add -s or -es to the verb with he, she and it."
	case FocusPresentContinuous:
		return "Use am, is or are with a verb ending in -ing for actions happening now or around now."
	case FocusPastSimple:
		return "Use the past simple for finished actions at a specific time in the past. Regular verbs end in -ed."
	case FocusPresentPerfect:
		return "Use have or has with the past participle for experiences and for past actions connected to now."
	case FocusFuture:
		return "Use will for decisions and predictions, and be going to for plans you have already made."
	case FocusArticles:
		return "Use a or an the first time you mention a singular countable noun, and the when the listener knows which one you mean."
	case FocusPrepositions:
		return "Use in for months and years, on for days and dates, and at for exact times."
	case FocusModalVerbs:
		return "Modal verbs like can, must and should are followed by the base form of the verb without to."
	case FocusConditionals:
		return "Use if with the present simple and will in the result clause for real future possibilities."
	case FocusComparatives:
		return "Add -er to short adjectives and use more before long adjectives, followed by than."
	default:
		return "Every English sentence needs a subject and a verb. Keep the word order subject, verb, object."
	}
}

// QuestionForGrammar returns a practice question for the grammar point.
func QuestionForGrammar(f GrammarFocus) string {
	switch f {
	case FocusPresentSimple:
		return "Complete the sentence: She ___ (work) in a hospital."
	case FocusPresentContinuous:
		return "Complete the sentence: Look! The children ___ (play) in the garden."
	case FocusPastSimple:
		return "Complete the sentence: Yesterday we ___ (visit) our grandparents."
	case FocusPresentPerfect:
		return "Complete the sentence: I ___ (never / see) the ocean."
	case FocusFuture:
		return "Complete the sentence: Tomorrow it ___ (rain), so take an umbrella."
	case FocusArticles:
		return "Choose a, an or the: I saw ___ elephant at the zoo."
	case FocusPrepositions:
		return "Choose in, on or at: The meeting starts ___ nine o'clock."
	case FocusModalVerbs:
		return "Complete the sentence: You ___ wear a seatbelt in the car. (must / can)"
	case FocusConditionals:
		return "Complete the sentence: If it is sunny tomorrow, we ___ (go) to the beach."
	case FocusComparatives:
		return "Complete the sentence: My brother is ___ (tall) than me."
	default:
		return "Write one sentence about your day using a subject, a verb and an object."
	}
}

// answerForGrammar is the expected answer to QuestionForGrammar(f).
func answerForGrammar(f GrammarFocus) string {
	switch f {
	case FocusPresentSimple:
		return "works"
	case FocusPresentContinuous:
		return "are playing"
	case FocusPastSimple:
		return "visited"
	case FocusPresentPerfect:
		return "have never seen"
	case FocusFuture:
		return "will rain"
	case FocusArticles:
		return "an"
	case FocusPrepositions:
		return "at"
	case FocusModalVerbs:
		return "must"
	case FocusConditionals:
		return "will go"
	case FocusComparatives:
		return "taller"
	default:
		return ""
	}
}

// Title returns a human readable name, e.g. "Past Simple".
func (f GrammarFocus) Title() string {
	if !f.Known() {
		return "English Basics"
	}
	words := strings.Split(string(f), "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
