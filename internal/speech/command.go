// Package speech drives the browser's speech recognizer and synthesizer for
// the AI tutor. The server owns the state machine; the browser only executes
// commands and reports events back.
package speech

import "strings"

type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Commands sent to the browser.
const (
	CmdState           = "state"
	CmdRecognizerStart = "recognizer_start"
	CmdRecognizerStop  = "recognizer_stop"
	CmdRecognizerAbort = "recognizer_abort"
	CmdSpeak           = "speak"
	CmdSpeechCancel    = "speech_cancel"
	CmdTranscript      = "transcript"
)

const Lang = "en-US"

// Command is one instruction for the browser side. Unused fields are omitted.
type Command struct {
	Type           string  `json:"type"`
	State          State   `json:"state,omitempty"`
	Text           string  `json:"text,omitempty"`
	Role           string  `json:"role,omitempty"`
	Lang           string  `json:"lang,omitempty"`
	Rate           float64 `json:"rate,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	Continuous     bool    `json:"continuous,omitempty"`
	InterimResults bool    `json:"interim_results,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Recognizer error codes reported by the browser.
const (
	ErrCodeNoSpeech     = "no-speech"
	ErrCodeAudioCapture = "audio-capture"
	ErrCodeNotAllowed   = "not-allowed"
	ErrCodeAborted      = "aborted"
)

// RecognitionErrorMessage maps a recognizer error code to user-facing text.
func RecognitionErrorMessage(code string) string {
	switch code {
	case ErrCodeNoSpeech:
		return "No speech was detected. Please try again."
	case ErrCodeAudioCapture:
		return "No microphone was found. Check your audio settings."
	case ErrCodeNotAllowed:
		return "Microphone access was denied. Allow it in your browser settings."
	default:
		return "Speech recognition failed. Please try again."
	}
}

// Voice is a synthesis voice as reported by the browser.
type Voice struct {
	Name         string `json:"name"`
	Lang         string `json:"lang"`
	LocalService bool   `json:"local_service"`
}

// PickVoice prefers English voices from Google, then Microsoft, then any
// local English voice, then the first English voice. Nil means let the
// browser choose.
func PickVoice(voices []Voice) *Voice {
	var english []Voice
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			english = append(english, v)
		}
	}
	if len(english) == 0 {
		return nil
	}

	for _, vendor := range []string{"Google", "Microsoft"} {
		for i := range english {
			if strings.Contains(english[i].Name, vendor) {
				return &english[i]
			}
		}
	}
	for i := range english {
		if english[i].LocalService {
			return &english[i]
		}
	}
	return &english[0]
}
