package llm

import (
	"fmt"
	"strings"
)

// Backend identifies one of the interchangeable LLM services.
type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
	BackendClaude Backend = "claude"
)

// Backends lists every known backend in display order.
var Backends = []Backend{BackendGemini, BackendOpenAI, BackendClaude}

// ParseBackend resolves a user supplied backend name.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google":
		return BackendGemini, nil
	case "openai", "gpt":
		return BackendOpenAI, nil
	case "claude", "anthropic":
		return BackendClaude, nil
	default:
		return "", fmt.Errorf("unknown backend: %q", s)
	}
}

// DisplayName returns the label shown to users.
func (b Backend) DisplayName() string {
	switch b {
	case BackendGemini:
		return "Gemini Flash"
	case BackendOpenAI:
		return "GPT-4o"
	case BackendClaude:
		return "Claude 3.5"
	default:
		return string(b)
	}
}

// Speaker is the author of a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// UserTurn and AssistantTurn are shorthands for building history.
func UserTurn(text string) Turn      { return Turn{Speaker: SpeakerUser, Text: text} }
func AssistantTurn(text string) Turn { return Turn{Speaker: SpeakerAssistant, Text: text} }

// Request is the backend-neutral input of a single completion.
type Request struct {
	System      string
	History     []Turn
	Message     string
	Credentials string
}

// Target selects the backend and the credentials for one call.
type Target struct {
	Backend     Backend
	Credentials string
}

// Result is the tagged outcome of a completion: Text on success, Err on failure.
type Result struct {
	Text string `json:"text,omitempty"`
	Err  *Error `json:"error,omitempty"`
}

// Success wraps generated text.
func Success(text string) Result { return Result{Text: text} }

// Failure wraps a backend error.
func Failure(err *Error) Result { return Result{Err: err} }

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Display renders the result the way the chat shows it.
func (r Result) Display() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Text
}
