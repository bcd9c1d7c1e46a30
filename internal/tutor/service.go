// Package tutor exposes the three tutoring operations on top of the
// backend router and serves them to chat channels through a Desk.
package tutor

import (
	"context"
	"log"
	"time"

	"litcode/internal/eventbus"
	"litcode/internal/llm"
	"litcode/internal/problem"
	"litcode/internal/prompt"
)

// Completer routes one completion to a backend. *llm.Router implements it.
type Completer interface {
	Complete(ctx context.Context, target llm.Target, req llm.Request) llm.Result
}

// Service builds the prompt for an intent and dispatches it. It keeps no
// state between calls.
type Service struct {
	router Completer
	bus    *eventbus.Bus
}

// NewService creates a Service. bus may be nil.
func NewService(router Completer, bus *eventbus.Bus) *Service {
	return &Service{router: router, bus: bus}
}

// AnalyzeComplexity asks the backend for time and space complexity of code.
func (s *Service) AnalyzeComplexity(ctx context.Context, target llm.Target, code string) llm.Result {
	return s.run(ctx, target, prompt.ComplexityAnalysis, problem.Snapshot{Code: code}, nil, "")
}

// GetFollowUpChallenge asks the backend for one follow-up question about snap.
func (s *Service) GetFollowUpChallenge(ctx context.Context, target llm.Target, snap problem.Snapshot) llm.Result {
	return s.run(ctx, target, prompt.FollowUpChallenge, snap, nil, "")
}

// Chat sends message to the Socratic tutor. history holds the earlier turns
// of the conversation, without message itself, and is not modified.
func (s *Service) Chat(ctx context.Context, target llm.Target, snap problem.Snapshot, history []llm.Turn, message string) llm.Result {
	return s.run(ctx, target, prompt.Chat, snap, history, message)
}

func (s *Service) run(ctx context.Context, target llm.Target, intent prompt.Intent, snap problem.Snapshot, history []llm.Turn, question string) llm.Result {
	p, err := prompt.Build(intent, snap, question)
	if err != nil {
		return llm.Failure(llm.NewError(llm.KindMalformedResponse, err.Error(), err)).Attribute(target.Backend)
	}

	event := eventbus.Completion{Backend: string(target.Backend), Intent: intent.String()}
	s.publish(eventbus.TopicLLMRequest, event)

	start := time.Now()
	res := s.router.Complete(ctx, target, llm.Request{
		System:  p.System,
		History: history,
		Message: p.User,
	})
	event.Duration = time.Since(start)

	if !res.OK() {
		event.Failure = res.Err.Error()
		s.publish(eventbus.TopicError, res.Err)
	}
	s.publish(eventbus.TopicLLMResponse, event)

	log.Printf("[tutor] %s via %s in %s (ok=%v)", intent, target.Backend, event.Duration.Round(time.Millisecond), res.OK())
	return res
}

func (s *Service) publish(topic eventbus.Topic, payload any) {
	if s.bus != nil {
		s.bus.Publish(topic, payload)
	}
}
