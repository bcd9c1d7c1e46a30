package tutor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"litcode/internal/eventbus"
	"litcode/internal/llm"
	"litcode/internal/problem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedAdapter answers every call with the same text or error.
type scriptedAdapter struct {
	backend llm.Backend
	text    string
	err     error

	mu       sync.Mutex
	requests []llm.Request
}

func (s *scriptedAdapter) Backend() llm.Backend { return s.backend }

func (s *scriptedAdapter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if req.Credentials == "" {
		return "", llm.NewError(llm.KindMissingCredentials, "", nil)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *scriptedAdapter) last(t *testing.T) llm.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatal("adapter was not called")
	}
	return s.requests[len(s.requests)-1]
}

var twoSum = problem.Snapshot{Title: "Two Sum", Code: "def twoSum(nums, target): ..."}

func TestAnalyzeComplexity_ReturnsAdapterText(t *testing.T) {
	gemini := &scriptedAdapter{backend: llm.BackendGemini, text: "**Time Complexity:** O(1)"}
	svc := NewService(llm.NewRouter(gemini), nil)

	res := svc.AnalyzeComplexity(context.Background(),
		llm.Target{Backend: llm.BackendGemini, Credentials: "key1"}, "def f(): pass")

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Text != "**Time Complexity:** O(1)" {
		t.Fatalf("expected verbatim text, got %q", res.Text)
	}
	req := gemini.last(t)
	if !strings.Contains(req.Message, "def f(): pass") {
		t.Fatalf("expected code in user message, got %q", req.Message)
	}
	if len(req.History) != 0 {
		t.Fatalf("complexity analysis carries no history, got %d turns", len(req.History))
	}
}

func TestChat_MissingCredentialsMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	router := llm.NewRouter(llm.NewOpenAIAdapter(llm.OpenAIConfig{BaseURL: srv.URL}))
	svc := NewService(router, nil)

	res := svc.Chat(context.Background(), llm.Target{Backend: llm.BackendOpenAI}, twoSum, nil, "hi")

	if res.OK() || res.Err.Kind != llm.KindMissingCredentials {
		t.Fatalf("expected missing credentials, got %+v", res)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestAllOperations_MissingCredentials(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	router := llm.NewRouter(
		llm.NewGeminiAdapter(llm.GeminiConfig{BaseURL: srv.URL}),
		llm.NewOpenAIAdapter(llm.OpenAIConfig{BaseURL: srv.URL}),
		llm.NewClaudeAdapter(llm.ClaudeConfig{BaseURL: srv.URL}),
	)
	svc := NewService(router, nil)
	ctx := context.Background()

	for _, b := range llm.Backends {
		target := llm.Target{Backend: b}
		for name, res := range map[string]llm.Result{
			"complexity": svc.AnalyzeComplexity(ctx, target, "x"),
			"followup":   svc.GetFollowUpChallenge(ctx, target, twoSum),
			"chat":       svc.Chat(ctx, target, twoSum, []llm.Turn{llm.UserTurn("a")}, "b"),
		} {
			if res.OK() || res.Err.Kind != llm.KindMissingCredentials {
				t.Fatalf("%s/%s: expected missing credentials, got %+v", b, name, res)
			}
			if res.Err.Backend != b {
				t.Fatalf("%s/%s: failure not attributed, got %q", b, name, res.Err.Backend)
			}
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}
}

func TestFollowUp_TransportFailureIsAttributed(t *testing.T) {
	claude := &scriptedAdapter{
		backend: llm.BackendClaude,
		err:     llm.NewError(llm.KindTransport, "dial tcp: connection refused", nil),
	}
	svc := NewService(llm.NewRouter(claude), nil)

	res := svc.GetFollowUpChallenge(context.Background(),
		llm.Target{Backend: llm.BackendClaude, Credentials: "key"}, twoSum)

	if res.OK() {
		t.Fatal("expected failure")
	}
	msg := res.Display()
	if !strings.Contains(msg, "(claude)") || !strings.Contains(msg, "transport failure") {
		t.Fatalf("expected backend and transport indication, got %q", msg)
	}
	if res.Err.Kind != llm.KindTransport {
		t.Fatalf("expected transport kind, got %v", res.Err.Kind)
	}

	req := claude.last(t)
	if !strings.Contains(req.Message, "Two Sum") || !strings.Contains(req.Message, twoSum.Code) {
		t.Fatalf("follow-up message should embed title and code, got %q", req.Message)
	}
}

func TestChat_PassesHistoryThrough(t *testing.T) {
	gemini := &scriptedAdapter{backend: llm.BackendGemini, text: "think about pairs"}
	svc := NewService(llm.NewRouter(gemini), nil)

	history := []llm.Turn{llm.UserTurn("a"), llm.AssistantTurn("b")}
	res := svc.Chat(context.Background(),
		llm.Target{Backend: llm.BackendGemini, Credentials: "k"}, twoSum, history, "c")
	if !res.OK() {
		t.Fatal(res.Err)
	}

	req := gemini.last(t)
	if req.Message != "c" {
		t.Fatalf("expected message verbatim, got %q", req.Message)
	}
	if len(req.History) != 2 || req.History[0] != history[0] || req.History[1] != history[1] {
		t.Fatalf("history not passed through: %+v", req.History)
	}
	if !strings.Contains(req.System, "- Problem: Two Sum") {
		t.Fatalf("chat system prompt should reference the problem, got %q", req.System)
	}
}

func TestService_PublishesEvents(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	var topics []eventbus.Topic
	record := func(e eventbus.Event) {
		mu.Lock()
		topics = append(topics, e.Topic)
		mu.Unlock()
	}
	bus.Subscribe(eventbus.TopicLLMRequest, record)
	bus.Subscribe(eventbus.TopicLLMResponse, record)
	bus.Subscribe(eventbus.TopicError, record)

	var response eventbus.Completion
	bus.Subscribe(eventbus.TopicLLMResponse, func(e eventbus.Event) {
		response = e.Payload.(eventbus.Completion)
	})

	openai := &scriptedAdapter{
		backend: llm.BackendOpenAI,
		err:     llm.NewError(llm.KindEmptyResponse, "", nil),
	}
	svc := NewService(llm.NewRouter(openai), bus)
	svc.AnalyzeComplexity(context.Background(), llm.Target{Backend: llm.BackendOpenAI, Credentials: "secret-key"}, "x")

	mu.Lock()
	defer mu.Unlock()
	want := []eventbus.Topic{eventbus.TopicLLMRequest, eventbus.TopicError, eventbus.TopicLLMResponse}
	if len(topics) != len(want) {
		t.Fatalf("expected %v, got %v", want, topics)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, topics)
		}
	}
	if response.Intent != "complexity" || response.Backend != "openai" {
		t.Fatalf("unexpected completion event %+v", response)
	}
	if response.Failure == "" {
		t.Fatal("expected the empty response to be reported")
	}
	if strings.Contains(response.Failure, "secret-key") {
		t.Fatal("credentials leaked into the event")
	}
}
