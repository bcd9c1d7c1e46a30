package tutor

import (
	"context"
	"strings"
	"sync"
	"testing"

	"litcode/internal/channel"
	"litcode/internal/eventbus"
	"litcode/internal/llm"
	"litcode/internal/problem"
)

// fakeMemory is an in-process memory.Memory.
type fakeMemory struct {
	mu        sync.Mutex
	turns     map[string][]llm.Turn
	snapshots map[string]problem.Snapshot
	backends  map[string]llm.Backend
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		turns:     make(map[string][]llm.Turn),
		snapshots: make(map[string]problem.Snapshot),
		backends:  make(map[string]llm.Backend),
	}
}

func (m *fakeMemory) AppendTurn(_ context.Context, chatID string, turn llm.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[chatID] = append(m.turns[chatID], turn)
	return nil
}

func (m *fakeMemory) History(_ context.Context, chatID string, limit int) ([]llm.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[chatID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]llm.Turn(nil), turns...), nil
}

func (m *fakeMemory) ClearHistory(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, chatID)
	return nil
}

func (m *fakeMemory) SaveSnapshot(_ context.Context, chatID string, snap problem.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[chatID] = snap
	return nil
}

func (m *fakeMemory) Snapshot(_ context.Context, chatID string) (problem.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[chatID]
	return s, ok, nil
}

func (m *fakeMemory) SaveBackend(_ context.Context, chatID string, b llm.Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[chatID] = b
	return nil
}

func (m *fakeMemory) Backend(_ context.Context, chatID string) (llm.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backends[chatID], nil
}

func (m *fakeMemory) Close() error { return nil }

type deskFixture struct {
	desk    *Desk
	mem     *fakeMemory
	gemini  *scriptedAdapter
	claude  *scriptedAdapter
	chanMgr *channel.Manager
}

func newDeskFixture(t *testing.T, keys map[llm.Backend]string) *deskFixture {
	t.Helper()
	f := &deskFixture{
		mem:     newFakeMemory(),
		gemini:  &scriptedAdapter{backend: llm.BackendGemini, text: "gemini reply"},
		claude:  &scriptedAdapter{backend: llm.BackendClaude, text: "claude reply"},
		chanMgr: channel.NewManager(),
	}
	svc := NewService(llm.NewRouter(f.gemini, f.claude), nil)
	f.desk = NewDesk(svc, f.mem, eventbus.New(), f.chanMgr, DeskConfig{
		DefaultBackend: llm.BackendGemini,
		HistoryLimit:   50,
		Credentials:    func(b llm.Backend) string { return keys[b] },
	})
	return f
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		kind CommandKind
		arg  string
		body string
	}{
		{"how do I start?", CmdChat, "how do I start?", ""},
		{"  /complexity ", CmdComplexity, "", ""},
		{"/followup", CmdFollowUp, "", ""},
		{"/Reset@litcode_bot", CmdReset, "", ""},
		{"/backend claude", CmdBackend, "claude", ""},
		{"/problem Two Sum\ndef f():\n    pass", CmdProblem, "Two Sum", "def f():\n    pass"},
		{"/start", CmdHelp, "", ""},
		{"/nope", CmdUnknown, "", ""},
	}
	for _, tt := range tests {
		cmd := ParseCommand(tt.in)
		if cmd.Kind != tt.kind || cmd.Arg != tt.arg || cmd.Body != tt.body {
			t.Errorf("ParseCommand(%q) = %+v, want kind=%v arg=%q body=%q", tt.in, cmd, tt.kind, tt.arg, tt.body)
		}
	}
}

func TestDesk_ChatRecordsTranscript(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendGemini: "g-key"})
	ctx := context.Background()

	f.desk.Handle(ctx, "c1", "/problem Two Sum\nreturn []")
	out := f.desk.Handle(ctx, "c1", "where do I start?")
	if out.Failure || out.Text != "gemini reply" {
		t.Fatalf("unexpected reply %+v", out)
	}

	out = f.desk.Handle(ctx, "c1", "explain")
	if out.Failure {
		t.Fatalf("unexpected failure %+v", out)
	}

	// The second call sees the first exchange, not the current message.
	req := f.gemini.last(t)
	if req.Message != "explain" {
		t.Fatalf("expected current message, got %q", req.Message)
	}
	if len(req.History) != 2 || req.History[0].Text != "where do I start?" || req.History[1].Text != "gemini reply" {
		t.Fatalf("unexpected history %+v", req.History)
	}
	if req.Credentials != "g-key" {
		t.Fatal("expected the gemini key")
	}
	if !strings.Contains(req.System, "Two Sum") || !strings.Contains(req.System, "return []") {
		t.Fatalf("system prompt should carry the problem, got %q", req.System)
	}

	history, _ := f.mem.History(ctx, "c1", 0)
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}
}

func TestDesk_ActionsUseLabels(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendGemini: "k"})
	ctx := context.Background()

	f.desk.Handle(ctx, "c1", "/complexity")
	f.desk.Handle(ctx, "c1", "/followup")

	history, _ := f.mem.History(ctx, "c1", 0)
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}
	if history[0] != llm.UserTurn(ComplexityLabel) || history[2] != llm.UserTurn(FollowUpLabel) {
		t.Fatalf("unexpected transcript %+v", history)
	}
	// No /problem was sent, so placeholders are used.
	if !strings.Contains(f.gemini.last(t).Message, problem.DefaultTitle) {
		t.Fatalf("expected title placeholder, got %q", f.gemini.last(t).Message)
	}
}

func TestDesk_FailureIsShownButNotRecorded(t *testing.T) {
	f := newDeskFixture(t, nil)
	ctx := context.Background()

	out := f.desk.Handle(ctx, "c1", "hi")
	if !out.Failure {
		t.Fatalf("expected failure, got %+v", out)
	}
	if !strings.HasPrefix(out.Text, "Error: (gemini) missing credentials") {
		t.Fatalf("unexpected failure text %q", out.Text)
	}
	if !strings.Contains(out.Text, "litcode keys set gemini") {
		t.Fatalf("expected a hint, got %q", out.Text)
	}

	history, _ := f.mem.History(ctx, "c1", 0)
	if len(history) != 0 {
		t.Fatalf("failed turns must not be recorded, got %+v", history)
	}
}

func TestDesk_SwitchBackend(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendClaude: "c-key"})
	ctx := context.Background()

	out := f.desk.Handle(ctx, "c1", "/backend anthropic")
	if out.Failure || !strings.Contains(out.Text, "Claude 3.5") {
		t.Fatalf("unexpected reply %+v", out)
	}

	out = f.desk.Handle(ctx, "c1", "hi")
	if out.Text != "claude reply" {
		t.Fatalf("expected claude to answer, got %+v", out)
	}
	if f.claude.last(t).Credentials != "c-key" {
		t.Fatal("expected the claude key")
	}

	// Other chats keep the default backend.
	if out := f.desk.Handle(ctx, "c2", "hi"); !out.Failure {
		t.Fatalf("c2 should still use gemini without a key, got %+v", out)
	}

	if out := f.desk.Handle(ctx, "c1", "/backend llama"); !out.Failure {
		t.Fatalf("expected an error for an unknown backend, got %+v", out)
	}
}

func TestDesk_UnregisteredBackendIsInvalidProvider(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendOpenAI: "o-key"})
	ctx := context.Background()

	f.desk.Handle(ctx, "c1", "/backend openai")
	out := f.desk.Handle(ctx, "c1", "hi")
	if !out.Failure || !strings.Contains(out.Text, "invalid provider") {
		t.Fatalf("expected invalid provider, got %+v", out)
	}
}

func TestDesk_ResetAndNewProblemClearHistory(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendGemini: "k"})
	ctx := context.Background()

	f.desk.Handle(ctx, "c1", "hi")
	f.desk.Handle(ctx, "c1", "/reset")
	if h, _ := f.mem.History(ctx, "c1", 0); len(h) != 0 {
		t.Fatalf("expected empty history after /reset, got %d", len(h))
	}

	f.desk.Handle(ctx, "c1", "hi")
	out := f.desk.Handle(ctx, "c1", "/problem 3Sum\nreturn []")
	if !strings.Contains(out.Text, "3Sum") {
		t.Fatalf("unexpected reply %q", out.Text)
	}
	if h, _ := f.mem.History(ctx, "c1", 0); len(h) != 0 {
		t.Fatalf("expected empty history after /problem, got %d", len(h))
	}
	snap, ok, _ := f.mem.Snapshot(ctx, "c1")
	if !ok || snap.Title != "3Sum" || snap.Code != "return []" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

type staticFailing struct{}

func (staticFailing) Snapshot(context.Context) (problem.Snapshot, error) {
	return problem.Snapshot{}, context.DeadlineExceeded
}

func TestDesk_SupplierFallback(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendGemini: "k"})
	ctx := context.Background()

	f.desk.cfg.Supplier = problem.Static{Title: "Valid Parentheses", Code: "stack = []"}
	f.desk.Handle(ctx, "c1", "/followup")
	if !strings.Contains(f.gemini.last(t).Message, "Valid Parentheses") {
		t.Fatalf("expected supplier snapshot, got %q", f.gemini.last(t).Message)
	}

	f.desk.cfg.Supplier = staticFailing{}
	f.desk.Handle(ctx, "c2", "/followup")
	if !strings.Contains(f.gemini.last(t).Message, problem.DefaultTitle) {
		t.Fatalf("expected placeholders when the supplier fails, got %q", f.gemini.last(t).Message)
	}
}

// recordingChannel is a channel.Channel that keeps what was sent.
type recordingChannel struct {
	mu      sync.Mutex
	handler func(channel.InboundMessage)
	sent    []channel.OutboundMessage
	pending int
}

func (r *recordingChannel) Name() string                { return "test" }
func (r *recordingChannel) Start(context.Context) error { return nil }
func (r *recordingChannel) Stop(context.Context) error  { return nil }
func (r *recordingChannel) IsRunning() bool             { return true }

func (r *recordingChannel) OnMessage(h func(channel.InboundMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *recordingChannel) Send(_ context.Context, msg channel.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingChannel) Pending(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending++
	return nil
}

func TestDesk_StartRoutesChannelMessages(t *testing.T) {
	f := newDeskFixture(t, map[llm.Backend]string{llm.BackendGemini: "k"})
	ch := &recordingChannel{}
	f.chanMgr.Register(ch)
	f.desk.Start(context.Background())

	ch.handler(channel.InboundMessage{ChannelName: "test", ChatID: "42", Text: "/help"})
	ch.handler(channel.InboundMessage{ChannelName: "test", ChatID: "42", Text: "hint?"})

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(ch.sent))
	}
	if !strings.Contains(ch.sent[0].Text, "/complexity") {
		t.Fatalf("expected help text, got %q", ch.sent[0].Text)
	}
	if ch.sent[1].ChatID != "42" || ch.sent[1].Text != "gemini reply" {
		t.Fatalf("unexpected reply %+v", ch.sent[1])
	}
	if ch.pending != 1 {
		t.Fatalf("expected one pending indicator, got %d", ch.pending)
	}
}
