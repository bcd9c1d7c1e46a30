package tutor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"litcode/internal/channel"
	"litcode/internal/eventbus"
	"litcode/internal/llm"
	"litcode/internal/memory"
	"litcode/internal/problem"
)

// CredentialFunc returns the API key for a backend, or "" when none is set.
type CredentialFunc func(llm.Backend) string

// DeskConfig configures a Desk.
type DeskConfig struct {
	DefaultBackend llm.Backend
	HistoryLimit   int
	Credentials    CredentialFunc
	// Supplier provides the snapshot for chats that never sent /problem.
	Supplier problem.Supplier
}

// Desk serves tutor conversations over message channels. Each chat owns
// its transcript, problem snapshot and backend choice in memory.Memory.
// Messages of one chat are handled one at a time.
type Desk struct {
	svc     *Service
	mem     memory.Memory
	bus     *eventbus.Bus
	chanMgr *channel.Manager
	cfg     DeskConfig

	mu    sync.Mutex
	chats map[string]*sync.Mutex
}

// NewDesk creates a Desk. bus may be nil.
func NewDesk(svc *Service, mem memory.Memory, bus *eventbus.Bus, chanMgr *channel.Manager, cfg DeskConfig) *Desk {
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = llm.BackendGemini
	}
	if cfg.Credentials == nil {
		cfg.Credentials = func(llm.Backend) string { return "" }
	}
	return &Desk{
		svc:     svc,
		mem:     mem,
		bus:     bus,
		chanMgr: chanMgr,
		cfg:     cfg,
		chats:   make(map[string]*sync.Mutex),
	}
}

// Start routes inbound messages from all registered channels to the desk.
func (d *Desk) Start(ctx context.Context) {
	d.chanMgr.OnMessage(func(msg channel.InboundMessage) {
		d.publish(eventbus.TopicInboundMessage, msg)
		d.handleMessage(ctx, msg)
	})
	log.Println("[desk] started and listening for messages")
}

func (d *Desk) handleMessage(ctx context.Context, msg channel.InboundMessage) {
	log.Printf("[desk] message from %s (%s): %s", msg.SenderName, msg.ChannelName, truncate(msg.Text, 100))

	ch, ok := d.chanMgr.Get(msg.ChannelName)
	if !ok {
		log.Printf("[desk] channel %s not found", msg.ChannelName)
		return
	}

	if ind, ok := ch.(channel.Indicator); ok && ParseCommand(msg.Text).callsBackend() {
		if err := ind.Pending(ctx, msg.ChatID); err != nil {
			log.Printf("[desk] pending indicator: %v", err)
		}
	}

	out := d.Handle(ctx, msg.ChatID, msg.Text)
	d.publish(eventbus.TopicOutboundMessage, out)

	if err := ch.Send(ctx, out); err != nil {
		log.Printf("[desk] error sending response: %v", err)
	}
}

// Handle processes one chat message and returns the reply.
func (d *Desk) Handle(ctx context.Context, chatID, text string) channel.OutboundMessage {
	lock := d.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	reply, failed := d.dispatch(ctx, chatID, ParseCommand(text))
	return channel.OutboundMessage{ChatID: chatID, Text: reply, Failure: failed}
}

func (d *Desk) dispatch(ctx context.Context, chatID string, cmd Command) (string, bool) {
	switch cmd.Kind {
	case CmdHelp:
		return helpText, false
	case CmdProblem:
		return d.setProblem(ctx, chatID, cmd)
	case CmdReset:
		if err := d.mem.ClearHistory(ctx, chatID); err != nil {
			return "Could not clear the conversation: " + err.Error(), true
		}
		d.publish(eventbus.TopicHistoryReset, chatID)
		return "Conversation cleared.", false
	case CmdBackend:
		return d.switchBackend(ctx, chatID, cmd.Arg)
	case CmdComplexity:
		snap := d.snapshot(ctx, chatID)
		target := d.target(ctx, chatID)
		return d.record(ctx, chatID, ComplexityLabel, d.svc.AnalyzeComplexity(ctx, target, snap.Code))
	case CmdFollowUp:
		snap := d.snapshot(ctx, chatID)
		target := d.target(ctx, chatID)
		return d.record(ctx, chatID, FollowUpLabel, d.svc.GetFollowUpChallenge(ctx, target, snap))
	case CmdChat:
		if cmd.Arg == "" {
			return helpText, false
		}
		history, err := d.mem.History(ctx, chatID, d.cfg.HistoryLimit)
		if err != nil {
			log.Printf("[desk] failed to load history: %v", err)
			history = nil
		}
		snap := d.snapshot(ctx, chatID)
		target := d.target(ctx, chatID)
		return d.record(ctx, chatID, cmd.Arg, d.svc.Chat(ctx, target, snap, history, cmd.Arg))
	default:
		return fmt.Sprintf("Unknown command /%s. Send /help for the list.", cmd.Name), true
	}
}

// record appends the user entry and the reply to the transcript. Failed
// calls are reported but leave the transcript untouched.
func (d *Desk) record(ctx context.Context, chatID, userText string, res llm.Result) (string, bool) {
	if !res.OK() {
		reply := res.Display()
		if res.Err.Kind == llm.KindMissingCredentials {
			reply += fmt.Sprintf("\nAdd one with: litcode keys set %s", res.Err.Backend)
		}
		return reply, true
	}

	for _, turn := range []llm.Turn{llm.UserTurn(userText), llm.AssistantTurn(res.Text)} {
		if err := d.mem.AppendTurn(ctx, chatID, turn); err != nil {
			log.Printf("[desk] failed to save turn: %v", err)
		}
	}
	return res.Text, false
}

func (d *Desk) setProblem(ctx context.Context, chatID string, cmd Command) (string, bool) {
	snap := problem.Normalize(problem.Snapshot{Title: cmd.Arg, Code: cmd.Body})
	if err := d.mem.SaveSnapshot(ctx, chatID, snap); err != nil {
		return "Could not save the problem: " + err.Error(), true
	}
	// A new problem starts a new conversation.
	if err := d.mem.ClearHistory(ctx, chatID); err != nil {
		log.Printf("[desk] failed to clear history: %v", err)
	}
	d.publish(eventbus.TopicSnapshot, snap)
	return fmt.Sprintf("Problem set: %s. Ask me anything, or try /complexity and /followup.", snap.Title), false
}

func (d *Desk) switchBackend(ctx context.Context, chatID, name string) (string, bool) {
	b, err := llm.ParseBackend(name)
	if err != nil {
		return fmt.Sprintf("%v. Choose one of gemini, openai, claude.", err), true
	}
	if err := d.mem.SaveBackend(ctx, chatID, b); err != nil {
		return "Could not switch backend: " + err.Error(), true
	}
	d.publish(eventbus.TopicBackendChanged, string(b))
	return "Switched to " + b.DisplayName() + ".", false
}

// snapshot returns the chat's problem, falling back to the supplier and
// finally to placeholder text.
func (d *Desk) snapshot(ctx context.Context, chatID string) problem.Snapshot {
	snap, ok, err := d.mem.Snapshot(ctx, chatID)
	if err != nil {
		log.Printf("[desk] failed to load snapshot: %v", err)
	}
	if ok {
		return snap
	}
	if d.cfg.Supplier != nil {
		snap, err := d.cfg.Supplier.Snapshot(ctx)
		if err == nil {
			return snap
		}
		log.Printf("[desk] snapshot supplier: %v", err)
	}
	return problem.Normalize(problem.Snapshot{})
}

func (d *Desk) target(ctx context.Context, chatID string) llm.Target {
	b, err := d.mem.Backend(ctx, chatID)
	if err != nil {
		log.Printf("[desk] failed to load backend: %v", err)
	}
	if b == "" {
		b = d.cfg.DefaultBackend
	}
	return llm.Target{Backend: b, Credentials: d.cfg.Credentials(b)}
}

func (d *Desk) chatLock(chatID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.chats[chatID]
	if !ok {
		l = &sync.Mutex{}
		d.chats[chatID] = l
	}
	return l
}

func (d *Desk) publish(topic eventbus.Topic, payload any) {
	if d.bus != nil {
		d.bus.Publish(topic, payload)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
