package eventbus

import "time"

// Topic names a kind of event. The comment on each topic gives its payload.
type Topic string

const (
	TopicInboundMessage  Topic = "inbound_message"  // channel.InboundMessage
	TopicOutboundMessage Topic = "outbound_message" // channel.OutboundMessage
	TopicLLMRequest      Topic = "llm_request"      // Completion, before the call
	TopicLLMResponse     Topic = "llm_response"     // Completion, after the call
	TopicError           Topic = "error"            // *llm.Error, already attributed
	TopicSnapshot        Topic = "snapshot"         // problem.Snapshot bound to a chat
	TopicBackendChanged  Topic = "backend_changed"  // backend name
	TopicHistoryReset    Topic = "history_reset"    // chat ID
)

type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

type Handler func(Event)

// Completion describes one routed LLM call. It never carries credentials
// or message text.
type Completion struct {
	Backend  string
	Intent   string
	Duration time.Duration
	Failure  string // empty on success
}
