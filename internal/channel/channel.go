package channel

import (
	"context"
	"time"
)

// InboundMessage is one line a user sent to the mentor. ChatID keys the
// transcript; a chat is a Telegram conversation or a console session.
type InboundMessage struct {
	ChannelName string
	ChatID      string
	SenderName  string
	Text        string
	Timestamp   time.Time
}

// OutboundMessage is the mentor's reply to a chat.
type OutboundMessage struct {
	ChatID  string
	Text    string
	Failure bool // Text is an attributed backend error
}

// Channel carries chat messages between users and the desk.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	OnMessage(handler func(InboundMessage))
	IsRunning() bool
}

// Indicator is implemented by channels that can show a reply is on its way,
// such as a typing action or a spinner. It lasts until the next Send.
type Indicator interface {
	Pending(ctx context.Context, chatID string) error
}
