package channel

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"

	"litcode/internal/config"
)

// telegramLimit stays under the 4096 character cap of the Bot API.
const telegramLimit = 4000

// TelegramChannel integrates with the Telegram Bot API.
type TelegramChannel struct {
	mu         sync.Mutex
	token      string
	allowedIDs map[int64]bool
	bot        *tele.Bot
	handler    func(InboundMessage)
	running    bool
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	allowed := make(map[int64]bool, len(cfg.AllowedIDs))
	for _, id := range cfg.AllowedIDs {
		allowed[id] = true
	}
	return &TelegramChannel{
		token:      cfg.Token,
		allowedIDs: allowed,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle(tele.OnText, t.onText)

	t.bot = bot
	t.running = true

	go bot.Start()

	go func() {
		<-ctx.Done()
		t.Stop(context.Background())
	}()

	return nil
}

func (t *TelegramChannel) onText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}

	if !t.allowed(sender.ID) {
		log.Printf("[telegram] unauthorized user: %d (%s)", sender.ID, sender.Username)
		return nil
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		handler(InboundMessage{
			ChannelName: "telegram",
			SenderName:  strings.TrimSpace(sender.FirstName + " " + sender.LastName),
			ChatID:      strconv.FormatInt(c.Chat().ID, 10),
			Text:        c.Text(),
			Timestamp:   time.Now(),
		})
	}
	return nil
}

func (t *TelegramChannel) allowed(id int64) bool {
	return len(t.allowedIDs) == 0 || t.allowedIDs[id]
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil && t.running {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

func (t *TelegramChannel) recipient(chatID string) (*tele.Bot, *tele.Chat, error) {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()

	if bot == nil {
		return nil, nil, fmt.Errorf("telegram bot not started")
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	return bot, &tele.Chat{ID: id}, nil
}

func (t *TelegramChannel) Pending(_ context.Context, chatID string) error {
	bot, chat, err := t.recipient(chatID)
	if err != nil {
		return err
	}
	return bot.Notify(chat, tele.Typing)
}

func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	bot, chat, err := t.recipient(msg.ChatID)
	if err != nil {
		return err
	}

	text := msg.Text
	if msg.Failure {
		text = "⚠️ " + text
	}
	for _, chunk := range splitMessage(text, telegramLimit) {
		if _, err := bot.Send(chat, chunk); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (t *TelegramChannel) OnMessage(handler func(InboundMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line breaks and never splitting a rune.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
