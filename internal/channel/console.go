package channel

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// blockTerminator ends a multi-line /problem block typed on the console.
const blockTerminator = "/end"

// ConsoleChannel reads tutor messages from a terminal and prints replies.
// A line starting with /problem opens a block that runs until /end, so the
// problem's code can span several lines.
type ConsoleChannel struct {
	mu      sync.Mutex
	in      io.Reader
	out     io.Writer
	chatID  string
	handler func(InboundMessage)
	running bool
	done    chan struct{}
	spinner *pterm.SpinnerPrinter
}

// NewConsoleChannel creates a console channel bound to one chat session.
func NewConsoleChannel(in io.Reader, out io.Writer, chatID string) *ConsoleChannel {
	return &ConsoleChannel{
		in:     in,
		out:    out,
		chatID: chatID,
		done:   make(chan struct{}),
	}
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.running = true

	go c.readLoop(ctx)
	return nil
}

func (c *ConsoleChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSpinner()
	c.running = false
	return nil
}

// Done is closed once the input is exhausted or the context is cancelled.
func (c *ConsoleChannel) Done() <-chan struct{} {
	return c.done
}

func (c *ConsoleChannel) Pending(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSpinner()
	sp, err := pterm.DefaultSpinner.WithWriter(c.out).WithRemoveWhenDone(true).Start("Thinking...")
	if err != nil {
		return err
	}
	c.spinner = sp
	return nil
}

func (c *ConsoleChannel) Send(_ context.Context, msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSpinner()
	if msg.Failure {
		pterm.Error.WithWriter(c.out).Println(msg.Text)
	} else {
		pterm.DefaultBasicText.WithWriter(c.out).Println("\n" + msg.Text + "\n")
	}
	return nil
}

func (c *ConsoleChannel) OnMessage(handler func(InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *ConsoleChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *ConsoleChannel) stopSpinner() {
	if c.spinner != nil {
		_ = c.spinner.Stop()
		c.spinner = nil
	}
}

// readLoop delivers one message per line, or one per /problem block.
// Messages are handled sequentially, so replies keep the input order.
func (c *ConsoleChannel) readLoop(ctx context.Context) {
	defer close(c.done)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var block []string
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()

		if block != nil {
			if strings.TrimSpace(line) == blockTerminator {
				c.deliver(strings.Join(block, "\n"))
				block = nil
				continue
			}
			block = append(block, line)
			continue
		}

		text := strings.TrimSpace(line)
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "/problem"):
			block = []string{text}
		default:
			c.deliver(text)
		}
	}
	if block != nil {
		c.deliver(strings.Join(block, "\n"))
	}
}

func (c *ConsoleChannel) deliver(text string) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		return
	}
	handler(InboundMessage{
		ChannelName: "console",
		SenderName:  "User",
		ChatID:      c.chatID,
		Text:        text,
		Timestamp:   time.Now(),
	})
}
