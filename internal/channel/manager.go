package channel

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Manager owns the channels a desk serves, keyed by channel name.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// Register adds ch, replacing any channel with the same name.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// OnMessage routes the messages of every registered channel to handler.
func (m *Manager) OnMessage(handler func(InboundMessage)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.channels {
		ch.OnMessage(handler)
	}
}

// StartAll starts the channels in name order. If one fails, the ones
// already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var started []Channel
	for _, name := range m.names() {
		ch := m.channels[name]
		if err := ch.Start(ctx); err != nil {
			log.Printf("[channel] failed to start %s: %v", name, err)
			for _, s := range started {
				s.Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, ch)
		log.Printf("[channel] started %s", name)
	}
	return nil
}

// StopAll stops whatever is still running.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.names() {
		ch := m.channels[name]
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			log.Printf("[channel] failed to stop %s: %v", name, err)
		}
	}
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Running returns the names of running channels, sorted.
func (m *Manager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, name := range m.names() {
		if m.channels[name].IsRunning() {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
