package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"litcode/internal/channel"
	"litcode/internal/config"
	"litcode/internal/eventbus"
	"litcode/internal/llm"
	"litcode/internal/memory"
	"litcode/internal/problem"
	"litcode/internal/security"
	"litcode/internal/tutor"
)

// App holds the caller-side state around the tutor: preferences,
// credentials, transcripts and the event bus.
type App struct {
	mu        sync.RWMutex // protects cfg
	cfg       *config.Config
	cfgLoader *config.Loader
	keyStore  *security.KeyStore
	bus       *eventbus.Bus
	router    *llm.Router
	tutor     *tutor.Service

	lazyMu  sync.Mutex // protects mem and scraper
	mem     memory.Memory
	scraper *problem.PageScraper
}

// NewApp loads the config at configPath (the default location when empty)
// and resolves stored secrets.
func NewApp(configPath string) (*App, error) {
	var loader *config.Loader
	var err error
	if configPath != "" {
		loader, err = config.NewLoaderAt(configPath)
	} else {
		loader, err = config.NewLoader()
	}
	if err != nil {
		return nil, fmt.Errorf("config loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	ks, err := security.OpenKeyStore(loader.Dir())
	if err != nil {
		log.Printf("warning: failed to create key store: %v (secrets will stay in config file)", err)
	}

	a := &App{
		cfg:       cfg,
		cfgLoader: loader,
		keyStore:  ks,
		bus:       eventbus.New(),
	}
	a.resolveSecrets()

	a.router = llm.NewRouterFromConfig(cfg.Providers, nil)
	a.tutor = tutor.NewService(a.router, a.bus)

	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		log.Printf("[app] %v", e.Payload)
	})
	a.bus.Subscribe(eventbus.TopicLLMResponse, func(e eventbus.Event) {
		if c, ok := e.Payload.(eventbus.Completion); ok {
			log.Printf("[app] %s on %s took %s", c.Intent, c.Backend, c.Duration.Round(time.Millisecond))
		}
	})
	return a, nil
}

// Close releases the transcript store and the browser.
func (a *App) Close() {
	a.lazyMu.Lock()
	defer a.lazyMu.Unlock()
	if a.scraper != nil {
		a.scraper.Close()
	}
	if a.mem != nil {
		a.mem.Close()
	}
}

// Backend resolves the backend to use: an explicit choice wins over the
// persisted selection.
func (a *App) Backend(override string) (llm.Backend, error) {
	if override != "" {
		return llm.ParseBackend(override)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return llm.ParseBackend(a.cfg.Backend)
}

// Credentials returns the API key for b, or "" when none is configured.
// LITCODE_<BACKEND>_API_KEY overrides the stored key.
func (a *App) Credentials(b llm.Backend) string {
	if v := os.Getenv(credentialEnv(b)); v != "" {
		return v
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	p := a.cfg.Providers.For(string(b))
	if p == nil || p.APIKey == security.Placeholder {
		return ""
	}
	return p.APIKey
}

func credentialEnv(b llm.Backend) string {
	return "LITCODE_" + strings.ToUpper(string(b)) + "_API_KEY"
}

// Target pairs b with its credentials.
func (a *App) Target(b llm.Backend) llm.Target {
	return llm.Target{Backend: b, Credentials: a.Credentials(b)}
}

// Model returns the configured model name for b.
func (a *App) Model(b llm.Backend) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if p := a.cfg.Providers.For(string(b)); p != nil {
		return p.Model
	}
	return ""
}

// SetKey stores the API key for b.
func (a *App) SetKey(b llm.Backend, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.cfg.Providers.For(string(b))
	if p == nil {
		return fmt.Errorf("unknown backend: %s", b)
	}
	p.APIKey = key
	return a.saveConfig()
}

// DeleteKey forgets the API key for b.
func (a *App) DeleteKey(b llm.Backend) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.cfg.Providers.For(string(b))
	if p == nil {
		return fmt.Errorf("unknown backend: %s", b)
	}
	if a.keyStore != nil {
		if err := a.keyStore.Delete(security.SecretName(string(b))); err != nil {
			return err
		}
	}
	p.APIKey = ""
	return a.saveConfig()
}

// SetTelegramToken stores the bot token used by serve.
func (a *App) SetTelegramToken(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.Channels.Telegram == nil {
		a.cfg.Channels.Telegram = &config.TelegramConfig{}
	}
	a.cfg.Channels.Telegram.Token = token
	return a.saveConfig()
}

// UseBackend persists b as the selected backend.
func (a *App) UseBackend(b llm.Backend) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Backend = string(b)
	return a.saveConfig()
}

// Config returns a copy of the loaded config. Secrets are included.
func (a *App) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.cfg
}

// Memory opens the transcript store on first use.
func (a *App) Memory() (memory.Memory, error) {
	a.lazyMu.Lock()
	defer a.lazyMu.Unlock()
	if a.mem != nil {
		return a.mem, nil
	}
	a.mu.RLock()
	path := a.cfg.Memory.Path
	a.mu.RUnlock()
	if path == "" {
		path = filepath.Join(a.cfgLoader.Dir(), "memory.db")
	}

	mem, err := memory.NewSQLiteMemory(path)
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}
	a.mem = mem
	return mem, nil
}

// Scraper returns the shared page scraper.
func (a *App) Scraper() *problem.PageScraper {
	a.lazyMu.Lock()
	defer a.lazyMu.Unlock()
	if a.scraper == nil {
		a.mu.RLock()
		browser := a.cfg.Browser
		a.mu.RUnlock()
		a.scraper = problem.NewPageScraper(browser)
	}
	return a.scraper
}

// NewDesk builds a tutor desk over chanMgr. supplier may be nil.
func (a *App) NewDesk(chanMgr *channel.Manager, backend llm.Backend, supplier problem.Supplier) (*tutor.Desk, error) {
	mem, err := a.Memory()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	limit := a.cfg.Memory.HistoryLimit
	a.mu.RUnlock()

	return tutor.NewDesk(a.tutor, mem, a.bus, chanMgr, tutor.DeskConfig{
		DefaultBackend: backend,
		HistoryLimit:   limit,
		Credentials:    a.Credentials,
		Supplier:       supplier,
	}), nil
}

// resolveSecrets loads secrets from the key store into the in-memory config.
// Plaintext secrets found in config.json are moved into the key store.
func (a *App) resolveSecrets() {
	if a.keyStore == nil {
		return
	}

	migrated := false
	resolve := func(value *string, name, label string) {
		switch {
		case *value == security.Placeholder:
			val, err := a.keyStore.Resolve(*value, name)
			if err != nil {
				if !errors.Is(err, security.ErrNotFound) {
					log.Printf("warning: failed to read %s from keyring: %v", label, err)
				}
				*value = ""
				return
			}
			*value = val
		case *value != "":
			if err := a.keyStore.Set(name, *value); err == nil {
				migrated = true
				log.Printf("Migrated %s to secure storage", label)
			}
		}
	}

	for _, b := range llm.Backends {
		if p := a.cfg.Providers.For(string(b)); p != nil {
			resolve(&p.APIKey, security.SecretName(string(b)), b.DisplayName()+" API key")
		}
	}
	if tg := a.cfg.Channels.Telegram; tg != nil {
		resolve(&tg.Token, security.SecretTelegramToken, "Telegram token")
	}

	if migrated {
		if err := a.saveConfig(); err != nil {
			log.Printf("warning: failed to save config after secret migration: %v", err)
		}
	}
}

// saveConfig writes config to disk with secrets replaced by [keyring]
// placeholders. The in-memory config keeps the real values. Callers hold a.mu.
func (a *App) saveConfig() error {
	if a.keyStore == nil {
		return a.cfgLoader.Save(a.cfg)
	}

	disk := *a.cfg
	stash := func(value *string, name, label string) error {
		if *value == "" || *value == security.Placeholder {
			return nil
		}
		if err := a.keyStore.Set(name, *value); err != nil {
			return fmt.Errorf("store %s: %w", label, err)
		}
		*value = security.Placeholder
		return nil
	}

	for _, b := range llm.Backends {
		p := disk.Providers.For(string(b))
		if err := stash(&p.APIKey, security.SecretName(string(b)), b.DisplayName()+" API key"); err != nil {
			return err
		}
	}
	if disk.Channels.Telegram != nil {
		tg := *disk.Channels.Telegram
		if err := stash(&tg.Token, security.SecretTelegramToken, "Telegram token"); err != nil {
			return err
		}
		disk.Channels.Telegram = &tg
	}

	return a.cfgLoader.Save(&disk)
}
