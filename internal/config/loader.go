package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	configDir  = ".litcode"
	configFile = "config.json"
)

// Loader reads and writes config.json. Secrets in the file are normally
// "[keyring]" placeholders; resolving them is the caller's job.
type Loader struct {
	mu       sync.Mutex
	filePath string
}

// NewLoader creates a loader for ~/.litcode/config.json.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewLoaderAt(filepath.Join(home, configDir, configFile))
}

// NewLoaderAt creates a loader for an explicit config file path.
func NewLoaderAt(path string) (*Loader, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return &Loader{filePath: path}, nil
}

// Load reads the config from disk. A missing file yields the defaults, and
// fields left empty in the file keep their default values.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := Defaults()

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.filePath, err)
	}
	fillDefaults(cfg)
	return cfg, nil
}

// Save writes cfg to disk with owner-only permissions. The file is replaced
// in one rename so a crash never leaves half a config behind.
func (l *Loader) Save(cfg *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp := l.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", l.filePath, err)
	}
	return nil
}

// Dir returns the directory holding the config file. The key vault and the
// transcript database live next to it.
func (l *Loader) Dir() string {
	return filepath.Dir(l.filePath)
}

// fillDefaults repairs values a hand-edited file may have blanked out.
func fillDefaults(cfg *Config) {
	def := Defaults()

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	for _, name := range []string{"gemini", "openai", "claude"} {
		if p := cfg.Providers.For(name); p.Model == "" {
			p.Model = def.Providers.For(name).Model
		}
	}
	if cfg.Providers.TimeoutSecs <= 0 {
		cfg.Providers.TimeoutSecs = def.Providers.TimeoutSecs
	}
	if cfg.Browser.TimeoutSecs <= 0 {
		cfg.Browser.TimeoutSecs = def.Browser.TimeoutSecs
	}
	if cfg.Browser.PageURL == "" {
		cfg.Browser.PageURL = def.Browser.PageURL
	}
	if cfg.Memory.HistoryLimit < 0 {
		cfg.Memory.HistoryLimit = def.Memory.HistoryLimit
	}
}
