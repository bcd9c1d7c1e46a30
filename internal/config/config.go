package config

// Config is the top-level application configuration.
type Config struct {
	Backend   string          `json:"backend"`
	Providers ProvidersConfig `json:"providers"`
	Browser   BrowserConfig   `json:"browser"`
	Channels  ChannelsConfig  `json:"channels"`
	Memory    MemoryConfig    `json:"memory"`
}

// ProvidersConfig holds one section per backend.
type ProvidersConfig struct {
	Gemini      ProviderConfig `json:"gemini"`
	OpenAI      ProviderConfig `json:"openai"`
	Claude      ProviderConfig `json:"claude"`
	TimeoutSecs int            `json:"timeout_secs"`
}

type ProviderConfig struct {
	Model   string `json:"model"`
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// For returns the section of the named backend, or nil if unknown.
func (p *ProvidersConfig) For(backend string) *ProviderConfig {
	switch backend {
	case "gemini":
		return &p.Gemini
	case "openai":
		return &p.OpenAI
	case "claude":
		return &p.Claude
	default:
		return nil
	}
}

type BrowserConfig struct {
	// ControlURL attaches to a running Chrome (--remote-debugging-port).
	// When empty a browser is launched.
	ControlURL  string `json:"control_url,omitempty"`
	Headless    bool   `json:"headless"`
	TimeoutSecs int    `json:"timeout_secs"`
	PageURL     string `json:"page_url"`
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token      string  `json:"token"`
	AllowedIDs []int64 `json:"allowed_ids,omitempty"`
}

type MemoryConfig struct {
	Path         string `json:"path,omitempty"`
	HistoryLimit int    `json:"history_limit"`
}
