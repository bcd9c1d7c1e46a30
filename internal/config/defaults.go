package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Backend: "gemini",
		Providers: ProvidersConfig{
			Gemini:      ProviderConfig{Model: "gemini-2.5-flash"},
			OpenAI:      ProviderConfig{Model: "gpt-4o"},
			Claude:      ProviderConfig{Model: "claude-3-5-sonnet-latest"},
			TimeoutSecs: 60,
		},
		Browser: BrowserConfig{
			Headless:    true,
			TimeoutSecs: 30,
			PageURL:     "leetcode.com/problems/",
		},
		Channels: ChannelsConfig{},
		Memory: MemoryConfig{
			HistoryLimit: 50,
		},
	}
}
