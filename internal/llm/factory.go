package llm

import (
	"net/http"
	"time"

	"litcode/internal/config"
)

// NewRouterFromConfig builds a Router with the three SDK adapters.
// httpClient may be nil.
func NewRouterFromConfig(cfg config.ProvidersConfig, httpClient *http.Client) *Router {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return NewRouter(
		NewGeminiAdapter(GeminiConfig{
			Model:      cfg.Gemini.Model,
			BaseURL:    cfg.Gemini.BaseURL,
			Timeout:    timeout,
			HTTPClient: httpClient,
		}),
		NewOpenAIAdapter(OpenAIConfig{
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			Timeout:    timeout,
			HTTPClient: httpClient,
		}),
		NewClaudeAdapter(ClaudeConfig{
			Model:      cfg.Claude.Model,
			BaseURL:    cfg.Claude.BaseURL,
			Timeout:    timeout,
			HTTPClient: httpClient,
		}),
	)
}
