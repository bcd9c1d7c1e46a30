package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultClaudeModel     = "claude-3-5-sonnet-latest"
	defaultClaudeMaxTokens = 1024
)

// ClaudeAdapter implements Adapter using the Anthropic Messages API.
type ClaudeAdapter struct {
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// ClaudeConfig holds configuration for the Claude adapter.
type ClaudeConfig struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClaudeAdapter creates a new Claude adapter.
func NewClaudeAdapter(cfg ClaudeConfig) *ClaudeAdapter {
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeAdapter{
		model:      model,
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

func (a *ClaudeAdapter) Backend() Backend { return BackendClaude }
func (a *ClaudeAdapter) Model() string    { return a.model }

func (a *ClaudeAdapter) Complete(ctx context.Context, req Request) (text string, err error) {
	if req.Credentials == "" {
		return "", NewError(KindMissingCredentials, "", nil)
	}
	defer recoverInto(&err)

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	client := anthropic.NewClient(a.requestOptions(req.Credentials)...)
	resp, err := client.Messages.New(ctx, a.params(req))
	if err != nil {
		return "", classifyClaudeError(ctx, err)
	}
	return claudeText(resp)
}

func (a *ClaudeAdapter) requestOptions(apiKey string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	if a.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(a.httpClient))
	}
	return opts
}

func (a *ClaudeAdapter) params(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  claudeMessages(req),
		MaxTokens: defaultClaudeMaxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	return params
}

// claudeMessages replays history in order and appends the new user message.
// The system prompt travels in its own request field.
func claudeMessages(req Request) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, t := range req.History {
		if t.Speaker == SpeakerAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))
}

func claudeText(resp *anthropic.Message) (string, error) {
	if resp == nil {
		return "", NewError(KindMalformedResponse, "no message in response", nil)
	}
	if !resp.JSON.Content.Valid() {
		return "", NewError(KindMalformedResponse, "missing or invalid content in response", nil)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", NewError(KindEmptyResponse, "", nil)
	}
	return text, nil
}

func classifyClaudeError(ctx context.Context, err error) *Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	if e := classifyTransport(ctx, err); e != nil {
		return e
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewError(KindMalformedResponse, err.Error(), err)
	}
	return NewError(KindTransport, err.Error(), err)
}
