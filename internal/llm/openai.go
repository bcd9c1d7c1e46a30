package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIAdapter implements Adapter using the OpenAI Chat Completions API.
// Also works with compatible APIs via BaseURL.
type OpenAIAdapter struct {
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI adapter.
type OpenAIConfig struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(cfg OpenAIConfig) *OpenAIAdapter {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIAdapter{
		model:      model,
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

func (a *OpenAIAdapter) Backend() Backend { return BackendOpenAI }
func (a *OpenAIAdapter) Model() string    { return a.model }

func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (text string, err error) {
	if req.Credentials == "" {
		return "", NewError(KindMissingCredentials, "", nil)
	}
	defer recoverInto(&err)

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	client := openai.NewClient(a.requestOptions(req.Credentials)...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: openAIMessages(req),
	})
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}
	return openAIText(resp)
}

func (a *OpenAIAdapter) requestOptions(apiKey string) []option.RequestOption {
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

// openAIMessages puts the system prompt in a leading system message, then
// replays history and the new user message.
func openAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		if t.Speaker == SpeakerAssistant {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}
	return append(msgs, openai.UserMessage(req.Message))
}

func openAIText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", NewError(KindMalformedResponse, "no choices in response", nil)
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", NewError(KindEmptyResponse, "", nil)
	}
	return text, nil
}

func classifyOpenAIError(ctx context.Context, err error) *Error {
	var apiErr *openai.Error
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
