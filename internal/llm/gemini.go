package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"

	// geminiAcknowledgement answers the synthesized instruction turn.
	geminiAcknowledgement = "Understood. I will be concise and conceptual."
)

// GeminiAdapter implements Adapter using the Gemini API.
type GeminiAdapter struct {
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// GeminiConfig holds configuration for the Gemini adapter.
type GeminiConfig struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewGeminiAdapter creates a new Gemini adapter.
func NewGeminiAdapter(cfg GeminiConfig) *GeminiAdapter {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{
		model:      model,
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

func (a *GeminiAdapter) Backend() Backend { return BackendGemini }
func (a *GeminiAdapter) Model() string    { return a.model }

func (a *GeminiAdapter) Complete(ctx context.Context, req Request) (text string, err error) {
	if req.Credentials == "" {
		return "", NewError(KindMissingCredentials, "", nil)
	}
	defer recoverInto(&err)

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      req.Credentials,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  a.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: a.baseURL},
	})
	if err != nil {
		return "", NewError(KindTransport, "create client: "+err.Error(), err)
	}

	resp, err := client.Models.GenerateContent(ctx, a.model, geminiContents(req), nil)
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}
	return geminiText(resp)
}

// geminiContents prepends a user/model exchange carrying the system prompt,
// then replays history and the new user message. Assistant turns use the
// "model" role.
func geminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+3)
	if req.System != "" {
		contents = append(contents,
			geminiContent(genai.RoleUser, req.System),
			geminiContent(genai.RoleModel, geminiAcknowledgement),
		)
	}
	for _, t := range req.History {
		if t.Speaker == SpeakerAssistant {
			contents = append(contents, geminiContent(genai.RoleModel, t.Text))
		} else {
			contents = append(contents, geminiContent(genai.RoleUser, t.Text))
		}
	}
	return append(contents, geminiContent(genai.RoleUser, req.Message))
}

func geminiContent(role genai.Role, text string) *genai.Content {
	return &genai.Content{
		Role:  string(role),
		Parts: []*genai.Part{{Text: text}},
	}
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", NewError(KindMalformedResponse, "no candidates in response", nil)
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return "", NewError(KindEmptyResponse, "", nil)
	}
	var out strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", NewError(KindEmptyResponse, "", nil)
	}
	return text, nil
}

func classifyGeminiError(ctx context.Context, err error) *Error {
	if apiErr, ok := geminiAPIError(err); ok {
		if geminiKeyInvalid(apiErr) {
			return NewError(KindAuthRejected, err.Error(), err)
		}
		return classifyStatus(apiErr.Code, err)
	}
	if e := classifyTransport(ctx, err); e != nil {
		return e
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || strings.Contains(err.Error(), "unmarshal") {
		return NewError(KindMalformedResponse, err.Error(), err)
	}
	return NewError(KindTransport, err.Error(), err)
}

func geminiAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

// geminiKeyInvalid reports a rejected key. The Gemini API answers a bad key
// with 400 INVALID_ARGUMENT and an API_KEY_INVALID reason in the details.
func geminiKeyInvalid(e genai.APIError) bool {
	if e.Code != 400 {
		return false
	}
	for _, d := range e.Details {
		if reason, _ := d["reason"].(string); reason == "API_KEY_INVALID" {
			return true
		}
	}
	return strings.Contains(e.Message, "API key not valid")
}
