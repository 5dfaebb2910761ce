package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/proxy"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// maxReplySize bounds how much of a provider reply is read (4MB).
const maxReplySize = 4 << 20

// Models used when a payload names none.
const (
	defaultChatModel       = "gpt-4o-mini"
	defaultCompletionModel = "gpt-3.5-turbo-instruct"
)

// openAIRates estimates spend in USD per 1K tokens, blended across
// prompt and completion pricing.
var openAIRates = map[string]float64{
	"gpt-4o":                0.00625,
	"gpt-4o-mini":           0.000375,
	"gpt-4-turbo":           0.02,
	"gpt-3.5-turbo":         0.001,
	"gpt-3.5-turbo-instruct": 0.00175,
}

const openAIDefaultRate = 0.002

// OpenAIConfig configures the OpenAI executor.
type OpenAIConfig struct {
	// APIKey authenticates against the API. An executor without one
	// fails every action descriptively instead of calling out.
	APIKey string

	// BaseURL overrides the API host. Defaults to the public endpoint.
	BaseURL string

	// Client makes outbound calls. Defaults to http.DefaultClient.
	Client *http.Client

	// DefaultModel overrides the model used when a chat payload names
	// none.
	DefaultModel string
}

// OpenAIExecutor executes chat, completion and model-listing actions
// against the OpenAI REST API.
type OpenAIExecutor struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

var _ Executor = (*OpenAIExecutor)(nil)

// NewOpenAIExecutor creates the executor.
func NewOpenAIExecutor(cfg OpenAIConfig) *OpenAIExecutor {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultChatModel
	}
	return &OpenAIExecutor{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		client:       client,
		defaultModel: model,
	}
}

// Execute implements Executor.
func (e *OpenAIExecutor) Execute(ctx context.Context, _ *auth.Session, action string, payload json.RawMessage) proxy.Response {
	if e.apiKey == "" {
		return proxy.NewFailure("openai is not configured: missing api key")
	}

	switch action {
	case proxy.ActionChat:
		return e.chat(ctx, payload)
	case proxy.ActionComplete:
		return e.complete(ctx, payload)
	case proxy.ActionListModels:
		return e.listModels(ctx)
	default:
		return proxy.NewFailure(fmt.Sprintf("unknown openai action: %q", action))
	}
}

func (e *OpenAIExecutor) chat(ctx context.Context, payload json.RawMessage) proxy.Response {
	var req proxy.ChatRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return proxy.NewFailure(fmt.Sprintf("invalid chat payload: %v", err))
	}
	if len(req.Messages) == 0 {
		return proxy.NewFailure("chat requires at least one message")
	}

	model := req.Model
	if model == "" {
		model = e.defaultModel
	}

	var out openAIChatReply
	if err := e.post(ctx, "/v1/chat/completions", openAIChatCall{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, &out); err != nil {
		return proxy.NewFailure(err.Error())
	}
	if len(out.Choices) == 0 {
		return proxy.NewFailure("openai returned no choices")
	}
	if out.Model == "" {
		out.Model = model
	}

	result := proxy.ChatResult{Content: out.Choices[0].Message.Content, Model: out.Model}
	return proxy.NewSuccess(result).WithUsage(usageFrom(out.Usage, out.Model))
}

func (e *OpenAIExecutor) complete(ctx context.Context, payload json.RawMessage) proxy.Response {
	var req proxy.CompletionRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return proxy.NewFailure(fmt.Sprintf("invalid completion payload: %v", err))
	}
	if req.Prompt == "" {
		return proxy.NewFailure("completion requires a prompt")
	}

	model := req.Model
	if model == "" {
		model = defaultCompletionModel
	}

	var out openAICompletionReply
	if err := e.post(ctx, "/v1/completions", openAICompletionCall{
		Model:     model,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	}, &out); err != nil {
		return proxy.NewFailure(err.Error())
	}
	if len(out.Choices) == 0 {
		return proxy.NewFailure("openai returned no choices")
	}
	if out.Model == "" {
		out.Model = model
	}

	result := proxy.CompletionResult{Text: out.Choices[0].Text, Model: out.Model}
	return proxy.NewSuccess(result).WithUsage(usageFrom(out.Usage, out.Model))
}

func (e *OpenAIExecutor) listModels(ctx context.Context) proxy.Response {
	var out openAIModelList
	if err := e.get(ctx, "/v1/models", &out); err != nil {
		return proxy.NewFailure(err.Error())
	}

	models := make([]proxy.ModelInfo, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, proxy.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return proxy.NewSuccess(models)
}

func (e *OpenAIExecutor) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

func (e *OpenAIExecutor) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build openai request: %w", err)
	}
	return e.do(req, out)
}

// do sends the call and decodes the reply, surfacing OpenAI's own error
// message on non-2xx statuses.
func (e *OpenAIExecutor) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return fmt.Errorf("failed to read openai reply: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr openAIErrorReply
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
			return fmt.Errorf("openai error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("openai error (%d)", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode openai reply: %w", err)
	}
	return nil
}

// usageFrom converts OpenAI token accounting into the envelope's Usage,
// estimating spend from the model's blended per-1K rate.
func usageFrom(u *openAIUsage, model string) *proxy.Usage {
	if u == nil {
		return nil
	}
	rate, ok := openAIRates[model]
	if !ok {
		rate = openAIDefaultRate
	}
	return &proxy.Usage{
		TokensUsed: u.TotalTokens,
		CostUSD:    float64(u.TotalTokens) / 1000 * rate,
	}
}

// Wire shapes for the OpenAI REST API.

type openAIChatCall struct {
	Model       string              `json:"model"`
	Messages    []proxy.ChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAICompletionCall struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChatReply struct {
	Model   string `json:"model"`
	Choices []struct {
		Message proxy.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

type openAICompletionReply struct {
	Model   string `json:"model"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

type openAIModelList struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

type openAIErrorReply struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
