package proxy

import (
	"context"
	"fmt"
)

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest shapes a chat completion call.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResult is the assistant's reply.
type ChatResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// CompletionRequest shapes a plain text completion call.
type CompletionRequest struct {
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// CompletionResult is the completed text.
type CompletionResult struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// ModelInfo describes one model the provider offers.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ChatCompletion sends a chat conversation and returns the reply. It is
// a thin shaping layer over Call: no retries, no extra failure modes.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if len(req.Messages) == 0 {
		return nil, &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}

	resp := c.Call(ctx, ProviderOpenAI, ActionChat, req)
	if !resp.Success {
		return nil, &CallError{Provider: ProviderOpenAI, Action: ActionChat, Message: resp.Err}
	}

	var out ChatResult
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat result: %w", err)
	}
	if out.Usage == nil {
		out.Usage = resp.Usage
	}
	return &out, nil
}

// Completion sends a prompt and returns the completed text.
func (c *Client) Completion(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	if req.Prompt == "" {
		return nil, &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}

	resp := c.Call(ctx, ProviderOpenAI, ActionComplete, req)
	if !resp.Success {
		return nil, &CallError{Provider: ProviderOpenAI, Action: ActionComplete, Message: resp.Err}
	}

	var out CompletionResult
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode completion result: %w", err)
	}
	if out.Usage == nil {
		out.Usage = resp.Usage
	}
	return &out, nil
}

// ListModels returns the models available to the studio. Responses are
// cached for the standard TTL.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp := c.Call(ctx, ProviderOpenAI, ActionListModels, nil)
	if !resp.Success {
		return nil, &CallError{Provider: ProviderOpenAI, Action: ActionListModels, Message: resp.Err}
	}

	var out []ModelInfo
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	return out, nil
}
