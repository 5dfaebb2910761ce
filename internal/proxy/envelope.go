// Package proxy is the studio's gateway to remote providers. Every
// AI and GitHub call flows through one constructed Client that gates on
// the caller's session, forwards the call to the secrets broker, and
// caches responses for the handful of actions that are safe to reuse.
//
// Callers never see transport faults: every outcome, success or failure,
// arrives as a Response envelope.
package proxy

import (
	"encoding/json"
	"fmt"
)

// Provider identifies a remote service the broker can execute against.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGitHub Provider = "github"
)

// Actions the broker understands, per provider.
const (
	ActionChat         = "chat"
	ActionComplete     = "complete"
	ActionListModels   = "models.list"
	ActionOAuthURL     = "oauth.url"
	ActionExchangeCode = "oauth.exchange"
	ActionListRepos    = "repos.list"
)

// Request is the wire form of one proxied call.
type Request struct {
	Provider Provider `json:"provider"`
	Action   string   `json:"action"`
	Payload  any      `json:"payload,omitempty"`
}

// Usage carries the token and cost accounting a provider reported.
type Usage struct {
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// Response is the uniform envelope every call resolves to. Exactly one
// of Data or Err is meaningful, selected by Success.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Err     string          `json:"error,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
}

// NewSuccess wraps data in a success envelope. A payload that cannot be
// marshaled becomes a failure envelope instead.
func NewSuccess(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewFailure(fmt.Sprintf("failed to encode response data: %v", err))
	}
	return Response{Success: true, Data: raw}
}

// NewFailure wraps an error message in a failure envelope.
func NewFailure(msg string) Response {
	return Response{Success: false, Err: msg}
}

// WithUsage attaches usage accounting to the envelope.
func (r Response) WithUsage(u *Usage) Response {
	r.Usage = u
	return r
}

// Decode unmarshals the envelope's data into v.
func (r Response) Decode(v any) error {
	if !r.Success {
		return fmt.Errorf("cannot decode failure response: %s", r.Err)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
