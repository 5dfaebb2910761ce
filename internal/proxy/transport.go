package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/themateplatform/codemate/internal/auth"
)

// Invoker executes one proxied request against the broker.
type Invoker interface {
	Invoke(ctx context.Context, session *auth.Session, req Request) (Response, error)
}

// executePath is the broker endpoint every call posts to.
const executePath = "/v1/execute"

// HTTPInvoker talks to the secrets broker over HTTP. The broker answers
// every request with a Response envelope, including application-level
// failures, so any non-envelope reply is a transport error.
type HTTPInvoker struct {
	baseURL string
	client  *http.Client
}

var _ Invoker = (*HTTPInvoker)(nil)

// NewHTTPInvoker creates an invoker against the broker at baseURL.
// A nil httpClient falls back to http.DefaultClient, which carries no
// timeout; deadlines are the caller's business.
func NewHTTPInvoker(baseURL string, httpClient *http.Client) *HTTPInvoker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPInvoker{baseURL: baseURL, client: httpClient}
}

// Invoke implements Invoker.
func (i *HTTPInvoker) Invoke(ctx context.Context, session *auth.Session, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+executePath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+session.Token)

	httpResp, err := i.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("broker unreachable: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("broker returned unreadable reply (status %d): %w", httpResp.StatusCode, err)
	}
	return resp, nil
}
