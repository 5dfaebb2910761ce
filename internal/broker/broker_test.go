package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/proxy"
)

type stubExecutor struct {
	lastAction  string
	lastPayload json.RawMessage
	lastUser    string
	resp        proxy.Response
}

func (s *stubExecutor) Execute(_ context.Context, session *auth.Session, action string, payload json.RawMessage) proxy.Response {
	s.lastAction = action
	s.lastPayload = payload
	s.lastUser = session.UserID
	return s.resp
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.Manager, *stubExecutor) {
	t.Helper()

	manager, err := auth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	stub := &stubExecutor{resp: proxy.NewSuccess(map[string]string{"ok": "yes"})}
	srv := NewServer(manager)
	srv.Register(proxy.ProviderOpenAI, stub)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, manager, stub
}

func postExecute(t *testing.T, baseURL, token, body string) (int, proxy.Response) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/execute", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()

	var envelope proxy.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&envelope))
	return httpResp.StatusCode, envelope
}

func TestExecuteRequiresBearerToken(t *testing.T) {
	ts, _, stub := newTestServer(t)

	status, envelope := postExecute(t, ts.URL, "", `{"provider":"openai","action":"chat"}`)
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Err, "missing bearer token")
	require.Empty(t, stub.lastAction, "executor must not run unauthenticated")
}

func TestExecuteRejectsTamperedToken(t *testing.T) {
	ts, _, stub := newTestServer(t)

	status, envelope := postExecute(t, ts.URL, "not-a-real-token", `{"provider":"openai","action":"chat"}`)
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Err, "invalid session token")
	require.Empty(t, stub.lastAction)
}

func TestExecuteUnknownProviderIsApplicationFailure(t *testing.T) {
	ts, manager, _ := newTestServer(t)
	session, err := manager.Mint("user-1", "Dana")
	require.NoError(t, err)

	status, envelope := postExecute(t, ts.URL, session.Token, `{"provider":"gitlab","action":"repos.list"}`)
	require.Equal(t, http.StatusOK, status)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Err, "unknown provider")
}

func TestExecuteRoutesToRegisteredExecutor(t *testing.T) {
	ts, manager, stub := newTestServer(t)
	session, err := manager.Mint("user-1", "Dana")
	require.NoError(t, err)

	status, envelope := postExecute(t, ts.URL, session.Token, `{"provider":"openai","action":"models.list","payload":{"page":1}}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)
	require.Equal(t, "models.list", stub.lastAction)
	require.JSONEq(t, `{"page":1}`, string(stub.lastPayload))
	require.Equal(t, "user-1", stub.lastUser)
}

func TestExecuteRejectsMalformedBody(t *testing.T) {
	ts, manager, _ := newTestServer(t)
	session, err := manager.Mint("user-1", "Dana")
	require.NoError(t, err)

	status, envelope := postExecute(t, ts.URL, session.Token, `{"provider": "openai",`)
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Err, "invalid request body")
}

func TestHealthNeedsNoAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	httpResp, err := http.Get(ts.URL + "/v1/health")
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var envelope proxy.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
}

// TestProxyClientRoundTrip drives the real proxy client against a live
// broker to prove the two ends agree on the wire format.
func TestProxyClientRoundTrip(t *testing.T) {
	ts, manager, stub := newTestServer(t)
	stub.resp = proxy.NewSuccess([]proxy.ModelInfo{{ID: "gpt-4o-mini", OwnedBy: "openai"}})

	session, err := manager.Mint("user-1", "Dana")
	require.NoError(t, err)

	client, err := proxy.NewClient(proxy.Config{
		Invoker: proxy.NewHTTPInvoker(ts.URL, nil),
		Tokens:  &auth.StaticTokenSource{S: session},
	})
	require.NoError(t, err)

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, "gpt-4o-mini", models[0].ID)
}

// TestProxyClientSeesAuthFailureEnvelope proves an expired token
// surfaces as a failure envelope on the client side, not a Go error.
func TestProxyClientSeesAuthFailureEnvelope(t *testing.T) {
	ts, _, _ := newTestServer(t)

	client, err := proxy.NewClient(proxy.Config{
		Invoker: proxy.NewHTTPInvoker(ts.URL, nil),
		Tokens:  &auth.StaticTokenSource{S: &auth.Session{Token: "stale", UserID: "user-1"}},
	})
	require.NoError(t, err)

	resp := client.Call(context.Background(), proxy.ProviderOpenAI, proxy.ActionChat, nil)
	require.False(t, resp.Success)
	require.Contains(t, resp.Err, "invalid session token")
}
