package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/auth"
)

func TestHTTPInvokerPostsEnvelope(t *testing.T) {
	var got Request
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/execute", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(NewSuccess(map[string]string{"ok": "yes"})))
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, srv.Client())
	session := &auth.Session{Token: "session-token", UserID: "u"}

	resp, err := invoker.Invoke(context.Background(), session, Request{
		Provider: ProviderOpenAI,
		Action:   ActionChat,
		Payload:  map[string]string{"prompt": "hi"},
	})

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "Bearer session-token", gotAuth)
	require.Equal(t, ProviderOpenAI, got.Provider)
	require.Equal(t, ActionChat, got.Action)
}

func TestHTTPInvokerDecodesFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(NewFailure("authentication required"))
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, srv.Client())
	resp, err := invoker.Invoke(context.Background(), &auth.Session{Token: "bad"}, Request{
		Provider: ProviderGitHub,
		Action:   ActionListRepos,
	})

	// An envelope, even over a 401, is a successful transport round trip.
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "authentication required", resp.Err)
}

func TestHTTPInvokerUnreachableBrokerIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	invoker := NewHTTPInvoker(srv.URL, nil)
	_, err := invoker.Invoke(context.Background(), &auth.Session{Token: "t"}, Request{
		Provider: ProviderOpenAI,
		Action:   ActionChat,
	})

	require.ErrorContains(t, err, "broker unreachable")
}

func TestHTTPInvokerRejectsNonEnvelopeReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, srv.Client())
	_, err := invoker.Invoke(context.Background(), &auth.Session{Token: "t"}, Request{
		Provider: ProviderOpenAI,
		Action:   ActionChat,
	})

	require.ErrorContains(t, err, "unreadable reply")
	require.ErrorContains(t, err, "502")
}
