package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v66/github"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/proxy"
)

const defaultGitHubOAuthBaseURL = "https://github.com"

// GitHubConfig configures the GitHub executor.
type GitHubConfig struct {
	// ClientID and ClientSecret identify the OAuth app. Required for
	// the oauth actions.
	ClientID     string
	ClientSecret string

	// ServiceToken is a fallback PAT used for repos.list when the
	// calling user has not connected an account.
	ServiceToken string

	// OAuthBaseURL overrides the OAuth host. Defaults to github.com.
	OAuthBaseURL string

	// Client makes the code-exchange call. Defaults to
	// http.DefaultClient.
	Client *http.Client

	// NewAPIClient builds an authenticated go-github client. Defaults
	// to the public API; tests point it at a local server.
	NewAPIClient func(token string) *github.Client
}

// GitHubExecutor executes OAuth and repository actions. Exchanged
// access tokens are remembered per user, so later repos.list calls
// carry no token in the payload.
type GitHubExecutor struct {
	clientID     string
	clientSecret string
	serviceToken string
	oauthBaseURL string
	client       *http.Client
	newAPIClient func(token string) *github.Client

	mu     sync.Mutex
	tokens map[string]string
}

var _ Executor = (*GitHubExecutor)(nil)

// NewGitHubExecutor creates the executor.
func NewGitHubExecutor(cfg GitHubConfig) *GitHubExecutor {
	baseURL := cfg.OAuthBaseURL
	if baseURL == "" {
		baseURL = defaultGitHubOAuthBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	newAPIClient := cfg.NewAPIClient
	if newAPIClient == nil {
		newAPIClient = func(token string) *github.Client {
			return github.NewClient(nil).WithAuthToken(token)
		}
	}
	return &GitHubExecutor{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		serviceToken: cfg.ServiceToken,
		oauthBaseURL: baseURL,
		client:       client,
		newAPIClient: newAPIClient,
		tokens:       make(map[string]string),
	}
}

// Execute implements Executor.
func (e *GitHubExecutor) Execute(ctx context.Context, session *auth.Session, action string, payload json.RawMessage) proxy.Response {
	switch action {
	case proxy.ActionOAuthURL:
		return e.oauthURL(payload)
	case proxy.ActionExchangeCode:
		return e.exchangeCode(ctx, session, payload)
	case proxy.ActionListRepos:
		return e.listRepos(ctx, session)
	default:
		return proxy.NewFailure(fmt.Sprintf("unknown github action: %q", action))
	}
}

// oauthURL builds the authorization URL. Pure string assembly; the
// client ID never leaves the broker any other way.
func (e *GitHubExecutor) oauthURL(payload json.RawMessage) proxy.Response {
	if e.clientID == "" {
		return proxy.NewFailure("github is not configured: missing oauth client id")
	}

	var req proxy.OAuthURLRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return proxy.NewFailure(fmt.Sprintf("invalid oauth payload: %v", err))
	}
	if req.RedirectURI == "" {
		return proxy.NewFailure("oauth requires a redirect uri")
	}

	q := url.Values{}
	q.Set("client_id", e.clientID)
	q.Set("redirect_uri", req.RedirectURI)
	if len(req.Scopes) > 0 {
		q.Set("scope", strings.Join(req.Scopes, " "))
	}
	return proxy.NewSuccess(map[string]string{"url": e.oauthBaseURL + "/login/oauth/authorize?" + q.Encode()})
}

func (e *GitHubExecutor) exchangeCode(ctx context.Context, session *auth.Session, payload json.RawMessage) proxy.Response {
	if e.clientID == "" || e.clientSecret == "" {
		return proxy.NewFailure("github is not configured: missing oauth client credentials")
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := unmarshalPayload(payload, &req); err != nil {
		return proxy.NewFailure(fmt.Sprintf("invalid exchange payload: %v", err))
	}
	if req.Code == "" {
		return proxy.NewFailure("exchange requires a code")
	}

	form := url.Values{}
	form.Set("client_id", e.clientID)
	form.Set("client_secret", e.clientSecret)
	form.Set("code", req.Code)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.oauthBaseURL+"/login/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return proxy.NewFailure(fmt.Sprintf("failed to build exchange request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return proxy.NewFailure(fmt.Sprintf("github unreachable: %v", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	// GitHub reports bad codes with HTTP 200 and an error body.
	var out struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		Scope            string `json:"scope"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return proxy.NewFailure(fmt.Sprintf("failed to decode exchange reply (status %d): %v", httpResp.StatusCode, err))
	}
	if out.Error != "" {
		reason := out.ErrorDescription
		if reason == "" {
			reason = out.Error
		}
		return proxy.NewFailure(fmt.Sprintf("github rejected the code: %s", reason))
	}
	if out.AccessToken == "" {
		return proxy.NewFailure("github returned no access token")
	}

	e.mu.Lock()
	e.tokens[session.UserID] = out.AccessToken
	e.mu.Unlock()
	log.Info(log.CatBroker, "GitHub account connected", "user", session.UserID, "scope", out.Scope)

	return proxy.NewSuccess(proxy.GitHubToken{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
		Scope:       out.Scope,
	})
}

func (e *GitHubExecutor) listRepos(ctx context.Context, session *auth.Session) proxy.Response {
	token := e.tokenFor(session.UserID)
	if token == "" {
		return proxy.NewFailure("github account not connected")
	}

	client := e.newAPIClient(token)
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	repos, _, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return proxy.NewFailure(fmt.Sprintf("failed to list repositories: %v", err))
	}

	out := make([]proxy.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, proxy.Repository{
			ID:          r.GetID(),
			Name:        r.GetName(),
			FullName:    r.GetFullName(),
			Private:     r.GetPrivate(),
			HTMLURL:     r.GetHTMLURL(),
			Description: r.GetDescription(),
		})
	}
	return proxy.NewSuccess(out)
}

// tokenFor prefers the user's exchanged token, then the service PAT.
func (e *GitHubExecutor) tokenFor(userID string) string {
	e.mu.Lock()
	token := e.tokens[userID]
	e.mu.Unlock()
	if token == "" {
		token = e.serviceToken
	}
	return token
}
