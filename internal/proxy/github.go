package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// OAuthURLRequest shapes an authorization-URL build.
type OAuthURLRequest struct {
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes,omitempty"`
}

// oauthURLResult is the broker's reply to an oauth.url call.
type oauthURLResult struct {
	URL string `json:"url"`
}

// GitHubToken is the credential minted by a code exchange.
type GitHubToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// Repository is one repository visible to the connected account.
type Repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Private     bool   `json:"private"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description,omitempty"`
}

// OAuthURL asks the broker to build the GitHub authorization URL. The
// client ID stays on the broker; callers only supply where to return to.
func (c *Client) OAuthURL(ctx context.Context, redirectURI string, scopes []string) (string, error) {
	if redirectURI == "" {
		return "", &ValidationError{Field: "redirect_uri", Reason: "must not be empty"}
	}

	resp := c.Call(ctx, ProviderGitHub, ActionOAuthURL, OAuthURLRequest{RedirectURI: redirectURI, Scopes: scopes})
	if !resp.Success {
		return "", &CallError{Provider: ProviderGitHub, Action: ActionOAuthURL, Message: resp.Err}
	}

	var out oauthURLResult
	if err := resp.Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode oauth url: %w", err)
	}
	return out.URL, nil
}

// ExchangeCode trades an OAuth authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*GitHubToken, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "must not be empty"}
	}

	resp := c.Call(ctx, ProviderGitHub, ActionExchangeCode, map[string]string{"code": code})
	if !resp.Success {
		return nil, &CallError{Provider: ProviderGitHub, Action: ActionExchangeCode, Message: resp.Err}
	}

	var out GitHubToken
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &out, nil
}

// ListRepositories returns the repositories visible to the connected
// account. Responses are cached for the standard TTL.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	resp := c.Call(ctx, ProviderGitHub, ActionListRepos, nil)
	if !resp.Success {
		return nil, &CallError{Provider: ProviderGitHub, Action: ActionListRepos, Message: resp.Err}
	}

	var out []Repository
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode repository list: %w", err)
	}
	return out, nil
}

// ValidateRepoURL rejects malformed GitHub repository URLs before any
// network activity. Accepts https://github.com/owner/repo with an
// optional .git suffix.
func ValidateRepoURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "repository url", Reason: "must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "repository url", Reason: "not a valid URL"}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "repository url", Reason: "scheme must be https"}
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return &ValidationError{Field: "repository url", Reason: "host must be github.com"}
	}

	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &ValidationError{Field: "repository url", Reason: "path must be owner/repo"}
	}
	return nil
}
