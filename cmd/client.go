package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/proxy"
)

// identityName is the display name CLI sessions carry to the broker.
func identityName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "codemate"
}

// mintCLISession signs this invocation in. One-shot commands hold a
// single session for their lifetime.
func mintCLISession() (*auth.Session, error) {
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret must be set; the broker only answers signed requests")
	}
	manager, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	session, err := manager.Mint("cli-"+uuid.NewString(), identityName())
	if err != nil {
		return nil, fmt.Errorf("minting session: %w", err)
	}
	return session, nil
}

// newProxyClient builds a proxy client against the configured broker,
// signed in as the invoking user.
func newProxyClient() (*proxy.Client, error) {
	session, err := mintCLISession()
	if err != nil {
		return nil, err
	}
	return proxy.NewClient(proxy.Config{
		Invoker: proxy.NewHTTPInvoker(cfg.Broker.URL, nil),
		Tokens:  &auth.StaticTokenSource{S: session},
	})
}
