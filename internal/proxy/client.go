package proxy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/log"
)

// Client proxies calls to remote providers through the secrets broker.
// Construct one per application and pass it where it is needed; there is
// no package-level instance.
type Client struct {
	invoker Invoker
	tokens  auth.TokenSource
	store   Store
	tracer  trace.Tracer
}

// Config assembles a Client's dependencies.
type Config struct {
	// Invoker executes calls against the broker. Required.
	Invoker Invoker

	// Tokens resolves the caller's session. Required.
	Tokens auth.TokenSource

	// Store caches responses for cacheable actions. Defaults to an
	// in-memory store with the standard TTL.
	Store Store

	// Tracer traces calls. Defaults to the global tracer provider.
	Tracer trace.Tracer
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("proxy client requires an invoker")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("proxy client requires a token source")
	}

	store := cfg.Store
	if store == nil {
		store = NewStore(CacheTTL)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/themateplatform/codemate/internal/proxy")
	}

	return &Client{
		invoker: cfg.Invoker,
		tokens:  cfg.Tokens,
		store:   store,
		tracer:  tracer,
	}, nil
}

// Call executes one proxied call and always resolves to an envelope:
// transport faults, auth gaps, and provider errors all come back as
// failure Responses, never as panics or Go errors.
//
// Cacheable actions are served from cache when a fresh entry exists;
// the cache is consulted before the session gate, so a signed-out caller
// can still read what an earlier signed-in call populated. Identical
// concurrent calls are not deduplicated, and no timeout is imposed here;
// cancellation and deadlines belong to the ctx and the invoker.
func (c *Client) Call(ctx context.Context, provider Provider, action string, payload any) Response {
	ctx, span := c.tracer.Start(ctx, "proxy.call", trace.WithAttributes(
		attribute.String("proxy.provider", string(provider)),
		attribute.String("proxy.action", action),
	))
	defer span.End()

	key := ""
	if isCacheable(provider, action) {
		k, err := CacheKey(provider, action, payload)
		if err != nil {
			// Unkeyable payloads skip the cache; the invoker will fail
			// to serialize them too and report a transport failure.
			log.Warn(log.CatProxy, "Payload not cacheable", "provider", string(provider), "action", action, "error", err.Error())
		} else {
			key = k
			if resp, ok := c.store.Get(key); ok {
				span.SetAttributes(attribute.Bool("proxy.cache_hit", true))
				log.Debug(log.CatProxy, "Cache hit", "provider", string(provider), "action", action)
				return resp
			}
		}
	}

	session, err := c.tokens.Session(ctx)
	if err != nil {
		span.RecordError(err)
		return NewFailure(fmt.Sprintf("failed to resolve session: %v", err))
	}
	if session == nil {
		span.SetAttributes(attribute.Bool("proxy.auth_missing", true))
		log.Debug(log.CatProxy, "Call rejected, no session", "provider", string(provider), "action", action)
		return NewFailure(ErrAuthenticationRequired.Error())
	}

	resp, err := c.invoker.Invoke(ctx, session, Request{Provider: provider, Action: action, Payload: payload})
	if err != nil {
		terr := &TransportError{Provider: provider, Action: action, Err: err}
		span.RecordError(terr)
		log.ErrorErr(log.CatProxy, "Remote call failed", err, "provider", string(provider), "action", action)
		return NewFailure(terr.Error())
	}

	if resp.Success && key != "" {
		c.store.Set(key, resp)
		log.Debug(log.CatProxy, "Cached response", "provider", string(provider), "action", action)
	}
	return resp
}

// ClearCache drops every cached response for one provider. It is a
// hint, not a barrier: a call already in flight may repopulate the cache
// immediately after.
func (c *Client) ClearCache(provider Provider) {
	prefix := string(provider) + ":"
	for _, key := range c.store.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
	log.Debug(log.CatProxy, "Cleared provider cache", "provider", string(provider))
}

// ClearAllCaches drops every cached response.
func (c *Client) ClearAllCaches() {
	c.store.Clear()
	log.Debug(log.CatProxy, "Cleared all caches")
}

// CacheStats reports how many responses are cached and under which keys,
// sorted for stable output.
func (c *Client) CacheStats() CacheStats {
	keys := c.store.Keys()
	sort.Strings(keys)
	return CacheStats{Entries: len(keys), Keys: keys}
}
