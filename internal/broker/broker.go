// Package broker implements the execution endpoint that holds provider
// secrets on behalf of studio clients. Callers send {provider, action,
// payload} with a bearer session token; whatever happens, they get back
// the uniform response envelope. API keys and OAuth credentials live
// here and never reach the studio.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/proxy"
)

// Executor runs one provider's actions. Implementations own the
// provider's credentials and map every outcome, including provider
// errors, into a response envelope.
type Executor interface {
	Execute(ctx context.Context, session *auth.Session, action string, payload json.RawMessage) proxy.Response
}

// TokenVerifier checks bearer tokens. *auth.Manager satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Session, error)
}

// Server is the HTTP face of the broker.
type Server struct {
	verifier  TokenVerifier
	executors map[proxy.Provider]Executor
	tracer    trace.Tracer
}

// NewServer creates a Server with no executors registered.
func NewServer(verifier TokenVerifier) *Server {
	return &Server{
		verifier:  verifier,
		executors: make(map[proxy.Provider]Executor),
		tracer:    otel.Tracer("github.com/themateplatform/codemate/internal/broker"),
	}
}

// Register wires an executor to a provider name. Register everything
// before serving; the map is not guarded.
func (s *Server) Register(provider proxy.Provider, exec Executor) {
	s.executors[provider] = exec
}

// Handler returns the broker's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.health)
	mux.HandleFunc("POST /v1/execute", s.execute)
	return mux
}

// executeRequest mirrors the proxy's wire form, with the payload kept
// raw for the executor to shape.
type executeRequest struct {
	Provider proxy.Provider  `json:"provider"`
	Action   string          `json:"action"`
	Payload  json.RawMessage `json:"payload"`
}

// health reports liveness.
// GET /v1/health
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, proxy.NewSuccess(map[string]string{"status": "ok"}))
}

// execute runs one provider action for an authenticated caller.
// POST /v1/execute
//
// Auth failures are the only non-200 envelopes; a provider or payload
// problem is an application-level failure and stays HTTP 200.
func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "broker.execute")
	defer span.End()

	session, err := s.authenticate(r)
	if err != nil {
		span.RecordError(err)
		log.Warn(log.CatBroker, "Rejected unauthenticated call", "remote", r.RemoteAddr, "error", err.Error())
		writeEnvelope(w, http.StatusUnauthorized, proxy.NewFailure(err.Error()))
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, proxy.NewFailure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	span.SetAttributes(
		attribute.String("broker.provider", string(req.Provider)),
		attribute.String("broker.action", req.Action),
	)

	exec, ok := s.executors[req.Provider]
	if !ok {
		writeEnvelope(w, http.StatusOK, proxy.NewFailure(fmt.Sprintf("unknown provider: %q", req.Provider)))
		return
	}

	log.Debug(log.CatBroker, "Executing action", "provider", string(req.Provider), "action", req.Action, "user", session.UserID)
	writeEnvelope(w, http.StatusOK, exec.Execute(ctx, session, req.Action, req.Payload))
}

// authenticate resolves the bearer session or explains why it cannot.
func (s *Server) authenticate(r *http.Request) (*auth.Session, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return s.verifier.Verify(token)
}

// writeEnvelope writes a response envelope with the given status.
func writeEnvelope(w http.ResponseWriter, status int, resp proxy.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error(log.CatBroker, "Failed to encode response envelope", "error", err)
	}
}

// unmarshalPayload decodes an action payload, treating absence as an
// error the executor can report verbatim.
func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
