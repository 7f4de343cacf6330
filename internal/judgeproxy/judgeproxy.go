// Package judgeproxy implements the loopback HTTP judge proxy: a
// bearer-token-authenticated, call-count-limited forwarder that lets
// code-judge subprocesses invoke the judge provider (or a named alternate
// target) through a controlled channel.
package judgeproxy

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentv/agentv"
)

// Options configures a Server. Zero value uses the spec defaults.
type Options struct {
	// MaxCalls is the budget of successful /invoke (or /batch item) calls
	// before subsequent calls receive 429. Defaults to 50.
	MaxCalls int
}

// Server is one judge-proxy instance, scoped to a single code-judge
// evaluation. It must be created after the evaluator starts and shut down
// before it returns, on every exit path.
type Server struct {
	listener net.Listener
	httpSrv  *http.Server
	token    string

	judge    agentv.Provider
	resolver agentv.TargetResolver
	maxCalls int64
	calls    int64

	shutdownOnce sync.Once
}

// New starts a Server bound to 127.0.0.1 on an ephemeral port.
func New(judge agentv.Provider, resolver agentv.TargetResolver, opts Options) (*Server, error) {
	maxCalls := opts.MaxCalls
	if maxCalls <= 0 {
		maxCalls = 50
	}

	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("judgeproxy: generate token: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("judgeproxy: listen: %w", err)
	}

	s := &Server{
		listener: ln,
		token:    token,
		judge:    judge,
		resolver: resolver,
		maxCalls: int64(maxCalls),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/invoke", s.handleInvoke)
	mux.HandleFunc("/batch", s.handleBatch)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("judge proxy server stopped unexpectedly")
		}
	}()

	return s, nil
}

// URL returns the base URL subprocesses should call, e.g.
// "http://127.0.0.1:54321".
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Token returns the bearer token child processes must present.
func (s *Server) Token() string { return s.token }

// CallCount returns the number of calls forwarded successfully so far;
// calls rejected with 429 or that failed upstream are not counted.
func (s *Server) CallCount() int64 { return atomic.LoadInt64(&s.calls) }

// Shutdown stops the server. Idempotent: safe to call more than once, and
// safe to call on the failure path before a successful New.
func (s *Server) Shutdown(ctx context.Context) {
	if s == nil {
		return
	}
	s.shutdownOnce.Do(func() {
		shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutCtx); err != nil {
			log.Warn().Err(err).Msg("judge proxy shutdown did not complete cleanly")
		}
	})
}

type invokeRequest struct {
	Question     string `json:"question"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Target       string `json:"target,omitempty"`
}

type invokeResponse struct {
	RawText        string              `json:"rawText"`
	OutputMessages []agentv.Message    `json:"outputMessages"`
	TokenUsage     *agentv.TokenUsage  `json:"tokenUsage,omitempty"`
	CostUsd        *float64            `json:"costUsd,omitempty"`
	DurationMs     *int64              `json:"durationMs,omitempty"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, status := s.invoke(r.Context(), req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if resp != nil {
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var reqs []invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resps := make([]*invokeResponse, len(reqs))
	status := http.StatusOK
	for i, req := range reqs {
		resp, st := s.invoke(r.Context(), req)
		resps[i] = resp
		if st != http.StatusOK {
			status = st
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resps) //nolint:errcheck
}

func (s *Server) invoke(ctx context.Context, req invokeRequest) (*invokeResponse, int) {
	if atomic.LoadInt64(&s.calls) >= s.maxCalls {
		return nil, http.StatusTooManyRequests
	}

	provider := s.judge
	if req.Target != "" {
		if s.resolver == nil {
			return nil, http.StatusNotFound
		}
		p, ok := s.resolver.Resolve(req.Target)
		if !ok {
			return nil, http.StatusNotFound
		}
		provider = p
	}
	if provider == nil {
		return nil, http.StatusInternalServerError
	}

	resp, err := provider.Invoke(ctx, agentv.ProviderRequest{
		Question:     req.Question,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("judge proxy: judge provider invocation failed")
		return nil, http.StatusInternalServerError
	}
	atomic.AddInt64(&s.calls, 1)

	rawText := ""
	for i := len(resp.OutputMessages) - 1; i >= 0; i-- {
		if resp.OutputMessages[i].Role != agentv.RoleAssistant {
			continue
		}
		if text, ok := resp.OutputMessages[i].TextContent(); ok {
			rawText = text
			break
		}
	}

	return &invokeResponse{
		RawText:        rawText,
		OutputMessages: resp.OutputMessages,
		TokenUsage:     resp.TokenUsage,
		CostUsd:        resp.CostUsd,
		DurationMs:     resp.DurationMs,
	}, http.StatusOK
}

func (s *Server) authorized(r *http.Request) bool {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) < len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	presented := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) == 1
}

// randomToken concatenates two random v4 UUIDs for a token with more
// entropy than a single one, since it authenticates every /invoke call a
// code-judge subprocess makes for the life of the evaluation.
func randomToken() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return a.String() + b.String(), nil
}
