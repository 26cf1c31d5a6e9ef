// Package serve exposes the chain engine over HTTP: trigger runs,
// settle suspended confirmations, and inspect finished chains.
// Suspension is in-process, so pending confirmations live in memory
// keyed by an opaque token.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/chain"
	"github.com/weftworks/weft/pkg/loader"
	"github.com/weftworks/weft/pkg/schema"
)

// defaultRunIndexSize bounds the finished-run index.
const defaultRunIndexSize = 256

// Config wires a Server. Loader and Compiler are required. The
// Compiler must be built without a Confirmer: the HTTP surface settles
// gates itself via the confirmation endpoints.
type Config struct {
	Addr     string
	Loader   *loader.Loader
	Compiler *chain.Compiler
	Logger   zerolog.Logger

	// RunIndexSize caps how many finished runs are kept for
	// GET /api/v1/chains/{id}. Zero means the default.
	RunIndexSize int
}

// Server is the weft HTTP service.
type Server struct {
	cfg    Config
	log    zerolog.Logger
	router chi.Router

	mu      sync.Mutex
	pending map[string]*pendingEntry
	runs    map[string]*chain.RunResult
	runIDs  []string // insertion order, for eviction
}

type pendingEntry struct {
	token   string
	created time.Time
	p       *chain.Pending

	// settled count accumulated before the gate, added back when the
	// gate settles so totals match the synchronous-confirmer path
	preSettled int
}

// TriggerRequest is the body of POST /api/v1/triggers/run.
type TriggerRequest struct {
	Screen    string         `json:"screen"`
	Component string         `json:"component"`
	Event     string         `json:"event"`
	Context   map[string]any `json:"context,omitempty"`
}

// ConfirmationInfo describes one pending confirmation gate.
type ConfirmationInfo struct {
	Token     string `json:"token"`
	ChainID   string `json:"chain_id"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	Remaining int    `json:"remaining"`
	CreatedAt string `json:"created_at"`
}

// RunResponse is the body returned for a chain invocation. The
// confirmation block is present only on suspension.
type RunResponse struct {
	ChainID      string            `json:"chain_id"`
	Status       chain.Status      `json:"status"`
	Settled      int               `json:"settled"`
	Results      []any             `json:"results"`
	Confirmation *ConfirmationInfo `json:"confirmation,omitempty"`
}

// New creates a Server and mounts its routes.
func New(cfg Config) *Server {
	if cfg.RunIndexSize <= 0 {
		cfg.RunIndexSize = defaultRunIndexSize
	}
	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		pending: make(map[string]*pendingEntry),
		runs:    make(map[string]*chain.RunResult),
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triggers/run", s.handleTriggerRun)
		r.Get("/confirmations", s.handleListConfirmations)
		r.Post("/confirmations/{token}/approve", s.handleApprove)
		r.Post("/confirmations/{token}/dismiss", s.handleDismiss)
		r.Get("/chains/{id}", s.handleGetChain)
		r.Get("/app", s.handleGetApp)
	})

	s.router = r
	return s
}

// Handler returns the mounted router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the HTTP server until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTriggerRun resolves a screen/component/event to its action
// chain and runs it. 200 on a settled run; 202 with a confirmation
// token when the chain suspends at a gate.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.Screen == "" || req.Component == "" || req.Event == "" {
		writeError(w, http.StatusBadRequest, "screen, component and event are required")
		return
	}

	app := s.cfg.Loader.App()
	acts, err := app.Chain(req.Screen, req.Component, req.Event)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	base := make(map[string]any)
	for k, v := range app.Meta.Vars {
		base[k] = v
	}
	for k, v := range req.Context {
		base[k] = v
	}

	res := s.cfg.Compiler.Compile(acts, base).Run(r.Context())
	s.finish(w, res, 0)
}

// handleApprove runs the gated action and the rest of its chain. A
// chain may suspend again at a later gate, yielding a fresh token.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.takePending(chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown confirmation token")
		return
	}

	res, err := entry.p.Approve(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.finish(w, res, entry.preSettled)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.takePending(chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown confirmation token")
		return
	}

	if err := entry.p.Dismiss(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	res := entry.p.Settled()
	res.Settled += entry.preSettled
	s.recordRun(res)
	writeJSON(w, http.StatusOK, runResponse(res, nil))
}

func (s *Server) handleListConfirmations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	infos := make([]ConfirmationInfo, 0, len(s.pending))
	for _, e := range s.pending {
		infos = append(infos, confirmationInfo(e))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"confirmations": infos})
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	res, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("chain %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, runResponse(res, nil))
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Loader.App())
}

// finish records a run result and writes the response, minting a
// confirmation token when the run suspended. preSettled is the count
// settled before this invocation's slice of the chain; it folds into
// the reported total and rides along to the next gate.
func (s *Server) finish(w http.ResponseWriter, res *chain.RunResult, preSettled int) {
	res.Settled += preSettled
	if res.Status == chain.StatusSuspended && res.Pending != nil {
		entry := &pendingEntry{
			token:      uuid.NewString(),
			created:    time.Now().UTC(),
			p:          res.Pending,
			preSettled: res.Settled,
		}
		s.mu.Lock()
		s.pending[entry.token] = entry
		s.mu.Unlock()

		s.log.Info().Str("chain", res.ChainID).Str("token", entry.token).
			Str("kind", string(entry.p.Kind)).Msg("chain suspended awaiting confirmation")

		info := confirmationInfo(entry)
		writeJSON(w, http.StatusAccepted, runResponse(res, &info))
		return
	}

	s.recordRun(res)
	writeJSON(w, http.StatusOK, runResponse(res, nil))
}

// recordRun keeps a terminal run in the bounded index, evicting the
// oldest entry when full.
func (s *Server) recordRun(res *chain.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.runs[res.ChainID]; !seen {
		s.runIDs = append(s.runIDs, res.ChainID)
		if len(s.runIDs) > s.cfg.RunIndexSize {
			delete(s.runs, s.runIDs[0])
			s.runIDs = s.runIDs[1:]
		}
	}
	s.runs[res.ChainID] = res
}

func (s *Server) takePending(token string) (*pendingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[token]
	if ok {
		delete(s.pending, token)
	}
	return entry, ok
}

// requestLogger logs one line per request with a uuid request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func confirmationInfo(e *pendingEntry) ConfirmationInfo {
	return ConfirmationInfo{
		Token:     e.token,
		ChainID:   e.p.ChainID,
		Kind:      string(e.p.Kind),
		Text:      e.p.Text,
		Remaining: e.p.Remaining(),
		CreatedAt: e.created.Format(time.RFC3339),
	}
}

func runResponse(res *chain.RunResult, conf *ConfirmationInfo) RunResponse {
	out := RunResponse{
		ChainID:      res.ChainID,
		Status:       res.Status,
		Settled:      res.Settled,
		Results:      res.Results,
		Confirmation: conf,
	}
	if out.Results == nil {
		out.Results = []any{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// AppSummary is a compact listing of an app's triggerable chains,
// used by tooling surfaces.
type AppSummary struct {
	Name    string         `json:"name"`
	Screens []ScreenChains `json:"screens"`
}

// ScreenChains lists the chains reachable from one screen.
type ScreenChains struct {
	ID     string       `json:"id"`
	Chains []ChainEntry `json:"chains"`
}

// ChainEntry names one component event and its chain length.
type ChainEntry struct {
	Component string `json:"component"`
	Event     string `json:"event"`
	Actions   int    `json:"actions"`
}

// Summarize builds an AppSummary from a bundle.
func Summarize(app *schema.App) AppSummary {
	out := AppSummary{Name: app.Meta.Name}
	for _, screen := range app.Screens {
		sc := ScreenChains{ID: screen.ID}
		for _, comp := range screen.Components {
			for _, trig := range comp.Triggers {
				sc.Chains = append(sc.Chains, ChainEntry{
					Component: comp.ID,
					Event:     trig.Event,
					Actions:   len(trig.Actions),
				})
			}
		}
		out.Screens = append(out.Screens, sc)
	}
	return out
}
