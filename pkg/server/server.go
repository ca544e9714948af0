// Package server exposes market, stock and watch-list analysis over a small
// JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/market"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/telemetry"
)

const shutdownTimeout = 30 * time.Second

// Server is the HTTP API server
type Server struct {
	router    *mux.Router
	config    config.ServerConfig
	server    *http.Server
	snapshot  *market.Snapshotter
	sentiment *market.SentimentAnalyzer
	sectors   *market.SectorTracker
	analyzer  *portfolio.Analyzer
	history   *history.Store
	started   time.Time
}

// Validate checks the listen address
func Validate(c config.ServerConfig) error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// New creates a server backed by provider. store may be nil, in which case
// the history routes answer 404.
func New(provider quotes.Provider, cfg config.Config, store *history.Store) (*Server, error) {
	if err := Validate(cfg.Server); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:    mux.NewRouter(),
		config:    cfg.Server,
		snapshot:  market.NewSnapshotter(provider, cfg.Market),
		sentiment: market.NewSentimentAnalyzer(provider, cfg.Market),
		sectors:   market.NewSectorTracker(provider, cfg.Market),
		analyzer:  portfolio.NewAnalyzer(provider, cfg),
		history:   store,
		started:   time.Now(),
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Address is the host:port the server listens on
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/market/sentiment", s.handleSentiment).Methods("GET")
	api.HandleFunc("/market/sectors", s.handleSectors).Methods("GET")
	api.HandleFunc("/stocks/{symbol}", s.handleStock).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/signals", s.handleStockSignals).Methods("GET")
	api.HandleFunc("/groups/analyze", s.handleAnalyzeGroup).Methods("GET")
	api.HandleFunc("/history", s.handleListHistory).Methods("GET")
	api.HandleFunc("/history/{id}", s.handleGetHistory).Methods("GET")

	s.router.Handle("/metrics", telemetry.MetricsHandler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		telemetry.ObserveHTTPRequest(route, rw.statusCode, start)
		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Health is the body of GET /healthz
type Health struct {
	Status        string       `json:"status"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Process       *ProcessInfo `json:"process,omitempty"`
}

// ProcessInfo describes the serving process
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
	CPUPercent float64 `json:"cpu_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	info, err := processInfo(r.Context())
	if err != nil {
		logger.G(r.Context()).WithError(err).Debug("health check without process stats")
	} else {
		health.Process = info
	}
	writeJSON(w, health)
}

func processInfo(ctx context.Context) (*ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to inspect process")
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read memory usage")
	}
	threads, err := p.NumThreadsWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read thread count")
	}
	cpu, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cpu usage")
	}
	return &ProcessInfo{PID: p.Pid, RSSBytes: mem.RSS, Threads: threads, CPUPercent: cpu}, nil
}

// handleSnapshot handles GET /api/market/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot.Generate(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "failed to load market snapshot", err)
		return
	}
	writeJSON(w, snap)
}

// handleSentiment handles GET /api/market/sentiment
func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	sentiment, err := s.sentiment.Analyze(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "failed to analyse market sentiment", err)
		return
	}
	writeJSON(w, sentiment)
}

// handleSectors handles GET /api/market/sectors
func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	hot, err := s.sectors.HotSectorsDetail(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "failed to load hot sectors", err)
		return
	}
	writeJSON(w, hot)
}

// handleStock handles GET /api/stocks/{symbol}
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolVar(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.analyzer.Comprehensive(r.Context(), symbol))
}

// StockSignalsResponse pairs the trading signal of a stock with its score
type StockSignalsResponse struct {
	Signal *portfolio.StockSignal  `json:"signal"`
	Score  *portfolio.OverallScore `json:"score"`
}

// handleStockSignals handles GET /api/stocks/{symbol}/signals
func (s *Server) handleStockSignals(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolVar(w, r)
	if !ok {
		return
	}
	signal, err := s.analyzer.Signals().AnalyzeStock(r.Context(), symbol)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "failed to analyse stock signals", err)
		return
	}
	writeJSON(w, StockSignalsResponse{
		Signal: signal,
		Score:  s.analyzer.Scoring().Overall(r.Context(), symbol),
	})
}

// handleAnalyzeGroup handles GET /api/groups/analyze?symbols=a,b&name=&peers=true
func (s *Server) handleAnalyzeGroup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var symbols []string
	for _, sym := range strings.Split(query.Get("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "symbols query parameter is required", nil)
		return
	}

	name := query.Get("name")
	if name == "" {
		name = portfolio.DefaultGroupName
	}
	if peers, _ := strconv.ParseBool(query.Get("peers")); peers {
		writeJSON(w, s.analyzer.AnalyzeWithPeers(r.Context(), symbols, name))
		return
	}
	writeJSON(w, s.analyzer.AnalyzeGroup(r.Context(), symbols, name))
}

// handleListHistory handles GET /api/history?kind=&limit=
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(r.Context(), w, http.StatusNotFound, "history is disabled", nil)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "limit must be an integer", nil)
			return
		}
		limit = n
	}
	runs, err := s.history.List(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "failed to list report runs", err)
		return
	}
	writeJSON(w, runs)
}

// handleGetHistory handles GET /api/history/{id}
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(r.Context(), w, http.StatusNotFound, "history is disabled", nil)
		return
	}
	run, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "report run not found", nil)
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "failed to load report run", err)
		return
	}
	writeJSON(w, run)
}

func symbolVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol, err := quotes.NormalizeSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return "", false
	}
	return symbol, true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(ctx).WithError(err).Error(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	presenter.Info(fmt.Sprintf("Serving API on http://%s", s.Address()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	return <-errCh
}
