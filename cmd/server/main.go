// Package main provides the entry point for the NumIntel server: a
// phone-number identity investigation pipeline with multi-source
// evidence correlation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lvonguyen/numintel/internal/api/gateway"
	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/config"
	"github.com/lvonguyen/numintel/internal/investigation"
	"github.com/lvonguyen/numintel/internal/logging"
	"github.com/lvonguyen/numintel/internal/repository"
	"github.com/lvonguyen/numintel/internal/sources"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("NumIntel %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing file falls back to defaults so the server can run
		// against env-configured sources.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.DefaultConfig()
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting NumIntel",
		zap.String("version", Version),
		zap.Strings("sources", cfg.EnabledSources()))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: os.Getenv(cfg.Redis.PasswordEnv),
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	store := repository.NewStore(rdb, cfg.Redis.TTL, logger)

	srv := &server{
		cfg:    cfg,
		orch:   buildOrchestrator(cfg, store, logger),
		store:  store,
		rdb:    rdb,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/ready", srv.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(gateway.NewLimiter(rdb, cfg.RateLimit, logger).Middleware)
		}
		r.Post("/investigations", srv.handleStart)
		r.Get("/investigations/{id}", srv.handleGet)
		r.Get("/investigations/{id}/evidence", srv.handleEvidence)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))
	srv.abort()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// buildOrchestrator wires the configured collectors to their pipeline
// stages. A disabled source leaves its stage unregistered; the stage
// then fails with a recorded fault instead of blocking the pipeline.
func buildOrchestrator(cfg *config.Config, store *repository.Store, logger *zap.Logger) *investigation.Orchestrator {
	orch := investigation.New(cfg.Orchestrator, cfg.Fusion, store, logger)

	register := func(stage investigation.StageID, name string, build func(sources.ClientConfig) collect.Collector) {
		src, ok := cfg.Sources[name]
		if !ok || !src.Enabled {
			logger.Warn("source disabled, stage will not run",
				zap.String("stage", string(stage)),
				zap.String("source", name))
			return
		}
		orch.Register(stage, build(src), src.Retry)
	}

	register(investigation.StageValidation, sources.SourceCarrierLookup, func(c sources.ClientConfig) collect.Collector {
		return sources.NewCarrierLookup(c)
	})
	register(investigation.StageNameDiscovery, sources.SourcePeopleFinder, func(c sources.ClientConfig) collect.Collector {
		return sources.NewPeopleFinder(c)
	})
	register(investigation.StageBreachSearch, sources.SourceBreachIndex, func(c sources.ClientConfig) collect.Collector {
		return sources.NewBreachIndex(c)
	})
	register(investigation.StageEmailPatterns, sources.SourceMailPattern, func(c sources.ClientConfig) collect.Collector {
		return sources.NewMailPattern(c)
	})
	register(investigation.StagePublicRecords, sources.SourceRecordScrape, func(c sources.ClientConfig) collect.Collector {
		return sources.NewRecordScrape(c)
	})
	register(investigation.StageProfNetwork, sources.SourceProfNet, func(c sources.ClientConfig) collect.Collector {
		return sources.NewProfNet(c)
	})
	register(investigation.StageCodeHosting, sources.SourceCodeSearch, func(c sources.ClientConfig) collect.Collector {
		return sources.NewCodeSearch(c)
	})
	register(investigation.StageUsernameEnum, sources.SourceNameIndex, func(c sources.ClientConfig) collect.Collector {
		return sources.NewNameIndex(c)
	})
	return orch
}

// run tracks one in-flight or finished investigation.
type run struct {
	Target    string
	StartedAt time.Time
	Result    *investigation.Result
	cancel    context.CancelFunc
}

// server carries the HTTP handler dependencies.
type server struct {
	cfg    *config.Config
	orch   *investigation.Orchestrator
	store  *repository.Store
	rdb    *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// abort cancels every in-flight investigation cooperatively.
func (s *server) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.cancel != nil {
			r.cancel()
		}
	}
}

type startRequest struct {
	Phone string `json:"phone"`
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone is required"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := s.orch.NewState(req.Phone)
	entry := &run{Target: req.Phone, StartedAt: state.StartedAt(), cancel: cancel}

	s.mu.Lock()
	if s.runs == nil {
		s.runs = make(map[string]*run)
	}
	s.runs[state.ID()] = entry
	s.mu.Unlock()

	go func() {
		defer cancel()
		result := s.orch.RunState(ctx, state)
		s.mu.Lock()
		entry.Result = result
		s.mu.Unlock()
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     state.ID(),
		"target": req.Phone,
		"status": "running",
	})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Copy the result pointer out under the lock; the run goroutine
	// writes it when the investigation finalizes.
	s.mu.Lock()
	entry := s.runs[id]
	var result *investigation.Result
	if entry != nil {
		result = entry.Result
	}
	s.mu.Unlock()

	if entry == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown investigation"})
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "running"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	entry := s.runs[id]
	var result *investigation.Result
	if entry != nil {
		result = entry.Result
	}
	s.mu.Unlock()

	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no finalized investigation"})
		return
	}

	snap, err := s.store.Load(r.Context(), result.Target, result.StartedAt)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       snap.ID,
		"target":   snap.Target,
		"evidence": snap.Evidence,
		"faults":   snap.Faults,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.rdb.Ping(r.Context()).Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
