// Package main provides the cybercj binary entry point. CyberCJ is a
// strategic tutoring service for cyber justice education: it plans
// multi-step learning paths, adapts instructional scaffolding per
// student, and grounds responses in a local knowledge base.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/wbq321/CyberCJ-multiagent/llm/providers"

	"github.com/wbq321/CyberCJ-multiagent/admission"
	"github.com/wbq321/CyberCJ-multiagent/config"
	"github.com/wbq321/CyberCJ-multiagent/feedback"
	"github.com/wbq321/CyberCJ-multiagent/knowledge"
	"github.com/wbq321/CyberCJ-multiagent/llm"
	"github.com/wbq321/CyberCJ-multiagent/metric"
	"github.com/wbq321/CyberCJ-multiagent/server"
	"github.com/wbq321/CyberCJ-multiagent/tutor"
)

const (
	Version = "0.1.0"
	appName = "cybercj"
)

// prunePeriod is how often idle rate-limiter clients are dropped.
const prunePeriod = 5 * time.Minute

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Strategic cyber justice tutoring service",
		Long: `CyberCJ serves an AI tutor for criminal justice students and law
enforcement professionals learning cybersecurity.

The tutor maintains a per-session learning plan, adapts its scaffolding
level to the student, classifies whether input answers the previous
question or opens a new topic, and grounds responses in a local
knowledge base. Expensive model calls are bounded by per-client rate
limits and a process-wide concurrency gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(logLevel string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := checkCredentials(cfg.Model.Provider); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Knowledge base is required at startup. A missing file is an
	// initialization failure, not a degraded mode.
	index, err := knowledge.NewIndex(knowledge.Config{
		Path:         cfg.Knowledge.Path,
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
	}, logger)
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}
	logger.Info("Knowledge base loaded", "path", cfg.Knowledge.Path, "passages", index.Len())

	if cfg.Knowledge.Watch {
		watcher, err := knowledge.NewWatcher(index, logger)
		if err != nil {
			logger.Warn("Knowledge watcher unavailable", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	client := llm.NewClient(llm.Endpoint{
		Provider: cfg.Model.Provider,
		URL:      cfg.Model.Endpoint,
		Model:    cfg.Model.Name,
	}, llm.WithLogger(logger))

	store := tutor.NewStore(tutor.StoreConfig{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
	}, logger)
	go store.Sweep(ctx)

	ctrl := admission.NewController(admission.Config{
		MaxConcurrent:        cfg.Admission.MaxConcurrent,
		MaxRequests:          cfg.Admission.MaxRequests,
		Window:               cfg.Admission.Window,
		EstimatedCallSeconds: cfg.Admission.EstimatedCallSeconds,
	})
	go pruneLoop(ctx, ctrl)

	metrics := metric.New(
		func() float64 { return float64(ctrl.Gate().InFlight()) },
		func() float64 { return float64(store.Count()) },
	)

	classifier := tutor.NewClassifier(client, logger)
	engine := tutor.NewEngine(store, client, classifier, index, tutor.EngineConfig{
		ModelTimeout: cfg.Model.Timeout,
		Temperature:  cfg.Model.Temperature,
		TopK:         cfg.Knowledge.TopK,
		MaxHistory:   cfg.Session.MaxHistory,
		ObserveModelCall: func(d time.Duration) {
			metrics.ModelDuration.Observe(d.Seconds())
		},
	}, logger)

	var feedbackStore *feedback.Store
	if cfg.Server.FeedbackDBPath != "" {
		feedbackStore, err = feedback.NewStore(cfg.Server.FeedbackDBPath)
		if err != nil {
			return fmt.Errorf("open feedback store: %w", err)
		}
		defer feedbackStore.Close()
	}

	srv := server.New(engine, store, ctrl, feedbackStore, metrics, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", httpServer.Addr, "provider", cfg.Model.Provider, "model", cfg.Model.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// checkCredentials fails fast when the configured provider needs an API
// key that is not set.
func checkCredentials(provider string) error {
	var envVar string
	switch provider {
	case "groq":
		envVar = "GROQ_API_KEY"
	case "openai":
		envVar = "OPENAI_API_KEY"
	default:
		return nil
	}
	if os.Getenv(envVar) == "" {
		return fmt.Errorf("provider %q requires %s to be set", provider, envVar)
	}
	return nil
}

func pruneLoop(ctx context.Context, ctrl *admission.Controller) {
	ticker := time.NewTicker(prunePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.PruneClients()
		}
	}
}
