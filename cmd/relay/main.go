// Command relay runs the multi-provider chat session service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/okalas/relay/config"
	"github.com/okalas/relay/core/chat"
	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/ai/anthropic"
	"github.com/okalas/relay/providers/ai/groq"
	"github.com/okalas/relay/providers/ai/openai"
	"github.com/okalas/relay/providers/observability"
	"github.com/okalas/relay/providers/observability/slogobs"
	"github.com/okalas/relay/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	listenAddr := flag.String("listen", "", "listen address, overrides config")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	observer := slogobs.New(slogobs.WithLevel(level))

	if err := run(*configPath, *listenAddr, observer); err != nil {
		observer.Error("relay exited", observability.Error(err))
		os.Exit(1)
	}
}

func run(configPath, listenAddr string, observer observability.Observer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	store := session.NewStore(session.Settings{
		Model:        cfg.Session.Model,
		Temperature:  cfg.Session.Temperature,
		MaxTokens:    cfg.Session.MaxTokens,
		SystemPrompt: cfg.Session.SystemPrompt,
		MaxHistory:   cfg.Session.MaxHistory,
	},
		session.WithRetention(cfg.Session.Retention.Std()),
		session.WithSweepInterval(cfg.Session.SweepInterval.Std()),
		session.WithObserver(observer),
	)

	registry, err := buildRegistry(cfg, observer)
	if err != nil {
		return err
	}

	orchestrator := chat.NewOrchestrator(store, registry, observer)
	srv := server.New(orchestrator, store, registry, observer)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		observer.Info("relay listening", observability.String("addr", cfg.ListenAddr))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	observer.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildRegistry turns the configured provider table into live adapters.
// Providers without a credential are registered as unconfigured so routing to
// them reports a precise error while the rest keep working.
func buildRegistry(cfg *config.Config, observer observability.Observer) (*chat.Registry, error) {
	registrations := make([]*chat.Registration, 0, len(cfg.Providers))

	for _, providerCfg := range cfg.Providers {
		registration := &chat.Registration{
			ID:           providerCfg.ID,
			Models:       providerCfg.Models,
			Prefixes:     providerCfg.Prefixes,
			DefaultModel: providerCfg.DefaultModel,
		}

		apiKey := providerCfg.APIKey()
		if apiKey == "" {
			registration.Unconfigured = fmt.Sprintf("%s is not set", providerCfg.APIKeyEnv)
			observer.Warn("provider not configured, skipping",
				observability.String(observability.AttrLLMProvider, providerCfg.ID),
				observability.String("missing_env", providerCfg.APIKeyEnv),
			)
			registrations = append(registrations, registration)
			continue
		}

		adapter, err := newAdapter(providerCfg.ID)
		if err != nil {
			return nil, err
		}
		adapter.WithAPIKey(apiKey)
		if baseURL := providerCfg.BaseURL(); baseURL != "" {
			adapter.WithBaseURL(baseURL)
		}

		registration.Provider = adapter
		registrations = append(registrations, registration)
	}

	defaultProvider := cfg.DefaultProvider
	if defaultProvider != "" {
		// A default provider with no credential would fail every fallback
		// route; drop the fallback instead.
		for _, registration := range registrations {
			if registration.ID == defaultProvider && registration.Unconfigured != "" {
				observer.Warn("default provider not configured, disabling fallback routing",
					observability.String(observability.AttrLLMProvider, defaultProvider))
				defaultProvider = ""
			}
		}
	}

	return chat.NewRegistry(registrations, defaultProvider)
}

func newAdapter(id string) (ai.Provider, error) {
	switch id {
	case "openai":
		return openai.New(), nil
	case "anthropic":
		return anthropic.New(), nil
	case "groq":
		return groq.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider id %q", id)
	}
}
