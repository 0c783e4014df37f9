package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/personaflow/internal/engine"
	"github.com/lazypower/personaflow/internal/llm"
	"github.com/lazypower/personaflow/internal/logging"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/server"
	"github.com/lazypower/personaflow/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level, os.Stderr)

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	templates := persona.NewRegistry()
	if cfg.Persona.TemplatesPath != "" {
		templates, err = persona.LoadFile(cfg.Persona.TemplatesPath)
		if err != nil {
			return fmt.Errorf("load persona templates: %w", err)
		}
		logger.Info("persona templates loaded", "path", cfg.Persona.TemplatesPath, "names", templates.Names())
	} else {
		logger.Warn("no templates_path configured, dynamic personas will not be written")
	}
	if cfg.Persona.PersonasName == "" {
		logger.Warn("personas_name is not set, prompt injection disabled")
	}

	router, err := llm.NewRouterFromConfig(cfg.LLM)
	if err != nil {
		return fmt.Errorf("configure llm: %w", err)
	}
	logger.Info("llm configured", "default", cfg.LLM.Provider, "providers", router.Providers())

	eng, err := engine.New(engine.Options{
		Config:      cfg.Persona,
		DisplayName: cfg.PersonaDisplayName(),
		Store:       store.NewLazy(dbPath),
		LLM:         router,
		Templates:   templates,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := server.New(eng, logger, VersionString())
	srv.SetHookTimeout(time.Duration(cfg.Hooks.Timeout) * time.Second)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("personaflow serving", "addr", addr, "db", dbPath, "persona", eng.PersonaID())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}

	// Let in-flight summaries finish their writes before the store closes.
	waited := make(chan struct{})
	go func() {
		srv.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Duration(cfg.Hooks.Timeout) * time.Second):
		logger.Warn("background work still running at shutdown")
	}
	return nil
}
