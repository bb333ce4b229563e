package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/piiscan/analyzer/config"
	"github.com/piiscan/analyzer/pkg/auth"
	"github.com/piiscan/analyzer/pkg/engine/local"
	"github.com/piiscan/analyzer/pkg/engine/remote"
	"github.com/piiscan/analyzer/pkg/models"
	"github.com/piiscan/analyzer/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// run is the entrypoint for the analyzer server
func run() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Errorf("Error configuring analyzer: %s", err)
		return err
	}

	if done, err := handleCLIOptions(cfg); done || err != nil {
		return err
	}

	if err := config.ConfigureLogging(cfg); err != nil {
		return err
	}
	log.Infof("Starting analyzer server version %s", config.VersionString)

	appState, err := NewAppState(cfg)
	if err != nil {
		log.Errorf("Error starting analyzer engine: %s", err)
		return err
	}

	srv, err := server.Create(appState)
	if err != nil {
		log.Errorf("Error creating server: %s", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv)
}

// NewAppState builds the engine selected by cfg and wraps it in an AppState.
func NewAppState(cfg *config.Config) (*models.AppState, error) {
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &models.AppState{
		Engine: engine,
		Config: cfg,
	}, nil
}

func newEngine(cfg *config.Config) (models.Engine, error) {
	log.Info("Starting analyzer engine")

	switch cfg.Engine.Type {
	case config.EngineTypeLocal:
		engine, err := local.New(cfg.Engine.RegistryFile)
		if err != nil {
			return nil, err
		}
		log.Info("Using local pattern engine")
		return engine, nil
	case config.EngineTypeRemote:
		engine, err := remote.New(cfg.Engine)
		if err != nil {
			return nil, err
		}
		log.Infof("Using remote analysis engine at %s", cfg.Engine.ServerURL)
		return engine, nil
	default:
		return nil, fmt.Errorf("engine.type (%s) is not supported", cfg.Engine.Type)
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on: %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Errorf("Server error: %s", err)
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down analyzer server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down server: %s", err)
		return err
	}
	return nil
}

// handleCLIOptions handles CLI options that don't require the server to run. It reports whether
// the command is done.
func handleCLIOptions(cfg *config.Config) (bool, error) {
	switch {
	case showVersion:
		fmt.Println(config.VersionString)
		return true, nil
	case generateKey:
		token, err := auth.GenerateJWT(cfg)
		if err != nil {
			return true, err
		}
		fmt.Println(token)
		return true, nil
	case dumpConfig:
		return true, dumpConfigTo(os.Stdout, cfg)
	}
	return false, nil
}

func dumpConfigTo(out io.Writer, cfg *config.Config) error {
	redacted := *cfg
	if redacted.Auth.Secret != "" {
		redacted.Auth.Secret = "********"
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(redacted)
}
