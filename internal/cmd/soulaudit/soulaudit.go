// Package soulaudit parses soul audit service flags and launches the HTTP API.
package soulaudit

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/euangelion/internal/platform/config"
	platformotel "github.com/louisbranch/euangelion/internal/platform/otel"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/api/rest"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/app"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/catalog"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage/sqlite"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/telemetry"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/token"
)

// Config holds soul audit command configuration.
type Config struct {
	Addr          string `env:"EUANGELION_SOULAUDIT_ADDR" envDefault:":8094"`
	DBPath        string `env:"EUANGELION_SOULAUDIT_DB" envDefault:"soulaudit.db"`
	SecureCookies bool   `env:"EUANGELION_SECURE_COOKIES"`
	Tokens        token.SecretConfig
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The soul audit HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the soul audit SQLite database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the soul audit HTTP API service and blocks until ctx is
// cancelled or the server fails.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := platformotel.Setup(ctx, "soulaudit")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	codec, err := token.NewCodec(cfg.Tokens)
	if err != nil {
		return fmt.Errorf("create token codec: %w", err)
	}

	application, err := app.New(store, cat, codec, telemetry.NewEmitter(store))
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// The sqlite store doubles as the rate limiter backend so counters
	// survive restarts.
	server, err := rest.NewServer(application, store, cfg.SecureCookies)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Printf("soul audit listening on %s", cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
