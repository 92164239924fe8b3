// Package game parses game service flags and launches the service.
package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/hanabi.space/internal/platform/cmd"
	"github.com/louisbranch/hanabi.space/internal/services/game/api/rest"
	"github.com/louisbranch/hanabi.space/internal/services/game/app"
	gamesqlite "github.com/louisbranch/hanabi.space/internal/services/game/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds game command configuration.
type Config struct {
	Port   int    `env:"HANABI_SPACE_GAME_PORT" envDefault:"8080"`
	DBPath string `env:"HANABI_SPACE_GAME_DB_PATH"`
	Secret string `env:"HANABI_SPACE_GAME_SECRET"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the game SQLite database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "game.db")
	}
	return cfg, nil
}

// Run starts the game HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	secret, err := resolveSecret(cfg.Secret)
	if err != nil {
		return err
	}

	store, err := gamesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open game store: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc, err := app.NewService(store, secret)
	if err != nil {
		return fmt.Errorf("build game service: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           rest.NewHandler(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("game api listening on %s", listener.Addr())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

// resolveSecret returns the token/deal secret. Without a configured secret
// an ephemeral one is generated, which invalidates every outstanding
// session URL on restart.
func resolveSecret(configured string) ([]byte, error) {
	configured = strings.TrimSpace(configured)
	if configured != "" {
		return []byte(configured), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate ephemeral secret: %w", err)
	}
	log.Printf("HANABI_SPACE_GAME_SECRET is not set; using an ephemeral secret, session URLs will not survive a restart")
	return []byte(hex.EncodeToString(buf)), nil
}
